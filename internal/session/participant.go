package session

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"push-arena/internal/game"
	"push-arena/internal/metrics"
	"push-arena/internal/protocol"
	"push-arena/internal/relay"
	"push-arena/internal/replication"
)

type entity struct {
	player *game.Player
	auth   *game.AuthorityHandle // set on the owning participant only
	obs    *game.ObserverHandle  // set everywhere else
}

func (e *entity) role() string {
	if e.auth != nil {
		return "authority"
	}
	return "observer"
}

// Participant is one process's view of a session. All entity mutation
// happens inside OnSimulationTick, on a single goroutine.
type Participant struct {
	ctx   Context
	input game.InputSource

	movement *game.MovementController
	detector *game.InteractionDetector
	push     *relay.PushRelay
	repl     *replication.Channel

	inbox       *inbox
	unsubscribe func()

	mu       sync.Mutex // held for a whole tick
	entities map[protocol.ActorID]*entity
	local    *entity
	tick     uint64
	exited   bool
	lastErr  string

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}
}

// NewParticipant wires a participant to its session context and subscribes
// it to relayed frames. input may be nil for a passive observer.
func NewParticipant(ctx Context, input game.InputSource) (*Participant, error) {
	if err := ctx.normalize(); err != nil {
		return nil, err
	}
	if input == nil {
		input = game.InputFunc(func() game.InputFrame { return game.InputFrame{} })
	}

	p := &Participant{
		ctx:      ctx,
		input:    input,
		inbox:    newInbox(DefaultInboxSize),
		entities: make(map[protocol.ActorID]*entity),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	dt := ctx.Sim.TickDelta()
	p.movement = game.NewMovementController(ctx.World, ctx.Tuning)
	p.push = relay.NewPushRelay(ctx.Bus, ctx.Registry, relay.TargetsFunc(p.authorityFor), ctx.World, ctx.Tuning, ctx.Journal)
	p.detector = game.NewInteractionDetector(ctx.World, ctx.Tuning, p.push, ctx.Journal, dt)
	p.repl = replication.NewChannel(ctx.Bus, ctx.World, ctx.Journal)

	ctx.World.SetOverlapListener(p.detector)
	p.unsubscribe = ctx.Bus.Subscribe(relay.Relayed(), p.HandleFrame)
	return p, nil
}

// =============================================================================
// ENTITY CREATION HOOK
// =============================================================================

// SpawnLocal creates the entity this participant owns.
func (p *Participant) SpawnLocal(actor protocol.ActorID) (*game.AuthorityHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spawnLocal(actor)
}

// SpawnRemote creates a read-only replica of another participant's entity.
func (p *Participant) SpawnRemote(actor protocol.ActorID) (*game.ObserverHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spawnRemote(actor)
}

// Despawn removes an entity and its body.
func (p *Participant) Despawn(actor protocol.ActorID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.despawn(actor)
}

func (p *Participant) spawnLocal(actor protocol.ActorID) (*game.AuthorityHandle, error) {
	if p.local != nil {
		return nil, fmt.Errorf("%w: actor %d", ErrLocalExists, p.local.player.Actor())
	}
	if err := p.ctx.Registry.Register(actor, true); err != nil {
		return nil, err
	}
	player := game.NewPlayer(actor, p.ctx.Tuning.Tuning().MaxHealth, p.spawnBody(actor, true))
	h, err := game.Claim(p.ctx.Registry, player)
	if err != nil {
		return nil, err
	}
	e := &entity{player: player, auth: h}
	p.entities[actor] = e
	p.local = e
	p.detector.Track(h)
	p.created(e)
	return h, nil
}

func (p *Participant) spawnRemote(actor protocol.ActorID) (*game.ObserverHandle, error) {
	if err := p.ctx.Registry.Register(actor, false); err != nil {
		return nil, err
	}
	player := game.NewPlayer(actor, p.ctx.Tuning.Tuning().MaxHealth, p.spawnBody(actor, false))
	o, err := game.Observe(p.ctx.Registry, player)
	if err != nil {
		return nil, err
	}
	e := &entity{player: player, obs: o}
	p.entities[actor] = e
	p.created(e)
	return o, nil
}

// spawnBody asks the world for a body. A failure is reported once here and
// the entity runs without one: never grounded, impulses are no-ops.
func (p *Participant) spawnBody(actor protocol.ActorID, simulated bool) game.BodyID {
	body, err := p.ctx.World.Spawn(actor, simulated)
	if err != nil {
		log.Printf("⚠️ actor %d has no physics body, running degraded: %v", actor, err)
		return game.NoBody
	}
	return body
}

func (p *Participant) created(e *entity) {
	metrics.EntityAdded(e.role())
	p.ctx.Journal.Record(game.EventTypeEntitySpawned, p.tick, e.player.Actor(), game.SpawnPayload{
		Authority: e.auth != nil,
		HasBody:   e.player.HasBody(),
	})
}

func (p *Participant) despawn(actor protocol.ActorID) error {
	e, ok := p.entities[actor]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownActor, actor)
	}
	if e.player.HasBody() {
		p.ctx.World.Despawn(e.player.Body())
	}
	delete(p.entities, actor)
	if e == p.local {
		p.local = nil
	}
	p.detector.Untrack(actor)
	p.push.ForgetSource(actor)
	p.ctx.Registry.Release(actor)
	metrics.EntityRemoved(e.role())
	p.ctx.Journal.Record(game.EventTypeEntityDespawned, p.tick, actor, nil)
	return nil
}

// =============================================================================
// INBOUND MESSAGES
// =============================================================================

// HandleFrame queues a relayed frame for the next tick. Safe to call from
// any goroutine.
func (p *Participant) HandleFrame(f protocol.Frame) {
	if !p.inbox.pushFrame(f) {
		metrics.MessageDropped("inbox_full")
	}
}

// OnWelcome queues creation of the local entity and of every peer's replica.
func (p *Participant) OnWelcome(w protocol.Welcome) {
	p.inbox.pushControl(inboxItem{control: ctlWelcome, welcome: w})
}

// OnPeerJoined queues creation of a replica.
func (p *Participant) OnPeerJoined(actor protocol.ActorID) {
	p.inbox.pushControl(inboxItem{control: ctlPeerJoined, actor: actor})
}

// OnPeerLeft queues removal of a replica.
func (p *Participant) OnPeerLeft(actor protocol.ActorID) {
	p.inbox.pushControl(inboxItem{control: ctlPeerLeft, actor: actor})
}

func (p *Participant) drainInbox() {
	for _, item := range p.inbox.drain() {
		switch item.control {
		case ctlWelcome:
			if _, err := p.spawnLocal(item.welcome.Actor); err != nil {
				log.Printf("⚠️ welcome for actor %d: %v", item.welcome.Actor, err)
			}
			for _, peer := range item.welcome.Peers {
				if _, err := p.spawnRemote(peer); err != nil {
					log.Printf("⚠️ peer %d: %v", peer, err)
				}
			}
		case ctlPeerJoined:
			if p.ctx.Registry.Known(item.actor) {
				// Already listed in Welcome.
				continue
			}
			if _, err := p.spawnRemote(item.actor); err != nil {
				log.Printf("⚠️ peer %d: %v", item.actor, err)
			}
		case ctlPeerLeft:
			if err := p.despawn(item.actor); err != nil {
				log.Printf("⚠️ peer %d left: %v", item.actor, err)
			}
		default:
			p.handleFrame(item.frame)
		}
	}
}

func (p *Participant) handleFrame(f protocol.Frame) {
	switch f.Type {
	case protocol.MsgPushIntent:
		p.push.Receive(f)
	case protocol.MsgSnapshot, protocol.MsgTransform:
		e, ok := p.entities[f.Target]
		if !ok {
			metrics.MessageDropped("unknown_actor")
			return
		}
		if e.obs == nil {
			// Our own echo, or another peer writing to an entity it does not own.
			metrics.MessageDropped("local_actor")
			return
		}
		var err error
		if f.Type == protocol.MsgSnapshot {
			err = p.repl.ApplySnapshot(e.obs, f.Body, p.tick)
		} else {
			err = p.repl.ApplyTransform(e.obs, f.Body)
		}
		if err != nil {
			metrics.MessageDropped("malformed")
		}
	}
}

// =============================================================================
// SIMULATION TICK
// =============================================================================

// OnSimulationTick advances the participant by one fixed step:
// drain the inbox, run movement for the owned entity, sync push volumes,
// step physics (which drives interaction detection), handle depletion and
// publish replication on the snapshot cadence.
func (p *Participant) OnSimulationTick() {
	start := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tick++
	p.detector.BeginTick(p.tick)
	p.push.BeginTick(p.tick)

	p.drainInbox()
	if p.exited {
		return
	}

	dt := p.ctx.Sim.TickDelta()
	if p.local != nil {
		p.movement.Tick(p.local.auth, p.input.Sample(), dt)
	}

	for _, e := range p.entities {
		if e.player.HasBody() {
			p.ctx.World.SetPushVolumeActive(e.player.Body(), e.player.IsPushing())
		}
	}

	p.ctx.World.Step(dt)

	if p.local != nil && p.local.auth.RequestExit() {
		p.exit()
		return
	}

	if p.tick%uint64(p.ctx.Sim.SnapshotEvery()) == 0 && p.local != nil {
		p.publish()
	}

	metrics.RecordTick(time.Since(start))
}

func (p *Participant) exit() {
	p.exited = true
	actor := p.local.player.Actor()
	// Observers see the final state before the entity goes away.
	p.publish()
	log.Printf("💀 actor %d health depleted at tick %d, leaving session", actor, p.tick)
	p.ctx.Journal.Record(game.EventTypeSessionExit, p.tick, actor, nil)
	metrics.SessionExit()
	p.ctx.Exit.RequestSessionExit()
}

func (p *Participant) publish() {
	err := p.repl.Publish(p.local.auth)
	switch {
	case err == nil:
		p.lastErr = ""
	case err.Error() != p.lastErr:
		p.lastErr = err.Error()
		log.Printf("⚠️ replication: %v", err)
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start runs OnSimulationTick at the configured rate until Stop.
func (p *Participant) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.ticker = time.NewTicker(time.Second / time.Duration(p.ctx.Sim.TickHz))
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.ticker.C:
				p.OnSimulationTick()
			case <-p.stopChan:
				return
			}
		}
	}()

	log.Printf("🎮 Participant started at %d TPS (snapshot every %d ticks)", p.ctx.Sim.TickHz, p.ctx.Sim.SnapshotEvery())
}

// Stop stops the tick loop and unsubscribes from the bus.
func (p *Participant) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		p.unsubscribe()
		return
	}
	p.running = false
	p.ticker.Stop()
	close(p.stopChan)
	p.mu.Unlock()

	<-p.done
	p.unsubscribe()
	log.Println("🛑 Participant stopped")
}

// =============================================================================
// QUERIES
// =============================================================================

// authorityFor is called from inside the tick, with mu held.
func (p *Participant) authorityFor(actor protocol.ActorID) (*game.AuthorityHandle, bool) {
	e, ok := p.entities[actor]
	if !ok || e.auth == nil {
		return nil, false
	}
	return e.auth, true
}

// EntityState is a copy of an entity's visible state.
type EntityState struct {
	Actor     protocol.ActorID
	Authority bool
	Health    float64
	IsPushing bool
	Grounded  bool
	HasBody   bool
	Body      game.BodyID
}

// Entity returns the current state of actor's entity.
func (p *Participant) Entity(actor protocol.ActorID) (EntityState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entities[actor]
	if !ok {
		return EntityState{}, false
	}
	return stateOf(e), true
}

// Entities returns every known entity ordered by actor.
func (p *Participant) Entities() []EntityState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EntityState, 0, len(p.entities))
	for _, e := range p.entities {
		out = append(out, stateOf(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Actor < out[j].Actor })
	return out
}

// LocalActor returns the owned entity's actor, if any.
func (p *Participant) LocalActor() (protocol.ActorID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.local == nil {
		return 0, false
	}
	return p.local.player.Actor(), true
}

// Exited reports whether the participant requested its session exit.
func (p *Participant) Exited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}

// Tick returns the number of ticks run so far.
func (p *Participant) Tick() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tick
}

func stateOf(e *entity) EntityState {
	return EntityState{
		Actor:     e.player.Actor(),
		Authority: e.auth != nil,
		Health:    e.player.Health(),
		IsPushing: e.player.IsPushing(),
		Grounded:  e.player.IsGrounded(),
		HasBody:   e.player.HasBody(),
		Body:      e.player.Body(),
	}
}

var _ relay.SessionListener = (*Participant)(nil)
