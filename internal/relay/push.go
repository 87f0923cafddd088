package relay

import (
	"fmt"

	"push-arena/internal/config"
	"push-arena/internal/game"
	"push-arena/internal/metrics"
	"push-arena/internal/protocol"
)

// Outcome is what a participant did with a received push intent.
type Outcome string

const (
	Applied   Outcome = "applied"
	NotTarget Outcome = "not_target" // target is not owned here
	Duplicate Outcome = "duplicate"  // replayed sequence number
	Malformed Outcome = "malformed"
)

// Targets resolves the authority handle of a locally-owned entity.
type Targets interface {
	AuthorityFor(actor protocol.ActorID) (*game.AuthorityHandle, bool)
}

// PushRelay sends push intents through the bus and applies the ones aimed at
// entities this participant owns. The sender never applies its own intent;
// it reaches the target's authority by way of the relay like everyone else.
type PushRelay struct {
	bus      Bus
	registry game.AuthorityChecker
	targets  Targets
	phys     game.Physics
	tuning   config.TuningSource
	journal  game.Journal

	seq  uint64
	seen *SequenceFilter
	tick uint64
}

// NewPushRelay creates a relay endpoint for one participant.
func NewPushRelay(bus Bus, registry game.AuthorityChecker, targets Targets, phys game.Physics, tuning config.TuningSource, journal game.Journal) *PushRelay {
	if journal == nil {
		journal = game.NopJournal{}
	}
	return &PushRelay{
		bus:      bus,
		registry: registry,
		targets:  targets,
		phys:     phys,
		tuning:   tuning,
		journal:  journal,
		seen:     NewSequenceFilter(),
	}
}

// BeginTick stamps journal entries with the current tick.
func (r *PushRelay) BeginTick(tick uint64) { r.tick = tick }

// SendPush broadcasts intent to every participant. Fire and forget.
func (r *PushRelay) SendPush(intent protocol.PushIntent) error {
	if r.tuning.Tuning().PushDedup {
		r.seq++
		intent.Seq = r.seq
	}
	f, err := protocol.NewFrame(protocol.MsgPushIntent, intent.Target, intent)
	if err != nil {
		return err
	}
	if err := r.bus.Publish(f); err != nil {
		return fmt.Errorf("relay: send push %d->%d: %w", intent.Source, intent.Target, err)
	}
	metrics.PushSent()
	r.journal.Record(game.EventTypePushSent, r.tick, intent.Source, pushPayload(intent, ""))
	return nil
}

// Receive handles one relayed push frame. Only the target's authority
// applies the impulse; everyone else drops it.
func (r *PushRelay) Receive(f protocol.Frame) Outcome {
	out, intent := r.receive(f)
	metrics.PushReceived(string(out))
	switch out {
	case Applied:
		r.journal.Record(game.EventTypePushApplied, r.tick, intent.Target, pushPayload(intent, ""))
	case Duplicate, Malformed:
		r.journal.Record(game.EventTypePushDiscarded, r.tick, intent.Target, pushPayload(intent, string(out)))
	}
	return out
}

func (r *PushRelay) receive(f protocol.Frame) (Outcome, protocol.PushIntent) {
	if f.Type != protocol.MsgPushIntent {
		return Malformed, protocol.PushIntent{}
	}
	intent, err := protocol.Decode[protocol.PushIntent](f.Body)
	if err != nil || intent.Target != f.Target {
		return Malformed, intent
	}
	if !r.registry.IsAuthority(intent.Target) {
		return NotTarget, intent
	}
	h, ok := r.targets.AuthorityFor(intent.Target)
	if !ok {
		return NotTarget, intent
	}
	if r.tuning.Tuning().PushDedup && !r.seen.Accept(intent.Source, intent.Seq) {
		return Duplicate, intent
	}
	h.ApplyImpulse(r.phys, intent.Impulse)
	return Applied, intent
}

// ForgetSource drops sequence state for a participant that left.
func (r *PushRelay) ForgetSource(actor protocol.ActorID) { r.seen.Forget(actor) }

func pushPayload(i protocol.PushIntent, reason string) game.PushPayload {
	return game.PushPayload{
		Source:  i.Source,
		Target:  i.Target,
		Impulse: i.Impulse,
		Seq:     i.Seq,
		Reason:  reason,
	}
}

// TargetsFunc adapts a lookup function to Targets.
type TargetsFunc func(actor protocol.ActorID) (*game.AuthorityHandle, bool)

func (f TargetsFunc) AuthorityFor(actor protocol.ActorID) (*game.AuthorityHandle, bool) {
	return f(actor)
}
