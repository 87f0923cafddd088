package game

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"push-arena/internal/protocol"
)

var (
	ErrNotAuthority = errors.New("game: not the authority for this entity")
	ErrIsAuthority  = errors.New("game: authority cannot observe its own entity")
)

// healthEpsilon absorbs float drift so that n equal decrements summing to
// the starting health deplete it exactly.
const healthEpsilon = 1e-9

// AuthorityChecker is the read side of the authority registry.
type AuthorityChecker interface {
	IsAuthority(id protocol.ActorID) bool
}

// Player is the networked player entity. Its fields can only be changed
// through an AuthorityHandle (local simulation) or an ObserverHandle
// (replication), never directly.
type Player struct {
	actor     protocol.ActorID
	body      BodyID
	maxHealth float64
	health    float64

	pushing  bool // level-triggered, replicated
	jumping  bool // edge-set sub-flag, local only
	grounded bool // derived each tick, local only

	exitRequested bool
}

// NewPlayer creates an entity at full health. body may be NoBody when the
// physics collaborator could not provide one.
func NewPlayer(actor protocol.ActorID, maxHealth float64, body BodyID) *Player {
	return &Player{
		actor:     actor,
		body:      body,
		maxHealth: maxHealth,
		health:    maxHealth,
	}
}

func (p *Player) Actor() protocol.ActorID { return p.actor }
func (p *Player) Body() BodyID            { return p.body }
func (p *Player) HasBody() bool           { return p.body != NoBody }
func (p *Player) Health() float64         { return p.health }
func (p *Player) MaxHealth() float64      { return p.maxHealth }
func (p *Player) IsPushing() bool         { return p.pushing }
func (p *Player) IsJumping() bool         { return p.jumping }
func (p *Player) IsGrounded() bool        { return p.grounded }
func (p *Player) IsDepleted() bool        { return p.health <= 0 }

func (p *Player) String() string {
	return fmt.Sprintf("player#%d(hp=%.3f push=%t)", p.actor, p.health, p.pushing)
}

// AuthorityHandle is the only type that can run local simulation on an
// entity. It can only be obtained for entities this participant owns.
type AuthorityHandle struct {
	p *Player
}

// Claim returns the authority handle for p, or ErrNotAuthority.
func Claim(reg AuthorityChecker, p *Player) (*AuthorityHandle, error) {
	if p == nil || !reg.IsAuthority(p.actor) {
		var id protocol.ActorID
		if p != nil {
			id = p.actor
		}
		return nil, fmt.Errorf("%w: actor %d", ErrNotAuthority, id)
	}
	return &AuthorityHandle{p: p}, nil
}

func (h *AuthorityHandle) Player() *Player         { return h.p }
func (h *AuthorityHandle) Actor() protocol.ActorID { return h.p.actor }

// SetPushing sets the level-triggered push flag.
func (h *AuthorityHandle) SetPushing(v bool) { h.p.pushing = v }

// SetJumping sets the jump sub-flag.
func (h *AuthorityHandle) SetJumping(v bool) { h.p.jumping = v }

// SetGrounded records this tick's ground check.
func (h *AuthorityHandle) SetGrounded(v bool) { h.p.grounded = v }

// Deplete lowers health by amount, clamped to [0, max], and returns what is left.
func (h *AuthorityHandle) Deplete(amount float64) float64 {
	if amount <= 0 {
		return h.p.health
	}
	next := h.p.health - amount
	if next < healthEpsilon {
		next = 0
	}
	h.p.health = next
	return next
}

// ApplyImpulse applies an impulse to the entity's body. It reports false in
// degraded mode (no body).
func (h *AuthorityHandle) ApplyImpulse(phys Physics, impulse mgl64.Vec3) bool {
	if !h.p.HasBody() || phys == nil {
		return false
	}
	phys.ApplyImpulse(h.p.body, impulse)
	return true
}

// ApplyForce applies a force to the entity's body for the current step.
func (h *AuthorityHandle) ApplyForce(phys Physics, force mgl64.Vec3) bool {
	if !h.p.HasBody() || phys == nil {
		return false
	}
	phys.ApplyForce(h.p.body, force)
	return true
}

// RequestExit latches the exit request. It returns true exactly once, on
// the first call made while health is depleted.
func (h *AuthorityHandle) RequestExit() bool {
	if h.p.exitRequested || !h.p.IsDepleted() {
		return false
	}
	h.p.exitRequested = true
	return true
}

// ObserverHandle is the read-mostly view of a remote entity. Its only write
// is overwriting the replicated fields from a snapshot.
type ObserverHandle struct {
	p *Player
}

// Observe returns an observer handle for p, or ErrIsAuthority if this
// participant owns p.
func Observe(reg AuthorityChecker, p *Player) (*ObserverHandle, error) {
	if p == nil {
		return nil, fmt.Errorf("game: observe nil player")
	}
	if reg.IsAuthority(p.actor) {
		return nil, fmt.Errorf("%w: actor %d", ErrIsAuthority, p.actor)
	}
	return &ObserverHandle{p: p}, nil
}

func (o *ObserverHandle) Player() *Player         { return o.p }
func (o *ObserverHandle) Actor() protocol.ActorID { return o.p.actor }

// ApplySnapshot overwrites the replicated fields in wire order. Values are
// taken verbatim: last write wins.
func (o *ObserverHandle) ApplySnapshot(isPushing bool, health float64) {
	o.p.pushing = isPushing
	o.p.health = health
}
