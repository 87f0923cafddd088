// Package gametest provides a scriptable physics world for tests.
package gametest

import (
	"errors"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"push-arena/internal/game"
	"push-arena/internal/protocol"
)

// ErrSpawnFailed is returned by Spawn when FailSpawn is set.
var ErrSpawnFailed = errors.New("gametest: spawn failed")

// Call records one force-style call on a body.
type Call struct {
	Body game.BodyID
	Vec  mgl64.Vec3
}

// Body is the fake state of one rigid body.
type Body struct {
	Owner      protocol.ActorID
	Simulated  bool
	Position   mgl64.Vec3
	Velocity   mgl64.Vec3
	PushActive bool
}

type touch struct{ a, b game.BodyID }

type pairKey struct {
	self, other         game.BodyID
	selfKind, otherKind game.VolumeKind
}

// World is a game.World whose overlaps are scripted with Touch. Bodies have
// unit mass: impulses add to velocity directly and forces add force*dt.
type World struct {
	mu sync.Mutex

	// Ground is returned by RaycastDown.
	Ground bool
	// FailSpawn makes Spawn return ErrSpawnFailed.
	FailSpawn bool

	Impulses []Call
	Forces   []Call
	Clamps   []Call // Vec[0] holds the max
	Rays     int
	Steps    int

	next     game.BodyID
	bodies   map[game.BodyID]*Body
	touches  map[touch]bool
	begun    map[pairKey]bool
	listener game.OverlapListener
	pending  []Call
}

// NewWorld returns a world that reports every ray as grounded.
func NewWorld() *World {
	return &World{
		Ground:  true,
		bodies:  make(map[game.BodyID]*Body),
		touches: make(map[touch]bool),
		begun:   make(map[pairKey]bool),
	}
}

func (w *World) Spawn(owner protocol.ActorID, simulated bool) (game.BodyID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.FailSpawn {
		return game.NoBody, ErrSpawnFailed
	}
	w.next++
	w.bodies[w.next] = &Body{Owner: owner, Simulated: simulated}
	return w.next, nil
}

func (w *World) Despawn(body game.BodyID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.bodies, body)
	for t := range w.touches {
		if t.a == body || t.b == body {
			delete(w.touches, t)
		}
	}
}

// Body returns a copy of a body's state.
func (w *World) Body(id game.BodyID) (Body, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.bodies[id]
	if !ok {
		return Body{}, false
	}
	return *b, true
}

// Place sets a body's position.
func (w *World) Place(id game.BodyID, pos mgl64.Vec3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.bodies[id]; ok {
		b.Position = pos
	}
}

// Touch makes every volume of a overlap every volume of b until Separate.
func (w *World) Touch(a, b game.BodyID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touches[touch{a, b}] = true
}

// Separate ends a Touch.
func (w *World) Separate(a, b game.BodyID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.touches, touch{a, b})
	delete(w.touches, touch{b, a})
}

// ImpulsesOn returns the impulses applied to body.
func (w *World) ImpulsesOn(body game.BodyID) []mgl64.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []mgl64.Vec3
	for _, c := range w.Impulses {
		if c.Body == body {
			out = append(out, c.Vec)
		}
	}
	return out
}

func (w *World) ApplyForce(body game.BodyID, force mgl64.Vec3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Forces = append(w.Forces, Call{body, force})
	w.pending = append(w.pending, Call{body, force})
}

func (w *World) ApplyImpulse(body game.BodyID, impulse mgl64.Vec3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Impulses = append(w.Impulses, Call{body, impulse})
	if b, ok := w.bodies[body]; ok {
		b.Velocity = b.Velocity.Add(impulse)
	}
}

func (w *World) RaycastDown(origin mgl64.Vec3, maxDistance float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Rays++
	return w.Ground
}

func (w *World) ClampVelocityMagnitude(body game.BodyID, max float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Clamps = append(w.Clamps, Call{body, mgl64.Vec3{max}})
	if b, ok := w.bodies[body]; ok && b.Velocity.Len() > max {
		b.Velocity = b.Velocity.Normalize().Mul(max)
	}
}

func (w *World) Position(body game.BodyID) mgl64.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.bodies[body]; ok {
		return b.Position
	}
	return mgl64.Vec3{}
}

func (w *World) Velocity(body game.BodyID) mgl64.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.bodies[body]; ok {
		return b.Velocity
	}
	return mgl64.Vec3{}
}

func (w *World) SetPose(body game.BodyID, position, velocity mgl64.Vec3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.bodies[body]; ok {
		b.Position, b.Velocity = position, velocity
	}
}

func (w *World) SetPushVolumeActive(body game.BodyID, active bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if b, ok := w.bodies[body]; ok {
		b.PushActive = active
	}
}

func (w *World) SetOverlapListener(l game.OverlapListener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listener = l
}

// Step integrates pending forces and delivers overlap callbacks. Callbacks
// run without the lock held so listeners may call back into the world.
func (w *World) Step(dt float64) {
	type delivery struct {
		self, other game.Collider
		first       bool
	}

	w.mu.Lock()
	w.Steps++
	for _, f := range w.pending {
		if b, ok := w.bodies[f.Body]; ok {
			b.Velocity = b.Velocity.Add(f.Vec.Mul(dt))
		}
	}
	w.pending = w.pending[:0]
	for _, b := range w.bodies {
		if b.Simulated {
			b.Position = b.Position.Add(b.Velocity.Mul(dt))
		}
	}

	var out []delivery
	seen := make(map[pairKey]bool)
	for t := range w.touches {
		for _, dir := range [2]touch{{t.a, t.b}, {t.b, t.a}} {
			self, ok1 := w.bodies[dir.a]
			other, ok2 := w.bodies[dir.b]
			if !ok1 || !ok2 {
				continue
			}
			for _, sc := range w.volumes(dir.a, self) {
				for _, oc := range w.volumes(dir.b, other) {
					k := pairKey{sc.Body, oc.Body, sc.Kind, oc.Kind}
					if seen[k] {
						continue
					}
					seen[k] = true
					out = append(out, delivery{sc, oc, !w.begun[k]})
				}
			}
		}
	}
	w.begun = seen
	l := w.listener
	w.mu.Unlock()

	if l == nil {
		return
	}
	for _, d := range out {
		if d.first {
			l.OnOverlapBegin(d.self, d.other)
		} else {
			l.OnOverlapPersist(d.self, d.other)
		}
	}
}

func (w *World) volumes(id game.BodyID, b *Body) []game.Collider {
	vs := []game.Collider{game.BodyCollider(b.Owner, id)}
	if b.PushActive {
		vs = append(vs, game.PushCollider(b.Owner, id))
	}
	return vs
}

var _ game.World = (*World)(nil)
