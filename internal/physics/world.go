// Package physics implements game.World on the Chipmunk2D port.
//
// The space is a side-view slice of the arena: game X maps to cp X, game Y
// (up) maps to cp Y, and game Z is dropped. Owned entities are dynamic
// bodies; observer replicas are kinematic bodies posed from transform sync.
package physics

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"

	"push-arena/internal/game"
	"push-arena/internal/protocol"
)

const (
	collisionGround cp.CollisionType = iota + 1
	collisionBody
	collisionPush
)

const (
	categoryGround uint = 1 << iota
	categoryBody
	categoryPush

	allCategories = ^uint(0)
)

var (
	groundFilter    = cp.ShapeFilter{Categories: categoryGround, Mask: allCategories}
	bodyFilter      = cp.ShapeFilter{Categories: categoryBody, Mask: allCategories}
	pushOnFilter    = cp.ShapeFilter{Categories: categoryPush, Mask: categoryBody}
	pushOffFilter   = cp.ShapeFilter{Categories: categoryPush, Mask: 0}
	groundRayFilter = cp.ShapeFilter{Categories: allCategories, Mask: categoryGround}
)

// Config sizes the arena and its bodies.
type Config struct {
	Gravity      float64 // downward acceleration, m/s^2
	BodySize     float64 // player box edge length
	BodyMass     float64
	PushRadius   float64 // push trigger volume radius around the body
	ArenaHalf    float64 // ground extends from -ArenaHalf to +ArenaHalf
	SpawnSpacing float64 // horizontal distance between spawn slots
	Iterations   uint
}

// DefaultConfig returns an arena matching the default tuning
// (GroundCheckDistance 0.6 for a 1.0 body).
func DefaultConfig() Config {
	return Config{
		Gravity:      9.81,
		BodySize:     1.0,
		BodyMass:     1.0,
		PushRadius:   1.25,
		ArenaHalf:    50,
		SpawnSpacing: 2.5,
		Iterations:   10,
	}
}

type bodyEntry struct {
	body  *cp.Body
	shape *cp.Shape
	push  *cp.Shape
}

type pairKey struct {
	push, body *cp.Shape
}

type delivery struct {
	push, body game.Collider
	first      bool
}

// World is a cp-backed game.World. It is owned by one participant's tick
// goroutine and is not safe for concurrent use.
type World struct {
	cfg      Config
	space    *cp.Space
	next     game.BodyID
	bodies   map[game.BodyID]*bodyEntry
	shapes   map[*cp.Shape]game.Collider
	listener game.OverlapListener

	prev    map[pairKey]bool
	cur     map[pairKey]bool
	pending []delivery
}

// NewWorld creates a space with a flat ground at y=0.
func NewWorld(cfg Config) *World {
	space := cp.NewSpace()
	space.Iterations = cfg.Iterations
	space.SetGravity(cp.Vector{X: 0, Y: -cfg.Gravity})

	ground := cp.NewSegment(space.StaticBody, cp.Vector{X: -cfg.ArenaHalf, Y: 0}, cp.Vector{X: cfg.ArenaHalf, Y: 0}, 0)
	ground.SetFriction(1)
	ground.SetCollisionType(collisionGround)
	ground.SetFilter(groundFilter)
	space.AddShape(ground)

	w := &World{
		cfg:    cfg,
		space:  space,
		bodies: make(map[game.BodyID]*bodyEntry),
		shapes: make(map[*cp.Shape]game.Collider),
		prev:   make(map[pairKey]bool),
		cur:    make(map[pairKey]bool),
	}

	handler := space.NewCollisionHandler(collisionPush, collisionBody)
	handler.UserData = w
	handler.PreSolveFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		w, ok := userData.(*World)
		if !ok {
			return true
		}
		a, b := arb.Shapes()
		w.overlap(a, b)
		return true
	}
	return w
}

// Spawn adds a body for owner. Simulated bodies are dynamic; the rest are
// kinematic replicas that only move through SetPose.
func (w *World) Spawn(owner protocol.ActorID, simulated bool) (game.BodyID, error) {
	if owner == 0 {
		return game.NoBody, fmt.Errorf("physics: spawn for actor 0")
	}
	size := w.cfg.BodySize

	var body *cp.Body
	if simulated {
		// Infinite moment keeps players upright.
		body = cp.NewBody(w.cfg.BodyMass, math.Inf(1))
	} else {
		body = cp.NewKinematicBody()
	}
	body.SetPosition(w.spawnPoint(owner))
	w.space.AddBody(body)

	w.next++
	id := w.next

	shape := cp.NewBox(body, size, size, 0)
	shape.SetFriction(0.8)
	shape.SetCollisionType(collisionBody)
	shape.SetFilter(bodyFilter)
	w.space.AddShape(shape)

	push := cp.NewCircle(body, w.cfg.PushRadius, cp.Vector{})
	push.SetSensor(true)
	push.SetCollisionType(collisionPush)
	push.SetFilter(pushOffFilter)
	w.space.AddShape(push)

	w.bodies[id] = &bodyEntry{body: body, shape: shape, push: push}
	w.shapes[shape] = game.BodyCollider(owner, id)
	w.shapes[push] = game.PushCollider(owner, id)
	return id, nil
}

func (w *World) spawnPoint(owner protocol.ActorID) cp.Vector {
	slot := float64((int(owner) - 1) % 8)
	return cp.Vector{X: (slot - 3.5) * w.cfg.SpawnSpacing, Y: w.cfg.BodySize / 2}
}

// Despawn removes a body and its shapes.
func (w *World) Despawn(id game.BodyID) {
	e, ok := w.bodies[id]
	if !ok {
		return
	}
	for _, s := range []*cp.Shape{e.shape, e.push} {
		w.space.RemoveShape(s)
		delete(w.shapes, s)
	}
	w.space.RemoveBody(e.body)
	delete(w.bodies, id)
	for k := range w.prev {
		if k.push == e.push || k.body == e.shape {
			delete(w.prev, k)
		}
	}
}

func (w *World) SetOverlapListener(l game.OverlapListener) { w.listener = l }

// Step advances the space and then delivers one callback pair per
// overlapping push volume and body: Begin on the first step of contact,
// Persist afterwards.
func (w *World) Step(dt float64) {
	w.pending = w.pending[:0]
	clear(w.cur)

	w.space.Step(dt)

	w.prev, w.cur = w.cur, w.prev
	if w.listener == nil {
		return
	}
	for _, d := range w.pending {
		if d.first {
			w.listener.OnOverlapBegin(d.push, d.body)
			w.listener.OnOverlapBegin(d.body, d.push)
		} else {
			w.listener.OnOverlapPersist(d.push, d.body)
			w.listener.OnOverlapPersist(d.body, d.push)
		}
	}
}

// overlap runs inside space.Step.
func (w *World) overlap(a, b *cp.Shape) {
	ca, okA := w.shapes[a]
	cb, okB := w.shapes[b]
	if !okA || !okB {
		return
	}
	if ca.Kind != game.VolumePush {
		a, b = b, a
		ca, cb = cb, ca
	}
	if ca.Kind != game.VolumePush || cb.Kind != game.VolumeBody {
		return
	}
	key := pairKey{push: a, body: b}
	if w.cur[key] {
		return
	}
	w.cur[key] = true
	w.pending = append(w.pending, delivery{push: ca, body: cb, first: !w.prev[key]})
}

func (w *World) ApplyForce(id game.BodyID, force mgl64.Vec3) {
	if e, ok := w.bodies[id]; ok {
		e.body.ApplyForceAtWorldPoint(toCP(force), e.body.Position())
	}
}

func (w *World) ApplyImpulse(id game.BodyID, impulse mgl64.Vec3) {
	if e, ok := w.bodies[id]; ok {
		e.body.ApplyImpulseAtWorldPoint(toCP(impulse), e.body.Position())
	}
}

// RaycastDown reports whether ground lies within maxDistance below origin.
// Other players are not ground.
func (w *World) RaycastDown(origin mgl64.Vec3, maxDistance float64) bool {
	start := toCP(origin)
	end := cp.Vector{X: start.X, Y: start.Y - maxDistance}
	info := w.space.SegmentQueryFirst(start, end, 0, groundRayFilter)
	return info.Shape != nil
}

func (w *World) ClampVelocityMagnitude(id game.BodyID, max float64) {
	e, ok := w.bodies[id]
	if !ok {
		return
	}
	v := e.body.Velocity()
	if v.Length() > max {
		e.body.SetVelocityVector(v.Normalize().Mult(max))
	}
}

func (w *World) Position(id game.BodyID) mgl64.Vec3 {
	if e, ok := w.bodies[id]; ok {
		return fromCP(e.body.Position())
	}
	return mgl64.Vec3{}
}

func (w *World) Velocity(id game.BodyID) mgl64.Vec3 {
	if e, ok := w.bodies[id]; ok {
		return fromCP(e.body.Velocity())
	}
	return mgl64.Vec3{}
}

func (w *World) SetPose(id game.BodyID, position, velocity mgl64.Vec3) {
	e, ok := w.bodies[id]
	if !ok {
		return
	}
	e.body.SetPosition(toCP(position))
	e.body.SetVelocityVector(toCP(velocity))
}

func (w *World) SetPushVolumeActive(id game.BodyID, active bool) {
	e, ok := w.bodies[id]
	if !ok {
		return
	}
	if active {
		e.push.SetFilter(pushOnFilter)
	} else {
		e.push.SetFilter(pushOffFilter)
	}
}

func toCP(v mgl64.Vec3) cp.Vector   { return cp.Vector{X: v[0], Y: v[1]} }
func fromCP(v cp.Vector) mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, 0} }

var _ game.World = (*World)(nil)
