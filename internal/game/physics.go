package game

import (
	"github.com/go-gl/mathgl/mgl64"

	"push-arena/internal/protocol"
)

// BodyID identifies a rigid body inside a physics world.
type BodyID int

// NoBody is returned when an entity has no physics body.
const NoBody BodyID = 0

// Up is the world's vertical axis. Planar movement happens in X/Z.
var Up = mgl64.Vec3{0, 1, 0}

// Collider tags and names used by interaction rules.
const (
	TagPlayer      = "Player"
	NamePlayer     = "Player"
	NamePushVolume = "PushVolume"
)

// VolumeKind tells the two trigger volumes of an entity apart.
type VolumeKind uint8

const (
	VolumeBody VolumeKind = iota // the entity's own collider
	VolumePush                   // the push trigger volume in front of it
)

// Collider describes one side of an overlap callback.
type Collider struct {
	Owner protocol.ActorID
	Body  BodyID
	Kind  VolumeKind
	Name  string
	Tag   string
}

// Physics is the force/query surface of the physics collaborator.
type Physics interface {
	ApplyForce(body BodyID, force mgl64.Vec3)
	ApplyImpulse(body BodyID, impulse mgl64.Vec3)
	RaycastDown(origin mgl64.Vec3, maxDistance float64) bool
	ClampVelocityMagnitude(body BodyID, max float64)

	Position(body BodyID) mgl64.Vec3
	Velocity(body BodyID) mgl64.Vec3
	// SetPose places an observer replica. Never used on authority bodies.
	SetPose(body BodyID, position, velocity mgl64.Vec3)
	// SetPushVolumeActive enables or disables the body's push trigger volume.
	SetPushVolumeActive(body BodyID, active bool)
}

// OverlapListener receives trigger callbacks once per tick per overlapping pair.
// Begin is delivered on the first tick of contact, Persist on every later tick.
type OverlapListener interface {
	OnOverlapBegin(self, other Collider)
	OnOverlapPersist(self, other Collider)
}

// World is a physics collaborator that also owns bodies and stepping.
type World interface {
	Physics
	Spawn(owner protocol.ActorID, simulated bool) (BodyID, error)
	Despawn(body BodyID)
	Step(dt float64)
	SetOverlapListener(l OverlapListener)
}

// BodyCollider describes an entity's own player collider.
func BodyCollider(owner protocol.ActorID, body BodyID) Collider {
	return Collider{Owner: owner, Body: body, Kind: VolumeBody, Name: NamePlayer, Tag: TagPlayer}
}

// PushCollider describes an entity's push trigger volume.
func PushCollider(owner protocol.ActorID, body BodyID) Collider {
	return Collider{Owner: owner, Body: body, Kind: VolumePush, Name: NamePushVolume}
}
