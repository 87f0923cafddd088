package game

import (
	"github.com/go-gl/mathgl/mgl64"

	"push-arena/internal/config"
)

// MovementState is derived each tick from the ground check.
type MovementState uint8

const (
	Airborne MovementState = iota
	Grounded
)

func (s MovementState) String() string {
	if s == Grounded {
		return "grounded"
	}
	return "airborne"
}

// MovementController runs the local entity's movement state machine. It only
// accepts an AuthorityHandle, so observers can never be driven by it.
type MovementController struct {
	phys   Physics
	tuning config.TuningSource
}

// NewMovementController creates a controller over phys.
func NewMovementController(phys Physics, tuning config.TuningSource) *MovementController {
	return &MovementController{phys: phys, tuning: tuning}
}

// Tick advances one fixed step of dt seconds and returns the derived state.
//
// Push and jump flags follow input edges. When grounded, a held jump applies
// JumpImpulse again every tick, and planar input becomes a force of
// move*Speed*dt followed by a MaxSpeed clamp. Airborne ticks apply nothing.
func (mc *MovementController) Tick(h *AuthorityHandle, in InputFrame, dt float64) MovementState {
	t := mc.tuning.Tuning()

	if in.PushPressed {
		h.SetPushing(true)
	}
	if in.PushReleased {
		h.SetPushing(false)
	}
	if in.JumpPressed {
		h.SetJumping(true)
	}
	if in.JumpReleased {
		h.SetJumping(false)
	}

	p := h.Player()
	grounded := false
	if p.HasBody() {
		grounded = mc.phys.RaycastDown(mc.phys.Position(p.Body()), t.GroundCheckDistance)
	}
	h.SetGrounded(grounded)
	if !grounded {
		return Airborne
	}

	if p.IsJumping() {
		h.ApplyImpulse(mc.phys, Up.Mul(t.JumpImpulse))
	}

	move := in.Move
	force := mgl64.Vec3{move[0], 0, move[1]}.Mul(t.Speed * dt)
	if h.ApplyForce(mc.phys, force) {
		mc.phys.ClampVelocityMagnitude(p.Body(), t.MaxSpeed)
	}
	return Grounded
}
