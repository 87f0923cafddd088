package game

import "github.com/go-gl/mathgl/mgl64"

// InputFrame is one tick of sampled input. Move is the planar intent in
// [-1,1]^2; X maps to world X and Y maps to world Z.
type InputFrame struct {
	Move         mgl64.Vec2
	JumpPressed  bool
	JumpReleased bool
	PushPressed  bool
	PushReleased bool
}

// InputSource is sampled once per tick for the local entity.
type InputSource interface {
	Sample() InputFrame
}

// InputFunc adapts a function to InputSource.
type InputFunc func() InputFrame

func (f InputFunc) Sample() InputFrame { return f() }

// ButtonTracker turns held button levels into press/release edges.
type ButtonTracker struct {
	jumpHeld bool
	pushHeld bool
}

// Frame builds an InputFrame from the current button levels.
func (b *ButtonTracker) Frame(move mgl64.Vec2, jumpHeld, pushHeld bool) InputFrame {
	in := InputFrame{
		Move:         clampMove(move),
		JumpPressed:  jumpHeld && !b.jumpHeld,
		JumpReleased: !jumpHeld && b.jumpHeld,
		PushPressed:  pushHeld && !b.pushHeld,
		PushReleased: !pushHeld && b.pushHeld,
	}
	b.jumpHeld = jumpHeld
	b.pushHeld = pushHeld
	return in
}

func clampMove(v mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{mgl64.Clamp(v[0], -1, 1), mgl64.Clamp(v[1], -1, 1)}
}
