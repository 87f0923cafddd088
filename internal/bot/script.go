// Package bot drives a participant without a human: it wanders, hops and
// holds push in repeating phases.
package bot

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"

	"push-arena/internal/game"
)

// ScriptConfig shapes the scripted behaviour. Durations are in ticks.
type ScriptConfig struct {
	Seed      uint64
	TurnEvery int // pick a new wander heading
	JumpEvery int // start a jump
	JumpHold  int // how long jump stays held
	PushEvery int // start pushing
	PushHold  int // how long push stays held
	MoveScale float64
}

// DefaultScriptConfig returns a restless but readable bot at 50 Hz.
func DefaultScriptConfig(seed uint64) ScriptConfig {
	return ScriptConfig{
		Seed:      seed,
		TurnEvery: 75,
		JumpEvery: 120,
		JumpHold:  3,
		PushEvery: 40,
		PushHold:  20,
		MoveScale: 1,
	}
}

// Script is a game.InputSource. Sample must be called once per tick.
type Script struct {
	cfg     ScriptConfig
	rng     *rand.Rand
	buttons game.ButtonTracker
	tick    int
	heading mgl64.Vec2
}

// NewScript creates a script. Zero periods disable the matching behaviour.
func NewScript(cfg ScriptConfig) *Script {
	s := &Script{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
	s.turn()
	return s
}

func (s *Script) turn() {
	angle := s.rng.Float64() * 2 * math.Pi
	s.heading = mgl64.Vec2{math.Cos(angle), math.Sin(angle)}.Mul(s.cfg.MoveScale)
}

// Sample returns this tick's input.
func (s *Script) Sample() game.InputFrame {
	s.tick++
	if s.cfg.TurnEvery > 0 && s.tick%s.cfg.TurnEvery == 0 {
		s.turn()
	}
	jump := held(s.tick, s.cfg.JumpEvery, s.cfg.JumpHold)
	push := held(s.tick, s.cfg.PushEvery, s.cfg.PushHold)
	return s.buttons.Frame(s.heading, jump, push)
}

// held reports whether a button that is pressed every period ticks and
// kept down for hold ticks is down at tick.
func held(tick, period, hold int) bool {
	if period <= 0 || hold <= 0 {
		return false
	}
	return (tick-1)%period < hold
}

var _ game.InputSource = (*Script)(nil)
