package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Push direction conventions.
const (
	PushAway   = "away"   // impulse points from the pusher to the target
	PushToward = "toward" // impulse points from the target back to the pusher
)

// Tuning holds gameplay constants. All rates are per second and are scaled
// by the fixed tick delta where they are applied.
type Tuning struct {
	MaxHealth float64 `yaml:"max_health"`

	Speed               float64 `yaml:"speed"`                 // planar force scale
	MaxSpeed            float64 `yaml:"max_speed"`             // velocity magnitude clamp
	JumpImpulse         float64 `yaml:"jump_impulse"`          // upward impulse per grounded tick while jump held
	GroundCheckDistance float64 `yaml:"ground_check_distance"` // downward ray length from body center

	PushImpulse   float64 `yaml:"push_impulse"`
	PushDirection string  `yaml:"push_direction"`
	PushDedup     bool    `yaml:"push_dedup"` // drop replayed per-source sequence numbers

	HazardEnterDamage    float64 `yaml:"hazard_enter_damage"`     // one-time decrement on first contact
	HazardDrainPerSecond float64 `yaml:"hazard_drain_per_second"` // continuous decrement while contact persists
}

// DefaultTuning returns the default gameplay tuning.
func DefaultTuning() Tuning {
	return Tuning{
		MaxHealth:            1.0,
		Speed:                500,
		MaxSpeed:             5,
		JumpImpulse:          5,
		GroundCheckDistance:  0.6, // body half-height 0.5 plus skin
		PushImpulse:          8,
		PushDirection:        PushAway,
		HazardEnterDamage:    0.1,
		HazardDrainPerSecond: 0.1,
	}
}

// TuningFromEnv returns tuning with environment variable overrides.
func TuningFromEnv() Tuning {
	t := DefaultTuning()

	if v := getEnvFloat("PUSH_IMPULSE", 0); v > 0 {
		t.PushImpulse = v
	}
	if v := os.Getenv("PUSH_DIRECTION"); v != "" {
		t.PushDirection = v
	}
	t.PushDedup = getEnvBool("PUSH_DEDUP", t.PushDedup)

	return t
}

// Validate checks that a tuning is usable.
func (t Tuning) Validate() error {
	if t.MaxHealth <= 0 {
		return fmt.Errorf("tuning: max_health must be > 0, got %v", t.MaxHealth)
	}
	if t.Speed < 0 || t.MaxSpeed < 0 || t.JumpImpulse < 0 || t.PushImpulse < 0 {
		return fmt.Errorf("tuning: speeds and impulses must be >= 0")
	}
	if t.GroundCheckDistance <= 0 {
		return fmt.Errorf("tuning: ground_check_distance must be > 0, got %v", t.GroundCheckDistance)
	}
	if t.HazardEnterDamage < 0 || t.HazardDrainPerSecond < 0 {
		return fmt.Errorf("tuning: hazard rates must be >= 0")
	}
	switch t.PushDirection {
	case PushAway, PushToward:
	default:
		return fmt.Errorf("tuning: push_direction must be %q or %q, got %q", PushAway, PushToward, t.PushDirection)
	}
	return nil
}

// LoadTuningFile reads a YAML tuning file. Keys missing from the file keep
// their value from base.
func LoadTuningFile(path string, base Tuning) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("config: load %s: %w", path, err)
	}
	t := base
	if err := yaml.Unmarshal(data, &t); err != nil {
		return base, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return base, fmt.Errorf("config: %s: %w", path, err)
	}
	return t, nil
}

// TuningSource is read once per tick by the simulation.
type TuningSource interface {
	Tuning() Tuning
}

// TuningStore is a TuningSource that can be swapped at runtime.
type TuningStore struct {
	current atomic.Pointer[Tuning]
}

// NewTuningStore creates a store holding t.
func NewTuningStore(t Tuning) *TuningStore {
	s := &TuningStore{}
	s.Store(t)
	return s
}

// Tuning returns the current tuning.
func (s *TuningStore) Tuning() Tuning {
	if p := s.current.Load(); p != nil {
		return *p
	}
	return DefaultTuning()
}

// Store replaces the current tuning.
func (s *TuningStore) Store(t Tuning) {
	s.current.Store(&t)
}

// Static is a fixed TuningSource.
type Static Tuning

// Tuning returns t.
func (s Static) Tuning() Tuning { return Tuning(s) }
