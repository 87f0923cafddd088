// Package session runs one participant: its entities, its tick loop and
// the glue between movement, interaction, relay and replication.
package session

import (
	"errors"
	"log"

	"push-arena/internal/authority"
	"push-arena/internal/config"
	"push-arena/internal/game"
	"push-arena/internal/relay"
)

var (
	ErrUnknownActor = errors.New("session: unknown actor")
	ErrLocalExists  = errors.New("session: participant already owns an entity")
	ErrBadContext   = errors.New("session: incomplete context")
)

// ExitRequester ends the participant's session. It is called at most once.
type ExitRequester interface {
	RequestSessionExit()
}

// ExitFunc adapts a function to ExitRequester.
type ExitFunc func()

func (f ExitFunc) RequestSessionExit() { f() }

// Context carries everything one session needs. It replaces any
// process-wide "local player" lookup: components get it at construction.
type Context struct {
	Registry *authority.Registry
	Bus      relay.Bus
	World    game.World
	Exit     ExitRequester
	Tuning   config.TuningSource
	Journal  game.Journal
	Sim      config.SimConfig
}

func (c *Context) normalize() error {
	if c.Registry == nil || c.Bus == nil || c.World == nil {
		return ErrBadContext
	}
	if c.Tuning == nil {
		c.Tuning = config.Static(config.DefaultTuning())
	}
	if c.Journal == nil {
		c.Journal = game.NopJournal{}
	}
	if c.Exit == nil {
		c.Exit = ExitFunc(func() { log.Println("🚪 session exit requested (no session collaborator)") })
	}
	if c.Sim.TickHz <= 0 {
		c.Sim = config.DefaultSim()
	}
	return nil
}
