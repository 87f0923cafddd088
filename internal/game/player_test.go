package game_test

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"push-arena/internal/game"
	"push-arena/internal/game/gametest"
	"push-arena/internal/protocol"
)

// owned is a minimal AuthorityChecker.
type owned map[protocol.ActorID]bool

func (o owned) IsAuthority(id protocol.ActorID) bool { return o[id] }

func TestNewPlayerStartsAtFullHealth(t *testing.T) {
	p := game.NewPlayer(3, 1.0, 7)
	if p.Health() != 1.0 || p.MaxHealth() != 1.0 {
		t.Errorf("health = %v/%v, want 1/1", p.Health(), p.MaxHealth())
	}
	if p.IsPushing() || p.IsJumping() || p.IsGrounded() {
		t.Error("new player should have all flags cleared")
	}
	if !p.HasBody() || p.Body() != 7 {
		t.Errorf("body = %v", p.Body())
	}
	if game.NewPlayer(3, 1, game.NoBody).HasBody() {
		t.Error("NoBody player reports a body")
	}
}

func TestClaimRequiresAuthority(t *testing.T) {
	reg := owned{1: true}
	local := game.NewPlayer(1, 1, 1)
	remote := game.NewPlayer(2, 1, 2)

	if _, err := game.Claim(reg, local); err != nil {
		t.Fatalf("Claim local: %v", err)
	}
	if _, err := game.Claim(reg, remote); !errors.Is(err, game.ErrNotAuthority) {
		t.Errorf("Claim remote err = %v, want ErrNotAuthority", err)
	}
	if _, err := game.Claim(reg, nil); !errors.Is(err, game.ErrNotAuthority) {
		t.Errorf("Claim nil err = %v, want ErrNotAuthority", err)
	}
}

func TestObserveRejectsOwnEntity(t *testing.T) {
	reg := owned{1: true}
	if _, err := game.Observe(reg, game.NewPlayer(1, 1, 1)); !errors.Is(err, game.ErrIsAuthority) {
		t.Errorf("Observe local err = %v, want ErrIsAuthority", err)
	}
	// Unknown actors fail closed to the observer side.
	if _, err := game.Observe(owned{}, game.NewPlayer(9, 1, 1)); err != nil {
		t.Errorf("Observe unknown: %v", err)
	}
}

func TestDepleteClampsAndSnaps(t *testing.T) {
	h, _ := game.Claim(owned{1: true}, game.NewPlayer(1, 1.0, 1))

	for i := 0; i < 10; i++ {
		h.Deplete(0.1)
	}
	if got := h.Player().Health(); got != 0 {
		t.Errorf("health after 10 x 0.1 = %v, want exactly 0", got)
	}
	if got := h.Deplete(0.5); got != 0 {
		t.Errorf("health went below zero: %v", got)
	}
	if got := h.Deplete(-1); got != 0 {
		t.Errorf("negative amount changed health: %v", got)
	}
}

func TestRequestExitLatches(t *testing.T) {
	h, _ := game.Claim(owned{1: true}, game.NewPlayer(1, 1.0, 1))

	if h.RequestExit() {
		t.Fatal("exit requested at full health")
	}
	h.Deplete(1)
	if !h.RequestExit() {
		t.Fatal("first request after depletion should succeed")
	}
	if h.RequestExit() {
		t.Error("exit requested twice")
	}
}

func TestImpulseDegradesWithoutBody(t *testing.T) {
	world := gametest.NewWorld()
	h, _ := game.Claim(owned{1: true}, game.NewPlayer(1, 1, game.NoBody))

	if h.ApplyImpulse(world, mgl64.Vec3{1, 0, 0}) {
		t.Error("impulse applied without a body")
	}
	if len(world.Impulses) != 0 {
		t.Errorf("world received %d impulses", len(world.Impulses))
	}
}

func TestObserverSnapshotOverwrites(t *testing.T) {
	o, err := game.Observe(owned{}, game.NewPlayer(2, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	o.ApplySnapshot(true, 0.4)
	o.ApplySnapshot(false, 0.7)
	p := o.Player()
	if p.IsPushing() || p.Health() != 0.7 {
		t.Errorf("state = (%v, %v), want (false, 0.7)", p.IsPushing(), p.Health())
	}
}
