package authority

import (
	"errors"
	"testing"

	"push-arena/internal/protocol"
)

func TestUnknownActorFailsClosed(t *testing.T) {
	r := NewRegistry()
	if r.IsAuthority(42) {
		t.Error("unknown actor must not be owned")
	}
	if r.Known(42) {
		t.Error("unknown actor reported as known")
	}
}

func TestRegisterLocalAndRemote(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(1, true); err != nil {
		t.Fatalf("Register local: %v", err)
	}
	if err := r.Register(2, false); err != nil {
		t.Fatalf("Register remote: %v", err)
	}
	if !r.IsAuthority(1) {
		t.Error("actor 1 should be local authority")
	}
	if r.IsAuthority(2) {
		t.Error("actor 2 should be observed only")
	}
	if !r.Known(2) {
		t.Error("actor 2 should be known")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}

func TestRecordsAreImmutable(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(3, false); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := r.Register(3, true)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("err = %v, want ErrAlreadyRegistered", err)
	}
	if r.IsAuthority(3) {
		t.Error("second registration must not grant authority")
	}
}

func TestRegisterZeroActor(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(0, true); !errors.Is(err, ErrInvalidActor) {
		t.Errorf("err = %v, want ErrInvalidActor", err)
	}
}

func TestReleaseAndLocals(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(5, true)
	_ = r.Register(4, false)
	_ = r.Register(2, true)

	locals := r.Locals()
	if len(locals) != 2 || locals[0] != 2 || locals[1] != 5 {
		t.Errorf("Locals = %v, want [2 5]", locals)
	}

	r.Release(5)
	if r.IsAuthority(5) || r.Known(5) {
		t.Error("released actor should be forgotten")
	}
	if got := r.Locals(); len(got) != 1 || got[0] != protocol.ActorID(2) {
		t.Errorf("Locals after release = %v, want [2]", got)
	}
}
