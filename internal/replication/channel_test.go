package replication_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"push-arena/internal/authority"
	"push-arena/internal/game"
	"push-arena/internal/game/gametest"
	"push-arena/internal/protocol"
	"push-arena/internal/replication"
)

type recordingBus struct {
	frames []protocol.Frame
}

func (b *recordingBus) Publish(f protocol.Frame) error {
	b.frames = append(b.frames, f)
	return nil
}

func owned(t *testing.T, world *gametest.World, actor protocol.ActorID) *game.AuthorityHandle {
	t.Helper()
	reg := authority.NewRegistry()
	reg.Register(actor, true)
	body, _ := world.Spawn(actor, true)
	h, err := game.Claim(reg, game.NewPlayer(actor, 1, body))
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func observed(t *testing.T, world *gametest.World, actor protocol.ActorID) *game.ObserverHandle {
	t.Helper()
	reg := authority.NewRegistry()
	reg.Register(actor, false)
	body, _ := world.Spawn(actor, false)
	o, err := game.Observe(reg, game.NewPlayer(actor, 1, body))
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestPublishSnapshotThenTransform(t *testing.T) {
	world := gametest.NewWorld()
	h := owned(t, world, 3)
	h.SetPushing(true)
	h.Deplete(0.25)
	world.Place(h.Player().Body(), mgl64.Vec3{1, 2, 0})

	bus := &recordingBus{}
	ch := replication.NewChannel(bus, world, nil)
	if err := ch.Publish(h); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(bus.frames) != 2 || bus.frames[0].Type != protocol.MsgSnapshot || bus.frames[1].Type != protocol.MsgTransform {
		t.Fatalf("frames = %+v", bus.frames)
	}
	s, err := protocol.Decode[protocol.Snapshot](bus.frames[0].Body)
	if err != nil {
		t.Fatal(err)
	}
	if s.Actor != 3 || !s.IsPushing || s.Health != 0.75 {
		t.Errorf("snapshot = %+v", s)
	}
	tr, _ := protocol.Decode[protocol.Transform](bus.frames[1].Body)
	if tr.Position != (mgl64.Vec3{1, 2, 0}) {
		t.Errorf("transform position = %v", tr.Position)
	}
}

func TestPublishWithoutBodySendsSnapshotOnly(t *testing.T) {
	reg := authority.NewRegistry()
	reg.Register(1, true)
	h, _ := game.Claim(reg, game.NewPlayer(1, 1, game.NoBody))

	bus := &recordingBus{}
	if err := replication.NewChannel(bus, gametest.NewWorld(), nil).Publish(h); err != nil {
		t.Fatal(err)
	}
	if len(bus.frames) != 1 || bus.frames[0].Type != protocol.MsgSnapshot {
		t.Errorf("frames = %+v", bus.frames)
	}
}

func TestSnapshotsApplyVerbatimLastWriteWins(t *testing.T) {
	world := gametest.NewWorld()
	o := observed(t, world, 2)
	ch := replication.NewChannel(&recordingBus{}, world, nil)

	apply := func(push bool, health float64) {
		t.Helper()
		f, _ := protocol.NewFrame(protocol.MsgSnapshot, 2, protocol.Snapshot{Actor: 2, IsPushing: push, Health: health})
		if err := ch.ApplySnapshot(o, f.Body, 1); err != nil {
			t.Fatal(err)
		}
	}

	apply(true, 0.4)
	// An older value arriving later still wins.
	apply(false, 0.9)

	p := o.Player()
	if p.IsPushing() || p.Health() != 0.9 {
		t.Errorf("observer = %v", p)
	}
}

func TestApplyRejectsWrongActor(t *testing.T) {
	world := gametest.NewWorld()
	o := observed(t, world, 2)
	ch := replication.NewChannel(&recordingBus{}, world, nil)

	f, _ := protocol.NewFrame(protocol.MsgSnapshot, 5, protocol.Snapshot{Actor: 5, Health: 0})
	if err := ch.ApplySnapshot(o, f.Body, 1); err == nil {
		t.Error("snapshot for another actor applied")
	}
	if o.Player().Health() != 1 {
		t.Errorf("health changed to %v", o.Player().Health())
	}

	tf, _ := protocol.NewFrame(protocol.MsgTransform, 5, protocol.Transform{Actor: 5})
	if err := ch.ApplyTransform(o, tf.Body); err == nil {
		t.Error("transform for another actor applied")
	}
}

func TestApplyTransformPlacesReplica(t *testing.T) {
	world := gametest.NewWorld()
	o := observed(t, world, 4)
	ch := replication.NewChannel(&recordingBus{}, world, nil)

	tr := protocol.Transform{Actor: 4, Position: mgl64.Vec3{3, 1, 0}, Velocity: mgl64.Vec3{0, -1, 0}}
	f, _ := protocol.NewFrame(protocol.MsgTransform, 4, tr)
	if err := ch.ApplyTransform(o, f.Body); err != nil {
		t.Fatal(err)
	}
	b, _ := world.Body(o.Player().Body())
	if b.Position != tr.Position || b.Velocity != tr.Velocity {
		t.Errorf("replica = %+v", b)
	}
}
