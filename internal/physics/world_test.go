package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"push-arena/internal/game"
)

type overlapRecorder struct {
	begins, persists []game.Collider // self side
}

func (r *overlapRecorder) OnOverlapBegin(self, other game.Collider) {
	r.begins = append(r.begins, self)
}

func (r *overlapRecorder) OnOverlapPersist(self, other game.Collider) {
	r.persists = append(r.persists, self)
}

func settle(w *World, steps int) {
	for i := 0; i < steps; i++ {
		w.Step(1.0 / 50)
	}
}

func TestBodyRestsOnGround(t *testing.T) {
	w := NewWorld(DefaultConfig())
	id, err := w.Spawn(1, true)
	if err != nil {
		t.Fatal(err)
	}
	settle(w, 50)

	pos := w.Position(id)
	if pos[1] < 0.3 || pos[1] > 0.7 {
		t.Fatalf("resting height = %v, want about 0.5", pos[1])
	}
	if !w.RaycastDown(pos, 0.6) {
		t.Error("resting body not grounded")
	}

	w.ApplyImpulse(id, mgl64.Vec3{0, 5, 0})
	settle(w, 10)
	if w.RaycastDown(w.Position(id), 0.6) {
		t.Errorf("body still grounded after jump at %v", w.Position(id))
	}
}

func TestRaycastIgnoresPlayers(t *testing.T) {
	w := NewWorld(DefaultConfig())
	below, _ := w.Spawn(1, false)
	w.SetPose(below, mgl64.Vec3{0, 5, 0}, mgl64.Vec3{})
	if w.RaycastDown(mgl64.Vec3{0, 6.2, 0}, 1) {
		t.Error("ray hit a player body")
	}
}

func TestClampVelocityMagnitude(t *testing.T) {
	w := NewWorld(DefaultConfig())
	id, _ := w.Spawn(1, true)
	w.ApplyImpulse(id, mgl64.Vec3{30, 40, 0})
	w.ClampVelocityMagnitude(id, 5)

	v := w.Velocity(id)
	if d := v.Len() - 5; d > 1e-9 || d < -1e-9 {
		t.Errorf("|v| = %v, want 5", v.Len())
	}
	if !v.Normalize().ApproxEqualThreshold(mgl64.Vec3{0.6, 0.8, 0}, 1e-9) {
		t.Errorf("direction changed: %v", v)
	}
}

func TestPushVolumeOverlapBeginThenPersist(t *testing.T) {
	w := NewWorld(DefaultConfig())
	rec := &overlapRecorder{}
	w.SetOverlapListener(rec)

	a, _ := w.Spawn(1, false)
	b, _ := w.Spawn(2, false)
	w.SetPose(a, mgl64.Vec3{0, 0.5, 0}, mgl64.Vec3{})
	w.SetPose(b, mgl64.Vec3{1.5, 0.5, 0}, mgl64.Vec3{})

	w.Step(0.02)
	if len(rec.begins)+len(rec.persists) != 0 {
		t.Fatalf("inactive push volume produced callbacks: %+v", rec)
	}

	w.SetPushVolumeActive(a, true)
	w.Step(0.02)
	if len(rec.begins) != 2 || len(rec.persists) != 0 {
		t.Fatalf("first step: begins=%d persists=%d, want 2/0", len(rec.begins), len(rec.persists))
	}
	kinds := map[game.VolumeKind]game.Collider{}
	for _, c := range rec.begins {
		kinds[c.Kind] = c
	}
	if kinds[game.VolumePush].Owner != 1 || kinds[game.VolumeBody].Owner != 2 {
		t.Errorf("begin colliders = %+v", rec.begins)
	}

	w.Step(0.02)
	w.Step(0.02)
	if len(rec.begins) != 2 || len(rec.persists) != 4 {
		t.Errorf("after 3 steps: begins=%d persists=%d, want 2/4", len(rec.begins), len(rec.persists))
	}

	// Deactivating ends the overlap; reactivating begins it again.
	w.SetPushVolumeActive(a, false)
	w.Step(0.02)
	w.SetPushVolumeActive(a, true)
	w.Step(0.02)
	if len(rec.begins) != 4 {
		t.Errorf("begins after reactivation = %d, want 4", len(rec.begins))
	}
}

func TestDespawnRemovesBody(t *testing.T) {
	w := NewWorld(DefaultConfig())
	id, _ := w.Spawn(1, true)
	w.Despawn(id)
	if got := w.Position(id); got != (mgl64.Vec3{}) {
		t.Errorf("position of despawned body = %v", got)
	}
	w.Despawn(id)
	settle(w, 1)
}
