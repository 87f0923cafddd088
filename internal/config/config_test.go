package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	sim := DefaultSim()
	if sim.TickHz <= 0 || sim.SnapshotHz <= 0 {
		t.Fatalf("timing constants must be > 0")
	}
	if sim.TickHz%sim.SnapshotHz != 0 {
		t.Errorf("TickHz %% SnapshotHz != 0 (%d %% %d)", sim.TickHz, sim.SnapshotHz)
	}
	if sim.SnapshotEvery() != 5 {
		t.Errorf("SnapshotEvery = %d, want 5", sim.SnapshotEvery())
	}
	if err := DefaultTuning().Validate(); err != nil {
		t.Errorf("default tuning invalid: %v", err)
	}
	if DefaultTuning().PushDirection != PushAway {
		t.Errorf("default push direction = %q, want %q", DefaultTuning().PushDirection, PushAway)
	}
}

func TestSnapshotEveryGuards(t *testing.T) {
	if got := (SimConfig{TickHz: 10, SnapshotHz: 50}).SnapshotEvery(); got != 1 {
		t.Errorf("SnapshotEvery with SnapshotHz > TickHz = %d, want 1", got)
	}
	if got := (SimConfig{}).SnapshotEvery(); got != 1 {
		t.Errorf("SnapshotEvery zero config = %d, want 1", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TICK_HZ", "60")
	t.Setenv("SNAPSHOT_HZ", "20")
	t.Setenv("ROOM", "abc123")
	t.Setenv("PORT", "4000")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PUSH_DEDUP", "true")
	t.Setenv("PUSH_DIRECTION", "toward")
	t.Setenv("TUNING_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sim.TickHz != 60 || cfg.Sim.SnapshotHz != 20 {
		t.Errorf("sim = %+v", cfg.Sim)
	}
	if cfg.Net.Room != "ABC123" {
		t.Errorf("room = %q, want ABC123", cfg.Net.Room)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("port = %d, want 4000", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors = %v", cfg.Server.CORSOrigins)
	}
	if !cfg.Tuning.PushDedup || cfg.Tuning.PushDirection != PushToward {
		t.Errorf("tuning = %+v", cfg.Tuning)
	}
}

func TestLoadTuningFilePartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("push_impulse: 12\nhazard_enter_damage: 0.25\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadTuningFile(path, DefaultTuning())
	if err != nil {
		t.Fatalf("LoadTuningFile: %v", err)
	}
	if got.PushImpulse != 12 || got.HazardEnterDamage != 0.25 {
		t.Errorf("overrides not applied: %+v", got)
	}
	if got.MaxSpeed != DefaultTuning().MaxSpeed {
		t.Errorf("MaxSpeed = %v, want default %v", got.MaxSpeed, DefaultTuning().MaxSpeed)
	}
}

func TestLoadTuningFileRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("push_direction: sideways\n"), 0644); err != nil {
		t.Fatal(err)
	}
	base := DefaultTuning()
	got, err := LoadTuningFile(path, base)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if got != base {
		t.Error("rejected file must return base unchanged")
	}
}

func TestTuningStore(t *testing.T) {
	s := NewTuningStore(DefaultTuning())
	next := DefaultTuning()
	next.PushImpulse = 99
	s.Store(next)
	if s.Tuning().PushImpulse != 99 {
		t.Errorf("PushImpulse = %v, want 99", s.Tuning().PushImpulse)
	}
	var empty TuningStore
	if empty.Tuning() != DefaultTuning() {
		t.Error("zero store should fall back to defaults")
	}
}

func TestWatchTuningReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("push_impulse: 8\n"), 0644); err != nil {
		t.Fatal(err)
	}
	store := NewTuningStore(DefaultTuning())
	w, err := WatchTuning(path, store)
	if err != nil {
		t.Fatalf("WatchTuning: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("push_impulse: 15\n"), 0644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(3 * time.Second)
	for {
		select {
		case got := <-w.Reloads:
			if got.PushImpulse == 15 {
				if store.Tuning().PushImpulse != 15 {
					t.Errorf("store not updated")
				}
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for reload, store has %v", store.Tuning().PushImpulse)
		}
	}
}
