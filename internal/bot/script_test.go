package bot

import "testing"

func TestScriptEdgesMatchPhases(t *testing.T) {
	s := NewScript(ScriptConfig{Seed: 7, PushEvery: 10, PushHold: 4, MoveScale: 1})

	var presses, releases, pushing int
	down := false
	for i := 0; i < 100; i++ {
		in := s.Sample()
		if in.PushPressed {
			presses++
			down = true
		}
		if in.PushReleased {
			releases++
			down = false
		}
		if down {
			pushing++
		}
		if in.JumpPressed {
			t.Fatal("jump disabled but pressed")
		}
		if in.Move.Len() > 1.0000001*1.4142136 {
			t.Fatalf("move %v out of range", in.Move)
		}
	}
	if presses != 10 || releases != 10 {
		t.Errorf("presses=%d releases=%d, want 10 each", presses, releases)
	}
	if pushing != 40 {
		t.Errorf("ticks pushing = %d, want 40", pushing)
	}
}

func TestScriptDeterministic(t *testing.T) {
	a := NewScript(DefaultScriptConfig(42))
	b := NewScript(DefaultScriptConfig(42))
	for i := 0; i < 500; i++ {
		if a.Sample() != b.Sample() {
			t.Fatalf("diverged at tick %d", i)
		}
	}
}
