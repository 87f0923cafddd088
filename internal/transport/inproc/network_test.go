package inproc

import (
	"testing"

	"push-arena/internal/config"
	"push-arena/internal/protocol"
)

type recorder struct {
	welcome protocol.Welcome
	joined  []protocol.ActorID
	left    []protocol.ActorID
}

func (r *recorder) OnWelcome(w protocol.Welcome)        { r.welcome = w }
func (r *recorder) OnPeerJoined(actor protocol.ActorID) { r.joined = append(r.joined, actor) }
func (r *recorder) OnPeerLeft(actor protocol.ActorID)   { r.left = append(r.left, actor) }

func TestMembershipAnnouncements(t *testing.T) {
	n := NewNetwork("ROOM", config.DefaultSim())
	a, b := n.Connect(), n.Connect()
	ra, rb := &recorder{}, &recorder{}
	a.Join(ra)
	b.Join(rb)

	if ra.welcome.Actor != 1 || len(ra.welcome.Peers) != 0 {
		t.Errorf("a welcome = %+v", ra.welcome)
	}
	if rb.welcome.Actor != 2 || len(rb.welcome.Peers) != 1 || rb.welcome.Peers[0] != 1 {
		t.Errorf("b welcome = %+v", rb.welcome)
	}
	if len(ra.joined) != 1 || ra.joined[0] != 2 {
		t.Errorf("a joined = %v", ra.joined)
	}

	b.RequestSessionExit()
	b.RequestSessionExit()
	if b.ExitRequests() != 1 {
		t.Errorf("exit requests = %d, want 1", b.ExitRequests())
	}
	if len(ra.left) != 1 || ra.left[0] != 2 {
		t.Errorf("a left = %v", ra.left)
	}
	if m := n.Members(); len(m) != 1 || m[0] != 1 {
		t.Errorf("members = %v", m)
	}
}

func TestDeliverIncludesSenderAndHonoursDrop(t *testing.T) {
	n := NewNetwork("ROOM", config.DefaultSim())
	a, b := n.Connect(), n.Connect()

	var gotA, gotB int
	a.Subscribe(nil, func(protocol.Frame) { gotA++ })
	b.Subscribe(nil, func(protocol.Frame) { gotB++ })

	f := protocol.Frame{Type: protocol.MsgSnapshot}
	if err := a.Publish(f); err != nil {
		t.Fatal(err)
	}
	if gotA != 1 || gotB != 1 {
		t.Fatalf("deliveries a=%d b=%d, want 1 and 1", gotA, gotB)
	}

	n.SetDrop(func(from, to protocol.ActorID, f protocol.Frame) bool { return to == b.Actor() })
	a.Publish(f)
	if gotA != 2 || gotB != 1 {
		t.Errorf("after drop a=%d b=%d, want 2 and 1", gotA, gotB)
	}

	a.Close()
	if err := a.Publish(f); err == nil {
		t.Error("publish after close should fail")
	}
}
