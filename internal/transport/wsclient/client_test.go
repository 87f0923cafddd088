package wsclient_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"push-arena/internal/api"
	"push-arena/internal/config"
	"push-arena/internal/protocol"
	"push-arena/internal/relay"
	"push-arena/internal/transport/wsclient"
)

type recListener struct {
	welcome chan protocol.Welcome
	joined  chan protocol.ActorID
	left    chan protocol.ActorID
}

func newRecListener() *recListener {
	return &recListener{
		welcome: make(chan protocol.Welcome, 1),
		joined:  make(chan protocol.ActorID, 8),
		left:    make(chan protocol.ActorID, 8),
	}
}

func (l *recListener) OnWelcome(w protocol.Welcome)        { l.welcome <- w }
func (l *recListener) OnPeerJoined(actor protocol.ActorID) { l.joined <- actor }
func (l *recListener) OnPeerLeft(actor protocol.ActorID)   { l.left <- actor }

func startRelay(t *testing.T) config.NetConfig {
	t.Helper()
	s := api.NewServer(config.DefaultServer(), config.DefaultSim())
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		s.Stop(context.Background())
		ts.Close()
	})

	cfg := config.DefaultNet()
	cfg.ServerURL = "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	cfg.Room = "WIRE"
	return cfg
}

func join(t *testing.T, cfg config.NetConfig) (*wsclient.Client, *recListener, protocol.Welcome) {
	t.Helper()
	c, err := wsclient.Dial(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	l := newRecListener()
	c.Join(l)
	select {
	case w := <-l.welcome:
		if c.Actor() != w.Actor {
			t.Errorf("Actor() = %d, welcome says %d", c.Actor(), w.Actor)
		}
		return c, l, w
	case <-time.After(2 * time.Second):
		t.Fatal("no welcome")
	}
	return nil, nil, protocol.Welcome{}
}

func TestClientRelayRoundTrip(t *testing.T) {
	cfg := startRelay(t)

	a, la, wa := join(t, cfg)
	b, _, wb := join(t, cfg)

	if wa.Actor != 1 || wb.Actor != 2 {
		t.Fatalf("actors = %d, %d", wa.Actor, wb.Actor)
	}
	select {
	case id := <-la.joined:
		if id != wb.Actor {
			t.Errorf("joined = %d, want %d", id, wb.Actor)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("a never saw b join")
	}

	got := make(chan protocol.Snapshot, 4)
	cancel := a.Subscribe(relay.ByType(protocol.MsgSnapshot), func(f protocol.Frame) {
		s, err := protocol.Decode[protocol.Snapshot](f.Body)
		if err == nil {
			got <- s
		}
	})
	defer cancel()

	f, err := protocol.NewFrame(protocol.MsgSnapshot, 0, protocol.Snapshot{Actor: wb.Actor, IsPushing: true, Health: 0.75})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Publish(f); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case s := <-got:
		if s.Actor != wb.Actor || !s.IsPushing || s.Health != 0.75 {
			t.Errorf("snapshot = %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot not relayed")
	}
}

func TestClientSessionExitLeavesRoom(t *testing.T) {
	cfg := startRelay(t)

	_, la, _ := join(t, cfg)
	b, _, wb := join(t, cfg)
	<-la.joined

	b.RequestSessionExit()
	b.RequestSessionExit()

	select {
	case id := <-la.left:
		if id != wb.Actor {
			t.Errorf("left = %d, want %d", id, wb.Actor)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("a never saw b leave")
	}

	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("b still connected after exit")
	}

	f, _ := protocol.NewFrame(protocol.MsgSnapshot, 0, protocol.Snapshot{Actor: wb.Actor})
	if err := b.Publish(f); err == nil {
		t.Error("Publish after exit should fail")
	}
}

func TestLargestFrameKeepsRoomConnected(t *testing.T) {
	cfg := startRelay(t)

	a, la, _ := join(t, cfg)
	b, _, _ := join(t, cfg)
	<-la.joined

	sizes := make(chan int, 4)
	for _, c := range []*wsclient.Client{a, b} {
		cancel := c.Subscribe(relay.ByType(protocol.MsgTransform), func(f protocol.Frame) {
			sizes <- len(f.Body)
		})
		defer cancel()
	}

	big := protocol.Frame{Type: protocol.MsgTransform, Body: make([]byte, protocol.MaxMessageSize)}
	if err := b.Publish(big); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case n := <-sizes:
			if n != protocol.MaxMessageSize {
				t.Errorf("delivered body of %d bytes, want %d", n, protocol.MaxMessageSize)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("largest frame delivered to %d of 2 clients", i)
		}
	}

	for name, c := range map[string]*wsclient.Client{"a": a, "b": b} {
		select {
		case <-c.Done():
			t.Errorf("client %s disconnected by the largest valid frame", name)
		case <-time.After(100 * time.Millisecond):
		}
	}
}
