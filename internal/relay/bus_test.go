package relay

import (
	"testing"

	"push-arena/internal/protocol"
)

func TestDispatcherPredicateAndCancel(t *testing.T) {
	var d Dispatcher
	var pushes, all int

	cancelPush := d.Subscribe(ByType(protocol.MsgPushIntent), func(protocol.Frame) { pushes++ })
	d.Subscribe(nil, func(protocol.Frame) { all++ })

	if n := d.Dispatch(protocol.Frame{Type: protocol.MsgPushIntent}); n != 2 {
		t.Errorf("handlers run = %d, want 2", n)
	}
	if n := d.Dispatch(protocol.Frame{Type: protocol.MsgSnapshot}); n != 1 {
		t.Errorf("handlers run = %d, want 1", n)
	}

	cancelPush()
	cancelPush()
	d.Dispatch(protocol.Frame{Type: protocol.MsgPushIntent})

	if pushes != 1 || all != 3 {
		t.Errorf("pushes=%d all=%d, want 1 and 3", pushes, all)
	}
}

func TestRelayedPredicate(t *testing.T) {
	pred := Relayed()
	for _, typ := range []protocol.MsgType{protocol.MsgPushIntent, protocol.MsgSnapshot, protocol.MsgTransform} {
		if !pred(protocol.Frame{Type: typ}) {
			t.Errorf("%s should be relayed", typ)
		}
	}
	for _, typ := range []protocol.MsgType{protocol.MsgWelcome, protocol.MsgLeave, protocol.MsgPeerLeft} {
		if pred(protocol.Frame{Type: typ}) {
			t.Errorf("%s should not be relayed", typ)
		}
	}
}

func TestSequenceFilter(t *testing.T) {
	s := NewSequenceFilter()

	if !s.Accept(1, 0) || !s.Accept(1, 0) {
		t.Error("unsequenced intents must always pass")
	}
	if !s.Accept(1, 1) || !s.Accept(1, 2) {
		t.Error("increasing sequence rejected")
	}
	if s.Accept(1, 2) || s.Accept(1, 1) {
		t.Error("replayed sequence accepted")
	}
	if !s.Accept(2, 1) {
		t.Error("sources must be independent")
	}

	s.Forget(1)
	if !s.Accept(1, 1) {
		t.Error("Forget did not reset the source")
	}
}
