package protocol

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/vmihailenco/msgpack/v5"
)

func TestFrameRoundTrip(t *testing.T) {
	f, err := NewFrame(MsgPushIntent, 2, PushIntent{Source: 1, Target: 2, Impulse: mgl64.Vec3{3, 0, 4}})
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	b, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	got, err := DecodeFrame(b)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.Type != MsgPushIntent || got.Target != 2 {
		t.Fatalf("header = (%v, %d), want (push_intent, 2)", got.Type, got.Target)
	}
	intent, err := Decode[PushIntent](got.Body)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if intent.Source != 1 || intent.Target != 2 || intent.Impulse != (mgl64.Vec3{3, 0, 4}) {
		t.Errorf("intent = %+v", intent)
	}
}

func TestLargestFrameFitsMaxFrameSize(t *testing.T) {
	b, err := EncodeFrame(Frame{Type: MsgTransform, Body: make([]byte, MaxMessageSize)})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if len(b) != MaxFrameSize {
		t.Fatalf("encoded %d bytes, want %d", len(b), MaxFrameSize)
	}
	if _, err := DecodeFrame(b); err != nil {
		t.Errorf("DecodeFrame: %v", err)
	}
}

func TestSnapshotFieldOrder(t *testing.T) {
	body, err := Encode(Snapshot{Actor: 7, IsPushing: true, Health: 0.75})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var raw []any
	if err := msgpack.Unmarshal(body, &raw); err != nil {
		t.Fatalf("snapshot must encode as an array: %v", err)
	}
	if len(raw) != 3 {
		t.Fatalf("len = %d, want 3", len(raw))
	}
	if fmt.Sprint(raw[0]) != "7" {
		t.Errorf("raw[0] = %v, want actor 7", raw[0])
	}
	if raw[1] != true {
		t.Errorf("raw[1] = %v, want isPushing first", raw[1])
	}
	if raw[2] != 0.75 {
		t.Errorf("raw[2] = %v, want health second", raw[2])
	}
}

func TestDecodeFrameRejectsVersion(t *testing.T) {
	b, err := EncodeFrame(Frame{Type: MsgLeave})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	b[0] = 0xFF
	if _, err := DecodeFrame(b); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("err = %v, want ErrVersionMismatch", err)
	}
}

func TestDecodeFrameRejectsShort(t *testing.T) {
	if _, err := DecodeFrame([]byte{1, 0, 1}); !errors.Is(err, ErrShortFrame) {
		t.Errorf("err = %v, want ErrShortFrame", err)
	}
	b, _ := EncodeFrame(Frame{Type: MsgSnapshot, Body: []byte{1, 2, 3}})
	if _, err := DecodeFrame(b[:len(b)-1]); !errors.Is(err, ErrShortFrame) {
		t.Errorf("truncated body: err = %v, want ErrShortFrame", err)
	}
}

func TestEncodeFrameTooLarge(t *testing.T) {
	_, err := EncodeFrame(Frame{Type: MsgSnapshot, Body: make([]byte, MaxMessageSize+1)})
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("err = %v, want ErrFrameTooLarge", err)
	}
}

func TestRelayedTypes(t *testing.T) {
	for _, mt := range []MsgType{MsgPushIntent, MsgSnapshot, MsgTransform} {
		if !mt.Relayed() {
			t.Errorf("%v should be relayed", mt)
		}
	}
	for _, mt := range []MsgType{MsgWelcome, MsgPeerJoined, MsgPeerLeft, MsgLeave} {
		if mt.Relayed() {
			t.Errorf("%v should not be relayed", mt)
		}
	}
}

func TestDecodeEmptyBody(t *testing.T) {
	if _, err := Decode[Snapshot](nil); err == nil {
		t.Error("expected error decoding empty body")
	}
}
