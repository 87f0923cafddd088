// Package protocol defines the wire format shared by participants and the relay server.
// Every frame is a fixed header followed by a msgpack body.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ActorID is the session-wide actor number assigned by the relay server.
// Zero is never assigned and means "nobody".
type ActorID int32

// MsgType identifies the body carried by a frame.
type MsgType byte

const (
	// Relayed to every participant in the room, including the sender.
	MsgPushIntent MsgType = 0x01
	MsgSnapshot   MsgType = 0x02
	MsgTransform  MsgType = 0x03

	// Session control (server <-> participant only).
	MsgWelcome    MsgType = 0x10
	MsgPeerJoined MsgType = 0x11
	MsgPeerLeft   MsgType = 0x12
	MsgLeave      MsgType = 0x13
)

const (
	// ProtocolVersion for compatibility checking
	ProtocolVersion uint16 = 1

	HeaderSize     = 12 // 2 + 1 + 1 + 4 + 4
	MaxMessageSize = 64 * 1024

	// MaxFrameSize is the largest encoded frame. Every reader of frames must
	// accept at least this much or a valid frame ends its connection.
	MaxFrameSize = HeaderSize + MaxMessageSize

	WriteTimeout = 50 * time.Millisecond
)

var (
	ErrVersionMismatch = errors.New("protocol: version mismatch")
	ErrFrameTooLarge   = errors.New("protocol: frame too large")
	ErrShortFrame      = errors.New("protocol: short frame")
)

// String returns a human-readable message type.
func (t MsgType) String() string {
	switch t {
	case MsgPushIntent:
		return "push_intent"
	case MsgSnapshot:
		return "snapshot"
	case MsgTransform:
		return "transform"
	case MsgWelcome:
		return "welcome"
	case MsgPeerJoined:
		return "peer_joined"
	case MsgPeerLeft:
		return "peer_left"
	case MsgLeave:
		return "leave"
	default:
		return "unknown"
	}
}

// Relayed reports whether the server fans this type out to the whole room.
func (t MsgType) Relayed() bool {
	return t == MsgPushIntent || t == MsgSnapshot || t == MsgTransform
}

// Header is the frame header.
//
// Target is a routing hint (0 = everyone). The relay ignores it and still
// delivers to every participant; subscribers may filter on it without
// decoding the body.
type Header struct {
	Version uint16
	Type    MsgType
	Flags   byte
	Target  ActorID
	Length  uint32
}

// Frame is a decoded header plus its raw body.
type Frame struct {
	Type   MsgType
	Target ActorID
	Body   []byte
}

func putHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint16(buf[0:2], h.Version)
	buf[2] = byte(h.Type)
	buf[3] = h.Flags
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Target))
	binary.LittleEndian.PutUint32(buf[8:12], h.Length)
}

func parseHeader(buf []byte) (Header, error) {
	h := Header{
		Version: binary.LittleEndian.Uint16(buf[0:2]),
		Type:    MsgType(buf[2]),
		Flags:   buf[3],
		Target:  ActorID(int32(binary.LittleEndian.Uint32(buf[4:8]))),
		Length:  binary.LittleEndian.Uint32(buf[8:12]),
	}
	if h.Version != ProtocolVersion {
		return h, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, h.Version, ProtocolVersion)
	}
	if h.Length > MaxMessageSize {
		return h, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, h.Length, MaxMessageSize)
	}
	return h, nil
}

// EncodeFrame builds a single binary frame (one websocket message).
func EncodeFrame(f Frame) ([]byte, error) {
	if len(f.Body) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(f.Body), MaxMessageSize)
	}
	out := make([]byte, HeaderSize+len(f.Body))
	putHeader(out, Header{
		Version: ProtocolVersion,
		Type:    f.Type,
		Target:  f.Target,
		Length:  uint32(len(f.Body)),
	})
	copy(out[HeaderSize:], f.Body)
	return out, nil
}

// DecodeFrame parses a frame produced by EncodeFrame.
// The returned body aliases data.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) < HeaderSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}
	h, err := parseHeader(data[:HeaderSize])
	if err != nil {
		return Frame{}, err
	}
	if int(h.Length) != len(data)-HeaderSize {
		return Frame{}, fmt.Errorf("%w: header says %d, have %d", ErrShortFrame, h.Length, len(data)-HeaderSize)
	}
	return Frame{Type: h.Type, Target: h.Target, Body: data[HeaderSize:]}, nil
}
