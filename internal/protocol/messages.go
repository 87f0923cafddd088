package protocol

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/vmihailenco/msgpack/v5"
)

// PushIntent asks the target's authority to apply Impulse to the target.
// Seq is zero unless push hardening is enabled on the sender.
type PushIntent struct {
	_msgpack struct{} `msgpack:",as_array"`

	Source  ActorID
	Target  ActorID
	Impulse mgl64.Vec3
	Seq     uint64
}

// Snapshot is the replicated field set of one entity. Fields after Actor
// are encoded in fixed order: isPushing, then health.
type Snapshot struct {
	_msgpack struct{} `msgpack:",as_array"`

	Actor     ActorID
	IsPushing bool
	Health    float64
}

// Transform carries the authority's body pose for observer replicas.
type Transform struct {
	_msgpack struct{} `msgpack:",as_array"`

	Actor    ActorID
	Position mgl64.Vec3
	Velocity mgl64.Vec3
}

// Welcome is sent by the server to a participant that just joined a room.
type Welcome struct {
	Actor      ActorID   `msgpack:"actor"`
	Room       string    `msgpack:"room"`
	Peers      []ActorID `msgpack:"peers"`
	TickHz     int       `msgpack:"tickHz"`
	SnapshotHz int       `msgpack:"snapshotHz"`
}

// PeerEvent announces a participant joining or leaving the room.
type PeerEvent struct {
	Actor ActorID `msgpack:"actor"`
}

// Leave is sent by a participant that ends its own session.
type Leave struct {
	Reason string `msgpack:"reason,omitempty"`
}

// Encode marshals a payload into a frame body.
func Encode(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("msgpack encode %T: %w", v, err)
	}
	return b, nil
}

// Decode unmarshals a frame body into T.
func Decode[T any](body []byte) (T, error) {
	var out T
	if len(body) == 0 {
		return out, fmt.Errorf("decode %T: empty body", out)
	}
	if err := msgpack.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("msgpack decode %T: %w", out, err)
	}
	return out, nil
}

// NewFrame encodes v and wraps it in a frame of the given type.
func NewFrame(t MsgType, target ActorID, v any) (Frame, error) {
	body, err := Encode(v)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: t, Target: target, Body: body}, nil
}
