package game

import (
	"encoding/json"
	"time"

	"push-arena/internal/protocol"
)

// EventType enum for journal classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeEntitySpawned
	EventTypeEntityDespawned
	EventTypePushSent
	EventTypePushApplied
	EventTypePushDiscarded
	EventTypeHealthDepleted
	EventTypeSnapshotApplied
	EventTypeSessionExit
)

// EventVersion for backwards compatibility when reading old journals
const EventVersion uint8 = 1

// Event is one journal line
type Event struct {
	Version   uint8            `json:"version"`
	Type      EventType        `json:"type"`
	Timestamp int64            `json:"timestamp"` // Unix nano
	Sequence  uint64           `json:"sequence"`  // Monotonic per journal
	TickNum   uint64           `json:"tickNum"`
	Actor     protocol.ActorID `json:"actor"` // Source actor (for rate limiting)
	Payload   json.RawMessage  `json:"payload,omitempty"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeEntitySpawned:
		return "entity_spawned"
	case EventTypeEntityDespawned:
		return "entity_despawned"
	case EventTypePushSent:
		return "push_sent"
	case EventTypePushApplied:
		return "push_applied"
	case EventTypePushDiscarded:
		return "push_discarded"
	case EventTypeHealthDepleted:
		return "health_depleted"
	case EventTypeSnapshotApplied:
		return "snapshot_applied"
	case EventTypeSessionExit:
		return "session_exit"
	default:
		return "unknown"
	}
}

// MarshalJSON writes the type by name so journals stay readable.
func (t EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Typed payloads

// SpawnPayload describes an entity creation.
type SpawnPayload struct {
	Authority bool `json:"authority"`
	HasBody   bool `json:"hasBody"`
}

// PushPayload describes a push intent crossing the relay.
type PushPayload struct {
	Source  protocol.ActorID `json:"source"`
	Target  protocol.ActorID `json:"target"`
	Impulse [3]float64       `json:"impulse"`
	Seq     uint64           `json:"seq,omitempty"`
	Reason  string           `json:"reason,omitempty"` // set on discards
}

// HealthPayload describes a health decrement.
type HealthPayload struct {
	Amount    float64 `json:"amount"`
	Remaining float64 `json:"remaining"`
	Cause     string  `json:"cause"` // "enter" or "persist"
}

// SnapshotPayload describes an applied snapshot.
type SnapshotPayload struct {
	IsPushing bool    `json:"isPushing"`
	Health    float64 `json:"health"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) json.RawMessage {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, actor protocol.ActorID, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		Actor:     actor,
		Payload:   EncodePayload(payload),
	}
}

// Journal records gameplay events. Implementations must be safe for
// concurrent use and must never block the caller.
type Journal interface {
	Record(eventType EventType, tickNum uint64, actor protocol.ActorID, payload interface{}) bool
}

// NopJournal discards everything.
type NopJournal struct{}

func (NopJournal) Record(EventType, uint64, protocol.ActorID, interface{}) bool { return false }
