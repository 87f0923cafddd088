package relay

import (
	"sync"

	"push-arena/internal/protocol"
)

// SequenceFilter drops push intents whose per-source sequence number is not
// newer than the last one accepted from that source. Unsequenced intents
// (Seq == 0) always pass.
type SequenceFilter struct {
	mu   sync.Mutex
	last map[protocol.ActorID]uint64
}

// NewSequenceFilter creates an empty filter.
func NewSequenceFilter() *SequenceFilter {
	return &SequenceFilter{last: make(map[protocol.ActorID]uint64)}
}

// Accept reports whether seq from source is new and records it.
func (s *SequenceFilter) Accept(source protocol.ActorID, seq uint64) bool {
	if seq == 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.last[source] {
		return false
	}
	s.last[source] = seq
	return true
}

// Forget drops the state kept for source.
func (s *SequenceFilter) Forget(source protocol.ActorID) {
	s.mu.Lock()
	delete(s.last, source)
	s.mu.Unlock()
}
