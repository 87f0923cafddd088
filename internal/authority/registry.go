// Package authority records which participant owns each entity.
package authority

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"push-arena/internal/protocol"
)

// ErrAlreadyRegistered is returned when an actor's record is written twice.
// Records are immutable once established.
var ErrAlreadyRegistered = errors.New("authority: actor already registered")

// ErrInvalidActor is returned for the zero actor.
var ErrInvalidActor = errors.New("authority: invalid actor")

// Registry maps actor -> "this participant is the authority for it".
// One Registry per session; it is consulted on every mutation path.
type Registry struct {
	mu      sync.RWMutex
	records map[protocol.ActorID]bool
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[protocol.ActorID]bool)}
}

// Register establishes the record for id. It is called exactly once per
// entity, from the entity creation hook.
func (r *Registry) Register(id protocol.ActorID, isLocalAuthority bool) error {
	if id == 0 {
		return ErrInvalidActor
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; ok {
		return fmt.Errorf("%w: %d", ErrAlreadyRegistered, id)
	}
	r.records[id] = isLocalAuthority
	return nil
}

// IsAuthority reports whether this participant owns id.
// Unknown actors are never owned.
func (r *Registry) IsAuthority(id protocol.ActorID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[id]
}

// Known reports whether a record exists for id.
func (r *Registry) Known(id protocol.ActorID) bool {
	r.mu.RLock()
	_, ok := r.records[id]
	r.mu.RUnlock()
	return ok
}

// Release drops the record of a destroyed entity. Actor numbers are never
// reused within a session, so this cannot cause a hand-off.
func (r *Registry) Release(id protocol.ActorID) {
	r.mu.Lock()
	delete(r.records, id)
	r.mu.Unlock()
}

// Locals returns the actors this participant owns, sorted.
func (r *Registry) Locals() []protocol.ActorID {
	r.mu.RLock()
	out := make([]protocol.ActorID, 0, 1)
	for id, local := range r.records {
		if local {
			out = append(out, id)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
