// Package relay carries frames between participants and implements the
// push relay: broadcast to everyone, applied only by the target's authority.
package relay

import (
	"errors"
	"sync"

	"push-arena/internal/protocol"
)

// ErrClosed is returned by Publish after the bus has shut down.
var ErrClosed = errors.New("relay: bus closed")

// Predicate selects the frames a subscriber wants.
type Predicate func(f protocol.Frame) bool

// Handler receives matching frames. Handlers run on the transport's
// delivery goroutine and must not block.
type Handler func(f protocol.Frame)

// Bus is the participant's view of the transport: publish to every
// participant in the session (including itself), subscribe with a filter.
type Bus interface {
	Publish(f protocol.Frame) error
	Subscribe(pred Predicate, h Handler) (cancel func())
}

// ByType matches frames of any of the given types.
func ByType(types ...protocol.MsgType) Predicate {
	return func(f protocol.Frame) bool {
		for _, t := range types {
			if f.Type == t {
				return true
			}
		}
		return false
	}
}

// Relayed matches the frame types participants exchange through the relay.
func Relayed() Predicate {
	return func(f protocol.Frame) bool { return f.Type.Relayed() }
}

type subscription struct {
	pred Predicate
	h    Handler
}

// Dispatcher fans frames out to subscribers. Transports embed it to
// implement the subscribe half of Bus.
type Dispatcher struct {
	mu   sync.RWMutex
	next int
	subs map[int]subscription
}

// Subscribe registers h for frames matching pred. A nil pred matches all.
func (d *Dispatcher) Subscribe(pred Predicate, h Handler) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.subs == nil {
		d.subs = make(map[int]subscription)
	}
	d.next++
	id := d.next
	d.subs[id] = subscription{pred: pred, h: h}

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subs, id)
			d.mu.Unlock()
		})
	}
}

// Dispatch delivers f to every matching subscriber and returns how many
// handlers ran.
func (d *Dispatcher) Dispatch(f protocol.Frame) int {
	d.mu.RLock()
	matched := make([]Handler, 0, len(d.subs))
	for _, s := range d.subs {
		if s.pred == nil || s.pred(f) {
			matched = append(matched, s.h)
		}
	}
	d.mu.RUnlock()

	for _, h := range matched {
		h(f)
	}
	return len(matched)
}

// SessionListener receives membership events from the session collaborator.
// Implementations must not block.
type SessionListener interface {
	OnWelcome(w protocol.Welcome)
	OnPeerJoined(actor protocol.ActorID)
	OnPeerLeft(actor protocol.ActorID)
}
