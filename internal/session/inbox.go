package session

import (
	"sync"

	"push-arena/internal/protocol"
)

// DefaultInboxSize bounds the relayed frames buffered between two ticks.
const DefaultInboxSize = 1024

type controlKind uint8

const (
	ctlNone controlKind = iota
	ctlWelcome
	ctlPeerJoined
	ctlPeerLeft
)

type inboxItem struct {
	frame   protocol.Frame
	control controlKind
	welcome protocol.Welcome
	actor   protocol.ActorID
}

// inbox collects everything delivered between two ticks. Transports push
// from their own goroutines; the tick thread drains. Membership events are
// never dropped, relayed frames are dropped when the inbox is full.
type inbox struct {
	mu     sync.Mutex
	items  []inboxItem
	spare  []inboxItem
	frames int
	max    int
}

func newInbox(max int) *inbox {
	if max <= 0 {
		max = DefaultInboxSize
	}
	return &inbox{max: max}
}

func (q *inbox) pushFrame(f protocol.Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.frames >= q.max {
		return false
	}
	q.frames++
	q.items = append(q.items, inboxItem{frame: f})
	return true
}

func (q *inbox) pushControl(item inboxItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// drain returns everything queued, in arrival order. The returned slice is
// only valid until the next drain.
func (q *inbox) drain() []inboxItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = q.spare[:0]
	q.spare = out
	q.frames = 0
	return out
}
