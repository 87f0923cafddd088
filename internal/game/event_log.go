package game

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"push-arena/internal/protocol"
)

const (
	EventBufferSize     = 1024                   // Ring buffer size
	MaxEventsPerSec     = 5000                   // Global rate limit
	MaxEventsPerActor   = 250                    // Per-actor rate limit per second
	BatchFlushSize      = 64                     // Events per batch write
	BatchFlushInterval  = 100 * time.Millisecond // How often to flush
	ActorLimiterCleanup = 5 * time.Minute        // Cleanup interval for actor limiters
)

// EventLog is a bounded, rate-limited journal that writes JSONL in the
// background. A full buffer drops the oldest pending events.
type EventLog struct {
	mu      sync.Mutex
	buffer  [EventBufferSize]Event
	head    uint64 // next sequence to assign
	tail    uint64 // oldest unflushed sequence
	nextSeq uint64

	globalLimiter *rate.Limiter
	actorLimiters sync.Map // map[protocol.ActorID]*actorLimiterEntry

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	file *os.File
	out  *bufio.Writer

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
}

type actorLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64
}

// NewEventLog creates a new bounded event log
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start begins the async writer. An empty path keeps events in memory only.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		el.file = file
		el.out = bufio.NewWriter(file)
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()

	return nil
}

// Stop flushes pending events and closes the file.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		if el.file != nil {
			el.file.Close()
		}
	})
}

// Emit adds an event. Returns false if rate limited or not running.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		el.droppedCount.Add(1)
		return false
	}
	if event.Actor != 0 && !el.actorLimiter(event.Actor).Allow() {
		el.droppedCount.Add(1)
		return false
	}

	el.mu.Lock()
	if el.head-el.tail >= EventBufferSize {
		el.tail++
		el.droppedCount.Add(1)
	}
	el.nextSeq++
	event.Sequence = el.nextSeq
	el.buffer[el.head%EventBufferSize] = event
	el.head++
	el.mu.Unlock()

	el.totalCount.Add(1)
	return true
}

// Record implements Journal.
func (el *EventLog) Record(eventType EventType, tickNum uint64, actor protocol.ActorID, payload interface{}) bool {
	return el.Emit(NewEvent(eventType, tickNum, actor, payload))
}

// Recent returns up to n of the newest buffered events, oldest first.
// Flushed events stay readable until the ring overwrites them.
func (el *EventLog) Recent(n int) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	avail := el.head
	if avail > EventBufferSize {
		avail = EventBufferSize
	}
	if uint64(n) > avail {
		n = int(avail)
	}
	out := make([]Event, 0, n)
	for i := el.head - uint64(n); i < el.head; i++ {
		out = append(out, el.buffer[i%EventBufferSize])
	}
	return out
}

func (el *EventLog) actorLimiter(actor protocol.ActorID) *rate.Limiter {
	now := time.Now().UnixNano()
	if entry, ok := el.actorLimiters.Load(actor); ok {
		e := entry.(*actorLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}

	entry := &actorLimiterEntry{
		limiter: rate.NewLimiter(MaxEventsPerActor, MaxEventsPerActor/5),
	}
	entry.lastUsed.Store(now)
	actual, _ := el.actorLimiters.LoadOrStore(actor, entry)
	return actual.(*actorLimiterEntry).limiter
}

func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)

	for {
		select {
		case <-el.stopChan:
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}
		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

// cleanupLoop removes stale actor limiters
func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(ActorLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-ActorLimiterCleanup).UnixNano()
			el.actorLimiters.Range(func(key, value interface{}) bool {
				if value.(*actorLimiterEntry).lastUsed.Load() < cutoff {
					el.actorLimiters.Delete(key)
				}
				return true
			})
		}
	}
}

func (el *EventLog) collectBatch(batch []Event) []Event {
	el.mu.Lock()
	defer el.mu.Unlock()

	for el.tail < el.head && len(batch) < BatchFlushSize {
		batch = append(batch, el.buffer[el.tail%EventBufferSize])
		el.tail++
	}
	return batch
}

// flushBatch appends newline-delimited JSON.
func (el *EventLog) flushBatch(batch []Event) {
	if el.out == nil {
		return
	}
	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		el.out.Write(data)
		el.out.WriteByte('\n')
	}
	el.out.Flush()
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 { return el.droppedCount.Load() }

// GetTotalCount returns the total number of events accepted
func (el *EventLog) GetTotalCount() uint64 { return el.totalCount.Load() }
