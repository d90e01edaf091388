package feed

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collection names carried on a Change. They mirror the document layout:
// each user owns zones, zone-scoped notes/documents, and a planner.
const (
	CollectionZones     = "zones"
	CollectionNotes     = "notes"
	CollectionDocuments = "documents"
	CollectionPlanner   = "planner"
	CollectionUsers     = "users"
)

// Change is a lightweight, in-memory signal published by the store after a
// successful write. It tells consumers *that* something changed, never what:
// subscribers re-read the full current set themselves.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop changes (bounded backpressure). Dropping is
//     safe because consumers reload full snapshots, not deltas.
type Change struct {
	Collection string
	UserID     string
	DocID      string
	Time       time.Time
}

type Bus interface {
	Publish(c Change)
	Subscribe(buffer int) (ch <-chan Change, unsubscribe func())
}

// New returns a simple in-memory fanout bus.
//
// It intentionally does not own any background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Change{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Change
	seq  atomic.Uint64
}

func (b *memBus) Publish(c Change) {
	if c.Time.IsZero() {
		c.Time = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold locks while attempting sends.
	b.mu.RLock()
	chs := make([]chan Change, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery. If a subscriber unsubscribes concurrently and
		// the channel closes, recover from the send panic.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- c:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Change, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			// Closing is safe because Publish recovers from send panics.
			close(ch)
		})
	}
	return ch, unsub
}
