// Package eventbus implements the process-wide broadcast channel (spec.md
// §4.L): one producer side publishes typed events, any number of
// subscribers receive them on a small buffered channel each. A slow
// subscriber drops intermediate events rather than stall the publisher,
// generalizing the per-client buffered-channel fan-out pattern from
// arung-agamani-denpa-radio's Broadcaster (internal/radio/stream.go).
package eventbus

import "sync"

// Kind tags the event payload's nature.
type Kind string

const (
	KindQueueChanged   Kind = "queue_changed"
	KindStatusChanged  Kind = "status_changed"
	KindOutputsChanged Kind = "outputs_changed"
	KindLibraryChanged Kind = "library_changed"
	KindMetadata       Kind = "metadata"
)

// Event is the envelope published on the bus. Data is whatever payload
// shape the kind implies (e.g. *status.PlayerStatus for StatusChanged); SSE
// encoders marshal it directly to JSON.
type Event struct {
	Kind Kind
	Data any
	// Tag carries the Metadata variant's sub-type (e.g. "album_art",
	// "tags") when Kind == KindMetadata; empty otherwise.
	Tag string
}

// backlog is the per-subscriber channel capacity (spec.md §4.L: 64).
const backlog = 64

type subscriber struct {
	id uint64
	ch chan Event
}

// Bus is safe for concurrent Publish/Subscribe/Unsubscribe from any number
// of goroutines.
type Bus struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
}

func New() *Bus {
	return &Bus{subs: make(map[uint64]*subscriber)}
}

// Subscription is an opaque handle returned by Subscribe; callers range
// over Events() and must call Close() when done.
type Subscription struct {
	bus *Bus
	sub *subscriber
}

func (s *Subscription) Events() <-chan Event {
	return s.sub.ch
}

func (s *Subscription) Close() {
	s.bus.unsubscribe(s.sub.id)
}

// Subscribe registers a new listener with its own bounded backlog.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{id: id, ch: make(chan Event, backlog)}
	b.subs[id] = sub
	return &Subscription{bus: b, sub: sub}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Publish fans an event out to every current subscriber. A subscriber whose
// buffer is full has the event dropped for it — only the latest state is
// authoritative per spec.md §4.L, so callers always re-derive from the
// current snapshot rather than relying on delivery of every event.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports the current listener count, useful for tests and
// diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
