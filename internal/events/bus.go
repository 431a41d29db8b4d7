// Package events fans campaign progress events out to connected observers.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/campaignd/internal/domain"
)

const defaultBuffer = 64

// Filter selects which sessions a subscriber hears about. The zero Filter
// receives every session's events.
type Filter struct {
	SessionID string
}

func (f Filter) match(e domain.Event) bool {
	return f.SessionID == "" || f.SessionID == e.SessionID
}

// Bus is a fire-and-forget publish/subscribe hub keyed by session id.
//
// Publish never blocks: a subscriber whose buffer is full misses the event.
// Nothing is buffered for observers that subscribe later.
type Bus struct {
	mu   sync.RWMutex
	subs map[uint64]*subscriber
	seq  atomic.Uint64
}

type subscriber struct {
	filter Filter
	ch     chan domain.Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*subscriber)}
}

// Publish delivers e to every matching subscriber without waiting.
func (b *Bus) Publish(e domain.Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.filter.match(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

// Subscribe registers a subscriber. The returned function unsubscribes and
// closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(filter Filter, buffer int) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	s := &subscriber{filter: filter, ch: make(chan domain.Event, buffer)}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			// Publish holds the read lock while sending, so closing after
			// removal cannot race with a send.
			close(s.ch)
		})
	}
}

// Subscribers returns the number of live subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
