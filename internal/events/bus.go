// Package events provides the typed publish/subscribe bus that decouples the
// state commit path from secondary effects. Dispatch is fire-and-forget: a
// slow or failing subscriber never blocks the producer or its commit.
package events

import (
	"log"
	"sync"

	"github.com/OkayAnshul/Voyager-sub006/internal/models"
)

// Kind identifies one of the closed set of event types.
type Kind string

const (
	PositionAccepted Kind = "POSITION_ACCEPTED"
	TrackingStarted  Kind = "TRACKING_STARTED"
	TrackingStopped  Kind = "TRACKING_STOPPED"
	PlaceEntered     Kind = "PLACE_ENTERED"
	PlaceExited      Kind = "PLACE_EXITED"
)

// Event is the value fanned out to subscribers. Only the fields relevant to
// the kind are set.
type Event struct {
	Kind Kind
	At   int64 // Unix timestamp in seconds

	Position *models.Position
	Place    *models.Place
	Visit    *models.Visit
}

// Handler receives events for a subscribed kind.
type Handler func(Event)

// Bus fans events out to subscribers on a dedicated goroutine.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Kind][]Handler
	closed bool

	queue chan Event
	done  chan struct{}
	once  sync.Once
}

// NewBus creates and starts a bus with the given queue depth.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	b := &Bus{
		subs:  make(map[Kind][]Handler),
		queue: make(chan Event, buffer),
		done:  make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Subscribe registers a handler for one event kind.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[kind] = append(b.subs[kind], h)
}

// Publish enqueues an event without blocking. When the queue is full the
// event is dropped and logged; losing a notification is preferable to
// stalling the write path. Publishing after Close drops the event.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		log.Printf("[EventBus] Closed, dropping %s event", e.Kind)
		return
	}

	select {
	case b.queue <- e:
	default:
		log.Printf("[EventBus] Queue full, dropping %s event", e.Kind)
	}
}

// Close stops dispatching. Pending events are drained first; late publishers
// see the closed flag before the queue channel is closed underneath them.
func (b *Bus) Close() {
	b.once.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		close(b.queue)
		<-b.done
	})
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for e := range b.queue {
		b.mu.RLock()
		handlers := make([]Handler, len(b.subs[e.Kind]))
		copy(handlers, b.subs[e.Kind])
		b.mu.RUnlock()

		for _, h := range handlers {
			b.deliver(h, e)
		}
	}
}

// deliver isolates subscriber panics so one bad handler cannot starve the
// rest of the fan-out.
func (b *Bus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[EventBus] Subscriber panicked on %s event: %v", e.Kind, r)
		}
	}()
	h(e)
}
