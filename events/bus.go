package events

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// EventType tags what kind of state transition an event describes.
type EventType string

const (
	TypeSwapStatus  EventType = "swap_status"
	TypeOrderStatus EventType = "order_status"
	TypeBatchStatus EventType = "batch_status"
	TypeFill        EventType = "fill"
)

// Event is one state transition notification. Subscribers get these
// instead of polling the read accessors.
type Event struct {
	Type    EventType      `json:"type"`
	Subject string         `json:"subject"` // swap id, order id or batch id
	Status  string         `json:"status"`
	Detail  map[string]any `json:"detail,omitempty"`
	At      time.Time      `json:"at"`
}

// Bus fans state transitions out to subscribers. Publishing never
// blocks: a subscriber that stops draining its channel loses events
// rather than stalling the owning component.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel func must be
// called when the listener goes away.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 64)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every live subscriber.
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			log.WithFields(log.Fields{"module": "events", "subscriber": id}).
				Warn("subscriber channel full, dropping event")
		}
	}
}
