package statesync

import (
	"sync"
	"time"

	"github.com/lumahome/luma-core/internal/registry"
	"github.com/lumahome/luma-core/internal/threshold"
)

// EventKind identifies what a change notification describes.
type EventKind string

// Event kinds.
const (
	EventStateChanged EventKind = "state_changed"
	EventAlert        EventKind = "alert"
)

// Event is a change notification fanned out to registered observers.
// Device is a snapshot taken after the update was persisted; observers
// must not mutate it. Alert is set only for EventAlert.
type Event struct {
	Kind      EventKind           `json:"kind"`
	Device    registry.Device     `json:"device"`
	Alert     *threshold.Decision `json:"alert,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// observers manages event subscriptions.
// Handlers run synchronously on the dispatch goroutine and must be quick.
type observers struct {
	mu       sync.RWMutex
	handlers map[int]func(Event)
	nextID   int
}

func newObservers() *observers {
	return &observers{handlers: make(map[int]func(Event))}
}

// add registers a handler and returns an unsubscribe function.
func (o *observers) add(handler func(Event)) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.handlers[id] = handler
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.handlers, id)
		o.mu.Unlock()
	}
}

// notify delivers an event to every registered handler.
func (o *observers) notify(event Event) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, handler := range o.handlers {
		handler(event)
	}
}

func (o *observers) count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.handlers)
}
