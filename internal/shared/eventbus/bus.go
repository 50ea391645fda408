package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tenant-portal/internal/shared/logger"
)

// Session lifecycle event types
const (
	EventTypeSessionAuthenticated  = "session.authenticated"
	EventTypeSessionCleared        = "session.cleared"
	EventTypeSessionReloadRequired = "session.reload_required"
	EventTypeSessionProfileUpdated = "session.profile_updated"
)

// Event represents a generic event
type Event interface {
	Type() string
	Data() interface{}
	Timestamp() time.Time
	Source() string
}

// Handler defines the event handler function type
type Handler func(ctx context.Context, event Event) error

// Publisher is the narrow side of the bus that producers depend on
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscription identifies a registered handler so it can be removed again
type Subscription struct {
	eventType string
	id        uint64
}

type entry struct {
	id      uint64
	handler Handler
}

// EventBus is an in-memory, synchronous event bus. Handlers for one event run
// in registration order on the publishing goroutine.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]entry
	nextID   uint64
	logger   logger.Logger
}

// NewEventBus creates a new event bus instance
func NewEventBus(log logger.Logger) *EventBus {
	if log == nil {
		log = logger.NewNop()
	}
	return &EventBus{
		handlers: make(map[string][]entry),
		logger:   log.WithComponent("eventbus"),
	}
}

// Subscribe adds a handler for a specific event type
func (eb *EventBus) Subscribe(eventType string, handler Handler) Subscription {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	eb.handlers[eventType] = append(eb.handlers[eventType], entry{id: eb.nextID, handler: handler})
	eb.logger.Debugf("Subscribed handler for event type: %s", eventType)
	return Subscription{eventType: eventType, id: eb.nextID}
}

// Unsubscribe removes a single handler registration
func (eb *EventBus) Unsubscribe(sub Subscription) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	list := eb.handlers[sub.eventType]
	for i, e := range list {
		if e.id == sub.id {
			eb.handlers[sub.eventType] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(eb.handlers[sub.eventType]) == 0 {
		delete(eb.handlers, sub.eventType)
	}
}

// Publish sends an event to all registered handlers. Every handler runs even
// when an earlier one fails; the failures are joined.
func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	eb.mu.RLock()
	list := append([]entry(nil), eb.handlers[event.Type()]...)
	eb.mu.RUnlock()

	if len(list) == 0 {
		eb.logger.Debugf("No handlers found for event type: %s", event.Type())
		return nil
	}

	var errs []error
	for i, e := range list {
		if err := e.handler(ctx, event); err != nil {
			eb.logger.Errorf("Handler %d failed for event %s: %v", i, event.Type(), err)
			errs = append(errs, fmt.Errorf("handler %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// GetSubscriberCount returns the number of handlers for an event type
func (eb *EventBus) GetSubscriberCount(eventType string) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.handlers[eventType])
}

// BasicEvent implements the Event interface
type BasicEvent struct {
	eventType string
	data      interface{}
	timestamp time.Time
	source    string
}

// NewBasicEvent creates a new basic event
func NewBasicEvent(eventType string, data interface{}) Event {
	return NewBasicEventWithSource(eventType, data, "unknown")
}

// NewBasicEventWithSource creates a new basic event with source
func NewBasicEventWithSource(eventType string, data interface{}, source string) Event {
	return &BasicEvent{
		eventType: eventType,
		data:      data,
		timestamp: time.Now(),
		source:    source,
	}
}

func (e *BasicEvent) Type() string         { return e.eventType }
func (e *BasicEvent) Data() interface{}    { return e.data }
func (e *BasicEvent) Timestamp() time.Time { return e.timestamp }
func (e *BasicEvent) Source() string       { return e.source }
