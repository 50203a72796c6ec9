package core

import (
	"log/slog"
	"sync"
	"time"
)

// EventType tags a DatasetEvent.
type EventType string

const (
	EventCreated             EventType = "created"
	EventUpdated             EventType = "updated"
	EventDeleted             EventType = "deleted"
	EventUploadInitiated     EventType = "upload:initiated"
	EventUploadCompleted     EventType = "upload:completed"
	EventValidationStarted   EventType = "validation:started"
	EventValidationProgress  EventType = "validation:progress"
	EventValidationCompleted EventType = "validation:completed"
	EventValidationFailed    EventType = "validation:failed"
)

// DatasetEvent is published after the change it describes has been applied.
// Dataset is a snapshot copy; Errors is set on validation:failed and
// Progress on validation:progress.
type DatasetEvent struct {
	Type      EventType
	DatasetID string
	Dataset   *Dataset
	Errors    []string
	Progress  int
	JobID     string
	Timestamp time.Time
}

// DefaultSubscriberBuffer is the per-subscriber channel capacity.
const DefaultSubscriberBuffer = 64

// EventBus is an in-process publish/subscribe hub for dataset events.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
}

// NewEventBus creates a bus with the given per-subscriber buffer.
func NewEventBus(buffer int) *EventBus {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &EventBus{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscription receives events of the requested types until closed.
type Subscription struct {
	bus   *EventBus
	ch    chan DatasetEvent
	types map[EventType]struct{}
	once  sync.Once
}

// Subscribe registers a listener. With no types it receives every event.
func (b *EventBus) Subscribe(types ...EventType) *Subscription {
	sub := &Subscription{
		bus: b,
		ch:  make(chan DatasetEvent, b.buffer),
	}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// C returns the event stream. It is closed by Close.
func (s *Subscription) C() <-chan DatasetEvent {
	return s.ch
}

// Close unsubscribes and closes the stream. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

func (s *Subscription) wants(t EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Publish delivers ev to every interested subscriber without blocking.
func (b *EventBus) Publish(ev DatasetEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !sub.wants(ev.Type) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Subscriber is slow, skip this event
			slog.Warn("dataset event dropped", "type", ev.Type, "dataset_id", ev.DatasetID)
		}
	}
}

// SubscriberCount returns the number of open subscriptions.
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
