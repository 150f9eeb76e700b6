package services

import (
	"log/slog"
	"sync"
)

type EventType string

const (
	EventTypeTurn           EventType = "turn"
	EventTypeRunCompleted   EventType = "run_completed"
	EventTypeScheduleResult EventType = "schedule_result"
)

// BroadcastChannel is the pseudo run ID for events addressed to every
// listener rather than one run's audience.
const BroadcastChannel = "__broadcast__"

type Event struct {
	RunID     string
	Type      EventType
	Data      string // JSON payload or raw text
	Timestamp int64
}

type EventBus struct {
	logger     *slog.Logger
	mu         sync.RWMutex
	subs       map[string][]chan Event // Key: RunID
	globalSubs []chan Event
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		logger: logger,
		subs:   make(map[string][]chan Event),
	}
}

// Subscribe returns a channel that receives events for a specific run
func (b *EventBus) Subscribe(runID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100) // Buffer to prevent blocking publisher
	b.subs[runID] = append(b.subs[runID], ch)

	// Unsubscribe function
	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subscribers := b.subs[runID]
		for i, sub := range subscribers {
			if sub == ch {
				close(ch)
				b.subs[runID] = append(subscribers[:i], subscribers[i+1:]...)
				break
			}
		}
		if len(b.subs[runID]) == 0 {
			delete(b.subs, runID)
		}
	}

	return ch, unsub
}

// SubscribeGlobal returns a channel that receives every event on the bus,
// whichever run it belongs to.
func (b *EventBus) SubscribeGlobal() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100)
	b.globalSubs = append(b.globalSubs, ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		for i, sub := range b.globalSubs {
			if sub == ch {
				close(ch)
				b.globalSubs = append(b.globalSubs[:i], b.globalSubs[i+1:]...)
				break
			}
		}
	}

	return ch, unsub
}

// Publish sends an event to all subscribers of the run and to every global
// subscriber.
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[e.RunID] {
		b.send(ch, e)
	}
	for _, ch := range b.globalSubs {
		b.send(ch, e)
	}
}

func (b *EventBus) send(ch chan Event, e Event) {
	select {
	case ch <- e:
	default:
		// If channel is full, drop event to prevent blocking application
		b.logger.Warn("event bus channel full, dropping event", "run_id", e.RunID)
	}
}
