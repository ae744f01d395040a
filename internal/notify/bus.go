package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Publisher is the write side of the notification bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscriber is the read side of the notification bus.
type Subscriber interface {
	Subscribe(subscriberID, displayName string, filter Filter) (<-chan Event, error)
}

// Bus is the default in-memory implementation of Publisher/Subscriber.
// It is intentionally simple: per-subscriber buffered channels, a filter
// checked at publish time, and a drop-newest policy when a subscriber falls
// behind: events already buffered are kept and the new event is discarded.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscription
	logger      *zerolog.Logger
	bufSize     int
}

type subscription struct {
	id          string
	displayName string
	filter      Filter
	ch          chan Event
}

const defaultSubscriberBuffer = 64

// NewBus creates a Bus. A nil logger falls back to a no-op zerolog
// logger.
func NewBus(logger *zerolog.Logger) *Bus {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Bus{
		subscribers: make(map[string]*subscription),
		logger:      logger,
		bufSize:     defaultSubscriberBuffer,
	}
}

// Subscribe registers a new subscriber and returns a receive-only channel of
// events matching the filter. subscriberID is caller-supplied (typically a
// uuid) so the caller can later reason about which subscription a lagged
// event refers to.
func (b *Bus) Subscribe(subscriberID, displayName string, filter Filter) (<-chan Event, error) {
	if subscriberID == "" {
		subscriberID = uuid.NewString()
	}
	sub := &subscription{
		id:          subscriberID,
		displayName: displayName,
		filter:      filter,
		ch:          make(chan Event, b.bufSize),
	}
	b.mu.Lock()
	b.subscribers[subscriberID] = sub
	b.mu.Unlock()
	b.logger.Debug().Str("subscriber", displayName).Str("id", subscriberID).Msg("notify: subscriber registered")
	return sub.ch, nil
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	sub, ok := b.subscribers[subscriberID]
	if ok {
		delete(b.subscribers, subscriberID)
	}
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Publish fans an event out to every matching subscriber. A subscriber
// whose buffer is full has the event dropped rather than blocking the
// publisher — the bus optimizes for "publisher never stalls" over
// "subscriber never misses an event", consistent with at-most-once
// delivery.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if !event.matches(sub.filter) {
			continue
		}
		select {
		case sub.ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			b.logger.Warn().Str("subscriber", sub.displayName).Msg("notify: subscriber buffer full, dropping event")
		}
	}
	return nil
}

// Close unsubscribes and closes every remaining subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}
