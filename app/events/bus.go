// Package events is the in-process publish/subscribe channel for feed
// change events. Delivery is at-least-once and best-effort: there is no
// persistence, no replay, and subscribers that join after a publish
// never see it.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Type identifies the kind of change an Event describes.
type Type string

const (
	PostCreated Type = "post.created"
	PostUpdated Type = "post.updated"
	PostDeleted Type = "post.deleted"
)

// Event is an ephemeral change record. It only exists for the duration
// of delivery to currently subscribed channels.
type Event struct {
	Type      Type      `json:"type"`
	PostID    string    `json:"postId"`
	ActorID   string    `json:"actorId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultBufferSize is the per-subscriber queue depth.
const DefaultBufferSize = 16

// Bus fans events out to subscribers. Each subscriber owns a bounded
// queue drained at its own pace; a full queue drops its oldest event so
// a slow consumer never blocks the publisher. The bus holds no entity
// data, only the current subscriber list.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	buffer int
	closed bool
	log    *zap.Logger
}

// NewBus creates a Bus with the given per-subscriber buffer size
// (DefaultBufferSize when <= 0).
func NewBus(buffer int, log *zap.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		subs:   make(map[uint64]chan Event),
		buffer: buffer,
		log:    log,
	}
}

// Subscription is one subscriber's handle on the bus. Receive from C;
// call Cancel exactly once when done (safe to call more than once).
type Subscription struct {
	C      <-chan Event
	id     uint64
	bus    *Bus
	cancel sync.Once
}

// Subscribe registers a new subscriber. Safe to call concurrently with
// Publish; the new subscriber only sees events published after
// registration.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		// A closed bus hands out a nil channel. Receives and select
		// cases on it never fire, so the subscription simply never
		// delivers instead of spraying zero values.
		return &Subscription{bus: b}
	}
	ch := make(chan Event, b.buffer)
	b.nextID++
	id := b.nextID
	b.subs[id] = ch
	return &Subscription{C: ch, id: id, bus: b}
}

// Cancel removes the subscription from the bus. Events already queued
// remain readable from C; no new ones arrive.
func (s *Subscription) Cancel() {
	s.cancel.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
	})
}

// Publish enqueues the event for every current subscriber before
// returning. Subscribers with a full queue lose their oldest queued
// event (drop-oldest policy); the publisher never blocks.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	channels := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		channels = append(channels, ch)
	}
	b.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch <- e:
			continue
		default:
		}
		// Queue full: shed the oldest event and try once more. If
		// another goroutine raced us for the slot, the event is dropped.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- e:
		default:
			b.log.Warn("event dropped for slow subscriber",
				zap.String("type", string(e.Type)),
				zap.String("postId", e.PostID))
		}
	}
}

// SubscriberCount reports the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close removes all subscribers. Publishing to a closed bus is a no-op;
// Subscribe afterwards returns an inert subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[uint64]chan Event)
}
