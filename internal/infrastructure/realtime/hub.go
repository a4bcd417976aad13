package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Topic names events fanned out to live subscribers
type Topic string

const (
	TopicStatus  Topic = "status"
	TopicQR      Topic = "qr"
	TopicMessage Topic = "message"
)

// Event is a single fanout payload scoped to a tenant
type Event struct {
	Topic     Topic          `json:"topic"`
	TenantID  uuid.UUID      `json:"tenant_id"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// Subscription is a live subscriber's receive side. Events arrive on C in
// publish order for the subscribed topic; the channel is closed by Close.
type Subscription struct {
	C chan Event

	hub      *Hub
	key      subKey
	id       uint64
	closeOne sync.Once
}

// Close removes the subscription from the hub and closes C.
// Safe to call multiple times.
func (s *Subscription) Close() {
	s.closeOne.Do(func() {
		s.hub.remove(s)
	})
}

type subKey struct {
	tenantID uuid.UUID
	topic    Topic
}

// Hub fans events out to per-tenant, per-topic subscribers.
// Delivery is at-most-once with no replay: a subscriber whose buffer is
// full has that event dropped rather than blocking the publisher.
type Hub struct {
	mu      sync.RWMutex
	subs    map[subKey]map[uint64]*Subscription
	nextID  uint64
	bufSize int
	closed  bool
	logger  *zap.Logger
	dropped atomic.Uint64
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithHubLogger sets the hub logger
func WithHubLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithBufferSize sets the per-subscriber channel buffer
func WithBufferSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.bufSize = n
		}
	}
}

// NewHub creates a new fanout hub
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:    make(map[subKey]map[uint64]*Subscription),
		bufSize: 64,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a subscriber for a tenant's topic.
// Returns nil if the hub has been shut down.
func (h *Hub) Subscribe(tenantID uuid.UUID, topic Topic) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	key := subKey{tenantID: tenantID, topic: topic}
	h.nextID++
	sub := &Subscription{
		C:   make(chan Event, h.bufSize),
		hub: h,
		key: key,
		id:  h.nextID,
	}

	if h.subs[key] == nil {
		h.subs[key] = make(map[uint64]*Subscription)
	}
	h.subs[key][sub.id] = sub

	return sub
}

// Publish delivers an event to all current subscribers of the tenant's topic.
// Publishing to a topic with no subscribers is a no-op.
func (h *Hub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}

	key := subKey{tenantID: event.TenantID, topic: event.Topic}
	for _, sub := range h.subs[key] {
		select {
		case sub.C <- event:
		default:
			// Slow subscriber: drop for this subscriber only. Publish holds
			// the read lock, so the counter must be atomic.
			h.dropped.Add(1)
			h.logger.Debug("dropping event for slow subscriber",
				zap.String("tenant_id", event.TenantID.String()),
				zap.String("topic", string(event.Topic)),
			)
		}
	}
}

// Dropped returns the total number of events dropped for slow subscribers
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// SubscriberCount returns the number of subscribers for a tenant's topic
func (h *Hub) SubscriberCount(tenantID uuid.UUID, topic Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[subKey{tenantID: tenantID, topic: topic}])
}

// Shutdown closes all subscriptions and rejects further subscribes
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for key, subs := range h.subs {
		for id, sub := range subs {
			close(sub.C)
			delete(subs, id)
		}
		delete(h.subs, key)
	}
}

// remove is called from Subscription.Close. The channel is closed under the
// write lock so Publish, which sends under the read lock, can never hit a
// closed channel.
func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	subs, ok := h.subs[sub.key]
	if !ok {
		return
	}
	if _, ok := subs[sub.id]; !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(h.subs, sub.key)
	}
	close(sub.C)
}
