// Package broadcast carries catalog change notifications between the
// backend, its event stream clients and co-mounted views. Every receiver
// reacts the same way, by reloading full state, so delivery is best effort
// and duplicates are harmless.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Type names a change.
type Type string

const (
	JerseysSaved     Type = "jerseys.saved"
	CategoryCreated  Type = "category.created"
	CategoryUpdated  Type = "category.updated"
	CategoryDeleted  Type = "category.deleted"
	TagCreated       Type = "tag.created"
	TagUpdated       Type = "tag.updated"
	TagDeleted       Type = "tag.deleted"
	CatalogChanged   Type = "catalog.changed"
	CatalogCleaned   Type = "catalog.cleaned"
	RevisionRestored Type = "revision.restored"
	ConfigChanged    Type = "config.changed"
)

// Message is one change notification.
type Message struct {
	ID      string    `json:"id"`
	Type    Type      `json:"type"`
	Origin  string    `json:"origin"`
	Subject string    `json:"subject,omitempty"`
	At      time.Time `json:"at"`
}

// Relay forwards locally published messages to other processes.
type Relay interface {
	Publish(ctx context.Context, m Message) error
}

// DefaultBuffer is the subscription buffer used when Subscribe gets zero.
const DefaultBuffer = 8

// Hub fans messages out to subscribers. It is safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	relay  Relay
	closed bool

	origin string
	idGen  func() string
	now    func() time.Time
	log    *zap.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithOrigin sets the origin stamped on published messages. The default is
// a random UUID per hub.
func WithOrigin(origin string) Option {
	return func(h *Hub) { h.origin = origin }
}

// WithLogger sets the hub logger.
func WithLogger(log *zap.Logger) Option {
	return func(h *Hub) { h.log = log }
}

// WithClock overrides the message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// NewHub returns an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subs:   make(map[*Subscription]struct{}),
		origin: uuid.NewString(),
		idGen:  func() string { return ulid.Make().String() },
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Origin identifies this hub in relayed messages.
func (h *Hub) Origin() string { return h.origin }

// SetRelay attaches a relay; published messages are forwarded to it after
// local delivery.
func (h *Hub) SetRelay(r Relay) {
	h.mu.Lock()
	h.relay = r
	h.mu.Unlock()
}

// Publish builds a message, delivers it locally and forwards it to the relay.
func (h *Hub) Publish(ctx context.Context, t Type, subject string) Message {
	m := Message{
		ID:      h.idGen(),
		Type:    t,
		Origin:  h.origin,
		Subject: subject,
		At:      h.now().UTC(),
	}
	h.Deliver(m)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil {
		if err := relay.Publish(ctx, m); err != nil {
			h.log.Warn("relay publish failed", zap.String("type", string(t)), zap.Error(err))
		}
	}
	return m
}

// Deliver hands m to every local subscriber without relaying it. A
// subscriber whose buffer is full already has a reload pending, so the
// message is dropped for that subscriber.
func (h *Hub) Deliver(m Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for s := range h.subs {
		select {
		case s.ch <- m:
		default:
			h.log.Debug("subscriber busy, coalescing", zap.String("type", string(m.Type)))
		}
	}
}

// Subscribe registers a subscriber with the given buffer size.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Message, buffer)
	s := &Subscription{C: ch, ch: ch, hub: h}
	h.mu.Lock()
	if h.closed {
		close(ch)
	} else {
		h.subs[s] = struct{}{}
	}
	h.mu.Unlock()
	return s
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscription. Later publishes are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
}

// Subscription receives messages on C until closed.
type Subscription struct {
	C <-chan Message

	ch  chan Message
	hub *Hub
}

// Close unregisters the subscription and closes C. It is safe to call more
// than once and after the hub is closed.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}
