// Package hub is the broadcast dispatcher: an explicit per-session
// subscription set plus a publish operation, independent of any transport.
// Deltas are delivered FIFO per session; a slow subscriber is dropped rather
// than allowed to stall the rest.
package hub

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/pkg/wire"
)

const defaultBuffer = 64

// Subscriber is one delivery endpoint. Consume Events until it is closed;
// closure means the subscription was dropped (unsubscribe or overflow) and
// the consumer should rejoin via snapshot if it still cares.
type Subscriber struct {
	id        uint64
	sessionID string
	ch        chan wire.Event
}

func (s *Subscriber) Events() <-chan wire.Event { return s.ch }

type Hub struct {
	logger *zap.Logger
	buffer int

	mu       sync.RWMutex
	sessions map[string]map[*Subscriber]struct{}
	nextID   uint64
}

func New(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:   logger,
		buffer:   defaultBuffer,
		sessions: make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new endpoint for a session.
func (h *Hub) Subscribe(sessionID string) *Subscriber {
	sub := &Subscriber{
		id:        atomic.AddUint64(&h.nextID, 1),
		sessionID: sessionID,
		ch:        make(chan wire.Event, h.buffer),
	}
	h.mu.Lock()
	set := h.sessions[sessionID]
	if set == nil {
		set = make(map[*Subscriber]struct{})
		h.sessions[sessionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes an endpoint and closes its channel. Idempotent.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	h.drop(sub)
	h.mu.Unlock()
}

// Publish fans events out to every subscriber of the session, in order.
// Delivery is best-effort per endpoint: a full buffer drops that endpoint
// without blocking the others, and without rolling anything back upstream.
func (h *Hub) Publish(sessionID string, events ...wire.Event) {
	if len(events) == 0 {
		return
	}
	var overflowed []*Subscriber

	h.mu.RLock()
	for sub := range h.sessions[sessionID] {
		ok := true
		for _, evt := range events {
			select {
			case sub.ch <- evt:
			default:
				ok = false
			}
			if !ok {
				break
			}
		}
		if !ok {
			overflowed = append(overflowed, sub)
		}
	}
	h.mu.RUnlock()

	if len(overflowed) > 0 {
		h.mu.Lock()
		for _, sub := range overflowed {
			h.drop(sub)
		}
		h.mu.Unlock()
		h.logger.Warn("hub_subscriber_overflow",
			zap.String("session_id", sessionID),
			zap.Int("dropped", len(overflowed)),
		)
	}
}

// Count reports the live subscriber count for a session.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// drop removes and closes under h.mu. Closing only here keeps the close
// exclusive with in-flight sends, which run under the read lock.
func (h *Hub) drop(sub *Subscriber) {
	set, ok := h.sessions[sub.sessionID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(h.sessions, sub.sessionID)
	}
}
