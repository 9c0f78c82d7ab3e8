// Package events implements the in-memory fan-out of mutation
// notifications to live listeners. Listeners are grouped by scope: one
// scope per session, plus a process-wide admin scope for session and phrase
// lifecycle events.
package events

import (
	"log/slog"
	"sync"

	"github.com/mzhao/aapay/internal/models"
)

// AdminScope is the reserved scope for admin-wide lifecycle events.
// Session scopes are UUIDs, so the name cannot collide.
const AdminScope = "admin"

// subscriberBuffer is the per-listener channel capacity. A listener whose
// buffer is full at publish time is considered dead and pruned.
const subscriberBuffer = 16

// Subscriber is one listener's handle. Events arrive on Events() until the
// subscriber is unsubscribed or its scope is closed, at which point the
// channel is closed.
type Subscriber struct {
	scope string
	ch    chan models.Event
}

// Events returns the receive channel for this subscriber.
func (s *Subscriber) Events() <-chan models.Event {
	return s.ch
}

// Scope returns the scope this subscriber is registered under.
func (s *Subscriber) Scope() string {
	return s.scope
}

// Hub is an owned listener registry with internal synchronization. It is
// passed explicitly to whatever publishes notifications; there is no
// ambient global state. All methods are safe for concurrent use.
type Hub struct {
	mu     sync.Mutex
	scopes map[string]map[*Subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{scopes: make(map[string]map[*Subscriber]struct{})}
}

// Subscribe registers a new listener under the scope.
func (h *Hub) Subscribe(scope string) *Subscriber {
	sub := &Subscriber{
		scope: scope,
		ch:    make(chan models.Event, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.scopes[scope] == nil {
		h.scopes[scope] = make(map[*Subscriber]struct{})
	}
	h.scopes[scope][sub] = struct{}{}
	return sub
}

// Unsubscribe removes a listener immediately and closes its channel.
// Unsubscribing twice is a no-op.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

// Publish delivers the event to every listener of the scope. Delivery never
// blocks: a listener that cannot accept the event is pruned. Delivery
// failures never propagate to the caller.
func (h *Hub) Publish(scope string, event models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.scopes[scope] {
		select {
		case sub.ch <- event:
		default:
			slog.Warn("Pruning slow event listener", "scope", scope)
			h.removeLocked(sub)
		}
	}
}

// CloseScope delivers a final event to every listener of the scope, then
// removes them all and closes their channels. Used when a session is
// deleted so connected listeners learn exactly once that it is gone.
func (h *Hub) CloseScope(scope string, final models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.scopes[scope] {
		select {
		case sub.ch <- final:
		default:
		}
		delete(h.scopes[scope], sub)
		close(sub.ch)
	}
	delete(h.scopes, scope)
}

// ListenerCount reports the number of registered listeners across all
// scopes. Exposed for metrics.
func (h *Hub) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, subs := range h.scopes {
		n += len(subs)
	}
	return n
}

// removeLocked removes a subscriber and closes its channel. Caller holds
// the mutex.
func (h *Hub) removeLocked(sub *Subscriber) {
	subs, ok := h.scopes[sub.scope]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(h.scopes, sub.scope)
	}
}
