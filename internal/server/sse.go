package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mzhao/aapay/internal/auth"
	"github.com/mzhao/aapay/internal/events"
	"github.com/mzhao/aapay/internal/models"
)

// heartbeatInterval keeps the stream alive through intermediaries and lets
// the client detect a dead connection.
const heartbeatInterval = 15 * time.Second

// handleSessionEvents streams the authenticated session's events.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	if claims == nil {
		writeError(w, auth.ErrMissingToken)
		return
	}
	// Reject streams for sessions that no longer exist.
	if _, err := s.registry.GetSession(r.Context(), claims.SessionID); err != nil {
		writeError(w, err)
		return
	}
	s.streamEvents(w, r, claims.SessionID)
}

// handleAdminEvents streams admin-wide session and phrase lifecycle events.
func (s *Server) handleAdminEvents(w http.ResponseWriter, r *http.Request) {
	s.streamEvents(w, r, events.AdminScope)
}

// streamEvents runs one listener's SSE loop: subscribe, send an immediate
// heartbeat so the caller can confirm the channel is live, then forward
// events until the scope closes or the client disconnects, emitting a
// heartbeat whenever the interval elapses with no event.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, scope string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := s.hub.Subscribe(scope)
	defer s.hub.Unsubscribe(sub)
	slog.Debug("Listener connected", "scope", scope)

	if !writeSSE(w, flusher, models.Heartbeat()) {
		return
	}

	timer := time.NewTimer(heartbeatInterval)
	defer timer.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.Debug("Listener disconnected", "scope", scope)
			return

		case event, open := <-sub.Events():
			if !open {
				// Scope closed underneath us (session deleted); the final
				// event was already delivered.
				return
			}
			if !writeSSE(w, flusher, event) {
				return
			}
			resetTimer(timer)

		case <-timer.C:
			if !writeSSE(w, flusher, models.Heartbeat()) {
				return
			}
			timer.Reset(heartbeatInterval)
		}
	}
}

// writeSSE writes one event frame, reporting false when the client is gone.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event models.Event) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", "error", err)
		return true
	}
	if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

// resetTimer drains and restarts the heartbeat timer after an event.
func resetTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(heartbeatInterval)
}
