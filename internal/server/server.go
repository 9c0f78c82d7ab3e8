// Package server exposes the ledger over JSON HTTP with SSE push channels.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/mzhao/aapay/internal/auth"
	"github.com/mzhao/aapay/internal/events"
	"github.com/mzhao/aapay/internal/models"
	"github.com/mzhao/aapay/internal/session"
	"github.com/mzhao/aapay/internal/storage"
)

// Server holds the request layer's collaborators.
type Server struct {
	registry *session.Registry
	hub      *events.Hub
	tokens   *auth.JWTManager
	guard    *auth.AdminGuard
	metrics  *metrics
	promReg  *prometheus.Registry

	// join rate limiting, per remote address
	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// New creates the server and registers its metrics on reg.
func New(registry *session.Registry, hub *events.Hub, tokens *auth.JWTManager, guard *auth.AdminGuard, reg *prometheus.Registry) *Server {
	return &Server{
		registry: registry,
		hub:      hub,
		tokens:   tokens,
		guard:    guard,
		metrics:  newMetrics(reg, hub),
		promReg:  reg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Handler builds the full HTTP handler: routes wrapped in metrics, logging
// and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Session-scoped API (bearer token)
	mux.HandleFunc("GET /api/users", s.requireSession(s.handleListMembers))
	mux.HandleFunc("POST /api/users", s.requireSession(s.handleAddMember))
	mux.HandleFunc("PUT /api/users/{id}", s.requireSession(s.handleUpdateMember))
	mux.HandleFunc("DELETE /api/users/{id}", s.requireSession(s.handleRemoveMember))
	mux.HandleFunc("GET /api/expenses", s.requireSession(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.requireSession(s.handleAddExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.requireSession(s.handleRemoveExpense))
	mux.HandleFunc("GET /api/debts", s.requireSession(s.handleDebts))
	mux.HandleFunc("GET /api/balances", s.requireSession(s.handleBalances))
	mux.HandleFunc("GET /api/summary", s.requireSession(s.handleSummary))
	mux.HandleFunc("GET /api/events", s.requireSession(s.handleSessionEvents))

	// Phrase redemption (pre-auth, rate limited)
	mux.HandleFunc("POST /api/join", s.handleJoin)

	// Admin surface
	mux.HandleFunc("GET /admin/auth", s.requireAdmin(s.handleAdminAuth))
	mux.HandleFunc("GET /admin/sessions", s.requireAdmin(s.handleListSessions))
	mux.HandleFunc("POST /admin/sessions", s.requireAdmin(s.handleCreateSession))
	mux.HandleFunc("DELETE /admin/sessions/{id}", s.requireAdmin(s.handleDeleteSession))
	mux.HandleFunc("POST /admin/sessions/{id}/switch", s.requireAdmin(s.handleSwitchSession))
	mux.HandleFunc("GET /admin/sessions/{id}/phrases", s.requireAdmin(s.handleListPhrases))
	mux.HandleFunc("POST /admin/sessions/{id}/phrases", s.requireAdmin(s.handleCreatePhrase))
	mux.HandleFunc("DELETE /admin/phrases/{id}", s.requireAdmin(s.handleDeletePhrase))
	mux.HandleFunc("GET /admin/events", s.requireAdmin(s.handleAdminEvents))

	mux.Handle("GET /metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))

	return loggingMiddleware(corsMiddleware(s.metrics.instrument(mux)))
}

// publish fans an event out to one scope and counts it.
func (s *Server) publish(scope string, event models.Event) {
	s.hub.Publish(scope, event)
	s.metrics.eventsPublished.Inc()
}

// ledger resolves the ledger for the authenticated session.
func (s *Server) ledger(r *http.Request) (storage.Ledger, *auth.Claims, error) {
	claims := ClaimsFrom(r.Context())
	if claims == nil {
		return nil, nil, auth.ErrMissingToken
	}
	ledger, err := s.registry.Ledger(r.Context(), claims.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return ledger, claims, nil
}

// validationError marks a request-shape problem reported as 400.
type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func badRequest(msg string) error { return &validationError{msg: msg} }

// writeJSON serializes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps an error to its status. Validation and uniqueness
// failures carry their message; anything unrecognized is an internal
// storage failure reported generically.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"

	var invalid *validationError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, storage.ErrDuplicateName),
		errors.Is(err, storage.ErrCapacityExceeded),
		errors.Is(err, storage.ErrReferencedByExpense),
		errors.Is(err, storage.ErrEmptyParticipants),
		errors.Is(err, storage.ErrInvalidAmount),
		errors.Is(err, storage.ErrInvalidWindow),
		errors.Is(err, storage.ErrPhraseInUse),
		errors.Is(err, session.ErrInvalidSessionName),
		errors.Is(err, session.ErrInvalidPhrase):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.As(err, &invalid):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "unauthenticated or session expired"
	default:
		slog.Error("Internal error", "error", err)
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON parses a request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body")
	}
	return nil
}
