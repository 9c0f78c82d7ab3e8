package server

import (
	"net/http"
	"time"

	"github.com/mzhao/aapay/internal/models"
)

func (s *Server) handleAdminAuth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "authenticated"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.registry.ListSessions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	created, err := s.registry.CreateSession(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.eventsPublished.Inc()
	writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	s.metrics.eventsPublished.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleSwitchSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	token, err := s.registry.Switch(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "success",
		"session_id": id,
		"token":      token,
	})
}

func (s *Server) handleListPhrases(w http.ResponseWriter, r *http.Request) {
	phrases, err := s.registry.ListPhrases(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if phrases == nil {
		phrases = []*models.SharePhrase{}
	}
	writeJSON(w, http.StatusOK, phrases)
}

func (s *Server) handleCreatePhrase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phrase     string `json:"phrase"`
		ValidFrom  string `json:"valid_from"`
		ValidUntil string `json:"valid_until"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	validFrom, err := time.Parse(time.RFC3339, req.ValidFrom)
	if err != nil {
		writeError(w, badRequest("valid_from must be an RFC 3339 timestamp"))
		return
	}
	validUntil, err := time.Parse(time.RFC3339, req.ValidUntil)
	if err != nil {
		writeError(w, badRequest("valid_until must be an RFC 3339 timestamp"))
		return
	}

	phrase, err := s.registry.CreatePhrase(r.Context(), r.PathValue("id"), req.Phrase, validFrom, validUntil)
	if err != nil {
		writeError(w, err)
		return
	}
	s.metrics.eventsPublished.Inc()
	writeJSON(w, http.StatusOK, phrase)
}

func (s *Server) handleDeletePhrase(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.DeletePhrase(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	s.metrics.eventsPublished.Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
