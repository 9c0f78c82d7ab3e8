// Package session implements the session registry: creation and deletion
// of isolated group workspaces, share phrase management, and resolution of
// each session's ledger store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mzhao/aapay/internal/auth"
	"github.com/mzhao/aapay/internal/events"
	"github.com/mzhao/aapay/internal/models"
	"github.com/mzhao/aapay/internal/storage"
)

var (
	// ErrInvalidSessionName rejects empty or over-long session names.
	ErrInvalidSessionName = errors.New("session name must be 1-10 characters")

	// ErrInvalidPhrase rejects phrase text outside 3-16 alphanumerics.
	ErrInvalidPhrase = errors.New("phrase must be 3-16 letters or digits")
)

var phrasePattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Registry owns the session lifecycle. A session is ACTIVE from creation
// until deleted; deletion is terminal and cascades to the session's share
// phrases, its connected listeners, and its backing store, in that order,
// so the store teardown happens after the record is already gone.
type Registry struct {
	admin   storage.Admin
	ledgers storage.LedgerResolver
	hub     *events.Hub
	tokens  *auth.JWTManager
}

// NewRegistry wires the registry to its collaborators. Admin-wide
// lifecycle events are published on the hub's admin scope.
func NewRegistry(admin storage.Admin, ledgers storage.LedgerResolver, hub *events.Hub, tokens *auth.JWTManager) *Registry {
	return &Registry{
		admin:   admin,
		ledgers: ledgers,
		hub:     hub,
		tokens:  tokens,
	}
}

// CreateSession creates a session with an empty ledger.
func (r *Registry) CreateSession(ctx context.Context, name string) (*models.Session, error) {
	if n := utf8.RuneCountInString(name); n == 0 || n > models.MaxSessionNameLength {
		return nil, ErrInvalidSessionName
	}

	session, err := r.admin.CreateSession(ctx, name)
	if err != nil {
		return nil, err
	}

	// Initialize the ledger store eagerly so the session is usable the
	// moment creation returns.
	if _, err := r.ledgers.Resolve(session.ID); err != nil {
		return nil, fmt.Errorf("failed to initialize session ledger: %w", err)
	}

	slog.Info("Session created", "session_id", session.ID, "name", session.Name)
	r.hub.Publish(events.AdminScope, models.Event{
		Type: models.AdminSessionCreated,
		Data: map[string]any{"session": session},
	})
	return session, nil
}

// GetSession retrieves a session by ID.
func (r *Registry) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return r.admin.GetSession(ctx, id)
}

// ListSessions returns all sessions newest-first.
func (r *Registry) ListSessions(ctx context.Context) ([]*models.Session, error) {
	return r.admin.ListSessions(ctx)
}

// DeleteSession removes a session: the record and its phrases go first,
// connected listeners are told exactly once that the session is gone, and
// the backing store is torn down last. A concurrent second delete of the
// same ID reports storage.ErrNotFound.
func (r *Registry) DeleteSession(ctx context.Context, id string) error {
	if err := r.admin.DeleteSession(ctx, id); err != nil {
		return err
	}

	r.hub.CloseScope(id, models.Event{
		Type:    models.EventSessionGone,
		Message: "This session has been deleted",
	})

	if err := r.ledgers.Drop(id); err != nil {
		return fmt.Errorf("failed to tear down session store: %w", err)
	}

	slog.Info("Session deleted", "session_id", id)
	r.hub.Publish(events.AdminScope, models.Event{
		Type: models.AdminSessionDeleted,
		Data: map[string]any{"session_id": id},
	})
	return nil
}

// Switch issues an admin-scoped token bound to the session.
func (r *Registry) Switch(ctx context.Context, id string) (string, error) {
	if _, err := r.admin.GetSession(ctx, id); err != nil {
		return "", err
	}
	token, err := r.tokens.GenerateAdmin(id)
	if err != nil {
		return "", fmt.Errorf("failed to issue admin token: %w", err)
	}
	return token, nil
}

// Ledger resolves the ledger store for a session, failing with
// storage.ErrNotFound once the session is deleted even if a caller still
// holds an unexpired token for it.
func (r *Registry) Ledger(ctx context.Context, sessionID string) (storage.Ledger, error) {
	if _, err := r.admin.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return r.ledgers.Resolve(sessionID)
}

// CreatePhrase creates a share phrase for the session and mints the
// user-scoped token that redemption will hand out. The token expires with
// the phrase's validity window.
func (r *Registry) CreatePhrase(ctx context.Context, sessionID, text string, validFrom, validUntil time.Time) (*models.SharePhrase, error) {
	if n := len(text); n < models.MinPhraseLength || n > models.MaxPhraseLength || !phrasePattern.MatchString(text) {
		return nil, ErrInvalidPhrase
	}
	if !validUntil.After(validFrom) {
		return nil, storage.ErrInvalidWindow
	}

	phrase := &models.SharePhrase{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Phrase:     text,
		ValidFrom:  validFrom.UTC(),
		ValidUntil: validUntil.UTC(),
	}

	token, err := r.tokens.GenerateUser(sessionID, phrase.ID, validUntil)
	if err != nil {
		return nil, fmt.Errorf("failed to issue user token: %w", err)
	}
	phrase.Token = token

	if err := r.admin.CreatePhrase(ctx, phrase); err != nil {
		return nil, err
	}

	slog.Info("Phrase created", "phrase_id", phrase.ID, "session_id", sessionID)
	r.hub.Publish(events.AdminScope, models.Event{
		Type: models.AdminPhraseCreated,
		Data: map[string]any{"phrase": phrase, "session_id": sessionID},
	})
	return phrase, nil
}

// ListPhrases returns a session's phrases newest-first.
func (r *Registry) ListPhrases(ctx context.Context, sessionID string) ([]*models.SharePhrase, error) {
	return r.admin.ListPhrases(ctx, sessionID)
}

// DeletePhrase revokes a phrase.
func (r *Registry) DeletePhrase(ctx context.Context, id string) error {
	phrase, err := r.admin.GetPhrase(ctx, id)
	if err != nil {
		return err
	}
	if err := r.admin.DeletePhrase(ctx, id); err != nil {
		return err
	}

	slog.Info("Phrase deleted", "phrase_id", id, "session_id", phrase.SessionID)
	r.hub.Publish(events.AdminScope, models.Event{
		Type: models.AdminPhraseDeleted,
		Data: map[string]any{"phrase_id": id, "session_id": phrase.SessionID},
	})
	return nil
}

// Redeem exchanges phrase text for the stored user token. A phrase that is
// unknown, expired, or not yet valid reports storage.ErrNotFound; the
// caller cannot distinguish which.
func (r *Registry) Redeem(ctx context.Context, text string) (*models.SharePhrase, error) {
	return r.admin.FindRedeemablePhrase(ctx, text, time.Now())
}
