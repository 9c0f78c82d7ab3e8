// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"time"

	"github.com/mzhao/aapay/internal/models"
)

// Ledger defines the storage operations for one session's isolated member
// and expense collections. Every mutating operation is atomic: either the
// full set of writes (record plus associations) commits or none do.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL,
// etc.) without changing the service layer.
type Ledger interface {
	// AddMember creates a member with a fresh ID. An empty avatar gets
	// models.DefaultAvatar. Fails with ErrCapacityExceeded at the member cap
	// and ErrDuplicateName if the name is taken within the session.
	AddMember(ctx context.Context, name, avatar string) (*models.Member, error)

	// RemoveMember deletes a member. Fails with ErrNotFound if absent and
	// ErrReferencedByExpense if the member appears in any expense as payer
	// or participant.
	RemoveMember(ctx context.Context, id string) error

	// UpdateMember renames a member and optionally replaces the avatar
	// (empty avatar keeps the current one). Fails with ErrNotFound and
	// ErrDuplicateName.
	UpdateMember(ctx context.Context, id, name, avatar string) (*models.Member, error)

	// ListMembers returns all members in insertion order.
	ListMembers(ctx context.Context) ([]*models.Member, error)

	// AddExpense persists an expense and its participant associations in one
	// transaction, populating ID and CreatedAt. Fails with
	// ErrEmptyParticipants if the participant set is empty. Payer and
	// participant IDs are not checked for existence here; the schema's
	// foreign keys are the only guard.
	AddExpense(ctx context.Context, expense *models.Expense) error

	// RemoveExpense deletes an expense and cascades its participant
	// associations atomically. Fails with ErrNotFound.
	RemoveExpense(ctx context.Context, id string) error

	// ListExpenses returns expenses ordered by creation descending, each
	// annotated with its participant set. A non-empty date filters to that
	// exact calendar date.
	ListExpenses(ctx context.Context, date string) ([]*models.Expense, error)

	// DailySummary returns total paid per date per payer.
	DailySummary(ctx context.Context) (map[string]map[string]float64, error)

	// Close releases any resources held by the ledger.
	Close() error
}

// Admin defines the storage operations for the global session list and the
// share phrases. Phrase text uniqueness is global across sessions.
type Admin interface {
	// CreateSession persists a session, populating ID and CreatedAt. Fails
	// with ErrDuplicateName.
	CreateSession(ctx context.Context, name string) (*models.Session, error)

	// GetSession retrieves a session by ID. Fails with ErrNotFound.
	GetSession(ctx context.Context, id string) (*models.Session, error)

	// ListSessions returns all sessions ordered by creation descending.
	ListSessions(ctx context.Context) ([]*models.Session, error)

	// DeleteSession removes the session record and cascades its share
	// phrases in one transaction. Fails with ErrNotFound, also on a second
	// concurrent delete of the same ID.
	DeleteSession(ctx context.Context, id string) error

	// CreatePhrase persists a share phrase, populating ID and CreatedAt.
	// Expired rows with the same text are purged first; an unexpired
	// same-text row fails the call with ErrPhraseInUse. The phrase's session
	// must exist (ErrNotFound).
	CreatePhrase(ctx context.Context, phrase *models.SharePhrase) error

	// ListPhrases returns a session's phrases ordered by creation
	// descending. Fails with ErrNotFound if the session is absent.
	ListPhrases(ctx context.Context, sessionID string) ([]*models.SharePhrase, error)

	// GetPhrase retrieves a phrase by ID. Fails with ErrNotFound.
	GetPhrase(ctx context.Context, id string) (*models.SharePhrase, error)

	// DeletePhrase removes a phrase by ID. Fails with ErrNotFound.
	DeletePhrase(ctx context.Context, id string) error

	// FindRedeemablePhrase returns the phrase with the given text whose
	// window contains now. Fails with ErrNotFound otherwise.
	FindRedeemablePhrase(ctx context.Context, text string, now time.Time) (*models.SharePhrase, error)

	// Close releases any resources held by the store.
	Close() error
}

// LedgerResolver resolves the isolated ledger backing a session and owns
// its teardown. Implementations cache open handles keyed by session ID.
type LedgerResolver interface {
	// Resolve returns the session's ledger, opening it on first use.
	Resolve(sessionID string) (Ledger, error)

	// Drop closes the session's ledger and destroys its backing storage.
	Drop(sessionID string) error
}
