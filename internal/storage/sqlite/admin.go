package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mzhao/aapay/internal/models"
	"github.com/mzhao/aapay/internal/storage"
)

// Ensure AdminStore implements storage.Admin
var _ storage.Admin = (*AdminStore)(nil)

// AdminStore implements storage.Admin using a single SQLite database for
// the session list and the share phrases.
type AdminStore struct {
	db *sql.DB
}

// OpenAdmin opens (or creates) the admin database at the given path and
// runs migrations.
func OpenAdmin(dbPath string) (*AdminStore, error) {
	db, err := open(dbPath, adminSchema)
	if err != nil {
		return nil, err
	}
	return &AdminStore{db: db}, nil
}

// Close closes the database connection.
func (s *AdminStore) Close() error {
	return s.db.Close()
}

// CreateSession persists a session after checking name uniqueness.
func (s *AdminStore) CreateSession(ctx context.Context, name string) (*models.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, "SELECT id FROM sessions WHERE name = ?", name).Scan(&existing)
	if err == nil {
		return nil, storage.ErrDuplicateName
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check session name: %w", err)
	}

	session := &models.Session{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().Unix(),
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO sessions (id, name, created_at) VALUES (?, ?, ?)",
		session.ID, session.Name, session.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session by ID.
func (s *AdminStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session := &models.Session{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM sessions WHERE id = ?", id).
		Scan(&session.ID, &session.Name, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// ListSessions returns all sessions newest-first.
func (s *AdminStore) ListSessions(ctx context.Context) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM sessions ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session := &models.Session{}
		if err := rows.Scan(&session.ID, &session.Name, &session.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes the session record; its share phrases cascade in
// the same transaction. A second delete of the same ID reports ErrNotFound.
func (s *AdminStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreatePhrase persists a share phrase. Expired rows with the same text are
// purged inside the transaction; a surviving same-text row means the phrase
// is still in use.
func (s *AdminStore) CreatePhrase(ctx context.Context, phrase *models.SharePhrase) error {
	if phrase.ID == "" {
		phrase.ID = uuid.New().String()
	}
	if phrase.CreatedAt == 0 {
		phrase.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var sessionID string
	err = tx.QueryRowContext(ctx, "SELECT id FROM sessions WHERE id = ?", phrase.SessionID).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}

	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx,
		"DELETE FROM share_phrases WHERE phrase = ? AND valid_until <= ?", phrase.Phrase, now)
	if err != nil {
		return fmt.Errorf("failed to purge expired phrases: %w", err)
	}

	var inUse string
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM share_phrases WHERE phrase = ? AND valid_until > ?", phrase.Phrase, now).Scan(&inUse)
	if err == nil {
		return storage.ErrPhraseInUse
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check phrase: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO share_phrases (id, session_id, phrase, token, valid_from, valid_until, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		phrase.ID, phrase.SessionID, phrase.Phrase, phrase.Token,
		phrase.ValidFrom.Unix(), phrase.ValidUntil.Unix(), phrase.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert phrase: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListPhrases returns a session's phrases newest-first.
func (s *AdminStore) ListPhrases(ctx context.Context, sessionID string) ([]*models.SharePhrase, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, phrase, token, valid_from, valid_until, created_at
		 FROM share_phrases WHERE session_id = ? ORDER BY created_at DESC, rowid DESC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list phrases: %w", err)
	}
	defer rows.Close()

	var phrases []*models.SharePhrase
	for rows.Next() {
		phrase, err := scanPhrase(rows)
		if err != nil {
			return nil, err
		}
		phrases = append(phrases, phrase)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate phrases: %w", err)
	}
	return phrases, nil
}

// DeletePhrase removes a phrase by ID.
func (s *AdminStore) DeletePhrase(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM share_phrases WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete phrase: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetPhrase retrieves a phrase by ID.
func (s *AdminStore) GetPhrase(ctx context.Context, id string) (*models.SharePhrase, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, phrase, token, valid_from, valid_until, created_at
		 FROM share_phrases WHERE id = ?`, id)
	phrase, err := scanPhrase(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return phrase, nil
}

// FindRedeemablePhrase returns the phrase with the given text whose window
// contains now.
func (s *AdminStore) FindRedeemablePhrase(ctx context.Context, text string, now time.Time) (*models.SharePhrase, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, phrase, token, valid_from, valid_until, created_at
		 FROM share_phrases WHERE phrase = ? AND valid_from <= ? AND valid_until > ?`,
		text, now.Unix(), now.Unix())
	phrase, err := scanPhrase(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return phrase, nil
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPhrase(row scanner) (*models.SharePhrase, error) {
	phrase := &models.SharePhrase{}
	var validFrom, validUntil int64
	err := row.Scan(&phrase.ID, &phrase.SessionID, &phrase.Phrase, &phrase.Token,
		&validFrom, &validUntil, &phrase.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, sql.ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan phrase: %w", err)
	}
	phrase.ValidFrom = time.Unix(validFrom, 0).UTC()
	phrase.ValidUntil = time.Unix(validUntil, 0).UTC()
	return phrase, nil
}
