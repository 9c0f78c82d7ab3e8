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

// Ensure LedgerStore implements storage.Ledger
var _ storage.Ledger = (*LedgerStore)(nil)

// LedgerStore implements storage.Ledger for one session, backed by that
// session's own SQLite file.
type LedgerStore struct {
	db *sql.DB
}

// OpenLedger opens (or creates) the ledger database at the given path and
// runs migrations.
func OpenLedger(dbPath string) (*LedgerStore, error) {
	db, err := open(dbPath, ledgerSchema)
	if err != nil {
		return nil, err
	}
	return &LedgerStore{db: db}, nil
}

// Close closes the database connection.
func (s *LedgerStore) Close() error {
	return s.db.Close()
}

// AddMember creates a member, enforcing the member cap and per-session name
// uniqueness before any write.
func (s *LedgerStore) AddMember(ctx context.Context, name, avatar string) (*models.Member, error) {
	if avatar == "" {
		avatar = models.DefaultAvatar
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM members").Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}
	if count >= models.MaxMembers {
		return nil, storage.ErrCapacityExceeded
	}

	var existing string
	err = tx.QueryRowContext(ctx, "SELECT id FROM members WHERE name = ?", name).Scan(&existing)
	if err == nil {
		return nil, storage.ErrDuplicateName
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check member name: %w", err)
	}

	member := &models.Member{
		ID:     uuid.New().String(),
		Name:   name,
		Avatar: avatar,
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO members (id, name, avatar, created_at) VALUES (?, ?, ?, ?)",
		member.ID, member.Name, member.Avatar, time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return member, nil
}

// RemoveMember deletes a member unless any expense references them as payer
// or participant. Both roles are checked before the delete.
func (s *LedgerStore) RemoveMember(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists string
	err = tx.QueryRowContext(ctx, "SELECT id FROM members WHERE id = ?", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check member: %w", err)
	}

	var referenced string
	err = tx.QueryRowContext(ctx, "SELECT id FROM expenses WHERE payer_id = ? LIMIT 1", id).Scan(&referenced)
	if err == nil {
		return storage.ErrReferencedByExpense
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check payer references: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		"SELECT expense_id FROM expense_participants WHERE member_id = ? LIMIT 1", id).Scan(&referenced)
	if err == nil {
		return storage.ErrReferencedByExpense
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check participant references: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM members WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateMember renames a member and optionally replaces the avatar; an
// empty avatar keeps the current one.
func (s *LedgerStore) UpdateMember(ctx context.Context, id, name, avatar string) (*models.Member, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current models.Member
	err = tx.QueryRowContext(ctx, "SELECT id, name, avatar FROM members WHERE id = ?", id).
		Scan(&current.ID, &current.Name, &current.Avatar)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	var other string
	err = tx.QueryRowContext(ctx, "SELECT id FROM members WHERE name = ? AND id != ?", name, id).Scan(&other)
	if err == nil {
		return nil, storage.ErrDuplicateName
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check member name: %w", err)
	}

	if avatar == "" {
		avatar = current.Avatar
	}
	_, err = tx.ExecContext(ctx, "UPDATE members SET name = ?, avatar = ? WHERE id = ?", name, avatar, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &models.Member{ID: id, Name: name, Avatar: avatar}, nil
}

// ListMembers returns all members in insertion order.
func (s *LedgerStore) ListMembers(ctx context.Context) ([]*models.Member, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, avatar FROM members ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		m := &models.Member{}
		if err := rows.Scan(&m.ID, &m.Name, &m.Avatar); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// AddExpense persists an expense and its participant rows in one
// transaction. Payer and participant IDs are deliberately not checked
// against the members table; the schema's foreign keys are the only guard.
func (s *LedgerStore) AddExpense(ctx context.Context, expense *models.Expense) error {
	if len(expense.Participants) == 0 {
		return storage.ErrEmptyParticipants
	}

	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if expense.SplitMethod == "" {
		expense.SplitMethod = models.SplitMethodAverage
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, description, payer_id, amount, date, split_method, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.Description, expense.PayerID, expense.Amount,
		expense.Date, expense.SplitMethod, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for _, memberID := range expense.Participants {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO expense_participants (expense_id, member_id) VALUES (?, ?)",
			expense.ID, memberID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RemoveExpense deletes an expense; the participant rows cascade within the
// same transaction.
func (s *LedgerStore) RemoveExpense(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists string
	err = tx.QueryRowContext(ctx, "SELECT id FROM expenses WHERE id = ?", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check expense: %w", err)
	}

	// ON DELETE CASCADE removes the expense_participants rows.
	if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListExpenses returns expenses newest-first, each with its resolved
// participant set. A non-empty date restricts to that exact calendar date.
func (s *LedgerStore) ListExpenses(ctx context.Context, date string) ([]*models.Expense, error) {
	query := `SELECT id, description, payer_id, amount, date, split_method, created_at
		 FROM expenses ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if date != "" {
		query = `SELECT id, description, payer_id, amount, date, split_method, created_at
			 FROM expenses WHERE date = ? ORDER BY created_at DESC, rowid DESC`
		args = append(args, date)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		e := &models.Expense{}
		if err := rows.Scan(&e.ID, &e.Description, &e.PayerID, &e.Amount,
			&e.Date, &e.SplitMethod, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for _, e := range expenses {
		participants, err := s.expenseParticipants(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		e.Participants = participants
	}
	return expenses, nil
}

func (s *LedgerStore) expenseParticipants(ctx context.Context, expenseID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT member_id FROM expense_participants WHERE expense_id = ? ORDER BY rowid", expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	var participants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return participants, nil
}

// DailySummary returns total paid per date per payer.
func (s *LedgerStore) DailySummary(ctx context.Context) (map[string]map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT date, payer_id, SUM(amount) FROM expenses GROUP BY date, payer_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query summary: %w", err)
	}
	defer rows.Close()

	summary := make(map[string]map[string]float64)
	for rows.Next() {
		var date, payerID string
		var total float64
		if err := rows.Scan(&date, &payerID, &total); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		if summary[date] == nil {
			summary[date] = make(map[string]float64)
		}
		summary[date][payerID] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate summary: %w", err)
	}
	return summary, nil
}
