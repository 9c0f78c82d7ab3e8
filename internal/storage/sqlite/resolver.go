package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mzhao/aapay/internal/storage"
)

// Ensure Ledgers implements storage.LedgerResolver
var _ storage.LedgerResolver = (*Ledgers)(nil)

// Ledgers resolves the ledger store backing a session, keeping one open
// handle per session. Stores for different sessions are fully independent;
// the mutex only guards the handle map, never a store operation.
type Ledgers struct {
	dir string

	mu   sync.Mutex
	open map[string]*LedgerStore
}

// NewLedgers creates a resolver that places each session's database file
// under dir.
func NewLedgers(dir string) *Ledgers {
	return &Ledgers{
		dir:  dir,
		open: make(map[string]*LedgerStore),
	}
}

// Path returns the database file path for a session.
func (l *Ledgers) Path(sessionID string) string {
	return filepath.Join(l.dir, sessionID+".db")
}

// Resolve returns the ledger store for the session, opening and caching it
// on first use.
func (l *Ledgers) Resolve(sessionID string) (storage.Ledger, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if store, ok := l.open[sessionID]; ok {
		return store, nil
	}
	store, err := OpenLedger(l.Path(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger for session %s: %w", sessionID, err)
	}
	l.open[sessionID] = store
	return store, nil
}

// Drop closes the session's ledger store if open and removes its database
// file. Dropping a session that was never opened only removes the file.
func (l *Ledgers) Drop(sessionID string) error {
	l.mu.Lock()
	store, ok := l.open[sessionID]
	delete(l.open, sessionID)
	l.mu.Unlock()

	if ok {
		if err := store.Close(); err != nil {
			return fmt.Errorf("failed to close ledger for session %s: %w", sessionID, err)
		}
	}
	if err := os.Remove(l.Path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove ledger file for session %s: %w", sessionID, err)
	}
	return nil
}

// CloseAll closes every open ledger store. Used on shutdown.
func (l *Ledgers) CloseAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for id, store := range l.open {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close ledger for session %s: %w", id, err)
		}
		delete(l.open, id)
	}
	return firstErr
}
