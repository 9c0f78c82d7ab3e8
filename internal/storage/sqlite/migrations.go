package sqlite

import "database/sql"

// adminSchema holds the global state: the session list and the share
// phrases. Phrase rows are owned by their session and cascade on delete.
const adminSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS share_phrases (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    phrase TEXT NOT NULL,
    token TEXT NOT NULL,
    valid_from INTEGER NOT NULL,
    valid_until INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_phrases_session ON share_phrases(session_id);
CREATE INDEX IF NOT EXISTS idx_phrases_phrase ON share_phrases(phrase);
`

// ledgerSchema is the per-session schema. Each session gets its own
// database file, so the tables carry no session column; member insertion
// order is the implicit rowid.
const ledgerSchema = `
CREATE TABLE IF NOT EXISTS members (
    id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    avatar TEXT NOT NULL DEFAULT 'default',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS expenses (
    id TEXT PRIMARY KEY,
    description TEXT NOT NULL,
    payer_id TEXT NOT NULL,
    amount REAL NOT NULL,
    date TEXT NOT NULL,
    split_method TEXT NOT NULL DEFAULT 'average',
    created_at INTEGER NOT NULL,
    FOREIGN KEY (payer_id) REFERENCES members(id)
);

CREATE TABLE IF NOT EXISTS expense_participants (
    expense_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    PRIMARY KEY (expense_id, member_id),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE,
    FOREIGN KEY (member_id) REFERENCES members(id)
);

CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(date);
CREATE INDEX IF NOT EXISTS idx_expenses_payer ON expenses(payer_id);
CREATE INDEX IF NOT EXISTS idx_participants_expense ON expense_participants(expense_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB, schema string) error {
	_, err := db.Exec(schema)
	return err
}
