package models

// MaxSessionNameLength bounds session display names.
const MaxSessionNameLength = 10

// Session represents an isolated group workspace. Each session owns exactly
// one ledger (its own member and expense collections); deleting a session
// cascades to its share phrases and destroys the backing ledger.
type Session struct {
	// ID is the unique identifier for the session (UUID format).
	ID string `json:"id"`

	// Name is the display name, unique across all sessions, at most
	// MaxSessionNameLength characters.
	Name string `json:"name"`

	// CreatedAt is the Unix timestamp when the session was created.
	CreatedAt int64 `json:"created_at"`
}
