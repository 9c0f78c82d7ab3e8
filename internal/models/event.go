package models

// Session-scoped event types and actions pushed to connected clients.
const (
	EventUserUpdate    = "USER_UPDATE"
	EventExpenseUpdate = "EXPENSE_UPDATE"
	EventSessionGone   = "SESSION_DELETED"
	EventHeartbeat     = "heartbeat"

	ActionUserAdd       = "user_add"
	ActionUserUpdate    = "user_update"
	ActionUserDelete    = "user_delete"
	ActionExpenseAdd    = "expense_add"
	ActionExpenseDelete = "expense_delete"
)

// Admin-wide event types covering session and phrase lifecycle.
const (
	AdminSessionCreated = "SESSION_CREATED"
	AdminSessionDeleted = "SESSION_DELETED"
	AdminPhraseCreated  = "PHRASE_CREATED"
	AdminPhraseDeleted  = "PHRASE_DELETED"
)

// Event is the payload fanned out to the listeners of one session after a
// successful mutation.
type Event struct {
	// Type is the event category (EventUserUpdate, EventExpenseUpdate, ...).
	Type string `json:"type"`

	// Action is the specific mutation, empty for heartbeats.
	Action string `json:"action,omitempty"`

	// Message is a human-readable notification line.
	Message string `json:"message,omitempty"`

	// Data carries optional event-specific fields.
	Data map[string]any `json:"data,omitempty"`
}

// Heartbeat is the keep-alive event delivered when no mutation occurred
// within the heartbeat interval.
func Heartbeat() Event {
	return Event{Type: EventHeartbeat}
}
