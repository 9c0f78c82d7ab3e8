package storage

import "errors"

// Sentinel errors forming the store error taxonomy. Validation and
// uniqueness failures are detected before any write; callers match with
// errors.Is and translate to a status. Anything not wrapping one of these
// is an internal storage failure and must be surfaced, never swallowed.
var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName indicates a per-scope name uniqueness violation
	// (member name within a session, session name globally).
	ErrDuplicateName = errors.New("name already exists")

	// ErrCapacityExceeded indicates the per-session member cap was hit.
	ErrCapacityExceeded = errors.New("member limit reached")

	// ErrReferencedByExpense blocks deleting a member who appears in any
	// expense as payer or participant.
	ErrReferencedByExpense = errors.New("member is referenced by an expense")

	// ErrEmptyParticipants rejects an expense with no participants.
	ErrEmptyParticipants = errors.New("at least one participant required")

	// ErrInvalidAmount rejects a non-positive or out-of-range expense amount.
	ErrInvalidAmount = errors.New("amount must be positive and at most 999999.99")

	// ErrInvalidWindow rejects a phrase whose window ends before it starts.
	ErrInvalidWindow = errors.New("valid_until must be after valid_from")

	// ErrPhraseInUse indicates an unexpired phrase with the same text exists.
	ErrPhraseInUse = errors.New("phrase is still in use")
)
