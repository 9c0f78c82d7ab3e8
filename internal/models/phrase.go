package models

import "time"

// Share phrase text constraints: alphanumeric, 3 to 16 characters.
const (
	MinPhraseLength = 3
	MaxPhraseLength = 16
)

// SharePhrase is a short human-entered code that grants time-boxed access to
// one session. The access token is minted when the phrase is created and
// expires together with the phrase's validity window.
//
// At any instant at most one unexpired phrase may exist with a given literal
// text across the whole system. Expired rows with the same text are purged
// when a new phrase is created.
type SharePhrase struct {
	// ID is the unique identifier for the phrase (UUID format).
	ID string `json:"id"`

	// SessionID is the session this phrase grants access to. The phrase is
	// destroyed together with its session.
	SessionID string `json:"session_id"`

	// Phrase is the literal code text.
	Phrase string `json:"phrase"`

	// Token is the user-scoped credential handed out on redemption. Never
	// serialized in listings.
	Token string `json:"-"`

	// ValidFrom and ValidUntil bound the redemption window.
	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`

	// CreatedAt is the Unix timestamp when the phrase was created.
	CreatedAt int64 `json:"created_at"`
}

// Expired reports whether the phrase's window has passed at the given time.
func (p *SharePhrase) Expired(now time.Time) bool {
	return !p.ValidUntil.After(now)
}

// Redeemable reports whether the phrase can be exchanged for its token at
// the given time.
func (p *SharePhrase) Redeemable(now time.Time) bool {
	return !now.Before(p.ValidFrom) && now.Before(p.ValidUntil)
}
