package models

// MaxMembers is the hard cap on members per session.
const MaxMembers = 20

// DefaultAvatar is assigned when a member is created without an avatar tag.
const DefaultAvatar = "default"

// Member represents a participant within one session who can pay or be
// billed for expenses.
type Member struct {
	// ID is the unique identifier for the member (UUID format).
	ID string `json:"id"`

	// Name is the display name, unique within the member's session.
	Name string `json:"name"`

	// Avatar is a client-interpreted avatar tag ("default" if unset).
	Avatar string `json:"avatar"`
}
