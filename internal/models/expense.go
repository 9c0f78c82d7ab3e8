package models

// Expense constraints enforced before any write.
const (
	MaxExpenseAmount     = 999999.99
	MaxDescriptionLength = 200
	SplitMethodAverage   = "average"
)

// Expense represents a recorded payment by one member on behalf of a set of
// members. Expenses are immutable once created; the only mutation is
// deletion, which cascades to the participant associations.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string `json:"id"`

	// Description is a short human-readable label.
	Description string `json:"description"`

	// PayerID is the member who paid the full amount.
	PayerID string `json:"payer_id"`

	// Amount is the total paid. Strictly positive, at most MaxExpenseAmount.
	Amount float64 `json:"amount"`

	// Date is the calendar date of the expense ("2006-01-02").
	Date string `json:"date"`

	// Participants is the non-empty set of member IDs splitting the expense.
	Participants []string `json:"participants"`

	// SplitMethod is the split tag. Only "average" semantics are defined.
	SplitMethod string `json:"split_method"`

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64 `json:"created_at"`
}
