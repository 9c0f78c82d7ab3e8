// Package settle computes net balances and a settlement plan for one
// session's expense set. It is pure: every call recomputes from the
// expenses it is handed, nothing is cached or persisted.
package settle

import (
	"math"
	"sort"

	"github.com/mzhao/aapay/internal/models"
)

// epsilon is the settled band: balances within ±0.01 of zero are treated as
// settled and excluded from the plan.
const epsilon = 0.01

// Transfer is one point-to-point payment in a settlement plan.
type Transfer struct {
	// From is the member who pays.
	From string `json:"from"`

	// To is the member who is paid.
	To string `json:"to"`

	// Amount is the payment amount, rounded to 2 decimal places.
	Amount float64 `json:"amount"`
}

// Round rounds to 2 decimal places using half-even (banker's) rounding.
// Half-even keeps repeated equal splits from drifting in one direction at
// the cent boundary.
func Round(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}

// Balances computes each member's net balance from the expense set: the
// payer is credited the full amount, every participant is debited an equal
// share. A member who both paid and participated carries the credit and
// their own share's debit. Balances are rounded to 2 decimal places.
func Balances(expenses []*models.Expense) map[string]float64 {
	raw := make(map[string]float64)
	for _, e := range expenses {
		if len(e.Participants) == 0 {
			continue
		}
		raw[e.PayerID] += e.Amount
		share := e.Amount / float64(len(e.Participants))
		for _, p := range e.Participants {
			raw[p] -= share
		}
	}

	balances := make(map[string]float64, len(raw))
	for id, amount := range raw {
		balances[id] = Round(amount)
	}
	return balances
}

// party is one side of an open balance during matching.
type party struct {
	id     string
	amount float64
}

// Plan computes a settlement plan: debtors sorted most-negative first are
// greedily matched against creditors sorted largest first, transferring the
// smaller of the two open amounts each step. The greedy pairing keeps the
// transfer count small for equal-split ledgers but is not guaranteed
// transfer-count-optimal for every balance configuration.
//
// A session with no expenses, or whose balances all round into the settled
// band, yields an empty plan.
func Plan(expenses []*models.Expense) []Transfer {
	balances := Balances(expenses)

	var debtors, creditors []party
	for id, amount := range balances {
		switch {
		case amount < -epsilon:
			debtors = append(debtors, party{id: id, amount: amount})
		case amount > epsilon:
			creditors = append(creditors, party{id: id, amount: amount})
		}
	}

	// Deterministic order: amount first, member ID breaks ties.
	sort.Slice(debtors, func(i, j int) bool {
		if debtors[i].amount != debtors[j].amount {
			return debtors[i].amount < debtors[j].amount
		}
		return debtors[i].id < debtors[j].id
	})
	sort.Slice(creditors, func(i, j int) bool {
		if creditors[i].amount != creditors[j].amount {
			return creditors[i].amount > creditors[j].amount
		}
		return creditors[i].id < creditors[j].id
	})

	var transfers []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor := &debtors[i]
		creditor := &creditors[j]

		amount := Round(math.Min(-debtor.amount, creditor.amount))
		transfers = append(transfers, Transfer{
			From:   debtor.id,
			To:     creditor.id,
			Amount: amount,
		})

		debtor.amount += amount
		creditor.amount -= amount

		if -debtor.amount < epsilon {
			i++
		}
		if creditor.amount < epsilon {
			j++
		}
	}
	return transfers
}
