package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/mzhao/aapay/internal/models"
	"github.com/mzhao/aapay/internal/settle"
	"github.com/mzhao/aapay/internal/storage"
)

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	ledger, _, err := s.ledger(r)
	if err != nil {
		writeError(w, err)
		return
	}

	members, err := ledger.ListMembers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if members == nil {
		members = []*models.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	ledger, claims, err := s.ledger(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, badRequest("name is required"))
		return
	}

	member, err := ledger.AddMember(r.Context(), req.Name, req.Avatar)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("Member added", "session_id", claims.SessionID, "member_id", member.ID)
	s.publish(claims.SessionID, models.Event{
		Type:    models.EventUserUpdate,
		Action:  models.ActionUserAdd,
		Message: fmt.Sprintf("New member %s joined", member.Name),
	})
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	ledger, claims, err := s.ledger(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, badRequest("name is required"))
		return
	}

	member, err := ledger.UpdateMember(r.Context(), r.PathValue("id"), req.Name, req.Avatar)
	if err != nil {
		writeError(w, err)
		return
	}

	s.publish(claims.SessionID, models.Event{
		Type:    models.EventUserUpdate,
		Action:  models.ActionUserUpdate,
		Message: fmt.Sprintf("Member %s was updated", member.Name),
	})
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	ledger, claims, err := s.ledger(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// Resolve the name before deleting, for the notification.
	id := r.PathValue("id")
	name := "unknown member"
	if members, err := ledger.ListMembers(r.Context()); err == nil {
		for _, m := range members {
			if m.ID == id {
				name = m.Name
				break
			}
		}
	}

	if err := ledger.RemoveMember(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	s.publish(claims.SessionID, models.Event{
		Type:    models.EventUserUpdate,
		Action:  models.ActionUserDelete,
		Message: fmt.Sprintf("Member %s was removed", name),
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	ledger, _, err := s.ledger(r)
	if err != nil {
		writeError(w, err)
		return
	}

	expenses, err := ledger.ListExpenses(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}
	if expenses == nil {
		expenses = []*models.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	ledger, claims, err := s.ledger(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Description  string   `json:"description"`
		PayerID      string   `json:"payer_id"`
		Amount       float64  `json:"amount"`
		Date         string   `json:"date"`
		Participants []string `json:"participants"`
		SplitMethod  string   `json:"split_method"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Description == "" || len(req.Description) > models.MaxDescriptionLength {
		writeError(w, badRequest("description must be 1-200 characters"))
		return
	}
	if req.Amount <= 0 || req.Amount > models.MaxExpenseAmount {
		writeError(w, storage.ErrInvalidAmount)
		return
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		writeError(w, badRequest("date must be formatted YYYY-MM-DD"))
		return
	}
	if len(req.Participants) == 0 {
		writeError(w, storage.ErrEmptyParticipants)
		return
	}

	expense := &models.Expense{
		Description:  req.Description,
		PayerID:      req.PayerID,
		Amount:       req.Amount,
		Date:         req.Date,
		Participants: req.Participants,
		SplitMethod:  req.SplitMethod,
	}
	if err := ledger.AddExpense(r.Context(), expense); err != nil {
		writeError(w, err)
		return
	}

	payerName := s.memberName(r, ledger, expense.PayerID)
	slog.Info("Expense added", "session_id", claims.SessionID, "expense_id", expense.ID, "amount", expense.Amount)
	s.publish(claims.SessionID, models.Event{
		Type:    models.EventExpenseUpdate,
		Action:  models.ActionExpenseAdd,
		Message: fmt.Sprintf("%s paid %.2f (%s)", payerName, expense.Amount, expense.Description),
	})
	writeJSON(w, http.StatusOK, expense)
}

func (s *Server) handleRemoveExpense(w http.ResponseWriter, r *http.Request) {
	ledger, claims, err := s.ledger(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// Resolve the description before deleting, for the notification.
	id := r.PathValue("id")
	description := "an expense"
	if expenses, err := ledger.ListExpenses(r.Context(), ""); err == nil {
		for _, e := range expenses {
			if e.ID == id {
				description = e.Description
				break
			}
		}
	}

	if err := ledger.RemoveExpense(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	s.publish(claims.SessionID, models.Event{
		Type:    models.EventExpenseUpdate,
		Action:  models.ActionExpenseDelete,
		Message: fmt.Sprintf("Deleted: %s", description),
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// transferView is a settlement plan entry enriched with member names.
type transferView struct {
	FromUser string  `json:"from_user"`
	ToUser   string  `json:"to_user"`
	Amount   float64 `json:"amount"`
}

func (s *Server) handleDebts(w http.ResponseWriter, r *http.Request) {
	ledger, _, err := s.ledger(r)
	if err != nil {
		writeError(w, err)
		return
	}

	expenses, err := ledger.ListExpenses(r.Context(), "")
	if err != nil {
		writeError(w, err)
		return
	}
	names, err := s.memberNames(r, ledger)
	if err != nil {
		writeError(w, err)
		return
	}

	transfers := settle.Plan(expenses)
	views := make([]transferView, len(transfers))
	for i, t := range transfers {
		views[i] = transferView{
			FromUser: nameOr(names, t.From),
			ToUser:   nameOr(names, t.To),
			Amount:   t.Amount,
		}
	}
	writeJSON(w, http.StatusOK, views)
}

// balanceView is one member's net position.
type balanceView struct {
	MemberID string  `json:"member_id"`
	Name     string  `json:"name"`
	Balance  float64 `json:"balance"`
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	ledger, _, err := s.ledger(r)
	if err != nil {
		writeError(w, err)
		return
	}

	expenses, err := ledger.ListExpenses(r.Context(), "")
	if err != nil {
		writeError(w, err)
		return
	}
	members, err := ledger.ListMembers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	balances := settle.Balances(expenses)
	views := make([]balanceView, 0, len(members))
	for _, m := range members {
		views = append(views, balanceView{
			MemberID: m.ID,
			Name:     m.Name,
			Balance:  balances[m.ID],
		})
		delete(balances, m.ID)
	}
	// Expenses may reference ids with no member row; surface them too.
	leftover := make([]string, 0, len(balances))
	for id := range balances {
		leftover = append(leftover, id)
	}
	sort.Strings(leftover)
	for _, id := range leftover {
		views = append(views, balanceView{MemberID: id, Name: "Unknown", Balance: balances[id]})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ledger, _, err := s.ledger(r)
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := ledger.DailySummary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	if !s.allowJoin(r) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many attempts, slow down"})
		return
	}

	var req struct {
		Phrase string `json:"phrase"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Phrase == "" {
		writeError(w, badRequest("phrase is required"))
		return
	}

	phrase, err := s.registry.Redeem(r.Context(), req.Phrase)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("Phrase redeemed", "phrase_id", phrase.ID, "session_id", phrase.SessionID)
	writeJSON(w, http.StatusOK, map[string]string{
		"token":      phrase.Token,
		"session_id": phrase.SessionID,
	})
}

// allowJoin applies a per-address token bucket to redemption attempts:
// phrase text is guessable, so brute force must stay slow.
func (s *Server) allowJoin(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	s.limiterMu.Lock()
	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(2*time.Second), 5)
		s.limiters[host] = limiter
	}
	s.limiterMu.Unlock()

	return limiter.Allow()
}

// memberNames maps member ID to display name.
func (s *Server) memberNames(r *http.Request, ledger storage.Ledger) (map[string]string, error) {
	members, err := ledger.ListMembers(r.Context())
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}
	return names, nil
}

func (s *Server) memberName(r *http.Request, ledger storage.Ledger, id string) string {
	names, err := s.memberNames(r, ledger)
	if err != nil {
		return "Unknown"
	}
	return nameOr(names, id)
}

func nameOr(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return "Unknown"
}
