package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	"tally/internal/engine"
	"tally/internal/log"
	"tally/internal/services"
)

// Amounts cross the wire as strings ("12.34", comma separator tolerated) so
// clients never lose precision to float encoding.

type accountPayload struct {
	Name             string `json:"name"`
	Type             string `json:"type"`
	Currency         string `json:"currency"`
	InitialBalance   string `json:"initial_balance"`
	ExcludeFromTotal bool   `json:"exclude_from_total"`
	SeedOpening      bool   `json:"seed_opening"`
}

type accountResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Currency         string `json:"currency"`
	Balance          string `json:"balance"`
	ExcludeFromTotal bool   `json:"exclude_from_total"`
	Archived         bool   `json:"archived"`
}

type transactionPayload struct {
	Amount             string `json:"amount"`
	Type               string `json:"type"`
	Category           string `json:"category"`
	Date               string `json:"date"`
	AccountID          string `json:"account_id"`
	ToAccountID        string `json:"to_account_id"`
	Currency           string `json:"currency"`
	Note               string `json:"note"`
	ExcludeFromReports bool   `json:"exclude_from_reports"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	view, err := s.ledger.Accounts(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "accounts read failed", log.FieldError, err)
		s.writeError(w, r, http.StatusInternalServerError, "accounts unavailable")
		return
	}

	accounts := make([]accountResponse, 0, len(view.Accounts))
	for _, a := range view.Accounts {
		accounts = append(accounts, accountResponse{
			ID:               a.ID,
			Name:             a.Name,
			Type:             string(a.Type),
			Currency:         a.Currency,
			Balance:          a.Balance.String(),
			ExcludeFromTotal: a.ExcludeFromTotal,
			Archived:         a.Archived,
		})
	}
	s.writeJSON(w, r, http.StatusOK, struct {
		Accounts []accountResponse `json:"accounts"`
		Total    string            `json:"total"`
		Currency string            `json:"currency"`
	}{accounts, view.Total.String(), view.Currency})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var payload accountPayload
	if err := decodeJSON(r, &payload); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.ledger.CreateAccount(r.Context(), core.Account{
		Name:             payload.Name,
		Type:             core.AccountType(payload.Type),
		Currency:         payload.Currency,
		InitialBalance:   core.ParseAmount(payload.InitialBalance),
		ExcludeFromTotal: payload.ExcludeFromTotal,
	}, payload.SeedOpening)
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, r, http.StatusCreated, map[string]string{"id": account.ID})
}

func (s *Server) handleArchiveAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.ledger.ArchiveAccount(r.Context(), id); err != nil {
		s.logger.ErrorContext(r.Context(), "account archive failed",
			log.FieldAccountID, id, log.FieldError, err)
		s.writeError(w, r, http.StatusInternalServerError, "archive failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var payload transactionPayload
	if err := decodeJSON(r, &payload); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := core.ParseDate(payload.Date)
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, "invalid date, expected YYYY-MM-DD")
		return
	}

	tx, err := s.ledger.CreateTransaction(r.Context(), core.Transaction{
		Amount:             core.ParseAmount(payload.Amount),
		Type:               core.TransactionType(payload.Type),
		Category:           payload.Category,
		Date:               date,
		AccountID:          payload.AccountID,
		ToAccountID:        payload.ToAccountID,
		Currency:           payload.Currency,
		Note:               payload.Note,
		ExcludeFromReports: payload.ExcludeFromReports,
	})
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, r, http.StatusCreated, map[string]string{"id": tx.ID})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		s.logger.ErrorContext(r.Context(), "transaction delete failed",
			log.FieldTransactionID, id, log.FieldError, err)
		s.writeError(w, r, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := core.ParseDate(q.Get("start"))
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, "invalid start date, expected YYYY-MM-DD")
		return
	}
	end, err := core.ParseDate(q.Get("end"))
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, "invalid end date, expected YYYY-MM-DD")
		return
	}

	summary, err := s.ledger.Summary(r.Context(), services.SummaryQuery{
		Start:             start,
		End:               end,
		AccountID:         q.Get("account"),
		VisibleAccountIDs: q["visible"],
	})
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.writeJSON(w, r, http.StatusOK, struct {
		Income         string `json:"income"`
		Expense        string `json:"expense"`
		OpeningBalance string `json:"opening_balance"`
		PeriodNet      string `json:"period_net"`
		PostPeriodNet  string `json:"post_period_net"`
		EndingBalance  string `json:"ending_balance"`
	}{
		summary.Income.String(),
		summary.Expense.String(),
		summary.OpeningBalance.String(),
		summary.PeriodNet.String(),
		summary.PostPeriodNet.String(),
		summary.EndingBalance.String(),
	})
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	progress, err := s.ledger.Budgets(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "budget read failed", log.FieldError, err)
		s.writeError(w, r, http.StatusInternalServerError, "budgets unavailable")
		return
	}

	type budgetResponse struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Target      string `json:"target"`
		Period      string `json:"period"`
		Category    string `json:"category,omitempty"`
		Spent       string `json:"spent"`
		Remaining   string `json:"remaining"`
		PeriodStart string `json:"period_start"`
		PeriodEnd   string `json:"period_end"`
	}
	budgets := make([]budgetResponse, 0, len(progress))
	for _, p := range progress {
		budgets = append(budgets, budgetResponse{
			ID:          p.Goal.ID,
			Name:        p.Goal.Name,
			Target:      p.Goal.Target.String(),
			Period:      string(p.Goal.Period),
			Category:    p.Goal.Category,
			Spent:       p.Spent.String(),
			Remaining:   p.Remaining.String(),
			PeriodStart: p.PeriodStart.Format(time.RFC3339),
			PeriodEnd:   p.PeriodEnd.Format(time.RFC3339),
		})
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"budgets": budgets})
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name      string `json:"name"`
		Target    string `json:"target"`
		Period    string `json:"period"`
		Category  string `json:"category"`
		Repeating bool   `json:"repeating"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	goal, err := s.ledger.CreateBudgetGoal(r.Context(), core.BudgetGoal{
		Name:      payload.Name,
		Target:    core.ParseAmount(payload.Target),
		Period:    core.BudgetPeriod(payload.Period),
		Category:  payload.Category,
		Repeating: payload.Repeating,
	})
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, r, http.StatusCreated, map[string]string{"id": goal.ID})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name       string   `json:"name"`
		Type       string   `json:"type"`
		ParentID   string   `json:"parent_id"`
		AccountIDs []string `json:"account_ids"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	category, err := s.ledger.CreateCategory(r.Context(), core.Category{
		Name:       payload.Name,
		Type:       core.CategoryType(payload.Type),
		ParentID:   payload.ParentID,
		AccountIDs: payload.AccountIDs,
	})
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, r, http.StatusCreated, map[string]string{"id": category.ID})
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		transactionPayload
		Frequency string `json:"frequency"`
		StartDate string `json:"start_date"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	start, err := core.ParseDate(payload.StartDate)
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, "invalid start_date, expected YYYY-MM-DD")
		return
	}

	rec, err := s.ledger.CreateRecurring(r.Context(), core.RecurringTransaction{
		Amount:             core.ParseAmount(payload.Amount),
		Type:               core.TransactionType(payload.Type),
		Category:           payload.Category,
		AccountID:          payload.AccountID,
		ToAccountID:        payload.ToAccountID,
		Currency:           payload.Currency,
		Note:               payload.Note,
		ExcludeFromReports: payload.ExcludeFromReports,
		Frequency:          core.Frequency(payload.Frequency),
		NextOccurrence:     start,
	})
	if err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, r, http.StatusCreated, map[string]string{"id": rec.ID})
}

func (s *Server) handleGetRates(w http.ResponseWriter, r *http.Request) {
	table, err := s.ledger.Rates(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "rate table read failed", log.FieldError, err)
		s.writeError(w, r, http.StatusInternalServerError, "rates unavailable")
		return
	}

	rates := make(map[string]string, len(table.Rates))
	for code, rate := range table.Rates {
		rates[code] = rate.String()
	}
	s.writeJSON(w, r, http.StatusOK, struct {
		Base  string            `json:"base"`
		Rates map[string]string `json:"rates"`
		AsOf  string            `json:"as_of,omitempty"`
	}{table.Base, rates, formatAsOf(table.AsOf)})
}

func (s *Server) handlePutRates(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Base  string            `json:"base"`
		Rates map[string]string `json:"rates"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates))
	for code, raw := range payload.Rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			s.writeError(w, r, http.StatusUnprocessableEntity, "invalid rate for "+code)
			return
		}
		rates[code] = rate
	}

	if err := s.ledger.SetRates(r.Context(), engine.RateTable{
		Base:  payload.Base,
		Rates: rates,
		AsOf:  time.Now().UTC(),
	}); err != nil {
		s.writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func formatAsOf(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
