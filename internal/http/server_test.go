package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tally/internal/core"
	"tally/internal/engine"
	"tally/internal/log"
	"tally/internal/services"
)

// memStore is an in-memory services.LedgerStore for handler tests.
type memStore struct {
	accounts     []core.Account
	transactions []core.Transaction
	categories   []core.Category
	budgets      []core.BudgetGoal
	recurring    []core.RecurringTransaction
	table        engine.RateTable
}

func (m *memStore) LoadAll(context.Context) (core.Snapshot, error) {
	return core.Snapshot{
		Accounts:     m.accounts,
		Transactions: m.transactions,
		Categories:   m.categories,
		Budgets:      m.budgets,
		Recurring:    m.recurring,
	}, nil
}

func (m *memStore) CreateAccount(_ context.Context, a core.Account, seed *core.Transaction) error {
	m.accounts = append(m.accounts, a)
	if seed != nil {
		m.transactions = append(m.transactions, *seed)
	}
	return nil
}

func (m *memStore) ArchiveAccount(_ context.Context, id string) error {
	for i := range m.accounts {
		if m.accounts[i].ID == id {
			m.accounts[i].Archived = true
		}
	}
	return nil
}

func (m *memStore) CreateTransaction(_ context.Context, t core.Transaction) error {
	m.transactions = append(m.transactions, t)
	return nil
}

func (m *memStore) DeleteTransaction(_ context.Context, id string) error {
	kept := m.transactions[:0]
	for _, t := range m.transactions {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	m.transactions = kept
	return nil
}

func (m *memStore) CreateCategory(_ context.Context, c core.Category) error {
	m.categories = append(m.categories, c)
	return nil
}

func (m *memStore) CreateBudgetGoal(_ context.Context, g core.BudgetGoal) error {
	m.budgets = append(m.budgets, g)
	return nil
}

func (m *memStore) CreateRecurring(_ context.Context, r core.RecurringTransaction) error {
	m.recurring = append(m.recurring, r)
	return nil
}

func (m *memStore) SaveRateTable(_ context.Context, table engine.RateTable) error {
	m.table = table
	return nil
}

func (m *memStore) LoadRateTable(context.Context) (engine.RateTable, error) {
	return m.table, nil
}

func newTestServer(store *memStore) *Server {
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	ledger := services.NewLedgerService(store, logger, "EUR")
	return NewServer(":0", ledger, logger)
}

func doRequest(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(&memStore{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, s, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s returned %d", path, rec.Code)
		}
	}
}

func TestCreateAndListAccounts(t *testing.T) {
	store := &memStore{}
	s := newTestServer(store)

	rec := doRequest(t, s, http.MethodPost, "/api/accounts",
		`{"name":"Wallet","type":"cash","currency":"EUR","initial_balance":"100","seed_opening":false}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/accounts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list accounts returned %d", rec.Code)
	}
	var resp struct {
		Accounts []struct {
			Name    string `json:"name"`
			Balance string `json:"balance"`
		} `json:"accounts"`
		Total    string `json:"total"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Accounts) != 1 || resp.Accounts[0].Balance != "100" {
		t.Fatalf("unexpected accounts response: %+v", resp)
	}
	if resp.Total != "100" || resp.Currency != "EUR" {
		t.Fatalf("unexpected total: %s %s", resp.Total, resp.Currency)
	}
}

func TestCreateAccountRejectsUnknownType(t *testing.T) {
	s := newTestServer(&memStore{})
	rec := doRequest(t, s, http.MethodPost, "/api/accounts",
		`{"name":"Wallet","type":"checking","currency":"EUR"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown account type, got %d", rec.Code)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	store := &memStore{
		accounts: []core.Account{{ID: "a1", Name: "Wallet", Type: core.AccountCash, Currency: "EUR"}},
	}
	s := newTestServer(store)

	rec := doRequest(t, s, http.MethodPost, "/api/transactions",
		`{"amount":"12,50","type":"expense","date":"2026-08-30","account_id":"a1","note":"coffee"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction returned %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.transactions) != 1 || store.transactions[0].Amount.String() != "12.5" {
		t.Fatalf("comma amount not parsed: %+v", store.transactions)
	}

	// Missing account.
	rec = doRequest(t, s, http.MethodPost, "/api/transactions",
		`{"amount":"5","type":"expense","date":"2026-08-30"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for missing account, got %d", rec.Code)
	}

	// Garbage date.
	rec = doRequest(t, s, http.MethodPost, "/api/transactions",
		`{"amount":"5","type":"expense","date":"augusto","account_id":"a1"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad date, got %d", rec.Code)
	}

	// Unknown field in the payload.
	rec = doRequest(t, s, http.MethodPost, "/api/transactions",
		`{"amount":"5","type":"expense","date":"2026-08-30","account_id":"a1","amuont":"5"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestDeleteTransaction(t *testing.T) {
	store := &memStore{
		transactions: []core.Transaction{{ID: "t1", Amount: core.ParseAmount("5"), Type: core.Expense, Date: core.NewDate(2026, 8, 30), AccountID: "a1"}},
	}
	s := newTestServer(store)

	rec := doRequest(t, s, http.MethodDelete, "/api/transactions/t1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete returned %d", rec.Code)
	}
	if len(store.transactions) != 0 {
		t.Fatalf("transaction not deleted")
	}
}

func TestSummaryEndpoint(t *testing.T) {
	store := &memStore{
		accounts: []core.Account{{ID: "a1", Name: "Wallet", Type: core.AccountCash, Currency: "EUR"}},
		transactions: []core.Transaction{
			{ID: "t1", Amount: core.ParseAmount("100"), Type: core.Income, Date: core.NewDate(2026, 8, 10), AccountID: "a1"},
			{ID: "t2", Amount: core.ParseAmount("30"), Type: core.Expense, Date: core.NewDate(2026, 8, 15), AccountID: "a1"},
		},
	}
	s := newTestServer(store)

	rec := doRequest(t, s, http.MethodGet, "/api/summary?start=2026-08-01&end=2026-08-31", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Income        string `json:"income"`
		Expense       string `json:"expense"`
		PeriodNet     string `json:"period_net"`
		EndingBalance string `json:"ending_balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Income != "100" || resp.Expense != "30" || resp.PeriodNet != "70" || resp.EndingBalance != "70" {
		t.Fatalf("unexpected summary: %+v", resp)
	}

	// Inverted range.
	rec = doRequest(t, s, http.MethodGet, "/api/summary?start=2026-08-31&end=2026-08-01", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for inverted range, got %d", rec.Code)
	}
}

func TestRatesRoundTrip(t *testing.T) {
	store := &memStore{}
	s := newTestServer(store)

	rec := doRequest(t, s, http.MethodPut, "/api/rates",
		`{"base":"EUR","rates":{"USD":"1.1","GBP":"0.85"}}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("put rates returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/rates", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get rates returned %d", rec.Code)
	}
	var resp struct {
		Base  string            `json:"base"`
		Rates map[string]string `json:"rates"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Base != "EUR" || resp.Rates["USD"] != "1.1" {
		t.Fatalf("unexpected rates: %+v", resp)
	}

	// Non-positive rates never enter the table.
	rec = doRequest(t, s, http.MethodPut, "/api/rates",
		`{"base":"EUR","rates":{"USD":"0"}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for zero rate, got %d", rec.Code)
	}
}

func TestCreateBudgetAndProgress(t *testing.T) {
	store := &memStore{
		accounts:   []core.Account{{ID: "a1", Name: "Wallet", Type: core.AccountCash, Currency: "EUR"}},
		categories: []core.Category{{ID: "c1", Name: "Food", Type: core.CategoryExpense}},
	}
	s := newTestServer(store)

	rec := doRequest(t, s, http.MethodPost, "/api/budgets",
		`{"name":"Food budget","target":"200","period":"month","category":"c1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create budget returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/budgets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list budgets returned %d", rec.Code)
	}
	var resp struct {
		Budgets []struct {
			Name      string `json:"name"`
			Target    string `json:"target"`
			Spent     string `json:"spent"`
			Remaining string `json:"remaining"`
		} `json:"budgets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Budgets) != 1 || resp.Budgets[0].Spent != "0" || resp.Budgets[0].Remaining != "200" {
		t.Fatalf("unexpected budgets: %+v", resp)
	}
}

func TestCreateRecurring(t *testing.T) {
	store := &memStore{}
	s := newTestServer(store)

	rec := doRequest(t, s, http.MethodPost, "/api/recurring",
		`{"amount":"9.99","type":"expense","category":"c1","account_id":"a1","frequency":"monthly","start_date":"2026-09-01"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create recurring returned %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.recurring) != 1 || !store.recurring[0].Active {
		t.Fatalf("recurring not stored active: %+v", store.recurring)
	}
	if store.recurring[0].NextOccurrence.String() != "2026-09-01" {
		t.Fatalf("start date not applied: %s", store.recurring[0].NextOccurrence)
	}
}
