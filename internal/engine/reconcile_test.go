package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func findAccount(t *testing.T, accounts []core.Account, id string) core.Account {
	t.Helper()
	for _, a := range accounts {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("account %s not in result", id)
	return core.Account{}
}

func TestReconcileBalancesFromHistory(t *testing.T) {
	accounts := []core.Account{
		{ID: "a", Name: "Wallet", Type: core.AccountCash, Currency: "EUR", InitialBalance: dec("100")},
		{ID: "b", Name: "Bank", Type: core.AccountBank, Currency: "EUR"},
	}
	txs := []core.Transaction{
		{ID: "t1", Type: core.Income, Amount: dec("50"), AccountID: "a", Date: core.NewDate(2026, 8, 1)},
		{ID: "t2", Type: core.Expense, Amount: dec("30"), AccountID: "a", Date: core.NewDate(2026, 8, 2)},
		{ID: "t3", Type: core.Transfer, Amount: dec("20"), AccountID: "a", ToAccountID: "b", Date: core.NewDate(2026, 8, 3)},
	}

	result := Reconcile(accounts, txs, "EUR")
	require.Len(t, result, 2)
	assert.True(t, findAccount(t, result, "a").Balance.Equal(dec("100")), "A = 100+50-30-20")
	assert.True(t, findAccount(t, result, "b").Balance.Equal(dec("20")), "B = 0+20")
}

func TestReconcileIsIdempotent(t *testing.T) {
	accounts := []core.Account{
		{ID: "a", Name: "Wallet", Type: core.AccountCash, InitialBalance: dec("10")},
	}
	txs := []core.Transaction{
		{ID: "t1", Type: core.Income, Amount: dec("5"), AccountID: "a", Date: core.NewDate(2026, 1, 1)},
		{ID: "t2", Type: core.Transfer, Amount: dec("3"), AccountID: "a", ToAccountID: "gone", Date: core.NewDate(2026, 1, 2)},
	}

	once := Reconcile(accounts, txs, "EUR")
	twice := Reconcile(once, txs, "EUR")
	// Reconciling the reconciled output must not drift: balances restart
	// from the initial balance, not from the previous derived balance.
	other := Reconcile(accounts, txs, "EUR")
	require.Equal(t, len(twice), len(other))
	for i := range twice {
		assert.Equal(t, other[i].ID, twice[i].ID)
		assert.True(t, other[i].Balance.Equal(twice[i].Balance),
			"account %s: %s vs %s", twice[i].ID, twice[i].Balance, other[i].Balance)
	}
}

func TestReconcileTransferConservation(t *testing.T) {
	accounts := []core.Account{
		{ID: "a", InitialBalance: dec("0")},
		{ID: "b", InitialBalance: dec("0")},
		{ID: "c", InitialBalance: dec("0")},
	}
	txs := []core.Transaction{
		{Type: core.Transfer, Amount: dec("12.50"), AccountID: "a", ToAccountID: "b", Date: core.NewDate(2026, 1, 1)},
		{Type: core.Transfer, Amount: dec("7.25"), AccountID: "b", ToAccountID: "c", Date: core.NewDate(2026, 1, 2)},
		{Type: core.Transfer, Amount: dec("3"), AccountID: "c", ToAccountID: "a", Date: core.NewDate(2026, 1, 3)},
	}

	total := decimal.Zero
	for _, a := range Reconcile(accounts, txs, "EUR") {
		total = total.Add(a.Balance)
	}
	assert.True(t, total.IsZero(), "transfer-only ledger must conserve: got %s", total)
}

func TestReconcileSynthesizesLegacyAccounts(t *testing.T) {
	txs := []core.Transaction{
		{Type: core.Expense, Amount: dec("9.99"), AccountID: "deleted-1", Date: core.NewDate(2026, 1, 1)},
		{Type: core.Transfer, Amount: dec("5"), AccountID: "deleted-1", ToAccountID: "deleted-2", Date: core.NewDate(2026, 1, 2)},
	}

	result := Reconcile(nil, txs, "USD")
	require.Len(t, result, 2)

	one := findAccount(t, result, "deleted-1")
	assert.True(t, one.Archived)
	assert.True(t, one.ExcludeFromTotal)
	assert.Equal(t, "USD", one.Currency)
	assert.True(t, one.Balance.Equal(dec("-14.99")))

	two := findAccount(t, result, "deleted-2")
	assert.True(t, two.Balance.Equal(dec("5")))
}

func TestReconcileSelfTransferNetsToZero(t *testing.T) {
	accounts := []core.Account{{ID: "a", InitialBalance: dec("40")}}
	txs := []core.Transaction{
		{Type: core.Transfer, Amount: dec("15"), AccountID: "a", ToAccountID: "a", Date: core.NewDate(2026, 1, 1)},
	}
	result := Reconcile(accounts, txs, "EUR")
	require.Len(t, result, 1)
	assert.True(t, result[0].Balance.Equal(dec("40")), "both legs apply and cancel")
}

func TestReconcileUntouchedAccountKeepsInitialBalance(t *testing.T) {
	accounts := []core.Account{{ID: "idle", InitialBalance: dec("77.70"), Currency: ""}}
	result := Reconcile(accounts, nil, "EUR")
	require.Len(t, result, 1)
	assert.True(t, result[0].Balance.Equal(dec("77.70")))
	assert.Equal(t, "EUR", result[0].Currency, "empty currency defaults to fallback")
}

func TestTotalBalanceSkipsExcludedAndArchived(t *testing.T) {
	accounts := []core.Account{
		{ID: "a", Balance: dec("100"), Currency: "EUR"},
		{ID: "b", Balance: dec("50"), Currency: "EUR", ExcludeFromTotal: true},
		{ID: "c", Balance: dec("25"), Currency: "EUR", Archived: true},
	}
	total := TotalBalance(accounts, "EUR", RateTable{})
	assert.True(t, total.Equal(dec("100")))
}
