package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"tally/internal/core"
)

func usdTable() RateTable {
	return RateTable{
		Base: "USD",
		Rates: map[string]decimal.Decimal{
			"EUR": dec("0.9"),
			"USD": dec("1"),
			"GBP": dec("0.8"),
		},
	}
}

func TestConvertIdentity(t *testing.T) {
	for _, amount := range []string{"0", "1", "-3.33", "111.111"} {
		got := Convert(dec(amount), "EUR", "EUR", usdTable())
		assert.True(t, got.Equal(dec(amount)), "convert(%s, EUR, EUR) changed the amount", amount)
	}
	// Identity holds even with an empty table.
	assert.True(t, Convert(dec("42"), "XYZ", "XYZ", RateTable{}).Equal(dec("42")))
}

func TestConvertThroughBase(t *testing.T) {
	// 100 EUR -> USD with 1 USD = 0.9 EUR: 100 / 0.9 ~= 111.11
	got := Convert(dec("100"), "EUR", "USD", usdTable())
	assert.True(t, got.Round(2).Equal(dec("111.11")), "got %s", got)

	// Base as source multiplies straight into the target rate.
	assert.True(t, Convert(dec("100"), "USD", "EUR", usdTable()).Equal(dec("90")))

	// Cross rate EUR -> GBP goes through the base: 100 / 0.9 * 0.8
	cross := Convert(dec("100"), "EUR", "GBP", usdTable())
	assert.True(t, cross.Round(2).Equal(dec("88.89")), "got %s", cross)
}

func TestConvertDegradesToNoOp(t *testing.T) {
	cases := []struct {
		name  string
		table RateTable
		from  string
	}{
		{"empty table", RateTable{}, "EUR"},
		{"missing code", usdTable(), "CHF"},
		{"zero rate", RateTable{Base: "USD", Rates: map[string]decimal.Decimal{"EUR": decimal.Zero}}, "EUR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Convert(dec("55.5"), tc.from, "USD", tc.table)
			assert.True(t, got.Equal(dec("55.5")), "missing conversion data must pass through, got %s", got)
		})
	}
}

func TestEffectiveCurrencyChain(t *testing.T) {
	account := &core.Account{ID: "a", Currency: "GBP"}
	cases := []struct {
		name    string
		tx      core.Transaction
		account *core.Account
		want    string
	}{
		{"override wins", core.Transaction{Currency: "JPY"}, account, "JPY"},
		{"account currency next", core.Transaction{}, account, "GBP"},
		{"base as final fallback", core.Transaction{}, nil, "EUR"},
		{"account without currency", core.Transaction{}, &core.Account{}, "EUR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EffectiveCurrency(tc.tx, tc.account, "EUR"))
		})
	}
}

func TestConverterTargetsOneCurrency(t *testing.T) {
	conv := Converter("USD", usdTable())
	assert.True(t, conv(dec("90"), "EUR").Equal(dec("100")))
	assert.True(t, conv(dec("10"), "USD").Equal(dec("10")))
}
