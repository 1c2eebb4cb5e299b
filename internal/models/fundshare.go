package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InitialShareValue is the bootstrap quota price: the first fund share row
// for a user values each share at exactly 100.
var InitialShareValue = decimal.RequireFromString("100")

// FundShare is the quota ledger row for (user, date). ShareValue is
// NAV / SharesOutstanding; returns are stored as decimals (0.01 == 1%).
type FundShare struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	Date              time.Time       `json:"date"`
	NAV               decimal.Decimal `json:"nav"` // base currency
	SharesOutstanding decimal.Decimal `json:"shares_outstanding"`
	ShareValue        decimal.Decimal `json:"share_value"`
	DailyReturn       decimal.Decimal `json:"daily_return"`
	CumulativeReturn  decimal.Decimal `json:"cumulative_return"`
	CreatedAt         time.Time       `json:"created_at"`
}

// NAVResult is the outcome of a NAV computation for a user at a date.
type NAVResult struct {
	UserID           string          `json:"user_id"`
	Date             time.Time       `json:"date"`
	TotalMarketValue decimal.Decimal `json:"total_market_value"`
	TotalCash        decimal.Decimal `json:"total_cash"`
	NAV              decimal.Decimal `json:"nav"`
	BaseCurrency     string          `json:"base_currency"`
	PTAXRateUsed     decimal.Decimal `json:"ptax_rate_used"`
	Accounts         []AccountNAVLine `json:"accounts,omitempty"`
	// MissingFX lists currencies that could not be converted; callers decide
	// whether to surface the result as partial.
	MissingFX []string `json:"missing_fx,omitempty"`
}

// AccountNAVLine is one account's contribution to the NAV, in base currency.
// FXRate is the rate applied to the account's own currency, nil when no
// conversion happened.
type AccountNAVLine struct {
	AccountID string           `json:"account_id"`
	Name      string           `json:"name"`
	Currency  string           `json:"currency"`
	Value     decimal.Decimal  `json:"value"`
	FXRate    *decimal.Decimal `json:"fx_rate,omitempty"`
}

// FundPerformance aggregates quota metrics from the FundShare history.
// Volatility is nil below the 20-sample minimum.
type FundPerformance struct {
	UserID            string           `json:"user_id"`
	CurrentNAV        decimal.Decimal  `json:"current_nav"`
	CurrentShareValue decimal.Decimal  `json:"current_share_value"`
	SharesOutstanding decimal.Decimal  `json:"shares_outstanding"`
	TotalReturn       decimal.Decimal  `json:"total_return"`
	DailyReturn       decimal.Decimal  `json:"daily_return"`
	MTDReturn         decimal.Decimal  `json:"mtd_return"`
	YTDReturn         decimal.Decimal  `json:"ytd_return"`
	OneYearReturn     decimal.Decimal  `json:"one_year_return"`
	MaxDrawdown       decimal.Decimal  `json:"max_drawdown"`
	Volatility        *decimal.Decimal `json:"volatility,omitempty"` // annualized, √252
	AsOf              time.Time        `json:"as_of"`
}
