package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryBreakdown is the canonical statement category shape. Cayman
// statements map into it via adapters (cash → conta_corrente,
// equities_long + equities_short → renda_variavel, structured_products →
// renda_fixa).
type CategoryBreakdown struct {
	RendaFixa          decimal.Decimal `json:"renda_fixa"`
	FundosInvestimento decimal.Decimal `json:"fundos_investimento"`
	RendaVariavel      decimal.Decimal `json:"renda_variavel"`
	Derivativos        decimal.Decimal `json:"derivativos"`
	ContaCorrente      decimal.Decimal `json:"conta_corrente"`
	COE                decimal.Decimal `json:"coe"`
}

// Total sums the category buckets.
func (c CategoryBreakdown) Total() decimal.Decimal {
	return c.RendaFixa.Add(c.FundosInvestimento).Add(c.RendaVariavel).
		Add(c.Derivativos).Add(c.ContaCorrente).Add(c.COE)
}

// PortfolioSnapshot is a materialized daily total. AccountID empty means the
// consolidated row, which equals the sum of per-account rows in base
// currency. (UserID, Date, AccountID) is unique.
type PortfolioSnapshot struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Date          time.Time         `json:"date"`
	AccountID     string            `json:"account_id,omitempty"` // empty = consolidated
	Currency      string            `json:"currency"`
	NAV           decimal.Decimal   `json:"nav"`
	TotalCost     decimal.Decimal   `json:"total_cost"`
	RealizedPnL   decimal.Decimal   `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal   `json:"unrealized_pnl"`
	Categories    CategoryBreakdown `json:"categories"`
	DocumentID    string            `json:"document_id,omitempty"` // source statement, when authoritative
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// FixedIncomePosition is a statement-sourced holding that is never replayed.
// Authoritative from the latest statement's reference date.
type FixedIncomePosition struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	Description   string          `json:"description"`
	Issuer        string          `json:"issuer,omitempty"`
	IndexerRate   string          `json:"indexer_rate,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	Principal     decimal.Decimal `json:"principal"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	MaturityDate  *time.Time      `json:"maturity_date,omitempty"`
	ReferenceDate time.Time       `json:"reference_date"`
	DocumentID    string          `json:"document_id,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// InvestmentFundPosition is a statement-sourced fund holding, authoritative
// from the latest statement's reference date.
type InvestmentFundPosition struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	FundName      string          `json:"fund_name"`
	CNPJ          string          `json:"cnpj,omitempty"`
	QuotaQuantity decimal.Decimal `json:"quota_quantity"`
	QuotaValue    decimal.Decimal `json:"quota_value"`
	GrossValue    decimal.Decimal `json:"gross_value"`
	NetValue      decimal.Decimal `json:"net_value"`
	ReferenceDate time.Time       `json:"reference_date"`
	DocumentID    string          `json:"document_id,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
