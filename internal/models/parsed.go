package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ParsedTransactionType is the canonical vocabulary every broker dialect is
// normalized into before any engine sees it. It is wider than
// TransactionType: some entries (fees, taxes, transfers) become cash flows.
type ParsedTransactionType string

const (
	ParsedBuy           ParsedTransactionType = "BUY"
	ParsedSell          ParsedTransactionType = "SELL"
	ParsedDividend      ParsedTransactionType = "DIVIDEND"
	ParsedJCP           ParsedTransactionType = "JCP"
	ParsedInterest      ParsedTransactionType = "INTEREST"
	ParsedFee           ParsedTransactionType = "FEE"
	ParsedCustodyFee    ParsedTransactionType = "CUSTODY_FEE"
	ParsedTax           ParsedTransactionType = "TAX"
	ParsedTransferIn    ParsedTransactionType = "TRANSFER_IN"
	ParsedTransferOut   ParsedTransactionType = "TRANSFER_OUT"
	ParsedApplication   ParsedTransactionType = "APPLICATION"
	ParsedRedemption    ParsedTransactionType = "REDEMPTION"
	ParsedLendingOut    ParsedTransactionType = "LENDING_OUT"
	ParsedLendingReturn ParsedTransactionType = "LENDING_RETURN"
	ParsedSettlement    ParsedTransactionType = "SETTLEMENT"
	ParsedSplit         ParsedTransactionType = "SPLIT"
	ParsedSubscription  ParsedTransactionType = "SUBSCRIPTION"
	ParsedOther         ParsedTransactionType = "OTHER"
)

// ParsedTransaction is a canonical transaction extracted from a statement.
type ParsedTransaction struct {
	Date        string                `json:"date"` // YYYY-MM-DD, validated
	Type        ParsedTransactionType `json:"type"`
	RawType     string                `json:"raw_type,omitempty"`
	Ticker      string                `json:"ticker,omitempty"`
	Description string                `json:"description,omitempty"`
	Quantity    *decimal.Decimal      `json:"quantity,omitempty"`
	Price       *decimal.Decimal      `json:"price,omitempty"`
	Fees        *decimal.Decimal      `json:"fees,omitempty"`
	Amount      *decimal.Decimal      `json:"amount,omitempty"`
	Currency    string                `json:"currency,omitempty"`
}

// ParsedCashMovement is a cash ledger line extracted from a statement.
type ParsedCashMovement struct {
	Date        string           `json:"date"`
	Type        ParsedTransactionType `json:"type"`
	RawType     string           `json:"raw_type,omitempty"`
	Description string           `json:"description,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Currency    string           `json:"currency,omitempty"`
}

// ParsedStockPosition is one equity holding line from a statement's
// position section. Negative quantity means a short.
type ParsedStockPosition struct {
	Ticker       string           `json:"ticker"`
	Name         string           `json:"name,omitempty"`
	Quantity     *decimal.Decimal `json:"quantity,omitempty"`
	AvgPrice     *decimal.Decimal `json:"avg_price,omitempty"`
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
	TotalCost    *decimal.Decimal `json:"total_cost,omitempty"`
	MarketValue  *decimal.Decimal `json:"market_value,omitempty"`
	Currency     string           `json:"currency,omitempty"`
}

// ParsedFixedIncomePosition is one fixed-income line from a statement.
type ParsedFixedIncomePosition struct {
	Description  string           `json:"description"`
	Issuer       string           `json:"issuer,omitempty"`
	IndexerRate  string           `json:"indexer_rate,omitempty"`
	Quantity     *decimal.Decimal `json:"quantity,omitempty"`
	Principal    *decimal.Decimal `json:"principal,omitempty"`
	CurrentValue *decimal.Decimal `json:"current_value,omitempty"`
	MaturityDate string           `json:"maturity_date,omitempty"`
}

// ParsedFundPosition is one investment-fund line from a statement.
type ParsedFundPosition struct {
	FundName      string           `json:"fund_name"`
	CNPJ          string           `json:"cnpj,omitempty"`
	QuotaQuantity *decimal.Decimal `json:"quota_quantity,omitempty"`
	QuotaValue    *decimal.Decimal `json:"quota_value,omitempty"`
	GrossValue    *decimal.Decimal `json:"gross_value,omitempty"`
	NetValue      *decimal.Decimal `json:"net_value,omitempty"`
}

// ParsedConsolidated is the statement's own consolidated position, already
// mapped to the canonical category shape.
type ParsedConsolidated struct {
	RendaFixa          *decimal.Decimal `json:"renda_fixa,omitempty"`
	FundosInvestimento *decimal.Decimal `json:"fundos_investimento,omitempty"`
	RendaVariavel      *decimal.Decimal `json:"renda_variavel,omitempty"`
	Derivativos        *decimal.Decimal `json:"derivativos,omitempty"`
	ContaCorrente      *decimal.Decimal `json:"conta_corrente,omitempty"`
	COE                *decimal.Decimal `json:"coe,omitempty"`
	Total              *decimal.Decimal `json:"total,omitempty"`
}

// StatementPeriod is the statement coverage window.
type StatementPeriod struct {
	StartDate string `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate   string `json:"end_date,omitempty"`
}

// EndDateTime parses the period end date. Zero time when absent or invalid.
func (p StatementPeriod) EndDateTime() time.Time {
	t, err := time.Parse("2006-01-02", p.EndDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ParsedStatement is the normalized document record the orchestrator emits:
// the section map every statement parser fills in.
type ParsedStatement struct {
	Period                  *StatementPeriod            `json:"period,omitempty"`
	Transactions            []ParsedTransaction         `json:"transactions,omitempty"`
	CashMovements           []ParsedCashMovement        `json:"cash_movements,omitempty"`
	StockPositions          []ParsedStockPosition       `json:"stock_positions,omitempty"`
	FixedIncomePositions    []ParsedFixedIncomePosition `json:"fixed_income_positions,omitempty"`
	InvestmentFundPositions []ParsedFundPosition        `json:"investment_fund_positions,omitempty"`
	ConsolidatedPosition    *ParsedConsolidated         `json:"consolidated_position,omitempty"`
}

// HasAnySection reports whether at least one data section is present.
func (s ParsedStatement) HasAnySection() bool {
	return len(s.Transactions) > 0 || len(s.CashMovements) > 0 ||
		len(s.StockPositions) > 0 || len(s.FixedIncomePositions) > 0 ||
		len(s.InvestmentFundPositions) > 0 || s.ConsolidatedPosition != nil
}
