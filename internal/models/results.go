package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteSyncReport summarizes a batch quote sync. Per-ticker errors never
// fail the batch; they are collected here.
type QuoteSyncReport struct {
	Requested int               `json:"requested"`
	Synced    int               `json:"synced"`
	Upserted  int               `json:"upserted"`
	Errors    map[string]string `json:"errors,omitempty"` // ticker -> error
	Elapsed   time.Duration     `json:"elapsed"`
}

// ReconcileAction is what reconciliation did for one ticker.
type ReconcileAction string

const (
	ReconcileCreated ReconcileAction = "CREATED"
	ReconcileUpdated ReconcileAction = "UPDATED"
	ReconcileClosed  ReconcileAction = "CLOSED"
)

// ReconcileEntry is the outcome for one ticker in a reconciliation run.
type ReconcileEntry struct {
	Ticker      string           `json:"ticker"`
	Action      ReconcileAction  `json:"action"`
	Quantity    decimal.Decimal  `json:"quantity"`
	RealizedPnL *decimal.Decimal `json:"realized_pnl,omitempty"` // set on CLOSED
}

// ReconcileResult collects per-ticker outcomes and warnings. A per-ticker
// failure never aborts the whole reconciliation.
type ReconcileResult struct {
	AccountID string           `json:"account_id"`
	Date      time.Time        `json:"date"`
	Entries   []ReconcileEntry `json:"entries"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// CommitResult reports what a document commit wrote to the ledger.
type CommitResult struct {
	DocumentID       string           `json:"document_id"`
	Transactions     int              `json:"transactions"`
	CashFlows        int              `json:"cash_flows"`
	FixedIncome      int              `json:"fixed_income_positions"`
	InvestmentFunds  int              `json:"investment_fund_positions"`
	Reconciliation   *ReconcileResult `json:"reconciliation,omitempty"`
	ReplayedPairs    int              `json:"replayed_pairs"`
	Warnings         []string         `json:"warnings,omitempty"`
}
