package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lfmartins/carteira/internal/models"
)

// ReplayService rebuilds positions from the transaction log.
type ReplayService interface {
	// Replay recomputes the (account, asset) position from the complete
	// ordered transaction log, persists it (or deletes it when flat), and
	// upserts the realized trade record for every closing fill.
	Replay(ctx context.Context, accountID, assetID string) (*models.Position, []models.RealizedPnLEntry, error)
	// ReplayAccount applies Replay to every asset with at least one
	// transaction on the account.
	ReplayAccount(ctx context.Context, accountID string) ([]*models.Position, error)
	// ReplayAfterChange is the trigger hook after create/update/delete of a
	// transaction on the pair.
	ReplayAfterChange(ctx context.Context, accountID, assetID string) error
}

// PnLService exposes realized and unrealized P&L aggregations.
type PnLService interface {
	// Realized aggregates realized events by re-running replay, not by
	// reading persisted trades.
	Realized(ctx context.Context, filter models.RealizedFilter) (*models.RealizedSummary, error)
	RealizedByAsset(ctx context.Context, filter models.RealizedFilter) (map[string]*models.RealizedSummary, error)
	// Unrealized joins open positions with prices at the target date
	// (zero time = latest).
	Unrealized(ctx context.Context, userID, accountID string, at time.Time) (*models.UnrealizedSummary, error)
	// Consolidated aggregates the same asset across accounts with a
	// cost-weighted average price; shorts net against longs.
	Consolidated(ctx context.Context, userID string) ([]models.ConsolidatedPosition, error)
	// Allocation breaks current value down by asset type and top-N assets.
	Allocation(ctx context.Context, userID string, topN int) (*models.PortfolioAllocation, error)
	// ConsolidatedView is the full portfolio panel at a date: per-account
	// NAV, positions with prices, type breakdown, YTD realized P&L.
	ConsolidatedView(ctx context.Context, userID string, date time.Time) (*models.ConsolidatedView, error)
}

// QuoteService is the quote store plus ingestion.
type QuoteService interface {
	Upsert(ctx context.Context, quote *models.Quote) error
	Latest(ctx context.Context, assetIDs []string) (map[string]models.PricePoint, error)
	AtDate(ctx context.Context, assetIDs []string, target time.Time) (map[string]models.PricePoint, error)
	History(ctx context.Context, assetID string, from, to *time.Time, limit int) ([]*models.Quote, error)
	// SyncTickers fetches bars from the provider for each ticker over the
	// range with a bounded worker pool; per-ticker errors are collected.
	SyncTickers(ctx context.Context, tickers []string, from, to time.Time) (*models.QuoteSyncReport, error)
	// SyncAll refreshes every active asset for the trailing window.
	SyncAll(ctx context.Context) (*models.QuoteSyncReport, error)
	// EnsureAsset resolves a ticker to an asset, auto-creating it with the
	// heuristic type when unknown.
	EnsureAsset(ctx context.Context, ticker string) (*models.Asset, error)
}

// FXService is the dated-rate store plus conversion.
type FXService interface {
	// Rate returns the conversion rate at the date using the fallback
	// window, deriving the inverse pair when needed. ok=false when no rate
	// could be resolved.
	Rate(ctx context.Context, from, to string, date time.Time) (rate decimal.Decimal, ok bool, err error)
	// Convert applies Rate; when the pair is missing the amount is returned
	// unchanged with rate=nil so callers can flag partial results.
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, date time.Time) (decimal.Decimal, *decimal.Decimal, error)
	Upsert(ctx context.Context, rate *models.ExchangeRate) error
	// SyncRates ingests provider rates for the pair over the range.
	SyncRates(ctx context.Context, from, to string, start, end time.Time) (int, error)
}

// FundService is the NAV & quota engine.
type FundService interface {
	NAV(ctx context.Context, userID string, date time.Time, convert bool) (*models.NAVResult, error)
	// CreateDailyFundShare materializes the quota row for the date. A zero
	// NAV writes nothing and returns nil, nil.
	CreateDailyFundShare(ctx context.Context, userID string, date time.Time) (*models.FundShare, error)
	SharesOutstanding(ctx context.Context, userID string, asOf time.Time) (decimal.Decimal, error)
	IssueShares(ctx context.Context, userID, cashFlowID string, amount decimal.Decimal, date time.Time) (decimal.Decimal, error)
	RedeemShares(ctx context.Context, userID, cashFlowID string, amount decimal.Decimal, date time.Time) (decimal.Decimal, error)
	Performance(ctx context.Context, userID string) (*models.FundPerformance, error)
	History(ctx context.Context, userID string, from, to *time.Time, limit int) ([]*models.FundShare, error)
}

// SnapshotService materializes daily portfolio snapshots.
type SnapshotService interface {
	// Materialize writes the consolidated and per-account snapshots for the
	// date, derived from positions, prices and FX.
	Materialize(ctx context.Context, userID string, date time.Time) ([]*models.PortfolioSnapshot, error)
	// ApplyStatement overwrites the account snapshot with the statement's
	// consolidated position, which is authoritative.
	ApplyStatement(ctx context.Context, userID, accountID, documentID string, date time.Time, consolidated models.CategoryBreakdown) (*models.PortfolioSnapshot, error)
	History(ctx context.Context, userID string, from, to *time.Time) ([]*models.PortfolioSnapshot, error)
	// RenderShareValueChart writes a PNG of the share value history to file
	// storage and returns its storage key.
	RenderShareValueChart(ctx context.Context, userID string, from, to *time.Time) (string, error)
}

// ReconcileService diffs statement positions against the store.
type ReconcileService interface {
	// Reconcile treats the statement's stock positions as the source of
	// truth for the account at the period end date.
	Reconcile(ctx context.Context, accountID string, positions []models.ParsedStockPosition, endDate time.Time, documentID string) (*models.ReconcileResult, error)
	// Migrate deletes all account positions and inserts the statement's
	// verbatim. First-import only.
	Migrate(ctx context.Context, accountID string, positions []models.ParsedStockPosition, endDate time.Time, documentID string) (*models.ReconcileResult, error)
}

// DocumentService drives the LLM parse and the ledger commit.
type DocumentService interface {
	Upload(ctx context.Context, userID, accountID string, docType models.DocumentType, fileName string, pdf []byte) (*models.Document, error)
	// Parse runs the parse loop (full prompt, focused retries, validation)
	// and stores the normalized record on the document.
	Parse(ctx context.Context, documentID string) (*models.Document, error)
	// Commit applies the parsed sections to the ledger: transactions, cash
	// movements, fixed income / fund positions, reconciliation, replay.
	Commit(ctx context.Context, documentID string) (*models.CommitResult, error)
	Get(ctx context.Context, documentID string) (*models.Document, error)
	ListByUser(ctx context.Context, userID string, status models.ParsingStatus) ([]*models.Document, error)
	Delete(ctx context.Context, documentID string) error
}

// LedgerService is transaction / cash-flow CRUD with automatic replay and
// quota issuance hooks.
type LedgerService interface {
	CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, txnID string, update models.TransactionUpdate) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, txnID string) error
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)

	CreateCashFlow(ctx context.Context, flow *models.CashFlow) (*models.CashFlow, error)
	UpdateCashFlow(ctx context.Context, flowID string, flow *models.CashFlow) (*models.CashFlow, error)
	DeleteCashFlow(ctx context.Context, flowID string) error
	ListCashFlows(ctx context.Context, filter models.CashFlowFilter) ([]*models.CashFlow, error)
}
