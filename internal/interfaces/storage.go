// Package interfaces defines service contracts for Carteira
package interfaces

import (
	"context"
	"time"

	"github.com/lfmartins/carteira/internal/models"
)

// StorageManager coordinates all storage backends.
type StorageManager interface {
	Users() UserStore
	Accounts() AccountStore
	Assets() AssetStore
	Transactions() TransactionStore
	Positions() PositionStore
	RealizedTrades() RealizedTradeStore
	CashFlows() CashFlowStore
	Quotes() QuoteStore
	Rates() ExchangeRateStore
	FundShares() FundShareStore
	Snapshots() SnapshotStore
	FixedIncome() FixedIncomeStore
	InvestmentFunds() InvestmentFundStore
	Documents() DocumentStore
	Files() FileStore

	// DataPath returns the base data directory (uploads, charts).
	DataPath() string

	Close() error
}

// UserStore manages user accounts.
type UserStore interface {
	Get(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]*models.User, error)
}

// AccountStore manages brokerage accounts. Deletion is soft.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	Get(ctx context.Context, accountID string) (*models.Account, error)
	GetByName(ctx context.Context, userID, name string) (*models.Account, error)
	ListByUser(ctx context.Context, userID string, includeInactive bool) ([]*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	SoftDelete(ctx context.Context, accountID string) error
}

// AssetStore manages global tradable instruments.
type AssetStore interface {
	Create(ctx context.Context, asset *models.Asset) error
	Get(ctx context.Context, assetID string) (*models.Asset, error)
	GetByTicker(ctx context.Context, ticker string) (*models.Asset, error)
	GetBatch(ctx context.Context, assetIDs []string) (map[string]*models.Asset, error)
	List(ctx context.Context) ([]*models.Asset, error)
	Update(ctx context.Context, asset *models.Asset) error
}

// TransactionStore manages the immutable journal.
type TransactionStore interface {
	Create(ctx context.Context, txn *models.Transaction) error
	Get(ctx context.Context, txnID string) (*models.Transaction, error)
	Update(ctx context.Context, txn *models.Transaction) error
	Delete(ctx context.Context, txnID string) error
	// ListByPair returns the complete log for (account, asset) in ascending
	// executed_at order with ascending id as the tie-break.
	ListByPair(ctx context.Context, accountID, assetID string) ([]*models.Transaction, error)
	List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)
	// AssetIDs returns every asset with at least one transaction on the account.
	AssetIDs(ctx context.Context, accountID string) ([]string, error)
}

// PositionStore manages open positions. (account_id, asset_id) is unique.
type PositionStore interface {
	Get(ctx context.Context, accountID, assetID string) (*models.Position, error)
	Upsert(ctx context.Context, position *models.Position) error
	Delete(ctx context.Context, accountID, assetID string) error
	DeleteByAccount(ctx context.Context, accountID string) (int, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.Position, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Position, error)
}

// RealizedTradeStore manages the append-only closed-trade record.
type RealizedTradeStore interface {
	// Upsert writes a replay-emitted trade keyed by its dedup key, so
	// re-running replay never duplicates rows.
	Upsert(ctx context.Context, trade *models.RealizedTrade) error
	// Append writes a reconciliation-emitted trade unconditionally.
	Append(ctx context.Context, trade *models.RealizedTrade) error
	DeleteCalculated(ctx context.Context, accountID, assetID string) (int, error)
	List(ctx context.Context, filter models.RealizedFilter) ([]*models.RealizedTrade, error)
}

// CashFlowStore manages cash events.
type CashFlowStore interface {
	Create(ctx context.Context, flow *models.CashFlow) error
	Get(ctx context.Context, flowID string) (*models.CashFlow, error)
	Update(ctx context.Context, flow *models.CashFlow) error
	Delete(ctx context.Context, flowID string) error
	List(ctx context.Context, filter models.CashFlowFilter) ([]*models.CashFlow, error)
	// ListByUser returns every cash flow across the user's accounts with
	// executed_at <= until.
	ListByUser(ctx context.Context, userID string, until time.Time) ([]*models.CashFlow, error)
}

// QuoteStore manages dated per-asset prices. (asset_id, date) is unique.
type QuoteStore interface {
	Upsert(ctx context.Context, quote *models.Quote) error
	// Latest returns, per asset, the effective price of the row with max date.
	Latest(ctx context.Context, assetIDs []string) (map[string]models.PricePoint, error)
	// AtDate returns, per asset, the effective price of the row with the
	// greatest date <= target.
	AtDate(ctx context.Context, assetIDs []string, target time.Time) (map[string]models.PricePoint, error)
	History(ctx context.Context, assetID string, from, to *time.Time, limit int) ([]*models.Quote, error)
}

// ExchangeRateStore manages dated currency rates. (date, from, to) is unique.
type ExchangeRateStore interface {
	Upsert(ctx context.Context, rate *models.ExchangeRate) error
	// LatestWithin returns the most recent rate for the pair with
	// date in (target - windowDays, target].
	LatestWithin(ctx context.Context, from, to string, target time.Time, windowDays int) (*models.ExchangeRate, error)
}

// FundShareStore manages the quota ledger. (user_id, date) is unique.
type FundShareStore interface {
	Upsert(ctx context.Context, share *models.FundShare) error
	Get(ctx context.Context, userID string, date time.Time) (*models.FundShare, error)
	Latest(ctx context.Context, userID string) (*models.FundShare, error)
	// LatestBefore returns the newest row with date < before.
	LatestBefore(ctx context.Context, userID string, before time.Time) (*models.FundShare, error)
	// History returns rows ascending by date within the window.
	History(ctx context.Context, userID string, from, to *time.Time, limit int) ([]*models.FundShare, error)
	// Recent returns up to n rows descending by date.
	Recent(ctx context.Context, userID string, n int) ([]*models.FundShare, error)
}

// SnapshotStore manages materialized daily totals.
type SnapshotStore interface {
	Upsert(ctx context.Context, snapshot *models.PortfolioSnapshot) error
	Get(ctx context.Context, userID string, date time.Time, accountID string) (*models.PortfolioSnapshot, error)
	History(ctx context.Context, userID string, from, to *time.Time) ([]*models.PortfolioSnapshot, error)
}

// FixedIncomeStore manages statement-sourced fixed income holdings.
type FixedIncomeStore interface {
	// ReplaceForAccount swaps the account's holdings for the statement's,
	// stamped with the statement reference date.
	ReplaceForAccount(ctx context.Context, accountID string, positions []*models.FixedIncomePosition) error
	ListByAccount(ctx context.Context, accountID string) ([]*models.FixedIncomePosition, error)
}

// InvestmentFundStore manages statement-sourced fund holdings.
type InvestmentFundStore interface {
	ReplaceForAccount(ctx context.Context, accountID string, positions []*models.InvestmentFundPosition) error
	ListByAccount(ctx context.Context, accountID string) ([]*models.InvestmentFundPosition, error)
}

// DocumentStore manages parsed source artifacts.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, docID string) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, docID string) error
	ListByUser(ctx context.Context, userID string, status models.ParsingStatus) ([]*models.Document, error)
}

// FileStore provides binary file storage (uploaded PDFs, rendered charts).
type FileStore interface {
	SaveFile(ctx context.Context, category, key string, data []byte, contentType string) error
	GetFile(ctx context.Context, category, key string) ([]byte, string, error)
	DeleteFile(ctx context.Context, category, key string) error
	HasFile(ctx context.Context, category, key string) (bool, error)
}
