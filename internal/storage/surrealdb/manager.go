// Package surrealdb implements the storage layer on SurrealDB.
package surrealdb

import (
	"context"
	"fmt"
	"os"

	"github.com/surrealdb/surrealdb.go"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db       *surrealdb.DB
	logger   *common.Logger
	dataPath string

	userStore        *UserStore
	accountStore     *AccountStore
	assetStore       *AssetStore
	transactionStore *TransactionStore
	positionStore    *PositionStore
	tradeStore       *RealizedTradeStore
	cashFlowStore    *CashFlowStore
	quoteStore       *QuoteStore
	rateStore        *ExchangeRateStore
	fundShareStore   *FundShareStore
	snapshotStore    *SnapshotStore
	fixedStore       *FixedIncomeStore
	fundPosStore     *InvestmentFundStore
	documentStore    *DocumentStore
	fileStore        *FileStore
}

// tables that must exist before the first query (SurrealDB v3 errors on
// querying undefined tables).
var tables = []string{
	"user", "account", "asset", "transaction", "position", "realized_trade",
	"cash_flow", "quote", "exchange_rate", "fund_share", "snapshot",
	"fixed_income", "investment_fund", "document", "files",
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()

	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	for _, table := range tables {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	dataPath := config.Storage.DataPath
	if dataPath == "" {
		dataPath = "data"
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data path: %w", err)
	}

	m := &Manager{
		db:       db,
		logger:   logger,
		dataPath: dataPath,
	}

	m.userStore = NewUserStore(db, logger)
	m.accountStore = NewAccountStore(db, logger)
	m.assetStore = NewAssetStore(db, logger)
	m.transactionStore = NewTransactionStore(db, logger)
	m.positionStore = NewPositionStore(db, logger, m.accountStore)
	m.tradeStore = NewRealizedTradeStore(db, logger)
	m.cashFlowStore = NewCashFlowStore(db, logger, m.accountStore)
	m.quoteStore = NewQuoteStore(db, logger)
	m.rateStore = NewExchangeRateStore(db, logger)
	m.fundShareStore = NewFundShareStore(db, logger)
	m.snapshotStore = NewSnapshotStore(db, logger)
	m.fixedStore = NewFixedIncomeStore(db, logger)
	m.fundPosStore = NewInvestmentFundStore(db, logger)
	m.documentStore = NewDocumentStore(db, logger)
	m.fileStore = NewFileStore(db, logger)

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

func (m *Manager) Users() interfaces.UserStore                     { return m.userStore }
func (m *Manager) Accounts() interfaces.AccountStore               { return m.accountStore }
func (m *Manager) Assets() interfaces.AssetStore                   { return m.assetStore }
func (m *Manager) Transactions() interfaces.TransactionStore       { return m.transactionStore }
func (m *Manager) Positions() interfaces.PositionStore             { return m.positionStore }
func (m *Manager) RealizedTrades() interfaces.RealizedTradeStore   { return m.tradeStore }
func (m *Manager) CashFlows() interfaces.CashFlowStore             { return m.cashFlowStore }
func (m *Manager) Quotes() interfaces.QuoteStore                   { return m.quoteStore }
func (m *Manager) Rates() interfaces.ExchangeRateStore             { return m.rateStore }
func (m *Manager) FundShares() interfaces.FundShareStore           { return m.fundShareStore }
func (m *Manager) Snapshots() interfaces.SnapshotStore             { return m.snapshotStore }
func (m *Manager) FixedIncome() interfaces.FixedIncomeStore        { return m.fixedStore }
func (m *Manager) InvestmentFunds() interfaces.InvestmentFundStore { return m.fundPosStore }
func (m *Manager) Documents() interfaces.DocumentStore             { return m.documentStore }
func (m *Manager) Files() interfaces.FileStore                     { return m.fileStore }

func (m *Manager) DataPath() string {
	return m.dataPath
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
