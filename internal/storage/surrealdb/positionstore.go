package surrealdb

import (
	"context"

	"github.com/surrealdb/surrealdb.go"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

// PositionStore implements interfaces.PositionStore using SurrealDB. The
// record id is the (account, asset) pair, which enforces the netting
// invariant of one row per pair.
type PositionStore struct {
	db       *surrealdb.DB
	logger   *common.Logger
	accounts *AccountStore
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(db *surrealdb.DB, logger *common.Logger, accounts *AccountStore) *PositionStore {
	return &PositionStore{db: db, logger: logger, accounts: accounts}
}

func positionKey(accountID, assetID string) string {
	return recordKey(accountID, assetID)
}

func (s *PositionStore) Get(ctx context.Context, accountID, assetID string) (*models.Position, error) {
	return selectRow[models.Position](ctx, s.db, "position", positionKey(accountID, assetID))
}

func (s *PositionStore) Upsert(ctx context.Context, position *models.Position) error {
	return upsertRow(ctx, s.db, "position", positionKey(position.AccountID, position.AssetID), position)
}

func (s *PositionStore) Delete(ctx context.Context, accountID, assetID string) error {
	return deleteRow[models.Position](ctx, s.db, "position", positionKey(accountID, assetID))
}

func (s *PositionStore) DeleteByAccount(ctx context.Context, accountID string) (int, error) {
	sql := "DELETE position WHERE data.account_id = $account_id RETURN BEFORE"
	return deleteWhere[models.Position](ctx, s.db, sql, map[string]any{"account_id": accountID})
}

func (s *PositionStore) ListByAccount(ctx context.Context, accountID string) ([]*models.Position, error) {
	sql := "SELECT * FROM position WHERE data.account_id = $account_id ORDER BY data.asset_id ASC"
	return queryRows[models.Position](ctx, s.db, sql, map[string]any{"account_id": accountID})
}

func (s *PositionStore) ListByUser(ctx context.Context, userID string) ([]*models.Position, error) {
	accountIDs, err := s.accounts.accountIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(accountIDs) == 0 {
		return nil, nil
	}

	sql := "SELECT * FROM position WHERE data.account_id IN $account_ids ORDER BY data.account_id ASC, data.asset_id ASC"
	return queryRows[models.Position](ctx, s.db, sql, map[string]any{"account_ids": accountIDs})
}

// Compile-time check
var _ interfaces.PositionStore = (*PositionStore)(nil)

// RealizedTradeStore implements interfaces.RealizedTradeStore using SurrealDB.
// Replay-emitted trades are keyed by their dedup key; reconciliation-emitted
// ones by their own id.
type RealizedTradeStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewRealizedTradeStore creates a new RealizedTradeStore.
func NewRealizedTradeStore(db *surrealdb.DB, logger *common.Logger) *RealizedTradeStore {
	return &RealizedTradeStore{db: db, logger: logger}
}

// Upsert writes a replay-emitted trade keyed by its dedup key. A re-run of
// replay keeps the original row id and creation time.
func (s *RealizedTradeStore) Upsert(ctx context.Context, trade *models.RealizedTrade) error {
	key := recordKey(trade.DedupKey())
	if existing, err := selectRow[models.RealizedTrade](ctx, s.db, "realized_trade", key); err == nil {
		trade.ID = existing.ID
		trade.CreatedAt = existing.CreatedAt
	}
	return upsertRow(ctx, s.db, "realized_trade", key, trade)
}

// Append writes a reconciliation-emitted trade unconditionally.
func (s *RealizedTradeStore) Append(ctx context.Context, trade *models.RealizedTrade) error {
	return createRow(ctx, s.db, "realized_trade", recordKey(trade.ID), trade)
}

// DeleteCalculated removes the pair's replay-emitted trades, sparing the
// statement-sourced ones (document_id set).
func (s *RealizedTradeStore) DeleteCalculated(ctx context.Context, accountID, assetID string) (int, error) {
	sql := `DELETE realized_trade
		WHERE data.account_id = $account_id AND data.asset_id = $asset_id
			AND (data.document_id = NONE OR data.document_id = '')
		RETURN BEFORE`
	return deleteWhere[models.RealizedTrade](ctx, s.db, sql, map[string]any{
		"account_id": accountID,
		"asset_id":   assetID,
	})
}

func (s *RealizedTradeStore) List(ctx context.Context, filter models.RealizedFilter) ([]*models.RealizedTrade, error) {
	sql := "SELECT * FROM realized_trade WHERE 1 = 1"
	vars := map[string]any{}

	if filter.AccountID != "" {
		sql += " AND data.account_id = $account_id"
		vars["account_id"] = filter.AccountID
	}
	if filter.AssetID != "" {
		sql += " AND data.asset_id = $asset_id"
		vars["asset_id"] = filter.AssetID
	}
	if filter.From != nil {
		sql += " AND data.close_date >= $from"
		vars["from"] = *filter.From
	}
	if filter.To != nil {
		sql += " AND data.close_date <= $to"
		vars["to"] = *filter.To
	}

	sql += " ORDER BY data.close_date DESC"
	return queryRows[models.RealizedTrade](ctx, s.db, sql, vars)
}

// Compile-time check
var _ interfaces.RealizedTradeStore = (*RealizedTradeStore)(nil)
