package surrealdb

import (
	"context"
	"fmt"
	"sort"

	"github.com/surrealdb/surrealdb.go"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

// TransactionStore implements interfaces.TransactionStore using SurrealDB.
type TransactionStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(db *surrealdb.DB, logger *common.Logger) *TransactionStore {
	return &TransactionStore{db: db, logger: logger}
}

func (s *TransactionStore) Create(ctx context.Context, txn *models.Transaction) error {
	return createRow(ctx, s.db, "transaction", recordKey(txn.ID), txn)
}

func (s *TransactionStore) Get(ctx context.Context, txnID string) (*models.Transaction, error) {
	return selectRow[models.Transaction](ctx, s.db, "transaction", recordKey(txnID))
}

func (s *TransactionStore) Update(ctx context.Context, txn *models.Transaction) error {
	if _, err := s.Get(ctx, txn.ID); err != nil {
		return err
	}
	return upsertRow(ctx, s.db, "transaction", recordKey(txn.ID), txn)
}

func (s *TransactionStore) Delete(ctx context.Context, txnID string) error {
	if _, err := s.Get(ctx, txnID); err != nil {
		return err
	}
	return deleteRow[models.Transaction](ctx, s.db, "transaction", recordKey(txnID))
}

// ListByPair returns the complete journal for the pair, ordered by
// executed_at with id as the tie-break. Replay depends on this order.
func (s *TransactionStore) ListByPair(ctx context.Context, accountID, assetID string) ([]*models.Transaction, error) {
	sql := `SELECT * FROM transaction
		WHERE data.account_id = $account_id AND data.asset_id = $asset_id
		ORDER BY data.executed_at ASC, data.id ASC`
	return queryRows[models.Transaction](ctx, s.db, sql, map[string]any{
		"account_id": accountID,
		"asset_id":   assetID,
	})
}

func (s *TransactionStore) List(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	sql := "SELECT * FROM transaction WHERE 1 = 1"
	vars := map[string]any{}

	if filter.AccountID != "" {
		sql += " AND data.account_id = $account_id"
		vars["account_id"] = filter.AccountID
	}
	if filter.AssetID != "" {
		sql += " AND data.asset_id = $asset_id"
		vars["asset_id"] = filter.AssetID
	}
	if filter.Type != "" {
		sql += " AND data.type = $type"
		vars["type"] = string(filter.Type)
	}
	if filter.From != nil {
		sql += " AND data.executed_at >= $from"
		vars["from"] = *filter.From
	}
	if filter.To != nil {
		sql += " AND data.executed_at <= $to"
		vars["to"] = *filter.To
	}

	sql += " ORDER BY data.executed_at DESC, data.id DESC"
	if filter.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			sql += fmt.Sprintf(" START %d", filter.Offset)
		}
	}

	return queryRows[models.Transaction](ctx, s.db, sql, vars)
}

// AssetIDs returns every asset with at least one transaction on the account.
func (s *TransactionStore) AssetIDs(ctx context.Context, accountID string) ([]string, error) {
	sql := "SELECT * FROM transaction WHERE data.account_id = $account_id"
	txns, err := queryRows[models.Transaction](ctx, s.db, sql, map[string]any{"account_id": accountID})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	for _, txn := range txns {
		if !seen[txn.AssetID] {
			seen[txn.AssetID] = true
			ids = append(ids, txn.AssetID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Compile-time check
var _ interfaces.TransactionStore = (*TransactionStore)(nil)
