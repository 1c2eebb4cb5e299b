package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

// CashFlowStore implements interfaces.CashFlowStore using SurrealDB.
type CashFlowStore struct {
	db       *surrealdb.DB
	logger   *common.Logger
	accounts *AccountStore
}

// NewCashFlowStore creates a new CashFlowStore.
func NewCashFlowStore(db *surrealdb.DB, logger *common.Logger, accounts *AccountStore) *CashFlowStore {
	return &CashFlowStore{db: db, logger: logger, accounts: accounts}
}

func (s *CashFlowStore) Create(ctx context.Context, flow *models.CashFlow) error {
	return createRow(ctx, s.db, "cash_flow", recordKey(flow.ID), flow)
}

func (s *CashFlowStore) Get(ctx context.Context, flowID string) (*models.CashFlow, error) {
	return selectRow[models.CashFlow](ctx, s.db, "cash_flow", recordKey(flowID))
}

func (s *CashFlowStore) Update(ctx context.Context, flow *models.CashFlow) error {
	if _, err := s.Get(ctx, flow.ID); err != nil {
		return err
	}
	return upsertRow(ctx, s.db, "cash_flow", recordKey(flow.ID), flow)
}

func (s *CashFlowStore) Delete(ctx context.Context, flowID string) error {
	if _, err := s.Get(ctx, flowID); err != nil {
		return err
	}
	return deleteRow[models.CashFlow](ctx, s.db, "cash_flow", recordKey(flowID))
}

func (s *CashFlowStore) List(ctx context.Context, filter models.CashFlowFilter) ([]*models.CashFlow, error) {
	sql := "SELECT * FROM cash_flow WHERE 1 = 1"
	vars := map[string]any{}

	if filter.AccountID != "" {
		sql += " AND data.account_id = $account_id"
		vars["account_id"] = filter.AccountID
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

	return queryRows[models.CashFlow](ctx, s.db, sql, vars)
}

// ListByUser returns every cash flow across the user's accounts with
// executed_at <= until, ascending. The fund engine folds these into NAV.
func (s *CashFlowStore) ListByUser(ctx context.Context, userID string, until time.Time) ([]*models.CashFlow, error) {
	accountIDs, err := s.accounts.accountIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(accountIDs) == 0 {
		return nil, nil
	}

	sql := `SELECT * FROM cash_flow
		WHERE data.account_id IN $account_ids AND data.executed_at <= $until
		ORDER BY data.executed_at ASC, data.id ASC`
	return queryRows[models.CashFlow](ctx, s.db, sql, map[string]any{
		"account_ids": accountIDs,
		"until":       until,
	})
}

// Compile-time check
var _ interfaces.CashFlowStore = (*CashFlowStore)(nil)
