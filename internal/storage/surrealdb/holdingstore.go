package surrealdb

import (
	"context"

	"github.com/surrealdb/surrealdb.go"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

// FixedIncomeStore implements interfaces.FixedIncomeStore using SurrealDB.
// Statement-sourced holdings are replaced wholesale per account.
type FixedIncomeStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewFixedIncomeStore creates a new FixedIncomeStore.
func NewFixedIncomeStore(db *surrealdb.DB, logger *common.Logger) *FixedIncomeStore {
	return &FixedIncomeStore{db: db, logger: logger}
}

func (s *FixedIncomeStore) ReplaceForAccount(ctx context.Context, accountID string, positions []*models.FixedIncomePosition) error {
	sql := "DELETE fixed_income WHERE data.account_id = $account_id RETURN BEFORE"
	if _, err := deleteWhere[models.FixedIncomePosition](ctx, s.db, sql, map[string]any{"account_id": accountID}); err != nil {
		return err
	}
	for _, pos := range positions {
		if err := createRow(ctx, s.db, "fixed_income", recordKey(pos.ID), pos); err != nil {
			return err
		}
	}
	return nil
}

func (s *FixedIncomeStore) ListByAccount(ctx context.Context, accountID string) ([]*models.FixedIncomePosition, error) {
	sql := "SELECT * FROM fixed_income WHERE data.account_id = $account_id ORDER BY data.description ASC"
	return queryRows[models.FixedIncomePosition](ctx, s.db, sql, map[string]any{"account_id": accountID})
}

// Compile-time check
var _ interfaces.FixedIncomeStore = (*FixedIncomeStore)(nil)

// InvestmentFundStore implements interfaces.InvestmentFundStore using
// SurrealDB.
type InvestmentFundStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewInvestmentFundStore creates a new InvestmentFundStore.
func NewInvestmentFundStore(db *surrealdb.DB, logger *common.Logger) *InvestmentFundStore {
	return &InvestmentFundStore{db: db, logger: logger}
}

func (s *InvestmentFundStore) ReplaceForAccount(ctx context.Context, accountID string, positions []*models.InvestmentFundPosition) error {
	sql := "DELETE investment_fund WHERE data.account_id = $account_id RETURN BEFORE"
	if _, err := deleteWhere[models.InvestmentFundPosition](ctx, s.db, sql, map[string]any{"account_id": accountID}); err != nil {
		return err
	}
	for _, pos := range positions {
		if err := createRow(ctx, s.db, "investment_fund", recordKey(pos.ID), pos); err != nil {
			return err
		}
	}
	return nil
}

func (s *InvestmentFundStore) ListByAccount(ctx context.Context, accountID string) ([]*models.InvestmentFundPosition, error) {
	sql := "SELECT * FROM investment_fund WHERE data.account_id = $account_id ORDER BY data.fund_name ASC"
	return queryRows[models.InvestmentFundPosition](ctx, s.db, sql, map[string]any{"account_id": accountID})
}

// Compile-time check
var _ interfaces.InvestmentFundStore = (*InvestmentFundStore)(nil)
