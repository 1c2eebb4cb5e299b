// Package ledger implements manual journal maintenance: transaction and
// cash-flow CRUD with automatic position replay and quota issuance.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

var _ interfaces.LedgerService = (*Service)(nil)

// Service wraps the journal stores with the side effects every write
// implies: replay for the touched (account, asset) pair and share
// issuance/redemption for deposits and withdrawals.
type Service struct {
	storage interfaces.StorageManager
	replay  interfaces.ReplayService
	fund    interfaces.FundService
	logger  *common.Logger
}

// NewService creates a new ledger service.
func NewService(storage interfaces.StorageManager, replaySvc interfaces.ReplayService, fundSvc interfaces.FundService, logger *common.Logger) *Service {
	return &Service{storage: storage, replay: replaySvc, fund: fundSvc, logger: logger}
}

// CreateTransaction validates and journals a transaction, then replays the
// pair so the position reflects the new log.
func (s *Service) CreateTransaction(ctx context.Context, txn *models.Transaction) (*models.Transaction, error) {
	if txn == nil {
		return nil, fmt.Errorf("%w: transaction is required", models.ErrValidation)
	}
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.Currency == "" {
		account, err := s.storage.Accounts().Get(ctx, txn.AccountID)
		if err != nil {
			return nil, err
		}
		txn.Currency = account.Currency
	} else if _, err := s.storage.Accounts().Get(ctx, txn.AccountID); err != nil {
		return nil, err
	}
	if _, err := s.storage.Assets().Get(ctx, txn.AssetID); err != nil {
		return nil, err
	}
	if txn.ExchangeRate.IsZero() {
		txn.ExchangeRate = decimal.NewFromInt(1)
	}
	if err := txn.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	txn.CreatedAt = now
	txn.UpdatedAt = now

	if err := s.storage.Transactions().Create(ctx, txn); err != nil {
		return nil, err
	}
	if err := s.replay.ReplayAfterChange(ctx, txn.AccountID, txn.AssetID); err != nil {
		return nil, fmt.Errorf("transaction created but replay failed: %w", err)
	}

	s.logger.Info().
		Str("transaction_id", txn.ID).
		Str("account_id", txn.AccountID).
		Str("asset_id", txn.AssetID).
		Str("type", string(txn.Type)).
		Msg("Transaction created")
	return txn, nil
}

// UpdateTransaction applies the non-nil fields of the update and replays
// the pair. Account and asset are immutable; delete and recreate to move a
// transaction.
func (s *Service) UpdateTransaction(ctx context.Context, txnID string, update models.TransactionUpdate) (*models.Transaction, error) {
	txn, err := s.storage.Transactions().Get(ctx, txnID)
	if err != nil {
		return nil, err
	}

	if update.Type != nil {
		txn.Type = *update.Type
	}
	if update.Quantity != nil {
		txn.Quantity = *update.Quantity
	}
	if update.Price != nil {
		txn.Price = *update.Price
	}
	if update.Fees != nil {
		txn.Fees = *update.Fees
	}
	if update.Currency != nil {
		txn.Currency = *update.Currency
	}
	if update.ExchangeRate != nil {
		txn.ExchangeRate = *update.ExchangeRate
	}
	if update.ExecutedAt != nil {
		txn.ExecutedAt = *update.ExecutedAt
	}
	if update.Notes != nil {
		txn.Notes = *update.Notes
	}
	if err := txn.Validate(); err != nil {
		return nil, err
	}
	txn.UpdatedAt = time.Now().UTC()

	if err := s.storage.Transactions().Update(ctx, txn); err != nil {
		return nil, err
	}
	if err := s.replay.ReplayAfterChange(ctx, txn.AccountID, txn.AssetID); err != nil {
		return nil, fmt.Errorf("transaction updated but replay failed: %w", err)
	}

	s.logger.Info().
		Str("transaction_id", txn.ID).
		Str("account_id", txn.AccountID).
		Msg("Transaction updated")
	return txn, nil
}

// DeleteTransaction removes the entry and replays the pair. Positions
// sourced solely from the deleted entry end up deleted as well.
func (s *Service) DeleteTransaction(ctx context.Context, txnID string) error {
	txn, err := s.storage.Transactions().Get(ctx, txnID)
	if err != nil {
		return err
	}
	if err := s.storage.Transactions().Delete(ctx, txnID); err != nil {
		return err
	}
	if err := s.replay.ReplayAfterChange(ctx, txn.AccountID, txn.AssetID); err != nil {
		return fmt.Errorf("transaction deleted but replay failed: %w", err)
	}

	s.logger.Info().
		Str("transaction_id", txnID).
		Str("account_id", txn.AccountID).
		Msg("Transaction deleted")
	return nil
}

// ListTransactions queries the journal.
func (s *Service) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	return s.storage.Transactions().List(ctx, filter)
}

// CreateCashFlow validates and records a cash event. Deposits issue fund
// shares and withdrawals redeem them; when the quota hook fails the flow is
// rolled back so the cash journal and the share ledger never diverge.
func (s *Service) CreateCashFlow(ctx context.Context, flow *models.CashFlow) (*models.CashFlow, error) {
	if flow == nil {
		return nil, fmt.Errorf("%w: cash flow is required", models.ErrValidation)
	}
	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}
	account, err := s.storage.Accounts().Get(ctx, flow.AccountID)
	if err != nil {
		return nil, err
	}
	if flow.Currency == "" {
		flow.Currency = account.Currency
	}
	if flow.ExchangeRate.IsZero() {
		flow.ExchangeRate = decimal.NewFromInt(1)
	}
	if err := flow.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	flow.CreatedAt = now
	flow.UpdatedAt = now

	if err := s.storage.CashFlows().Create(ctx, flow); err != nil {
		return nil, err
	}
	if err := s.applyQuotaHook(ctx, account.UserID, flow); err != nil {
		if delErr := s.storage.CashFlows().Delete(ctx, flow.ID); delErr != nil {
			s.logger.Error().Err(delErr).
				Str("cash_flow_id", flow.ID).
				Msg("Failed to roll back cash flow after quota error")
		}
		return nil, err
	}

	s.logger.Info().
		Str("cash_flow_id", flow.ID).
		Str("account_id", flow.AccountID).
		Str("type", string(flow.Type)).
		Msg("Cash flow created")
	return s.storage.CashFlows().Get(ctx, flow.ID)
}

// UpdateCashFlow replaces the mutable fields of a cash flow. The share
// delta is restamped from the new values; a flow that is no longer a
// deposit or withdrawal loses its delta.
func (s *Service) UpdateCashFlow(ctx context.Context, flowID string, flow *models.CashFlow) (*models.CashFlow, error) {
	if flow == nil {
		return nil, fmt.Errorf("%w: cash flow is required", models.ErrValidation)
	}
	existing, err := s.storage.CashFlows().Get(ctx, flowID)
	if err != nil {
		return nil, err
	}
	account, err := s.storage.Accounts().Get(ctx, existing.AccountID)
	if err != nil {
		return nil, err
	}

	existing.Type = flow.Type
	existing.Amount = flow.Amount
	if flow.Currency != "" {
		existing.Currency = flow.Currency
	}
	if !flow.ExchangeRate.IsZero() {
		existing.ExchangeRate = flow.ExchangeRate
	}
	if !flow.ExecutedAt.IsZero() {
		existing.ExecutedAt = flow.ExecutedAt
	}
	existing.Notes = flow.Notes
	if err := existing.Validate(); err != nil {
		return nil, err
	}

	// Drop the old share delta before restamping so the redemption check
	// does not count it.
	existing.SharesAffected = nil
	existing.UpdatedAt = time.Now().UTC()
	if err := s.storage.CashFlows().Update(ctx, existing); err != nil {
		return nil, err
	}
	if err := s.applyQuotaHook(ctx, account.UserID, existing); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("cash_flow_id", flowID).
		Str("account_id", existing.AccountID).
		Msg("Cash flow updated")
	return s.storage.CashFlows().Get(ctx, flowID)
}

// DeleteCashFlow removes the cash event. Shares outstanding are derived
// from the surviving flows, so any share delta disappears with the row.
func (s *Service) DeleteCashFlow(ctx context.Context, flowID string) error {
	if _, err := s.storage.CashFlows().Get(ctx, flowID); err != nil {
		return err
	}
	if err := s.storage.CashFlows().Delete(ctx, flowID); err != nil {
		return err
	}
	s.logger.Info().Str("cash_flow_id", flowID).Msg("Cash flow deleted")
	return nil
}

// ListCashFlows queries the cash journal.
func (s *Service) ListCashFlows(ctx context.Context, filter models.CashFlowFilter) ([]*models.CashFlow, error) {
	return s.storage.CashFlows().List(ctx, filter)
}

func (s *Service) applyQuotaHook(ctx context.Context, userID string, flow *models.CashFlow) error {
	switch flow.Type {
	case models.CashDeposit:
		_, err := s.fund.IssueShares(ctx, userID, flow.ID, flow.SignedAmount(), flow.ExecutedAt)
		return err
	case models.CashWithdrawal:
		_, err := s.fund.RedeemShares(ctx, userID, flow.ID, flow.SignedAmount().Abs(), flow.ExecutedAt)
		return err
	}
	return nil
}
