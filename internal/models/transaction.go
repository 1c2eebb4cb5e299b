package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a journal entry.
type TransactionType string

const (
	TxnBuy          TransactionType = "BUY"
	TxnSell         TransactionType = "SELL"
	TxnDividend     TransactionType = "DIVIDEND"
	TxnJCP          TransactionType = "JCP"
	TxnSplit        TransactionType = "SPLIT"
	TxnReverseSplit TransactionType = "REVERSE_SPLIT"
	TxnBonus        TransactionType = "BONUS"
	TxnSubscription TransactionType = "SUBSCRIPTION"
	TxnFee          TransactionType = "FEE"
	TxnIncome       TransactionType = "INCOME"
	TxnAmortization TransactionType = "AMORTIZATION"
	TxnTransferIn   TransactionType = "TRANSFER_IN"
	TxnTransferOut  TransactionType = "TRANSFER_OUT"
	TxnRental       TransactionType = "RENTAL"
	TxnOther        TransactionType = "OTHER"
)

// ValidTransactionTypes is the set of accepted transaction types.
var ValidTransactionTypes = map[TransactionType]bool{
	TxnBuy: true, TxnSell: true, TxnDividend: true, TxnJCP: true,
	TxnSplit: true, TxnReverseSplit: true, TxnBonus: true, TxnSubscription: true,
	TxnFee: true, TxnIncome: true, TxnAmortization: true, TxnTransferIn: true,
	TxnTransferOut: true, TxnRental: true, TxnOther: true,
}

// replayRelevant is the subset of types that move position state.
// Everything else flows through to the cash journal.
var replayRelevant = map[TransactionType]bool{
	TxnBuy: true, TxnSell: true, TxnSubscription: true,
	TxnTransferIn: true, TxnTransferOut: true, TxnSplit: true,
	TxnReverseSplit: true,
}

// IsReplayRelevant reports whether the type participates in position replay.
func (t TransactionType) IsReplayRelevant() bool {
	return replayRelevant[t]
}

// Transaction is an immutable journal entry for an (account, asset) pair.
// Quantity has scale 8, price scale 6, fees scale 2.
type Transaction struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	AssetID      string          `json:"asset_id"`
	DocumentID   string          `json:"document_id,omitempty"`
	Type         TransactionType `json:"type"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Fees         decimal.Decimal `json:"fees"`
	Currency     string          `json:"currency"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"` // to base currency at ExecutedAt
	ExecutedAt   time.Time       `json:"executed_at"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TotalValue is quantity × price, computed on read (no generated columns).
func (t Transaction) TotalValue() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// Validate checks field invariants before any write.
func (t Transaction) Validate() error {
	if t.AccountID == "" {
		return fmt.Errorf("%w: account_id is required", ErrValidation)
	}
	if t.AssetID == "" {
		return fmt.Errorf("%w: asset_id is required", ErrValidation)
	}
	if !ValidTransactionTypes[t.Type] {
		return fmt.Errorf("%w: invalid transaction type %q", ErrValidation, t.Type)
	}
	if t.Quantity.IsNegative() {
		return fmt.Errorf("%w: quantity must be >= 0", ErrValidation)
	}
	if t.Price.IsNegative() {
		return fmt.Errorf("%w: price must be >= 0", ErrValidation)
	}
	if t.Fees.IsNegative() {
		return fmt.Errorf("%w: fees must be >= 0", ErrValidation)
	}
	if t.ExecutedAt.IsZero() {
		return fmt.Errorf("%w: executed_at is required", ErrValidation)
	}
	switch t.Type {
	case TxnBuy, TxnSell, TxnSubscription:
		if t.Quantity.IsZero() {
			return fmt.Errorf("%w: quantity must be > 0 for %s", ErrValidation, t.Type)
		}
		if t.Price.IsZero() {
			return fmt.Errorf("%w: price must be > 0 for %s", ErrValidation, t.Type)
		}
	case TxnSplit, TxnReverseSplit:
		if t.Quantity.IsZero() {
			return fmt.Errorf("%w: split factor must be > 0", ErrValidation)
		}
	}
	return nil
}

// TransactionFilter narrows transaction queries.
type TransactionFilter struct {
	AccountID string
	AssetID   string
	Type      TransactionType
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// TransactionUpdate carries explicit partial-update fields. Nil means
// "leave unchanged".
type TransactionUpdate struct {
	Type         *TransactionType `json:"type,omitempty"`
	Quantity     *decimal.Decimal `json:"quantity,omitempty"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Fees         *decimal.Decimal `json:"fees,omitempty"`
	Currency     *string          `json:"currency,omitempty"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate,omitempty"`
	ExecutedAt   *time.Time       `json:"executed_at,omitempty"`
	Notes        *string          `json:"notes,omitempty"`
}
