package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CashFlowType classifies a cash event. The sign of the effective amount is
// implied by the type; Amount itself is always stored positive.
type CashFlowType string

const (
	CashDeposit      CashFlowType = "DEPOSIT"
	CashWithdrawal   CashFlowType = "WITHDRAWAL"
	CashDividend     CashFlowType = "DIVIDEND"
	CashJCP          CashFlowType = "JCP"
	CashInterest     CashFlowType = "INTEREST"
	CashFee          CashFlowType = "FEE"
	CashTax          CashFlowType = "TAX"
	CashSettlement   CashFlowType = "SETTLEMENT"
	CashRentalIncome CashFlowType = "RENTAL_INCOME"
	CashOther        CashFlowType = "OTHER"
)

// ValidCashFlowTypes is the set of accepted cash flow types.
var ValidCashFlowTypes = map[CashFlowType]bool{
	CashDeposit: true, CashWithdrawal: true, CashDividend: true, CashJCP: true,
	CashInterest: true, CashFee: true, CashTax: true, CashSettlement: true,
	CashRentalIncome: true, CashOther: true,
}

// negativeCashTypes are the types whose effective signed amount is money out.
var negativeCashTypes = map[CashFlowType]bool{
	CashWithdrawal: true, CashFee: true, CashTax: true,
}

// CashFlow is a deposit, withdrawal, dividend, fee, tax, interest,
// settlement or rental income event on an account.
type CashFlow struct {
	ID             string           `json:"id"`
	AccountID      string           `json:"account_id"`
	Type           CashFlowType     `json:"type"`
	Amount         decimal.Decimal  `json:"amount"` // > 0; sign implied by type
	Currency       string           `json:"currency"`
	ExchangeRate   decimal.Decimal  `json:"exchange_rate"`
	ExecutedAt     time.Time        `json:"executed_at"`
	SharesAffected *decimal.Decimal `json:"shares_affected,omitempty"` // set by the quota engine
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// SignedAmount is the effective cash effect in base currency:
// amount × exchange_rate, negated for WITHDRAWAL/FEE/TAX.
func (c CashFlow) SignedAmount() decimal.Decimal {
	rate := c.ExchangeRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	amount := c.Amount.Mul(rate)
	if negativeCashTypes[c.Type] {
		return amount.Neg()
	}
	return amount
}

// Validate checks field invariants before any write.
func (c CashFlow) Validate() error {
	if c.AccountID == "" {
		return fmt.Errorf("%w: account_id is required", ErrValidation)
	}
	if !ValidCashFlowTypes[c.Type] {
		return fmt.Errorf("%w: invalid cash flow type %q", ErrValidation, c.Type)
	}
	if !c.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be > 0", ErrValidation)
	}
	if c.ExchangeRate.IsNegative() {
		return fmt.Errorf("%w: exchange_rate must be >= 0", ErrValidation)
	}
	if c.ExecutedAt.IsZero() {
		return fmt.Errorf("%w: executed_at is required", ErrValidation)
	}
	return nil
}

// CashFlowFilter narrows cash flow queries.
type CashFlowFilter struct {
	AccountID string
	Type      CashFlowType
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
