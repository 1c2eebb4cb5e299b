package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a dated OHLCV price for an asset. (AssetID, Date) is unique.
type Quote struct {
	AssetID       string           `json:"asset_id"`
	Date          time.Time        `json:"date"` // calendar date, midnight UTC
	Open          decimal.Decimal  `json:"open"`
	High          decimal.Decimal  `json:"high"`
	Low           decimal.Decimal  `json:"low"`
	Close         decimal.Decimal  `json:"close"`
	AdjustedClose *decimal.Decimal `json:"adjusted_close,omitempty"`
	Volume        int64            `json:"volume"`
	Source        string           `json:"source"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// EffectivePrice prefers the adjusted close when present.
func (q Quote) EffectivePrice() decimal.Decimal {
	if q.AdjustedClose != nil && !q.AdjustedClose.IsZero() {
		return *q.AdjustedClose
	}
	return q.Close
}

// ExchangeRate is a dated currency mid-rate. (Date, From, To) is unique.
type ExchangeRate struct {
	Date         time.Time       `json:"date"`
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	Rate         decimal.Decimal `json:"rate"`
	Source       string          `json:"source"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PricePoint is a resolved effective price at a date, as served by the
// quote store's latest / at-date lookups.
type PricePoint struct {
	AssetID string          `json:"asset_id"`
	Date    time.Time       `json:"date"`
	Price   decimal.Decimal `json:"price"`
}
