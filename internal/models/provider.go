package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProviderBar is one daily bar as returned by a quote provider, before the
// ticker is resolved to an asset.
type ProviderBar struct {
	Ticker        string           `json:"ticker"`
	Date          time.Time        `json:"date"`
	Open          decimal.Decimal  `json:"open"`
	High          decimal.Decimal  `json:"high"`
	Low           decimal.Decimal  `json:"low"`
	Close         decimal.Decimal  `json:"close"`
	AdjustedClose *decimal.Decimal `json:"adjusted_close,omitempty"`
	Volume        int64            `json:"volume"`
}
