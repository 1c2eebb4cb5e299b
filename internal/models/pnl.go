package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RealizedSummary aggregates realized P&L entries.
type RealizedSummary struct {
	TotalPnL       decimal.Decimal    `json:"total_pnl"`
	TotalProceeds  decimal.Decimal    `json:"total_proceeds"`
	TotalCostBasis decimal.Decimal    `json:"total_cost_basis"`
	TotalFees      decimal.Decimal    `json:"total_fees"`
	EntryCount     int                `json:"entry_count"`
	Entries        []RealizedPnLEntry `json:"entries,omitempty"`
}

// RealizedFilter narrows realized P&L aggregations.
type RealizedFilter struct {
	UserID    string
	AccountID string
	AssetID   string
	From      *time.Time
	To        *time.Time
}

// UnrealizedPosition joins one open position with its latest price.
// MarketValue and UnrealizedPnL are nil when no price is known; the position
// still contributes its total cost to the summary totals.
type UnrealizedPosition struct {
	Position      Position         `json:"position"`
	Ticker        string           `json:"ticker"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	PriceDate     *time.Time       `json:"price_date,omitempty"`
	MarketValue   *decimal.Decimal `json:"market_value,omitempty"`
	UnrealizedPnL *decimal.Decimal `json:"unrealized_pnl,omitempty"`
	PnLPct        *decimal.Decimal `json:"pnl_pct,omitempty"`
}

// UnrealizedSummary aggregates open positions with long/short separation.
// Gross = long + short, Net = long − short; pct figures are relative to NAV.
type UnrealizedSummary struct {
	Positions     []UnrealizedPosition `json:"positions"`
	TotalCost     decimal.Decimal      `json:"total_cost"`
	LongValue     decimal.Decimal      `json:"long_value"`
	ShortValue    decimal.Decimal      `json:"short_value"`
	GrossExposure decimal.Decimal      `json:"gross_exposure"`
	NetExposure   decimal.Decimal      `json:"net_exposure"`
	UnrealizedPnL decimal.Decimal      `json:"unrealized_pnl"`
	PricedCount   int                  `json:"priced_count"`
	UnpricedCount int                  `json:"unpriced_count"`
}

// ConsolidatedPosition aggregates the same asset across accounts with a
// weighted average price.
type ConsolidatedPosition struct {
	AssetID     string          `json:"asset_id"`
	Ticker      string          `json:"ticker"`
	AssetType   AssetType       `json:"asset_type"`
	Quantity    decimal.Decimal `json:"quantity"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	AccountIDs  []string        `json:"account_ids"`
	PositionType PositionType   `json:"position_type"`
}

// AllocationSlice is one bucket of the allocation view.
type AllocationSlice struct {
	Label       string          `json:"label"`
	MarketValue decimal.Decimal `json:"market_value"`
	WeightPct   decimal.Decimal `json:"weight_pct"`
}

// PortfolioAllocation is the by-type and top-N asset allocation view.
type PortfolioAllocation struct {
	ByAssetType []AllocationSlice `json:"by_asset_type"`
	TopAssets   []AllocationSlice `json:"top_assets"`
	TotalValue  decimal.Decimal   `json:"total_value"`
}

// ConsolidatedView is the single-call portfolio panel: NAV with per-account
// lines in base currency, every open position with prices at the date, the
// asset-type breakdown and the year-to-date realized P&L.
type ConsolidatedView struct {
	UserID         string               `json:"user_id"`
	Date           time.Time            `json:"date"`
	BaseCurrency   string               `json:"base_currency"`
	NAV            decimal.Decimal      `json:"nav"`
	TotalCash      decimal.Decimal      `json:"total_cash"`
	PTAXRateUsed   decimal.Decimal      `json:"ptax_rate_used"`
	Accounts       []AccountNAVLine     `json:"accounts"`
	Positions      []UnrealizedPosition `json:"positions"`
	ByAssetType    []AllocationSlice    `json:"by_asset_type"`
	YTDRealizedPnL decimal.Decimal      `json:"ytd_realized_pnl"`
	MissingFX      []string             `json:"missing_fx,omitempty"`
}
