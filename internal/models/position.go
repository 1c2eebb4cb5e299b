package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionType is the direction of an open position.
type PositionType string

const (
	PositionLong     PositionType = "LONG"
	PositionShort    PositionType = "SHORT"
	PositionDayTrade PositionType = "DAY_TRADE"
)

// PositionSource records how a position row came to exist.
type PositionSource string

const (
	// SourceCalculated marks a position derived by transaction replay.
	SourceCalculated PositionSource = "CALCULATED"
	// SourceStatement marks a position set by statement reconciliation.
	// Replay treats it as the authoritative opening state for the pair.
	SourceStatement PositionSource = "STATEMENT"
)

// Position is the single open exposure for an (account, asset) pair.
// Netting invariant: at most one row per pair; long and short never coexist.
type Position struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	AssetID      string          `json:"asset_id"`
	Quantity     decimal.Decimal `json:"quantity"` // > 0
	AvgPrice     decimal.Decimal `json:"avg_price"`
	TotalCost    decimal.Decimal `json:"total_cost"` // cost basis (LONG) / proceeds basis (SHORT)
	PositionType PositionType    `json:"position_type"`
	Source       PositionSource  `json:"source"`
	OpenedAt     time.Time       `json:"opened_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Statement anchor, stamped by reconciliation and immutable until the
	// next reconciliation. Replay seeds its machine from these fields and
	// applies only transactions executed after AnchorDate, so re-replays
	// never rewind past the statement.
	AnchorQuantity  decimal.Decimal `json:"anchor_quantity,omitempty"`
	AnchorAvgPrice  decimal.Decimal `json:"anchor_avg_price,omitempty"`
	AnchorTotalCost decimal.Decimal `json:"anchor_total_cost,omitempty"`
	AnchorType      PositionType    `json:"anchor_type,omitempty"`
	AnchorDate      time.Time       `json:"anchor_date,omitempty"`
}

// Anchored reports whether reconciliation has stamped a statement anchor.
func (p *Position) Anchored() bool {
	return !p.AnchorDate.IsZero()
}

// RealizedSide tags which side of a position a closing fill realized.
type RealizedSide string

const (
	LongClose  RealizedSide = "LONG_CLOSE"
	ShortClose RealizedSide = "SHORT_CLOSE"
)

// RealizedPnLEntry is one realized event emitted by replay, one per closing
// fill. A flip emits the close here and opens the residual separately.
type RealizedPnLEntry struct {
	AccountID     string          `json:"account_id"`
	AssetID       string          `json:"asset_id"`
	Side          RealizedSide    `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	OpenAvgPrice  decimal.Decimal `json:"open_avg_price"`
	ClosePrice    decimal.Decimal `json:"close_price"`
	OpenDate      time.Time       `json:"open_date"`
	CloseDate     time.Time       `json:"close_date"`
	GrossProceeds decimal.Decimal `json:"gross_proceeds"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	Fees          decimal.Decimal `json:"fees"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

// RealizedPnLPct returns the realized P&L as a percentage of cost basis.
func (e RealizedPnLEntry) RealizedPnLPct() decimal.Decimal {
	if e.CostBasis.IsZero() {
		return decimal.Zero
	}
	return e.RealizedPnL.DivRound(e.CostBasis, 8).Mul(decimal.NewFromInt(100)).Round(4)
}

// RealizedTrade is the permanent record of a closed quantity. Emitted by
// replay (per closing fill) and by reconciliation (per disappeared position).
// Append-only.
type RealizedTrade struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	AssetID        string          `json:"asset_id"`
	OpenQuantity   decimal.Decimal `json:"open_quantity"`
	OpenAvgPrice   decimal.Decimal `json:"open_avg_price"`
	OpenDate       time.Time       `json:"open_date"`
	CloseQuantity  decimal.Decimal `json:"close_quantity"`
	CloseAvgPrice  decimal.Decimal `json:"close_avg_price"`
	CloseDate      time.Time       `json:"close_date"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	RealizedPnLPct decimal.Decimal `json:"realized_pnl_pct"`
	DocumentID     string          `json:"document_id,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// DedupKey keys replay-emitted trades for idempotent upserts.
func (t RealizedTrade) DedupKey() string {
	return t.AccountID + "|" + t.AssetID + "|" + t.CloseDate.UTC().Format("2006-01-02") +
		"|" + t.CloseQuantity.String() + "|" + t.CloseAvgPrice.String()
}

// PositionFilter narrows position queries.
type PositionFilter struct {
	AccountID      string
	AssetType      AssetType
	MinMarketValue decimal.Decimal
}
