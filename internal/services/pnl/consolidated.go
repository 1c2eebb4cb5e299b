package pnl

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lfmartins/carteira/internal/models"
)

const defaultTopAssets = 10

// Consolidated aggregates open positions by asset across every account of
// the user. Shorts net against longs; the surviving side carries the
// cost-weighted average price. Fully netted assets are omitted.
func (s *Service) Consolidated(ctx context.Context, userID string) ([]models.ConsolidatedPosition, error) {
	positions, err := s.storage.Positions().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	grouped := make(map[string]*models.ConsolidatedPosition)
	var order []string
	for _, p := range positions {
		c, ok := grouped[p.AssetID]
		if !ok {
			c = &models.ConsolidatedPosition{AssetID: p.AssetID}
			grouped[p.AssetID] = c
			order = append(order, p.AssetID)
		}
		qty, cost := p.Quantity, p.TotalCost
		if p.PositionType == models.PositionShort {
			qty, cost = qty.Neg(), cost.Neg()
		}
		c.Quantity = c.Quantity.Add(qty)
		c.TotalCost = c.TotalCost.Add(cost)
		c.AccountIDs = append(c.AccountIDs, p.AccountID)
	}

	assets, err := s.storage.Assets().GetBatch(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}

	out := make([]models.ConsolidatedPosition, 0, len(order))
	for _, assetID := range order {
		c := grouped[assetID]
		if c.Quantity.IsZero() {
			continue
		}
		c.PositionType = models.PositionLong
		if c.Quantity.IsNegative() {
			c.PositionType = models.PositionShort
			c.Quantity = c.Quantity.Neg()
			c.TotalCost = c.TotalCost.Neg()
		}
		c.AvgPrice = c.TotalCost.DivRound(c.Quantity, 6)
		c.TotalCost = c.TotalCost.Round(2)
		if asset, ok := assets[assetID]; ok {
			c.Ticker = asset.Ticker
			c.AssetType = asset.AssetType
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

// Allocation breaks the portfolio's current value down by asset type and by
// the top-N assets. Values are market where priced, cost otherwise, shorts
// negative; statement-sourced fixed income and fund holdings enter as their
// own buckets.
func (s *Service) Allocation(ctx context.Context, userID string, topN int) (*models.PortfolioAllocation, error) {
	if topN <= 0 {
		topN = defaultTopAssets
	}

	summary, err := s.Unrealized(ctx, userID, "", time.Time{})
	if err != nil {
		return nil, err
	}

	byType, byAsset, total, err := s.holdingValues(ctx, userID, summary.Positions)
	if err != nil {
		return nil, err
	}

	allocation := &models.PortfolioAllocation{
		TotalValue:  total.Round(2),
		ByAssetType: allocationSlices(byType, total, 0),
		TopAssets:   allocationSlices(byAsset, total, topN),
	}
	return allocation, nil
}

// ConsolidatedView is the full portfolio panel at a date: the NAV with
// per-account lines, every position with prices, the asset-type breakdown,
// and realized P&L for the year to date.
func (s *Service) ConsolidatedView(ctx context.Context, userID string, date time.Time) (*models.ConsolidatedView, error) {
	if date.IsZero() {
		date = time.Now().UTC()
	}

	nav, err := s.fund.NAV(ctx, userID, date, true)
	if err != nil {
		return nil, err
	}

	summary, err := s.Unrealized(ctx, userID, "", date)
	if err != nil {
		return nil, err
	}

	byType, _, total, err := s.holdingValues(ctx, userID, summary.Positions)
	if err != nil {
		return nil, err
	}

	ytdStart := time.Date(date.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	realized, err := s.Realized(ctx, models.RealizedFilter{
		UserID: userID,
		From:   &ytdStart,
		To:     &date,
	})
	if err != nil {
		return nil, err
	}

	return &models.ConsolidatedView{
		UserID:         userID,
		Date:           nav.Date,
		BaseCurrency:   nav.BaseCurrency,
		NAV:            nav.NAV,
		TotalCash:      nav.TotalCash,
		PTAXRateUsed:   nav.PTAXRateUsed,
		Accounts:       nav.Accounts,
		Positions:      summary.Positions,
		ByAssetType:    allocationSlices(byType, total, 0),
		YTDRealizedPnL: realized.TotalPnL,
		MissingFX:      nav.MissingFX,
	}, nil
}

// holdingValues buckets the priced position rows by asset type and by
// ticker, then folds in fixed income and investment fund holdings under
// their own type labels.
func (s *Service) holdingValues(ctx context.Context, userID string, rows []models.UnrealizedPosition) (byType, byAsset map[string]decimal.Decimal, total decimal.Decimal, err error) {
	byType = make(map[string]decimal.Decimal)
	byAsset = make(map[string]decimal.Decimal)

	assetIDs := make([]string, len(rows))
	for i, row := range rows {
		assetIDs[i] = row.Position.AssetID
	}
	assets, err := s.storage.Assets().GetBatch(ctx, assetIDs)
	if err != nil {
		return nil, nil, decimal.Zero, fmt.Errorf("failed to load assets: %w", err)
	}

	for _, row := range rows {
		value := row.Position.TotalCost
		if row.MarketValue != nil {
			value = *row.MarketValue
		}
		if row.Position.PositionType == models.PositionShort {
			value = value.Neg()
		}

		label := string(models.AssetStock)
		ticker := row.Ticker
		if asset, ok := assets[row.Position.AssetID]; ok {
			label = string(asset.AssetType)
			if ticker == "" {
				ticker = asset.Ticker
			}
		}
		if ticker == "" {
			ticker = row.Position.AssetID
		}
		byType[label] = byType[label].Add(value)
		byAsset[ticker] = byAsset[ticker].Add(value)
		total = total.Add(value)
	}

	accounts, err := s.storage.Accounts().ListByUser(ctx, userID, false)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}
	for _, account := range accounts {
		fixed, err := s.storage.FixedIncome().ListByAccount(ctx, account.ID)
		if err != nil {
			return nil, nil, decimal.Zero, err
		}
		for _, f := range fixed {
			byType["FIXED_INCOME"] = byType["FIXED_INCOME"].Add(f.CurrentValue)
			total = total.Add(f.CurrentValue)
		}
		funds, err := s.storage.InvestmentFunds().ListByAccount(ctx, account.ID)
		if err != nil {
			return nil, nil, decimal.Zero, err
		}
		for _, f := range funds {
			byType["INVESTMENT_FUND"] = byType["INVESTMENT_FUND"].Add(f.NetValue)
			total = total.Add(f.NetValue)
		}
	}

	return byType, byAsset, total, nil
}

// allocationSlices sorts the buckets by value descending with weights
// relative to total. limit > 0 truncates to the top entries.
func allocationSlices(values map[string]decimal.Decimal, total decimal.Decimal, limit int) []models.AllocationSlice {
	slices := make([]models.AllocationSlice, 0, len(values))
	for label, value := range values {
		slice := models.AllocationSlice{Label: label, MarketValue: value.Round(2)}
		if !total.IsZero() {
			slice.WeightPct = value.DivRound(total, 8).Mul(hundred).Round(4)
		}
		slices = append(slices, slice)
	}
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].MarketValue.Equal(slices[j].MarketValue) {
			return slices[i].Label < slices[j].Label
		}
		return slices[i].MarketValue.GreaterThan(slices[j].MarketValue)
	})
	if limit > 0 && len(slices) > limit {
		slices = slices[:limit]
	}
	return slices
}

var hundred = decimal.NewFromInt(100)
