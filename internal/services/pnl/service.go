// Package pnl aggregates realized and unrealized profit and loss.
package pnl

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
	"github.com/lfmartins/carteira/internal/services/replay"
)

var _ interfaces.PnLService = (*Service)(nil)

// Service computes P&L views. Realized figures come from re-running the
// replay machine, so they always agree with the current journal; the stored
// trade table is the audit record, not the source.
type Service struct {
	storage interfaces.StorageManager
	replay  *replay.Service
	fund    interfaces.FundService
	logger  *common.Logger
}

// NewService creates a new P&L service. fund backs the consolidated
// portfolio view.
func NewService(storage interfaces.StorageManager, replaySvc *replay.Service, fundSvc interfaces.FundService, logger *common.Logger) *Service {
	return &Service{storage: storage, replay: replaySvc, fund: fundSvc, logger: logger}
}

// Realized aggregates realized events matching the filter.
func (s *Service) Realized(ctx context.Context, filter models.RealizedFilter) (*models.RealizedSummary, error) {
	entries, err := s.collect(ctx, filter)
	if err != nil {
		return nil, err
	}

	summary := &models.RealizedSummary{Entries: entries}
	for _, e := range entries {
		summary.TotalPnL = summary.TotalPnL.Add(e.RealizedPnL)
		summary.TotalProceeds = summary.TotalProceeds.Add(e.GrossProceeds)
		summary.TotalCostBasis = summary.TotalCostBasis.Add(e.CostBasis)
		summary.TotalFees = summary.TotalFees.Add(e.Fees)
	}
	summary.EntryCount = len(entries)
	summary.TotalPnL = summary.TotalPnL.Round(2)
	return summary, nil
}

// RealizedByAsset groups realized events per asset id.
func (s *Service) RealizedByAsset(ctx context.Context, filter models.RealizedFilter) (map[string]*models.RealizedSummary, error) {
	entries, err := s.collect(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*models.RealizedSummary)
	for _, e := range entries {
		summary, ok := out[e.AssetID]
		if !ok {
			summary = &models.RealizedSummary{}
			out[e.AssetID] = summary
		}
		summary.Entries = append(summary.Entries, e)
		summary.TotalPnL = summary.TotalPnL.Add(e.RealizedPnL)
		summary.TotalProceeds = summary.TotalProceeds.Add(e.GrossProceeds)
		summary.TotalCostBasis = summary.TotalCostBasis.Add(e.CostBasis)
		summary.TotalFees = summary.TotalFees.Add(e.Fees)
		summary.EntryCount++
	}
	return out, nil
}

func (s *Service) collect(ctx context.Context, filter models.RealizedFilter) ([]models.RealizedPnLEntry, error) {
	accountIDs, err := s.resolveAccounts(ctx, filter)
	if err != nil {
		return nil, err
	}

	var entries []models.RealizedPnLEntry
	for _, accountID := range accountIDs {
		assetIDs, err := s.storage.Transactions().AssetIDs(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate assets for %s: %w", accountID, err)
		}
		for _, assetID := range assetIDs {
			if filter.AssetID != "" && assetID != filter.AssetID {
				continue
			}
			events, err := s.replay.ComputeEvents(ctx, accountID, assetID)
			if err != nil {
				return nil, fmt.Errorf("replay %s/%s: %w", accountID, assetID, err)
			}
			for _, e := range events {
				if filter.From != nil && e.CloseDate.Before(*filter.From) {
					continue
				}
				if filter.To != nil && e.CloseDate.After(*filter.To) {
					continue
				}
				entries = append(entries, e)
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].CloseDate.Before(entries[j].CloseDate) })
	return entries, nil
}

func (s *Service) resolveAccounts(ctx context.Context, filter models.RealizedFilter) ([]string, error) {
	if filter.AccountID != "" {
		return []string{filter.AccountID}, nil
	}
	if filter.UserID == "" {
		return nil, fmt.Errorf("%w: user_id or account_id is required", models.ErrValidation)
	}
	accounts, err := s.storage.Accounts().ListByUser(ctx, filter.UserID, false)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	return ids, nil
}

// Unrealized joins open positions with prices at the target date. Zero time
// means the latest available price. Positions with no known price report nil
// market value and still contribute their cost to the totals.
func (s *Service) Unrealized(ctx context.Context, userID, accountID string, at time.Time) (*models.UnrealizedSummary, error) {
	var positions []*models.Position
	var err error
	if accountID != "" {
		positions, err = s.storage.Positions().ListByAccount(ctx, accountID)
	} else {
		positions, err = s.storage.Positions().ListByUser(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	assetIDs := make([]string, len(positions))
	for i, p := range positions {
		assetIDs[i] = p.AssetID
	}

	assets, err := s.storage.Assets().GetBatch(ctx, assetIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}

	var prices map[string]models.PricePoint
	if at.IsZero() {
		prices, err = s.storage.Quotes().Latest(ctx, assetIDs)
	} else {
		prices, err = s.storage.Quotes().AtDate(ctx, assetIDs, at)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}

	summary := &models.UnrealizedSummary{}
	for _, p := range positions {
		row := models.UnrealizedPosition{Position: *p}
		if a, ok := assets[p.AssetID]; ok {
			row.Ticker = a.Ticker
		}
		summary.TotalCost = summary.TotalCost.Add(p.TotalCost)

		pp, priced := prices[p.AssetID]
		if !priced {
			summary.UnpricedCount++
			summary.Positions = append(summary.Positions, row)
			continue
		}

		price := pp.Price
		date := pp.Date
		mv := p.Quantity.Mul(price).Round(2)
		var pnl decimal.Decimal
		if p.PositionType == models.PositionShort {
			// Proceeds basis minus the cost of buying back.
			pnl = p.TotalCost.Sub(mv).Round(2)
			summary.ShortValue = summary.ShortValue.Add(mv)
		} else {
			pnl = mv.Sub(p.TotalCost).Round(2)
			summary.LongValue = summary.LongValue.Add(mv)
		}

		row.Price = &price
		row.PriceDate = &date
		row.MarketValue = &mv
		row.UnrealizedPnL = &pnl
		if !p.TotalCost.IsZero() {
			pct := pnl.DivRound(p.TotalCost.Abs(), 8).Mul(decimal.NewFromInt(100)).Round(4)
			row.PnLPct = &pct
		}

		summary.UnrealizedPnL = summary.UnrealizedPnL.Add(pnl)
		summary.PricedCount++
		summary.Positions = append(summary.Positions, row)
	}

	summary.GrossExposure = summary.LongValue.Add(summary.ShortValue)
	summary.NetExposure = summary.LongValue.Sub(summary.ShortValue)
	return summary, nil
}
