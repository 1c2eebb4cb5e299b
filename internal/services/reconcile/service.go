// Package reconcile diffs statement positions against stored state. The
// statement is the source of truth for its account at the period end date.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

var _ interfaces.ReconcileService = (*Service)(nil)

// Service reconciles statement stock positions. Per-ticker failures become
// warnings on the result; only storage-level failures abort the run.
type Service struct {
	storage interfaces.StorageManager
	quotes  interfaces.QuoteService
	logger  *common.Logger
}

// NewService creates a new reconciliation service. quotes provides ticker
// resolution (auto-creating unknown assets).
func NewService(storage interfaces.StorageManager, quotes interfaces.QuoteService, logger *common.Logger) *Service {
	return &Service{storage: storage, quotes: quotes, logger: logger}
}

// Reconcile makes the account's stored positions match the statement's:
// statement-only tickers are created, diverging ones are overwritten, and
// stored positions absent from the statement are closed with a realized
// trade record.
func (s *Service) Reconcile(ctx context.Context, accountID string, positions []models.ParsedStockPosition, endDate time.Time, documentID string) (*models.ReconcileResult, error) {
	endDate = midnightUTC(endDate)
	result := &models.ReconcileResult{AccountID: accountID, Date: endDate}

	statementAssets := make(map[string]bool)
	for _, parsed := range positions {
		entry, assetID, err := s.applyOne(ctx, accountID, parsed, endDate, documentID)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", parsed.Ticker, err))
			continue
		}
		if assetID != "" {
			statementAssets[assetID] = true
		}
		if entry != nil {
			result.Entries = append(result.Entries, *entry)
		}
	}

	stored, err := s.storage.Positions().ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	for _, position := range stored {
		if statementAssets[position.AssetID] {
			continue
		}
		entry, err := s.closeDisappeared(ctx, position, endDate, documentID)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", position.AssetID, err))
			continue
		}
		result.Entries = append(result.Entries, *entry)
	}

	s.logger.Info().
		Str("account", accountID).
		Str("document", documentID).
		Int("entries", len(result.Entries)).
		Int("warnings", len(result.Warnings)).
		Msg("Reconciliation complete")
	return result, nil
}

// applyOne creates or updates the stored position for one statement line.
// A nil entry with no error means the stored state already matched.
func (s *Service) applyOne(ctx context.Context, accountID string, parsed models.ParsedStockPosition, endDate time.Time, documentID string) (*models.ReconcileEntry, string, error) {
	if parsed.Ticker == "" {
		return nil, "", fmt.Errorf("%w: missing ticker", models.ErrValidation)
	}
	if parsed.Quantity == nil || parsed.Quantity.IsZero() {
		return nil, "", fmt.Errorf("%w: missing quantity", models.ErrValidation)
	}

	asset, err := s.quotes.EnsureAsset(ctx, parsed.Ticker)
	if err != nil {
		return nil, "", err
	}

	quantity := *parsed.Quantity
	posType := models.PositionLong
	if quantity.IsNegative() {
		posType = models.PositionShort
		quantity = quantity.Abs()
	}

	avgPrice := decimal.Zero
	if parsed.AvgPrice != nil {
		avgPrice = *parsed.AvgPrice
	}
	totalCost := quantity.Mul(avgPrice)
	if parsed.TotalCost != nil && !parsed.TotalCost.IsZero() {
		totalCost = parsed.TotalCost.Abs()
		if avgPrice.IsZero() && !quantity.IsZero() {
			avgPrice = totalCost.DivRound(quantity, 8)
		}
	}

	existing, err := s.storage.Positions().Get(ctx, accountID, asset.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, "", err
	}

	if existing != nil &&
		existing.AnchorQuantity.Equal(quantity) &&
		existing.AnchorAvgPrice.Equal(avgPrice) &&
		existing.AnchorType == posType &&
		existing.AnchorDate.Equal(endDate) {
		// Same statement replayed; nothing to write.
		return nil, asset.ID, nil
	}

	position := &models.Position{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		AssetID:      asset.ID,
		Quantity:     quantity,
		AvgPrice:     avgPrice,
		TotalCost:    totalCost.Round(2),
		PositionType: posType,
		Source:       models.SourceStatement,
		OpenedAt:     endDate,
		UpdatedAt:    endDate,

		AnchorQuantity:  quantity,
		AnchorAvgPrice:  avgPrice,
		AnchorTotalCost: totalCost.Round(2),
		AnchorType:      posType,
		AnchorDate:      endDate,
	}

	action := models.ReconcileCreated
	if existing != nil {
		action = models.ReconcileUpdated
		position.ID = existing.ID
		position.OpenedAt = existing.OpenedAt
	}
	if err := s.storage.Positions().Upsert(ctx, position); err != nil {
		return nil, "", err
	}

	return &models.ReconcileEntry{
		Ticker:   asset.Ticker,
		Action:   action,
		Quantity: quantity,
	}, asset.ID, nil
}

// closeDisappeared removes a stored position absent from the statement and
// records the close as a realized trade attributed to the document.
func (s *Service) closeDisappeared(ctx context.Context, position *models.Position, endDate time.Time, documentID string) (*models.ReconcileEntry, error) {
	closePrice, err := s.resolveClosePrice(ctx, position, endDate, documentID)
	if err != nil {
		return nil, err
	}

	var pnl decimal.Decimal
	if position.PositionType == models.PositionShort {
		pnl = position.AvgPrice.Sub(closePrice).Mul(position.Quantity).Round(2)
	} else {
		pnl = closePrice.Sub(position.AvgPrice).Mul(position.Quantity).Round(2)
	}

	pct := decimal.Zero
	if !position.TotalCost.IsZero() {
		pct = pnl.DivRound(position.TotalCost.Abs(), 8).Mul(decimal.NewFromInt(100)).Round(4)
	}

	trade := &models.RealizedTrade{
		ID:             uuid.NewString(),
		AccountID:      position.AccountID,
		AssetID:        position.AssetID,
		OpenQuantity:   position.Quantity,
		OpenAvgPrice:   position.AvgPrice,
		OpenDate:       position.OpenedAt,
		CloseQuantity:  position.Quantity,
		CloseAvgPrice:  closePrice,
		CloseDate:      endDate,
		RealizedPnL:    pnl,
		RealizedPnLPct: pct,
		DocumentID:     documentID,
		Notes:          "closed by statement reconciliation",
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.storage.RealizedTrades().Append(ctx, trade); err != nil {
		return nil, err
	}

	if err := s.storage.Positions().Delete(ctx, position.AccountID, position.AssetID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	ticker := position.AssetID
	if asset, err := s.storage.Assets().Get(ctx, position.AssetID); err == nil {
		ticker = asset.Ticker
	}
	return &models.ReconcileEntry{
		Ticker:      ticker,
		Action:      models.ReconcileClosed,
		Quantity:    position.Quantity,
		RealizedPnL: &pnl,
	}, nil
}

// resolveClosePrice finds the price a disappeared position closed at: the
// most recent closing-direction transaction from the same document through
// the end date, falling back to the stored average price (P&L of zero).
func (s *Service) resolveClosePrice(ctx context.Context, position *models.Position, endDate time.Time, documentID string) (decimal.Decimal, error) {
	if documentID == "" {
		return position.AvgPrice, nil
	}

	closingType := models.TxnSell
	if position.PositionType == models.PositionShort {
		closingType = models.TxnBuy
	}

	txns, err := s.storage.Transactions().ListByPair(ctx, position.AccountID, position.AssetID)
	if err != nil {
		return decimal.Zero, err
	}

	cutoff := endDate.AddDate(0, 0, 1)
	for i := len(txns) - 1; i >= 0; i-- {
		txn := txns[i]
		if txn.Type == closingType && txn.ExecutedAt.Before(cutoff) && txn.DocumentID == documentID {
			return txn.Price, nil
		}
	}
	return position.AvgPrice, nil
}

// Migrate replaces every position on the account with the statement's,
// verbatim. First-import only; nothing is closed and no P&L is recorded.
func (s *Service) Migrate(ctx context.Context, accountID string, positions []models.ParsedStockPosition, endDate time.Time, documentID string) (*models.ReconcileResult, error) {
	endDate = midnightUTC(endDate)

	deleted, err := s.storage.Positions().DeleteByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear positions: %w", err)
	}

	result := &models.ReconcileResult{AccountID: accountID, Date: endDate}
	for _, parsed := range positions {
		entry, _, err := s.applyOne(ctx, accountID, parsed, endDate, documentID)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", parsed.Ticker, err))
			continue
		}
		if entry != nil {
			result.Entries = append(result.Entries, *entry)
		}
	}

	s.logger.Info().
		Str("account", accountID).
		Int("deleted", deleted).
		Int("created", len(result.Entries)).
		Msg("Position migration complete")
	return result, nil
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
