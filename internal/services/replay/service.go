package replay

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

// Compile-time interface check
var _ interfaces.ReplayService = (*Service)(nil)

// Service implements ReplayService on top of the transaction store.
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
	locks   *KeyedMutex
}

// NewService creates a new replay service.
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
		locks:   NewKeyedMutex(),
	}
}

// Replay rebuilds the (account, asset) position from the full ordered log.
// A statement anchor, when present, is the authoritative opening state:
// replay seeds from the anchor and only applies transactions executed after
// the anchor date. The anchor itself is carried forward unchanged, so a
// second replay starts from the same baseline and never rewinds past the
// statement.
func (s *Service) Replay(ctx context.Context, accountID, assetID string) (*models.Position, []models.RealizedPnLEntry, error) {
	key := pairKey(accountID, assetID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	return s.replayLocked(ctx, accountID, assetID)
}

func (s *Service) replayLocked(ctx context.Context, accountID, assetID string) (*models.Position, []models.RealizedPnLEntry, error) {
	existing, err := s.storage.Positions().Get(ctx, accountID, assetID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to load position: %w", err)
	}

	txns, err := s.storage.Transactions().ListByPair(ctx, accountID, assetID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load transaction log: %w", err)
	}

	var st state
	anchored := existing != nil && existing.Anchored()
	if anchored {
		st.seedFromAnchor(existing)
		txns = afterAnchor(txns, existing.AnchorDate)
	}

	events, err := run(&st, txns)
	if err != nil {
		// Prior persisted state stays untouched on a validation failure.
		return nil, nil, err
	}

	position, err := s.persist(ctx, accountID, assetID, &st, existing, anchored, len(txns) == 0, events)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Debug().
		Str("account", accountID).
		Str("asset", assetID).
		Int("transactions", len(txns)).
		Int("realized_events", len(events)).
		Bool("open", position != nil).
		Msg("Replay complete")

	return position, events, nil
}

// persist writes the final position (or removes it when flat) and upserts
// the realized trade record for every closing fill.
func (s *Service) persist(ctx context.Context, accountID, assetID string, st *state, existing *models.Position, anchored, noNewTxns bool, events []models.RealizedPnLEntry) (*models.Position, error) {
	if err := s.storage.Positions().Delete(ctx, accountID, assetID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to clear position: %w", err)
	}

	if _, err := s.storage.RealizedTrades().DeleteCalculated(ctx, accountID, assetID); err != nil {
		return nil, fmt.Errorf("failed to clear calculated trades: %w", err)
	}
	for _, e := range events {
		trade := tradeFromEvent(e)
		if err := s.storage.RealizedTrades().Upsert(ctx, trade); err != nil {
			return nil, fmt.Errorf("failed to record realized trade: %w", err)
		}
	}

	if st.flat() {
		return nil, nil
	}

	now := time.Now().UTC()
	position := &models.Position{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		AssetID:      assetID,
		Quantity:     st.quantity.Round(8),
		AvgPrice:     st.avgPrice().Round(6),
		TotalCost:    st.totalCost.Round(2),
		PositionType: st.posType,
		Source:       models.SourceCalculated,
		OpenedAt:     st.firstDate,
		UpdatedAt:    now,
	}
	if existing != nil {
		position.ID = existing.ID
	}
	if anchored {
		position.AnchorQuantity = existing.AnchorQuantity
		position.AnchorAvgPrice = existing.AnchorAvgPrice
		position.AnchorTotalCost = existing.AnchorTotalCost
		position.AnchorType = existing.AnchorType
		position.AnchorDate = existing.AnchorDate
		if noNewTxns {
			// Nothing replayed on top of the statement: the row stays
			// statement-authoritative.
			position.Source = models.SourceStatement
			position.UpdatedAt = existing.UpdatedAt
		}
	}

	if err := s.storage.Positions().Upsert(ctx, position); err != nil {
		return nil, fmt.Errorf("failed to upsert position: %w", err)
	}
	return position, nil
}

// ReplayAccount applies Replay to every asset with at least one transaction
// on the account.
func (s *Service) ReplayAccount(ctx context.Context, accountID string) ([]*models.Position, error) {
	assetIDs, err := s.storage.Transactions().AssetIDs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate assets: %w", err)
	}

	var positions []*models.Position
	for _, assetID := range assetIDs {
		position, _, err := s.Replay(ctx, accountID, assetID)
		if err != nil {
			return nil, fmt.Errorf("replay %s/%s: %w", accountID, assetID, err)
		}
		if position != nil {
			positions = append(positions, position)
		}
	}
	return positions, nil
}

// ReplayAfterChange is the trigger hook after a transaction mutation.
func (s *Service) ReplayAfterChange(ctx context.Context, accountID, assetID string) error {
	_, _, err := s.Replay(ctx, accountID, assetID)
	return err
}

// ComputeEvents re-runs the machine without persisting anything. The P&L
// aggregations are built on this rather than on stored trades.
func (s *Service) ComputeEvents(ctx context.Context, accountID, assetID string) ([]models.RealizedPnLEntry, error) {
	existing, err := s.storage.Positions().Get(ctx, accountID, assetID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	txns, err := s.storage.Transactions().ListByPair(ctx, accountID, assetID)
	if err != nil {
		return nil, err
	}

	var st state
	if existing != nil && existing.Anchored() {
		st.seedFromAnchor(existing)
		txns = afterAnchor(txns, existing.AnchorDate)
	}
	return run(&st, txns)
}

// afterAnchor keeps the transactions executed strictly after the anchor
// date; everything at or before it is already reflected in the statement.
func afterAnchor(txns []*models.Transaction, anchor time.Time) []*models.Transaction {
	kept := txns[:0]
	for _, txn := range txns {
		if txn.ExecutedAt.After(anchor) {
			kept = append(kept, txn)
		}
	}
	return kept
}

func tradeFromEvent(e models.RealizedPnLEntry) *models.RealizedTrade {
	return &models.RealizedTrade{
		ID:             uuid.NewString(),
		AccountID:      e.AccountID,
		AssetID:        e.AssetID,
		OpenQuantity:   e.Quantity.Round(8),
		OpenAvgPrice:   e.OpenAvgPrice.Round(6),
		OpenDate:       e.OpenDate,
		CloseQuantity:  e.Quantity.Round(8),
		CloseAvgPrice:  e.ClosePrice.Round(6),
		CloseDate:      e.CloseDate,
		RealizedPnL:    e.RealizedPnL.Round(2),
		RealizedPnLPct: e.RealizedPnLPct(),
		CreatedAt:      time.Now().UTC(),
	}
}

// roundPct is shared by P&L summaries.
func roundPct(d decimal.Decimal) decimal.Decimal {
	return d.Round(4)
}
