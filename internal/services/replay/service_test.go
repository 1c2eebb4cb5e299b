package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/models"
	"github.com/lfmartins/carteira/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Manager) {
	t.Helper()
	storage := memory.NewManager(t.TempDir())
	return NewService(storage, common.NewSilentLogger()), storage
}

func seedTxn(t *testing.T, storage *memory.Manager, txn *models.Transaction) {
	t.Helper()
	require.NoError(t, storage.Transactions().Create(context.Background(), txn))
}

func TestReplayPersistsPosition(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	seedTxn(t, storage, txn(models.TxnBuy, "100", "10.00", "2.00", day(1)))

	pos, events, err := svc.Replay(ctx, "acct-1", "asset-T")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Empty(t, events)
	assert.Equal(t, models.PositionLong, pos.PositionType)
	assert.Equal(t, models.SourceCalculated, pos.Source)
	assert.True(t, pos.Quantity.Equal(dec("100")))
	assert.True(t, pos.TotalCost.Equal(dec("1002")))
	assert.True(t, pos.AvgPrice.Equal(dec("10.02")))

	stored, err := storage.Positions().Get(ctx, "acct-1", "asset-T")
	require.NoError(t, err)
	assert.Equal(t, pos.ID, stored.ID)
}

func TestReplayFlatDeletesPosition(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	seedTxn(t, storage, txn(models.TxnBuy, "100", "10.00", "0", day(1)))

	pos, _, err := svc.Replay(ctx, "acct-1", "asset-T")
	require.NoError(t, err)
	require.NotNil(t, pos)

	seedTxn(t, storage, txn(models.TxnSell, "100", "12.00", "1.00", day(2)))

	pos, events, err := svc.Replay(ctx, "acct-1", "asset-T")
	require.NoError(t, err)
	assert.Nil(t, pos)
	require.Len(t, events, 1)

	_, err = storage.Positions().Get(ctx, "acct-1", "asset-T")
	assert.ErrorIs(t, err, models.ErrNotFound)

	trades, err := storage.RealizedTrades().List(ctx, models.RealizedFilter{AccountID: "acct-1"})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].RealizedPnL.Equal(dec("199")))
}

func TestReplayIdempotent(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	seedTxn(t, storage, txn(models.TxnBuy, "100", "10.00", "0", day(1)))
	seedTxn(t, storage, txn(models.TxnSell, "40", "12.00", "1.00", day(2)))

	first, _, err := svc.Replay(ctx, "acct-1", "asset-T")
	require.NoError(t, err)
	second, _, err := svc.Replay(ctx, "acct-1", "asset-T")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.Quantity.Equal(second.Quantity))
	assert.True(t, first.TotalCost.Equal(second.TotalCost))

	trades, err := storage.RealizedTrades().List(ctx, models.RealizedFilter{AccountID: "acct-1"})
	require.NoError(t, err)
	assert.Len(t, trades, 1, "re-running replay must not duplicate trades")
}

func TestReplayKeepsStatementTrades(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	// A reconciliation-closed trade carries a document reference.
	require.NoError(t, storage.RealizedTrades().Append(ctx, &models.RealizedTrade{
		ID:         "trade-stmt",
		AccountID:  "acct-1",
		AssetID:    "asset-T",
		CloseDate:  day(1),
		DocumentID: "doc-1",
	}))

	seedTxn(t, storage, txn(models.TxnBuy, "10", "10.00", "0", day(2)))
	seedTxn(t, storage, txn(models.TxnSell, "10", "11.00", "0", day(3)))

	_, _, err := svc.Replay(ctx, "acct-1", "asset-T")
	require.NoError(t, err)

	trades, err := storage.RealizedTrades().List(ctx, models.RealizedFilter{AccountID: "acct-1"})
	require.NoError(t, err)
	assert.Len(t, trades, 2, "replay must not clear statement-closed trades")
}

// anchoredPosition is a statement-reconciled LONG position for the default
// test pair, anchored at the given day.
func anchoredPosition(qty, avg, total string, anchorDay int) *models.Position {
	return &models.Position{
		ID:           "pos-1",
		AccountID:    "acct-1",
		AssetID:      "asset-T",
		Quantity:     dec(qty),
		AvgPrice:     dec(avg),
		TotalCost:    dec(total),
		PositionType: models.PositionLong,
		Source:       models.SourceStatement,
		OpenedAt:     day(anchorDay),
		UpdatedAt:    day(anchorDay),

		AnchorQuantity:  dec(qty),
		AnchorAvgPrice:  dec(avg),
		AnchorTotalCost: dec(total),
		AnchorType:      models.PositionLong,
		AnchorDate:      day(anchorDay),
	}
}

func TestReplaySeedsFromStatementAnchor(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	require.NoError(t, storage.Positions().Upsert(ctx, anchoredPosition("100", "15", "1500", 10)))

	// Before the anchor: must be ignored. After: applied on top.
	seedTxn(t, storage, txn(models.TxnBuy, "500", "1.00", "0", day(5)))
	seedTxn(t, storage, txn(models.TxnSell, "50", "20.00", "0", day(15)))

	pos, events, err := svc.Replay(ctx, "acct-1", "asset-T")
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.Len(t, events, 1)

	assert.True(t, events[0].OpenAvgPrice.Equal(dec("15")))
	assert.True(t, events[0].RealizedPnL.Equal(dec("250")))
	assert.True(t, pos.Quantity.Equal(dec("50")))
	assert.True(t, pos.TotalCost.Equal(dec("750")))
	assert.Equal(t, models.SourceCalculated, pos.Source)
}

func TestReplayAnchorSurvivesReplay(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	require.NoError(t, storage.Positions().Upsert(ctx, anchoredPosition("100", "15", "1500", 10)))

	seedTxn(t, storage, txn(models.TxnBuy, "500", "1.00", "0", day(5)))
	seedTxn(t, storage, txn(models.TxnSell, "50", "20.00", "0", day(15)))

	first, _, err := svc.Replay(ctx, "acct-1", "asset-T")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, first.Anchored())
	assert.Equal(t, day(10), first.AnchorDate)
	assert.True(t, first.AnchorQuantity.Equal(dec("100")))

	// The second replay starts from the same anchor: same result, no
	// rewind past the statement, no duplicated trades.
	second, events, err := svc.Replay(ctx, "acct-1", "asset-T")
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Len(t, events, 1)
	assert.True(t, second.Quantity.Equal(dec("50")), "got %s", second.Quantity)
	assert.True(t, second.TotalCost.Equal(dec("750")))
	assert.True(t, second.AnchorQuantity.Equal(dec("100")))

	trades, err := storage.RealizedTrades().List(ctx, models.RealizedFilter{AccountID: "acct-1"})
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestReplayStatementWithNoLaterTxnsStaysStatement(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	require.NoError(t, storage.Positions().Upsert(ctx, anchoredPosition("100", "15", "1500", 10)))
	seedTxn(t, storage, txn(models.TxnBuy, "100", "15.00", "0", day(5)))

	pos, _, err := svc.Replay(ctx, "acct-1", "asset-T")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, models.SourceStatement, pos.Source)
	assert.Equal(t, day(10), pos.UpdatedAt)
	assert.True(t, pos.Quantity.Equal(dec("100")))
	assert.True(t, pos.Anchored())
}

func TestReplayAccountCoversEveryAsset(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	a := txn(models.TxnBuy, "10", "10.00", "0", day(1))
	b := txn(models.TxnBuy, "5", "20.00", "0", day(1))
	b.AssetID = "asset-U"
	closed := txn(models.TxnBuy, "1", "1.00", "0", day(1))
	closed.AssetID = "asset-V"
	closedSell := txn(models.TxnSell, "1", "2.00", "0", day(2))
	closedSell.AssetID = "asset-V"

	for _, tx := range []*models.Transaction{a, b, closed, closedSell} {
		seedTxn(t, storage, tx)
	}

	positions, err := svc.ReplayAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, positions, 2, "closed pairs yield no position")
}

func TestReplayConcurrentSamePair(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	seedTxn(t, storage, txn(models.TxnBuy, "100", "10.00", "0", day(1)))
	seedTxn(t, storage, txn(models.TxnSell, "40", "12.00", "0", day(2)))

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, _, err := svc.Replay(ctx, "acct-1", "asset-T")
			done <- err
		}()
	}
	deadline := time.After(5 * time.Second)
	for i := 0; i < 10; i++ {
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-deadline:
			t.Fatal("replay deadlocked")
		}
	}

	positions, err := storage.Positions().ListByAccount(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, positions, 1, "netting uniqueness must hold under concurrency")
	assert.True(t, positions[0].Quantity.Equal(dec("60")))
}

func TestReplayValidationErrorLeavesStateUntouched(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	seedTxn(t, storage, txn(models.TxnBuy, "100", "10.00", "0", day(1)))
	_, _, err := svc.Replay(ctx, "acct-1", "asset-T")
	require.NoError(t, err)

	bad := txn(models.TxnBuy, "0", "10.00", "0", day(2))
	seedTxn(t, storage, bad)

	_, _, err = svc.Replay(ctx, "acct-1", "asset-T")
	require.ErrorIs(t, err, models.ErrValidation)

	pos, err := storage.Positions().Get(ctx, "acct-1", "asset-T")
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(dec("100")), "failed replay must not rewrite the position")
}
