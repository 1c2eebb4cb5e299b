package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/models"
	"github.com/lfmartins/carteira/internal/services/quote"
	"github.com/lfmartins/carteira/internal/storage/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func date(n int) time.Time {
	return time.Date(2024, 8, n, 0, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T) (*Service, *memory.Manager) {
	t.Helper()
	storage := memory.NewManager(t.TempDir())
	logger := common.NewSilentLogger()
	quotes := quote.NewService(storage, nil, 1, 0, logger)
	return NewService(storage, quotes, logger), storage
}

func stockPos(ticker, qty, avg string) models.ParsedStockPosition {
	return models.ParsedStockPosition{Ticker: ticker, Quantity: decp(qty), AvgPrice: decp(avg)}
}

func TestReconcileCreatesMissingPosition(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	result, err := svc.Reconcile(ctx, "acct-1", []models.ParsedStockPosition{
		stockPos("PETR4", "100", "35.50"),
	}, date(31), "doc-1")
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, models.ReconcileCreated, result.Entries[0].Action)

	asset, err := storage.Assets().GetByTicker(ctx, "PETR4")
	require.NoError(t, err)
	position, err := storage.Positions().Get(ctx, "acct-1", asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceStatement, position.Source)
	assert.True(t, position.Quantity.Equal(dec("100")))
	assert.True(t, position.TotalCost.Equal(dec("3550")))
	assert.True(t, position.Anchored())
	assert.True(t, position.AnchorQuantity.Equal(dec("100")))
	assert.Equal(t, date(31), position.AnchorDate)
}

func TestReconcileUpdatesDivergingPosition(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	quotes := quote.NewService(storage, nil, 1, 0, common.NewSilentLogger())
	asset, err := quotes.EnsureAsset(ctx, "PETR4")
	require.NoError(t, err)

	require.NoError(t, storage.Positions().Upsert(ctx, &models.Position{
		ID: "pos-1", AccountID: "acct-1", AssetID: asset.ID,
		Quantity: dec("80"), AvgPrice: dec("30"), TotalCost: dec("2400"),
		PositionType: models.PositionLong, Source: models.SourceCalculated,
		OpenedAt: date(1), UpdatedAt: date(1),
	}))

	result, err := svc.Reconcile(ctx, "acct-1", []models.ParsedStockPosition{
		stockPos("PETR4", "100", "35.50"),
	}, date(31), "doc-1")
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, models.ReconcileUpdated, result.Entries[0].Action)

	position, err := storage.Positions().Get(ctx, "acct-1", asset.ID)
	require.NoError(t, err)
	assert.Equal(t, "pos-1", position.ID, "row identity survives the overwrite")
	assert.Equal(t, models.SourceStatement, position.Source)
	assert.True(t, position.Quantity.Equal(dec("100")))
	assert.Equal(t, date(31), position.UpdatedAt)
}

func TestReconcileClosesDisappearedPosition(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	quotes := quote.NewService(storage, nil, 1, 0, common.NewSilentLogger())
	asset, err := quotes.EnsureAsset(ctx, "VALE3")
	require.NoError(t, err)

	require.NoError(t, storage.Positions().Upsert(ctx, &models.Position{
		ID: "pos-1", AccountID: "acct-1", AssetID: asset.ID,
		Quantity: dec("50"), AvgPrice: dec("60"), TotalCost: dec("3000"),
		PositionType: models.PositionLong, Source: models.SourceCalculated,
		OpenedAt: date(1), UpdatedAt: date(1),
	}))
	// The statement's own sell gives the close price.
	require.NoError(t, storage.Transactions().Create(ctx, &models.Transaction{
		ID: "txn-1", AccountID: "acct-1", AssetID: asset.ID, DocumentID: "doc-1",
		Type: models.TxnSell, Quantity: dec("50"), Price: dec("65"),
		Currency: "BRL", ExecutedAt: date(20),
	}))

	result, err := svc.Reconcile(ctx, "acct-1", nil, date(31), "doc-1")
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)

	entry := result.Entries[0]
	assert.Equal(t, models.ReconcileClosed, entry.Action)
	require.NotNil(t, entry.RealizedPnL)
	assert.True(t, entry.RealizedPnL.Equal(dec("250")), "got %s", entry.RealizedPnL)

	_, err = storage.Positions().Get(ctx, "acct-1", asset.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	trades, err := storage.RealizedTrades().List(ctx, models.RealizedFilter{AccountID: "acct-1"})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "doc-1", trades[0].DocumentID)
	assert.True(t, trades[0].CloseAvgPrice.Equal(dec("65")))
}

func TestReconcileCloseFallsBackToAvgPrice(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	quotes := quote.NewService(storage, nil, 1, 0, common.NewSilentLogger())
	asset, err := quotes.EnsureAsset(ctx, "VALE3")
	require.NoError(t, err)

	require.NoError(t, storage.Positions().Upsert(ctx, &models.Position{
		ID: "pos-1", AccountID: "acct-1", AssetID: asset.ID,
		Quantity: dec("50"), AvgPrice: dec("60"), TotalCost: dec("3000"),
		PositionType: models.PositionLong, Source: models.SourceCalculated,
		OpenedAt: date(1), UpdatedAt: date(1),
	}))

	result, err := svc.Reconcile(ctx, "acct-1", nil, date(31), "doc-1")
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	require.NotNil(t, result.Entries[0].RealizedPnL)
	assert.True(t, result.Entries[0].RealizedPnL.IsZero(), "no close price known, P&L neutral")
}

func TestReconcileCloseIgnoresForeignTransactions(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	quotes := quote.NewService(storage, nil, 1, 0, common.NewSilentLogger())
	asset, err := quotes.EnsureAsset(ctx, "VALE3")
	require.NoError(t, err)

	require.NoError(t, storage.Positions().Upsert(ctx, &models.Position{
		ID: "pos-1", AccountID: "acct-1", AssetID: asset.ID,
		Quantity: dec("50"), AvgPrice: dec("60"), TotalCost: dec("3000"),
		PositionType: models.PositionLong, Source: models.SourceCalculated,
		OpenedAt: date(1), UpdatedAt: date(1),
	}))
	// A sell from some other document must not set the close price.
	require.NoError(t, storage.Transactions().Create(ctx, &models.Transaction{
		ID: "txn-1", AccountID: "acct-1", AssetID: asset.ID, DocumentID: "doc-other",
		Type: models.TxnSell, Quantity: dec("50"), Price: dec("65"),
		Currency: "BRL", ExecutedAt: date(20),
	}))

	result, err := svc.Reconcile(ctx, "acct-1", nil, date(31), "doc-1")
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	require.NotNil(t, result.Entries[0].RealizedPnL)
	assert.True(t, result.Entries[0].RealizedPnL.IsZero(),
		"close price comes from the statement's own transactions or the average price")
}

func TestReconcileShortQuantity(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	result, err := svc.Reconcile(ctx, "acct-1", []models.ParsedStockPosition{
		stockPos("PETR4", "-30", "40"),
	}, date(31), "doc-1")
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)

	asset, err := storage.Assets().GetByTicker(ctx, "PETR4")
	require.NoError(t, err)
	position, err := storage.Positions().Get(ctx, "acct-1", asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PositionShort, position.PositionType)
	assert.True(t, position.Quantity.Equal(dec("30")))
}

func TestReconcilePerTickerWarnings(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Reconcile(context.Background(), "acct-1", []models.ParsedStockPosition{
		{Ticker: "", Quantity: decp("10")},
		stockPos("PETR4", "100", "35"),
	}, date(31), "doc-1")
	require.NoError(t, err, "a bad line must not abort the run")
	assert.Len(t, result.Entries, 1)
	assert.Len(t, result.Warnings, 1)
}

func TestReconcileTwiceIsNoOp(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	lines := []models.ParsedStockPosition{stockPos("PETR4", "100", "35.50")}
	_, err := svc.Reconcile(ctx, "acct-1", lines, date(31), "doc-1")
	require.NoError(t, err)

	asset, err := storage.Assets().GetByTicker(ctx, "PETR4")
	require.NoError(t, err)
	first, err := storage.Positions().Get(ctx, "acct-1", asset.ID)
	require.NoError(t, err)

	second, err := svc.Reconcile(ctx, "acct-1", lines, date(31), "doc-1")
	require.NoError(t, err)
	assert.Empty(t, second.Entries, "identical statement writes nothing")

	after, err := storage.Positions().Get(ctx, "acct-1", asset.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, after.ID)
	assert.True(t, first.Quantity.Equal(after.Quantity))
}

func TestMigrateReplacesEverything(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	quotes := quote.NewService(storage, nil, 1, 0, common.NewSilentLogger())
	old, err := quotes.EnsureAsset(ctx, "OLDX3")
	require.NoError(t, err)
	require.NoError(t, storage.Positions().Upsert(ctx, &models.Position{
		ID: "pos-old", AccountID: "acct-1", AssetID: old.ID,
		Quantity: dec("10"), AvgPrice: dec("5"), TotalCost: dec("50"),
		PositionType: models.PositionLong, Source: models.SourceCalculated,
		OpenedAt: date(1), UpdatedAt: date(1),
	}))

	result, err := svc.Migrate(ctx, "acct-1", []models.ParsedStockPosition{
		stockPos("PETR4", "100", "35"),
	}, date(31), "doc-1")
	require.NoError(t, err)
	assert.Len(t, result.Entries, 1)

	_, err = storage.Positions().Get(ctx, "acct-1", old.ID)
	assert.ErrorIs(t, err, models.ErrNotFound, "old positions are dropped")

	trades, err := storage.RealizedTrades().List(ctx, models.RealizedFilter{AccountID: "acct-1"})
	require.NoError(t, err)
	assert.Empty(t, trades, "migration never records P&L")
}
