package quote

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
	"github.com/lfmartins/carteira/internal/storage/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(n int) time.Time {
	return time.Date(2024, 5, n, 0, 0, 0, 0, time.UTC)
}

// fakeProvider serves canned bars and records concurrency.
type fakeProvider struct {
	mu       sync.Mutex
	bars     map[string][]models.ProviderBar
	failures map[string]error
	inFlight int
	maxSeen  int
	calls    []string
}

func (f *fakeProvider) FetchDaily(_ context.Context, ticker string, _, _ time.Time) ([]models.ProviderBar, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.calls = append(f.calls, ticker)
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err, ok := f.failures[ticker]; ok {
		return nil, err
	}
	return f.bars[ticker], nil
}

func (f *fakeProvider) Name() string { return "fake" }

func newTestService(t *testing.T, provider *fakeProvider, parallelism int) (*Service, *memory.Manager) {
	t.Helper()
	storage := memory.NewManager(t.TempDir())
	var qp interfaces.QuoteProvider
	if provider != nil {
		qp = provider
	}
	return NewService(storage, qp, parallelism, 0, common.NewSilentLogger()), storage
}

func bar(ticker string, day int, close string) models.ProviderBar {
	return models.ProviderBar{
		Ticker: ticker, Date: date(day),
		Open: dec(close), High: dec(close), Low: dec(close), Close: dec(close),
		Volume: 1000,
	}
}

func TestUpsertIdempotent(t *testing.T) {
	svc, storage := newTestService(t, nil, 1)
	ctx := context.Background()

	q := &models.Quote{AssetID: "asset-1", Date: date(1), Close: dec("10"), Source: "test"}
	require.NoError(t, svc.Upsert(ctx, q))
	q2 := &models.Quote{AssetID: "asset-1", Date: date(1), Close: dec("11"), Source: "test"}
	require.NoError(t, svc.Upsert(ctx, q2))

	history, err := storage.Quotes().History(ctx, "asset-1", nil, nil, 0)
	require.NoError(t, err)
	require.Len(t, history, 1, "same (asset, date) must stay one row")
	assert.True(t, history[0].Close.Equal(dec("11")))
}

func TestUpsertValidation(t *testing.T) {
	svc, _ := newTestService(t, nil, 1)
	err := svc.Upsert(context.Background(), &models.Quote{Date: date(1), Close: dec("10")})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestLatestPicksNewest(t *testing.T) {
	svc, _ := newTestService(t, nil, 1)
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, &models.Quote{AssetID: "asset-1", Date: date(1), Close: dec("10")}))
	require.NoError(t, svc.Upsert(ctx, &models.Quote{AssetID: "asset-1", Date: date(9), Close: dec("12")}))

	prices, err := svc.Latest(ctx, []string{"asset-1", "asset-missing"})
	require.NoError(t, err)
	require.Contains(t, prices, "asset-1")
	assert.NotContains(t, prices, "asset-missing")
	assert.True(t, prices["asset-1"].Price.Equal(dec("12")))
}

func TestLatestCacheServesRepeatLookups(t *testing.T) {
	storage := memory.NewManager(t.TempDir())
	svc := NewService(storage, nil, 1, time.Minute, common.NewSilentLogger())
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, &models.Quote{AssetID: "asset-1", Date: date(1), Close: dec("10")}))

	first, err := svc.Latest(ctx, []string{"asset-1"})
	require.NoError(t, err)
	second, err := svc.Latest(ctx, []string{"asset-1"})
	require.NoError(t, err)
	assert.True(t, first["asset-1"].Price.Equal(second["asset-1"].Price))

	// A new upsert invalidates the cached entry.
	require.NoError(t, svc.Upsert(ctx, &models.Quote{AssetID: "asset-1", Date: date(2), Close: dec("20")}))
	third, err := svc.Latest(ctx, []string{"asset-1"})
	require.NoError(t, err)
	assert.True(t, third["asset-1"].Price.Equal(dec("20")))
}

func TestSyncTickersWritesQuotes(t *testing.T) {
	provider := &fakeProvider{bars: map[string][]models.ProviderBar{
		"PETR4": {bar("PETR4", 1, "38.10"), bar("PETR4", 2, "38.55")},
	}}
	svc, storage := newTestService(t, provider, 2)
	ctx := context.Background()

	report, err := svc.SyncTickers(ctx, []string{"PETR4"}, date(1), date(5))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, 2, report.Upserted)
	assert.Empty(t, report.Errors)

	asset, err := storage.Assets().GetByTicker(ctx, "PETR4")
	require.NoError(t, err)
	assert.Equal(t, models.AssetStock, asset.AssetType)
	assert.Equal(t, "BRL", asset.Currency)

	history, err := storage.Quotes().History(ctx, asset.ID, nil, nil, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSyncTickersCollectsPerTickerErrors(t *testing.T) {
	provider := &fakeProvider{
		bars:     map[string][]models.ProviderBar{"PETR4": {bar("PETR4", 1, "38.10")}},
		failures: map[string]error{"VALE3": fmt.Errorf("upstream 500")},
	}
	svc, _ := newTestService(t, provider, 2)

	report, err := svc.SyncTickers(context.Background(), []string{"PETR4", "VALE3"}, date(1), date(5))
	require.NoError(t, err, "per-ticker failure must not fail the batch")
	assert.Equal(t, 1, report.Synced)
	require.Contains(t, report.Errors, "VALE3")
	assert.Contains(t, report.Errors["VALE3"], "upstream 500")
}

func TestSyncTickersBoundedParallelism(t *testing.T) {
	bars := make(map[string][]models.ProviderBar)
	var tickers []string
	for i := 0; i < 12; i++ {
		ticker := fmt.Sprintf("AAAA%d", i)
		bars[ticker] = nil
		tickers = append(tickers, ticker)
	}
	provider := &fakeProvider{bars: bars}
	svc, _ := newTestService(t, provider, 3)

	_, err := svc.SyncTickers(context.Background(), tickers, date(1), date(5))
	require.NoError(t, err)
	assert.LessOrEqual(t, provider.maxSeen, 3, "worker pool must respect the limit")
}

func TestEnsureAssetHeuristics(t *testing.T) {
	svc, _ := newTestService(t, nil, 1)
	ctx := context.Background()

	cases := []struct {
		ticker   string
		wantType models.AssetType
		wantCcy  string
	}{
		{"HGLG11", models.AssetFII, "BRL"},
		{"AAPL34", models.AssetBDR, "BRL"},
		{"PETR4", models.AssetStock, "BRL"},
		{"AGRO3", models.AssetFiagro, "BRL"},
		{"AAPL", models.AssetStock, "USD"},
	}
	for _, tc := range cases {
		asset, err := svc.EnsureAsset(ctx, tc.ticker)
		require.NoError(t, err, tc.ticker)
		assert.Equal(t, tc.wantType, asset.AssetType, tc.ticker)
		assert.Equal(t, tc.wantCcy, asset.Currency, tc.ticker)
	}
}

func TestEnsureAssetNormalizesAndReuses(t *testing.T) {
	svc, _ := newTestService(t, nil, 1)
	ctx := context.Background()

	first, err := svc.EnsureAsset(ctx, "petr4.sa")
	require.NoError(t, err)
	assert.Equal(t, "PETR4", first.Ticker)

	second, err := svc.EnsureAsset(ctx, "PETR4")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
