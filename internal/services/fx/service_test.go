package fx

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/models"
	"github.com/lfmartins/carteira/internal/storage/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(n int) time.Time {
	return time.Date(2024, 3, n, 0, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T) (*Service, *memory.Manager) {
	t.Helper()
	storage := memory.NewManager(t.TempDir())
	return NewService(storage, nil, 7, common.NewSilentLogger()), storage
}

func storeRate(t *testing.T, svc *Service, from, to, rate string, at time.Time) {
	t.Helper()
	require.NoError(t, svc.Upsert(context.Background(), &models.ExchangeRate{
		Date: at, FromCurrency: from, ToCurrency: to, Rate: dec(rate), Source: "test",
	}))
}

func TestRateSameCurrency(t *testing.T) {
	svc, _ := newTestService(t)
	rate, ok, err := svc.Rate(context.Background(), "BRL", "BRL", date(10))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, rate.Equal(dec("1")))
}

func TestRateExactDate(t *testing.T) {
	svc, _ := newTestService(t)
	storeRate(t, svc, "USD", "BRL", "5.00", date(10))

	rate, ok, err := svc.Rate(context.Background(), "USD", "BRL", date(10))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, rate.Equal(dec("5")))
}

func TestRateFallbackWindow(t *testing.T) {
	svc, _ := newTestService(t)
	storeRate(t, svc, "USD", "BRL", "5.10", date(8))
	storeRate(t, svc, "USD", "BRL", "5.20", date(5))

	rate, ok, err := svc.Rate(context.Background(), "USD", "BRL", date(10))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, rate.Equal(dec("5.10")), "most recent rate inside the window wins")
}

func TestRateWindowBoundaryInclusive(t *testing.T) {
	svc, _ := newTestService(t)
	// Exactly windowDays old still resolves; one day older does not.
	storeRate(t, svc, "USD", "BRL", "5.00", date(3))

	rate, ok, err := svc.Rate(context.Background(), "USD", "BRL", date(10))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, rate.Equal(dec("5")))

	_, ok, err = svc.Rate(context.Background(), "USD", "BRL", date(11))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateWindowExhausted(t *testing.T) {
	svc, _ := newTestService(t)
	storeRate(t, svc, "USD", "BRL", "5.00", date(1))

	_, ok, err := svc.Rate(context.Background(), "USD", "BRL", date(20))
	require.NoError(t, err)
	assert.False(t, ok, "rates older than the window must not resolve")
}

func TestRateIgnoresFutureDates(t *testing.T) {
	svc, _ := newTestService(t)
	storeRate(t, svc, "USD", "BRL", "5.50", date(15))

	_, ok, err := svc.Rate(context.Background(), "USD", "BRL", date(10))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateDerivesInverse(t *testing.T) {
	svc, _ := newTestService(t)
	storeRate(t, svc, "USD", "BRL", "5.00", date(10))

	rate, ok, err := svc.Rate(context.Background(), "BRL", "USD", date(10))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, rate.Equal(dec("0.2")), "got %s", rate)
}

func TestRateSymmetry(t *testing.T) {
	svc, _ := newTestService(t)
	storeRate(t, svc, "USD", "BRL", "5.1234", date(10))

	fwd, ok, err := svc.Rate(context.Background(), "USD", "BRL", date(10))
	require.NoError(t, err)
	require.True(t, ok)
	inv, ok, err := svc.Rate(context.Background(), "BRL", "USD", date(10))
	require.NoError(t, err)
	require.True(t, ok)

	product := fwd.Mul(inv)
	diff := product.Sub(dec("1")).Abs()
	assert.True(t, diff.LessThan(dec("0.000001")), "product %s", product)
}

func TestConvertWithRate(t *testing.T) {
	svc, _ := newTestService(t)
	storeRate(t, svc, "USD", "BRL", "5.00", date(10))

	out, rate, err := svc.Convert(context.Background(), dec("100"), "USD", "BRL", date(10))
	require.NoError(t, err)
	require.NotNil(t, rate)
	assert.True(t, out.Equal(dec("500")))
}

func TestConvertMissingRateReturnsUnchanged(t *testing.T) {
	svc, _ := newTestService(t)

	out, rate, err := svc.Convert(context.Background(), dec("100"), "USD", "BRL", date(10))
	require.NoError(t, err)
	assert.Nil(t, rate)
	assert.True(t, out.Equal(dec("100")))
}

func TestUpsertValidation(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Upsert(context.Background(), &models.ExchangeRate{
		Date: date(1), FromCurrency: "USD", ToCurrency: "BRL", Rate: decimal.Zero,
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestUpsertIdempotent(t *testing.T) {
	svc, storage := newTestService(t)
	storeRate(t, svc, "USD", "BRL", "5.00", date(10))
	storeRate(t, svc, "USD", "BRL", "5.05", date(10))

	r, err := storage.Rates().LatestWithin(context.Background(), "USD", "BRL", date(10), 7)
	require.NoError(t, err)
	assert.True(t, r.Rate.Equal(dec("5.05")), "same (date, pair) row is replaced, not duplicated")
}
