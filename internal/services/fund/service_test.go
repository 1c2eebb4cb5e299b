package fund

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/models"
	"github.com/lfmartins/carteira/internal/services/fx"
	"github.com/lfmartins/carteira/internal/storage/memory"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(n int) time.Time {
	return time.Date(2024, 6, n, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc     *Service
	storage *memory.Manager
	seq     int
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithInitial(t, decimal.Decimal{})
}

func newFixtureWithInitial(t *testing.T, initialShareValue decimal.Decimal) *fixture {
	t.Helper()
	storage := memory.NewManager(t.TempDir())
	logger := common.NewSilentLogger()
	fxSvc := fx.NewService(storage, nil, 7, logger)
	return &fixture{svc: NewService(storage, fxSvc, "BRL", initialShareValue, logger), storage: storage}
}

func (f *fixture) addAsset(t *testing.T, id, ticker, currency string) {
	t.Helper()
	require.NoError(t, f.storage.Assets().Create(context.Background(), &models.Asset{
		ID: id, Ticker: ticker, AssetType: models.AssetStock, Currency: currency, IsActive: true,
	}))
}

func (f *fixture) addAccount(t *testing.T, id, currency string) {
	t.Helper()
	require.NoError(t, f.storage.Accounts().Create(context.Background(), &models.Account{
		ID: id, UserID: "user-1", Name: id, Type: models.AccountBTGBR,
		Currency: currency, IsActive: true,
	}))
}

func (f *fixture) addPosition(t *testing.T, accountID, assetID, qty, cost string, typ models.PositionType) {
	t.Helper()
	require.NoError(t, f.storage.Positions().Upsert(context.Background(), &models.Position{
		ID: "pos-" + accountID + "-" + assetID, AccountID: accountID, AssetID: assetID,
		Quantity: dec(qty), TotalCost: dec(cost), AvgPrice: dec(cost).DivRound(dec(qty), 8),
		PositionType: typ, Source: models.SourceCalculated,
		OpenedAt: date(1), UpdatedAt: date(1),
	}))
}

func (f *fixture) addQuote(t *testing.T, assetID, close string, at time.Time) {
	t.Helper()
	require.NoError(t, f.storage.Quotes().Upsert(context.Background(), &models.Quote{
		AssetID: assetID, Date: at, Close: dec(close), Source: "test",
	}))
}

func (f *fixture) addCashFlow(t *testing.T, accountID string, typ models.CashFlowType, amount string, at time.Time) *models.CashFlow {
	t.Helper()
	f.seq++
	flow := &models.CashFlow{
		ID: fmt.Sprintf("cf-%03d", f.seq), AccountID: accountID, Type: typ,
		Amount: dec(amount), Currency: "BRL", ExecutedAt: at,
	}
	require.NoError(t, f.storage.CashFlows().Create(context.Background(), flow))
	return flow
}

func (f *fixture) addRate(t *testing.T, from, to, rate string, at time.Time) {
	t.Helper()
	require.NoError(t, f.storage.Rates().Upsert(context.Background(), &models.ExchangeRate{
		Date: at, FromCurrency: from, ToCurrency: to, Rate: dec(rate), Source: "test",
	}))
}

func TestNAVWithFX(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAccount(t, "acct-brl", "BRL")
	f.addAccount(t, "acct-usd", "USD")
	f.addPosition(t, "acct-brl", "asset-br", "100", "900", models.PositionLong)
	f.addPosition(t, "acct-usd", "asset-us", "50", "80", models.PositionLong)
	f.addQuote(t, "asset-br", "10.00", date(10))
	f.addQuote(t, "asset-us", "2.00", date(10))
	f.addRate(t, "USD", "BRL", "5.00", date(10))

	nav, err := f.svc.NAV(ctx, "user-1", date(10), true)
	require.NoError(t, err)
	// 100×10 + (50×2)×5 = 1500
	assert.True(t, nav.NAV.Equal(dec("1500")), "got %s", nav.NAV)
	assert.True(t, nav.PTAXRateUsed.Equal(dec("5")))
	assert.Empty(t, nav.MissingFX)

	require.Len(t, nav.Accounts, 2)
	for _, line := range nav.Accounts {
		switch line.AccountID {
		case "acct-brl":
			assert.True(t, line.Value.Equal(dec("1000")))
			assert.Nil(t, line.FXRate)
		case "acct-usd":
			assert.True(t, line.Value.Equal(dec("500")), "got %s", line.Value)
			require.NotNil(t, line.FXRate)
			assert.True(t, line.FXRate.Equal(dec("5")))
		default:
			t.Fatalf("unexpected account line %s", line.AccountID)
		}
	}
}

func TestNAVConvertsAtAssetCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A USD-listed asset held inside a BRL account converts at the USD
	// rate; the BRL holding in the same account does not.
	f.addAccount(t, "acct-1", "BRL")
	f.addAsset(t, "asset-us", "AAPL", "USD")
	f.addAsset(t, "asset-br", "PETR4", "BRL")
	f.addPosition(t, "acct-1", "asset-us", "50", "80", models.PositionLong)
	f.addPosition(t, "acct-1", "asset-br", "100", "900", models.PositionLong)
	f.addQuote(t, "asset-us", "2.00", date(10))
	f.addQuote(t, "asset-br", "10.00", date(10))
	f.addRate(t, "USD", "BRL", "5.00", date(10))

	nav, err := f.svc.NAV(ctx, "user-1", date(10), true)
	require.NoError(t, err)
	// 100×10 + (50×2)×5 = 1500
	assert.True(t, nav.NAV.Equal(dec("1500")), "got %s", nav.NAV)
	assert.True(t, nav.PTAXRateUsed.Equal(dec("5")))
	assert.Empty(t, nav.MissingFX)
}

func TestNAVMissingFXFlagsCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAccount(t, "acct-usd", "USD")
	f.addPosition(t, "acct-usd", "asset-us", "50", "80", models.PositionLong)
	f.addQuote(t, "asset-us", "2.00", date(10))

	nav, err := f.svc.NAV(ctx, "user-1", date(10), true)
	require.NoError(t, err)
	assert.Contains(t, nav.MissingFX, "USD")
	// Unconverted amount still counts.
	assert.True(t, nav.NAV.Equal(dec("100")))
}

func TestNAVShortEntersNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAccount(t, "acct-1", "BRL")
	f.addPosition(t, "acct-1", "asset-l", "100", "1000", models.PositionLong)
	f.addPosition(t, "acct-1", "asset-s", "10", "500", models.PositionShort)
	f.addQuote(t, "asset-l", "12.00", date(10))
	f.addQuote(t, "asset-s", "45.00", date(10))

	nav, err := f.svc.NAV(ctx, "user-1", date(10), true)
	require.NoError(t, err)
	// 1200 − 450
	assert.True(t, nav.NAV.Equal(dec("750")), "got %s", nav.NAV)
}

func TestNAVUnpricedPositionEntersAtCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAccount(t, "acct-1", "BRL")
	f.addPosition(t, "acct-1", "asset-l", "100", "1000", models.PositionLong)

	nav, err := f.svc.NAV(ctx, "user-1", date(10), true)
	require.NoError(t, err)
	assert.True(t, nav.NAV.Equal(dec("1000")))
}

func TestNAVIncludesCashAndStatementHoldings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAccount(t, "acct-1", "BRL")
	f.addCashFlow(t, "acct-1", models.CashDeposit, "500", date(5))
	f.addCashFlow(t, "acct-1", models.CashFee, "50", date(6))
	f.addCashFlow(t, "acct-1", models.CashDeposit, "999", date(20)) // after the date

	require.NoError(t, f.storage.FixedIncome().ReplaceForAccount(ctx, "acct-1", []*models.FixedIncomePosition{
		{ID: "fi-1", AccountID: "acct-1", Description: "CDB", CurrentValue: dec("300"), ReferenceDate: date(1)},
	}))
	require.NoError(t, f.storage.InvestmentFunds().ReplaceForAccount(ctx, "acct-1", []*models.InvestmentFundPosition{
		{ID: "if-1", AccountID: "acct-1", FundName: "Fund X", NetValue: dec("200"), ReferenceDate: date(1)},
	}))

	nav, err := f.svc.NAV(ctx, "user-1", date(10), true)
	require.NoError(t, err)
	assert.True(t, nav.TotalCash.Equal(dec("450")))
	assert.True(t, nav.TotalMarketValue.Equal(dec("500")))
	assert.True(t, nav.NAV.Equal(dec("950")), "got %s", nav.NAV)
}

func TestNAVIdentityWithoutChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAccount(t, "acct-1", "BRL")
	f.addPosition(t, "acct-1", "asset-l", "100", "1000", models.PositionLong)
	f.addQuote(t, "asset-l", "11.00", date(5))

	d1, err := f.svc.NAV(ctx, "user-1", date(8), true)
	require.NoError(t, err)
	d2, err := f.svc.NAV(ctx, "user-1", date(9), true)
	require.NoError(t, err)
	assert.True(t, d1.NAV.Equal(d2.NAV))
}

func TestCreateDailyFundShareBootstrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAccount(t, "acct-1", "BRL")
	f.addCashFlow(t, "acct-1", models.CashDeposit, "12000", date(1))

	share, err := f.svc.CreateDailyFundShare(ctx, "user-1", date(1))
	require.NoError(t, err)
	assert.True(t, share.ShareValue.Equal(dec("100")), "first valuation is the initial share value")
	assert.True(t, share.SharesOutstanding.Equal(dec("120")), "got %s", share.SharesOutstanding)
	assert.True(t, share.NAV.Equal(dec("12000")))
	assert.True(t, share.CumulativeReturn.IsZero())
}

func TestCreateDailyFundShareConfiguredInitialValue(t *testing.T) {
	f := newFixtureWithInitial(t, dec("10"))
	ctx := context.Background()

	f.addAccount(t, "acct-1", "BRL")
	f.addCashFlow(t, "acct-1", models.CashDeposit, "12000", date(1))

	share, err := f.svc.CreateDailyFundShare(ctx, "user-1", date(1))
	require.NoError(t, err)
	assert.True(t, share.ShareValue.Equal(dec("10")), "got %s", share.ShareValue)
	assert.True(t, share.SharesOutstanding.Equal(dec("1200")), "got %s", share.SharesOutstanding)
}

func TestCreateDailyFundShareZeroNAVWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAccount(t, "acct-1", "BRL")
	require.NoError(t, f.storage.FundShares().Upsert(ctx, &models.FundShare{
		ID: "fs-1", UserID: "user-1", Date: date(9),
		NAV: dec("12000"), SharesOutstanding: dec("100"), ShareValue: dec("120"),
	}))

	// Account holds nothing at the date, so NAV is zero. No row is written.
	share, err := f.svc.CreateDailyFundShare(ctx, "user-1", date(10))
	require.NoError(t, err)
	assert.Nil(t, share)

	_, err = f.storage.FundShares().Get(ctx, "user-1", date(10))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestShareIssuanceAtPreviousValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAccount(t, "acct-1", "BRL")

	// Previous day's quota row values shares at 120.
	require.NoError(t, f.storage.FundShares().Upsert(ctx, &models.FundShare{
		ID: "fs-1", UserID: "user-1", Date: date(9),
		NAV: dec("12000"), SharesOutstanding: dec("100"), ShareValue: dec("120"),
	}))

	flow := f.addCashFlow(t, "acct-1", models.CashDeposit, "12000", date(10))
	shares, err := f.svc.IssueShares(ctx, "user-1", flow.ID, dec("12000"), date(10))
	require.NoError(t, err)
	assert.True(t, shares.Equal(dec("100")), "12000 / 120 = 100, got %s", shares)

	stored, err := f.storage.CashFlows().Get(ctx, flow.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.SharesAffected)
	assert.True(t, stored.SharesAffected.Equal(dec("100")))

	outstanding, err := f.svc.SharesOutstanding(ctx, "user-1", date(10))
	require.NoError(t, err)
	assert.True(t, outstanding.Equal(dec("200")), "got %s", outstanding)
}

func TestRedeemSharesInsufficient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAccount(t, "acct-1", "BRL")
	require.NoError(t, f.storage.FundShares().Upsert(ctx, &models.FundShare{
		ID: "fs-1", UserID: "user-1", Date: date(9),
		NAV: dec("1200"), SharesOutstanding: dec("10"), ShareValue: dec("120"),
	}))

	flow := f.addCashFlow(t, "acct-1", models.CashWithdrawal, "6000", date(10))
	_, err := f.svc.RedeemShares(ctx, "user-1", flow.ID, dec("6000"), date(10))
	assert.ErrorIs(t, err, models.ErrInsufficientShares)
}

func TestRedeemSharesNegativeDelta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAccount(t, "acct-1", "BRL")
	require.NoError(t, f.storage.FundShares().Upsert(ctx, &models.FundShare{
		ID: "fs-1", UserID: "user-1", Date: date(9),
		NAV: dec("12000"), SharesOutstanding: dec("100"), ShareValue: dec("120"),
	}))

	flow := f.addCashFlow(t, "acct-1", models.CashWithdrawal, "2400", date(10))
	shares, err := f.svc.RedeemShares(ctx, "user-1", flow.ID, dec("2400"), date(10))
	require.NoError(t, err)
	assert.True(t, shares.Equal(dec("-20")), "got %s", shares)

	outstanding, err := f.svc.SharesOutstanding(ctx, "user-1", date(10))
	require.NoError(t, err)
	assert.True(t, outstanding.Equal(dec("80")))
}

func TestCreateDailyFundShareIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addAccount(t, "acct-1", "BRL")
	f.addCashFlow(t, "acct-1", models.CashDeposit, "10000", date(1))

	first, err := f.svc.CreateDailyFundShare(ctx, "user-1", date(1))
	require.NoError(t, err)
	second, err := f.svc.CreateDailyFundShare(ctx, "user-1", date(1))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.ShareValue.Equal(second.ShareValue))
	assert.True(t, first.SharesOutstanding.Equal(second.SharesOutstanding))
}

func seedHistory(t *testing.T, f *fixture, values []string) {
	t.Helper()
	ctx := context.Background()
	cum := func(v decimal.Decimal) decimal.Decimal {
		return v.DivRound(dec("100"), 8).Sub(decimal.NewFromInt(1))
	}
	for i, v := range values {
		val := dec(v)
		row := &models.FundShare{
			ID: fmt.Sprintf("fs-%03d", i), UserID: "user-1",
			Date: date(1).AddDate(0, 0, i),
			NAV:  val.Mul(dec("100")), SharesOutstanding: dec("100"),
			ShareValue: val, CumulativeReturn: cum(val),
		}
		if i > 0 {
			prev := dec(values[i-1])
			row.DailyReturn = val.DivRound(prev, 8).Sub(decimal.NewFromInt(1))
		}
		require.NoError(t, f.storage.FundShares().Upsert(ctx, row))
	}
}

func TestPerformanceMaxDrawdown(t *testing.T) {
	f := newFixture(t)
	seedHistory(t, f, []string{"100", "110", "99", "105", "120"})

	perf, err := f.svc.Performance(context.Background(), "user-1")
	require.NoError(t, err)

	// Peak 110 to trough 99 is −10%.
	assert.True(t, perf.MaxDrawdown.Equal(dec("-0.1")), "got %s", perf.MaxDrawdown)
	assert.True(t, perf.CurrentShareValue.Equal(dec("120")))
	assert.True(t, perf.TotalReturn.Equal(dec("0.2")))
	assert.Nil(t, perf.Volatility, "volatility needs at least 20 samples")
}

func TestPerformanceVolatilityNeedsSamples(t *testing.T) {
	f := newFixture(t)
	values := make([]string, 30)
	for i := range values {
		if i%2 == 0 {
			values[i] = "100"
		} else {
			values[i] = "101"
		}
	}
	seedHistory(t, f, values)

	perf, err := f.svc.Performance(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, perf.Volatility)
	assert.True(t, perf.Volatility.IsPositive())
}

func TestPerformanceNoHistory(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Performance(context.Background(), "user-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
