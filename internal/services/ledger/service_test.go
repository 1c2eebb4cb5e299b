package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/models"
	"github.com/lfmartins/carteira/internal/services/fund"
	"github.com/lfmartins/carteira/internal/services/fx"
	"github.com/lfmartins/carteira/internal/services/replay"
	"github.com/lfmartins/carteira/internal/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Manager) {
	t.Helper()
	storage := memory.NewManager(t.TempDir())
	logger := common.NewSilentLogger()
	fxSvc := fx.NewService(storage, nil, 7, logger)
	replaySvc := replay.NewService(storage, logger)
	fundSvc := fund.NewService(storage, fxSvc, "BRL", decimal.Decimal{}, logger)
	svc := NewService(storage, replaySvc, fundSvc, logger)

	ctx := context.Background()
	require.NoError(t, storage.Accounts().Create(ctx, &models.Account{
		ID: "acct-1", UserID: "user-1", Name: "BTG BR", Type: models.AccountBTGBR,
		Currency: "BRL", IsActive: true,
	}))
	require.NoError(t, storage.Assets().Create(ctx, &models.Asset{
		ID: "asset-petr4", Ticker: "PETR4", AssetType: models.AssetStock, Currency: "BRL",
	}))
	return svc, storage
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(n int) time.Time {
	return time.Date(2026, 1, n, 14, 0, 0, 0, time.UTC)
}

func buyTxn(qty, price string, executed time.Time) *models.Transaction {
	return &models.Transaction{
		AccountID:  "acct-1",
		AssetID:    "asset-petr4",
		Type:       models.TxnBuy,
		Quantity:   dec(qty),
		Price:      dec(price),
		ExecutedAt: executed,
	}
}

func TestCreateTransactionReplaysPosition(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTransaction(ctx, buyTxn("100", "10.00", day(5)))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "BRL", created.Currency)
	assert.True(t, created.ExchangeRate.Equal(dec("1")))

	pos, err := storage.Positions().Get(ctx, "acct-1", "asset-petr4")
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(dec("100")))
	assert.Equal(t, models.SourceCalculated, pos.Source)
}

func TestCreateTransactionValidates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	bad := buyTxn("0", "10.00", day(1))
	_, err := svc.CreateTransaction(ctx, bad)
	assert.ErrorIs(t, err, models.ErrValidation)

	missing := buyTxn("10", "10.00", day(1))
	missing.AccountID = "acct-missing"
	_, err = svc.CreateTransaction(ctx, missing)
	assert.ErrorIs(t, err, models.ErrNotFound)

	missing = buyTxn("10", "10.00", day(1))
	missing.AssetID = "asset-missing"
	_, err = svc.CreateTransaction(ctx, missing)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateTransactionReplaysPosition(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTransaction(ctx, buyTxn("100", "10.00", day(5)))
	require.NoError(t, err)

	qty := dec("40")
	updated, err := svc.UpdateTransaction(ctx, created.ID, models.TransactionUpdate{Quantity: &qty})
	require.NoError(t, err)
	assert.True(t, updated.Quantity.Equal(dec("40")))

	pos, err := storage.Positions().Get(ctx, "acct-1", "asset-petr4")
	require.NoError(t, err)
	assert.True(t, pos.Quantity.Equal(dec("40")))
}

func TestUpdateTransactionRejectsInvalid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTransaction(ctx, buyTxn("100", "10.00", day(5)))
	require.NoError(t, err)

	zero := dec("0")
	_, err = svc.UpdateTransaction(ctx, created.ID, models.TransactionUpdate{Quantity: &zero})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestDeleteTransactionRemovesPosition(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateTransaction(ctx, buyTxn("100", "10.00", day(5)))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTransaction(ctx, created.ID))

	_, err = storage.Positions().Get(ctx, "acct-1", "asset-petr4")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateCashFlowDepositIssuesShares(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	flow, err := svc.CreateCashFlow(ctx, &models.CashFlow{
		AccountID:  "acct-1",
		Type:       models.CashDeposit,
		Amount:     dec("1000"),
		ExecutedAt: day(5),
	})
	require.NoError(t, err)
	require.NotNil(t, flow.SharesAffected)
	assert.Equal(t, "10", flow.SharesAffected.String())
	assert.Equal(t, "BRL", flow.Currency)
}

func TestCreateCashFlowWithdrawalRequiresShares(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCashFlow(ctx, &models.CashFlow{
		AccountID:  "acct-1",
		Type:       models.CashWithdrawal,
		Amount:     dec("500"),
		ExecutedAt: day(5),
	})
	assert.ErrorIs(t, err, models.ErrInsufficientShares)

	// Rolled back: nothing left in the journal.
	flows, err := storage.CashFlows().List(ctx, models.CashFlowFilter{AccountID: "acct-1"})
	require.NoError(t, err)
	assert.Empty(t, flows)
}

func TestCreateCashFlowWithdrawalRedeems(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateCashFlow(ctx, &models.CashFlow{
		AccountID: "acct-1", Type: models.CashDeposit,
		Amount: dec("1000"), ExecutedAt: day(5),
	})
	require.NoError(t, err)

	flow, err := svc.CreateCashFlow(ctx, &models.CashFlow{
		AccountID: "acct-1", Type: models.CashWithdrawal,
		Amount: dec("400"), ExecutedAt: day(10),
	})
	require.NoError(t, err)
	require.NotNil(t, flow.SharesAffected)
	assert.Equal(t, "-4", flow.SharesAffected.String())
}

func TestUpdateCashFlowRestampsShares(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCashFlow(ctx, &models.CashFlow{
		AccountID: "acct-1", Type: models.CashDeposit,
		Amount: dec("1000"), ExecutedAt: day(5),
	})
	require.NoError(t, err)
	assert.Equal(t, "10", created.SharesAffected.String())

	updated, err := svc.UpdateCashFlow(ctx, created.ID, &models.CashFlow{
		Type:   models.CashDeposit,
		Amount: dec("2000"),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.SharesAffected)
	assert.Equal(t, "20", updated.SharesAffected.String())
}

func TestUpdateCashFlowToNonQuotaTypeClearsShares(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCashFlow(ctx, &models.CashFlow{
		AccountID: "acct-1", Type: models.CashDeposit,
		Amount: dec("1000"), ExecutedAt: day(5),
	})
	require.NoError(t, err)

	updated, err := svc.UpdateCashFlow(ctx, created.ID, &models.CashFlow{
		Type:   models.CashDividend,
		Amount: dec("1000"),
	})
	require.NoError(t, err)
	assert.Nil(t, updated.SharesAffected)
}

func TestDeleteCashFlow(t *testing.T) {
	svc, storage := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateCashFlow(ctx, &models.CashFlow{
		AccountID: "acct-1", Type: models.CashDividend,
		Amount: dec("50"), ExecutedAt: day(5),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCashFlow(ctx, created.ID))

	_, err = storage.CashFlows().Get(ctx, created.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	err = svc.DeleteCashFlow(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
