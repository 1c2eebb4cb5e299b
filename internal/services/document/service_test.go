package document

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/models"
	"github.com/lfmartins/carteira/internal/services/fund"
	"github.com/lfmartins/carteira/internal/services/fx"
	"github.com/lfmartins/carteira/internal/services/quote"
	"github.com/lfmartins/carteira/internal/services/reconcile"
	"github.com/lfmartins/carteira/internal/services/replay"
	"github.com/lfmartins/carteira/internal/services/snapshot"
	"github.com/lfmartins/carteira/internal/storage/memory"
)

// fakeLLM answers each prompt through fn and counts calls.
type fakeLLM struct {
	fn    func(prompt string) (string, error)
	calls int
}

func (f *fakeLLM) GenerateFromPDF(_ context.Context, _ []byte, prompt string, _ int) (string, error) {
	f.calls++
	return f.fn(prompt)
}

type testEnv struct {
	storage *memory.Manager
	svc     *Service
}

func newTestEnv(t *testing.T, llm *fakeLLM) *testEnv {
	t.Helper()

	storage := memory.NewManager(t.TempDir())
	logger := common.NewSilentLogger()

	fxSvc := fx.NewService(storage, nil, 7, logger)
	quoteSvc := quote.NewService(storage, nil, 2, 0, logger)
	replaySvc := replay.NewService(storage, logger)
	reconcileSvc := reconcile.NewService(storage, quoteSvc, logger)
	snapshotSvc := snapshot.NewService(storage, fxSvc, "BRL", logger)
	fundSvc := fund.NewService(storage, fxSvc, "BRL", decimal.Decimal{}, logger)

	ctx := context.Background()
	require.NoError(t, storage.Accounts().Create(ctx, &models.Account{
		ID:       "acct-1",
		UserID:   "user-1",
		Name:     "BTG Pactual",
		Type:     models.AccountBTGBR,
		Currency: "BRL",
		IsActive: true,
	}))

	svc := NewService(storage, llm, quoteSvc, replaySvc, reconcileSvc, snapshotSvc, fundSvc, 0, logger)
	return &testEnv{storage: storage, svc: svc}
}

var fakePDF = []byte("%PDF-1.4 not a real statement")

const btgBRFullResponse = "```json\n" + `{
	"period": {"start_date": "2026-01-01", "end_date": "2026-01-31"},
	"transactions": [
		{"date": "2026-01-10", "raw_type": "COMPRA", "ticker": "PETR4", "quantity": 100, "price": 10, "fees": 2, "currency": "BRL"}
	],
	"cash_movements": [
		{"date": "2026-01-15", "raw_type": "DIVIDENDO", "description": "PETR4 dividendo", "amount": 50, "currency": "BRL"},
		{"date": "2026-01-05", "raw_type": "TED DEPOSITO", "description": "aporte", "amount": 1000, "currency": "BRL"}
	],
	"stock_positions": [
		{"ticker": "PETR4", "quantity": 100, "avg_price": 10, "current_price": 12, "market_value": 1200, "currency": "BRL"}
	],
	"fixed_income_positions": [
		{"description": "CDB BTG 110% CDI", "issuer": "BTG", "indexer_rate": "110% CDI", "principal": 5000, "current_value": 5100, "maturity_date": "2028-01-31"}
	],
	"investment_fund_positions": [
		{"fund_name": "BTG Absoluto FIC", "cnpj": "00.000.000/0001-00", "quota_quantity": 10, "quota_value": 150, "gross_value": 1500, "net_value": 1480}
	],
	"consolidated_position": {"renda_fixa": 5100, "fundos_investimento": 1480, "renda_variavel": 1200, "conta_corrente": 1050, "total": 8830}
}` + "\n```"

func uploadAndParse(t *testing.T, env *testEnv) *models.Document {
	t.Helper()
	ctx := context.Background()

	doc, err := env.svc.Upload(ctx, "user-1", "acct-1", models.DocStatementBTGBR, "extrato-jan.pdf", fakePDF)
	require.NoError(t, err)

	doc, err = env.svc.Parse(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, models.ParseCompleted, doc.ParsingStatus)
	return doc
}

func TestUploadRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})
	ctx := context.Background()

	_, err := env.svc.Upload(ctx, "user-1", "acct-1", models.DocStatementBTGBR, "a.pdf", nil)
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = env.svc.Upload(ctx, "user-1", "acct-1", models.DocStatementBTGBR, "a.pdf", []byte("plain text"))
	require.ErrorIs(t, err, models.ErrValidation)

	_, err = env.svc.Upload(ctx, "user-1", "acct-1", "STATEMENT_UNKNOWN", "a.pdf", fakePDF)
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestUploadStoresPDFAndRecord(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})
	ctx := context.Background()

	doc, err := env.svc.Upload(ctx, "user-1", "acct-1", models.DocStatementBTGBR, "extrato.pdf", fakePDF)
	require.NoError(t, err)
	assert.Equal(t, models.ParsePending, doc.ParsingStatus)
	assert.Equal(t, int64(len(fakePDF)), doc.FileSize)

	exists, err := env.storage.Files().HasFile(ctx, "documents", doc.ID+".pdf")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestParseStoresNormalizedStatement(t *testing.T) {
	llm := &fakeLLM{fn: func(string) (string, error) { return btgBRFullResponse, nil }}
	env := newTestEnv(t, llm)

	doc := uploadAndParse(t, env)
	assert.Equal(t, 1, llm.calls)
	assert.NotNil(t, doc.ParsedAt)

	stmt := decodeStored(t, doc)
	require.Len(t, stmt.Transactions, 1)
	assert.Equal(t, models.ParsedBuy, stmt.Transactions[0].Type)
	assert.Equal(t, models.ParsedTransferIn, stmt.CashMovements[1].Type)
}

func TestParseFocusedRetryFillsMissingSection(t *testing.T) {
	llm := &fakeLLM{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, `ONLY the "Posição Consolidada"`) {
			return `{"consolidated_position": {"renda_variavel": 1200, "total": 1200}}`, nil
		}
		// Full extraction missing the consolidated section.
		return `{"period": {"start_date": "2026-01-01", "end_date": "2026-01-31"},
			"transactions": [{"date": "2026-01-10", "raw_type": "COMPRA", "ticker": "PETR4", "quantity": 100, "price": 10, "currency": "BRL"}]}`, nil
	}}
	env := newTestEnv(t, llm)

	doc := uploadAndParse(t, env)
	assert.Equal(t, 2, llm.calls)

	stmt := decodeStored(t, doc)
	require.NotNil(t, stmt.ConsolidatedPosition)
	assert.Equal(t, "1200", stmt.ConsolidatedPosition.RendaVariavel.String())
}

func TestParseFailureMarksDocumentFailed(t *testing.T) {
	llm := &fakeLLM{fn: func(string) (string, error) { return "the document is illegible", nil }}
	env := newTestEnv(t, llm)
	ctx := context.Background()

	doc, err := env.svc.Upload(ctx, "user-1", "acct-1", models.DocStatementBTGBR, "extrato.pdf", fakePDF)
	require.NoError(t, err)

	doc, err = env.svc.Parse(ctx, doc.ID)
	require.ErrorIs(t, err, models.ErrParseFailed)
	assert.Equal(t, models.ParseFailed, doc.ParsingStatus)
	assert.NotEmpty(t, doc.ParsingError)
}

func TestCommitWritesLedger(t *testing.T) {
	llm := &fakeLLM{fn: func(string) (string, error) { return btgBRFullResponse, nil }}
	env := newTestEnv(t, llm)
	ctx := context.Background()

	doc := uploadAndParse(t, env)

	result, err := env.svc.Commit(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transactions)
	assert.Equal(t, 2, result.CashFlows)
	assert.Equal(t, 1, result.FixedIncome)
	assert.Equal(t, 1, result.InvestmentFunds)
	assert.Equal(t, 1, result.ReplayedPairs)
	require.NotNil(t, result.Reconciliation)

	// The statement position overrides the replayed one.
	asset, err := env.storage.Assets().GetByTicker(ctx, "PETR4")
	require.NoError(t, err)
	pos, err := env.storage.Positions().Get(ctx, "acct-1", asset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceStatement, pos.Source)
	assert.True(t, pos.Quantity.Equal(decimal.NewFromInt(100)))

	// The deposit became quota issuance at the initial share value.
	flows, err := env.storage.CashFlows().List(ctx, models.CashFlowFilter{AccountID: "acct-1", Type: models.CashDeposit})
	require.NoError(t, err)
	require.Len(t, flows, 1)
	require.NotNil(t, flows[0].SharesAffected)
	assert.Equal(t, "10", flows[0].SharesAffected.String())

	// The consolidated section landed as the authoritative snapshot.
	endDate := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	snap, err := env.storage.Snapshots().Get(ctx, "user-1", endDate, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, snap.DocumentID)
	assert.Equal(t, "8830", snap.NAV.String())

	fixed, err := env.storage.FixedIncome().ListByAccount(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, fixed, 1)
	assert.Equal(t, "CDB BTG 110% CDI", fixed[0].Description)
}

func TestCommitDefaultsCurrencyToAccount(t *testing.T) {
	// Statement rows without a currency take the account's.
	response := "```json\n" + `{
		"period": {"start_date": "2026-01-01", "end_date": "2026-01-31"},
		"transactions": [
			{"date": "2026-01-10", "raw_type": "COMPRA", "ticker": "PETR4", "quantity": 100, "price": 10}
		],
		"cash_movements": [
			{"date": "2026-01-15", "raw_type": "DIVIDENDO", "description": "PETR4 dividendo", "amount": 50}
		]
	}` + "\n```"
	llm := &fakeLLM{fn: func(string) (string, error) { return response, nil }}
	env := newTestEnv(t, llm)
	ctx := context.Background()

	doc := uploadAndParse(t, env)
	_, err := env.svc.Commit(ctx, doc.ID)
	require.NoError(t, err)

	txns, err := env.storage.Transactions().List(ctx, models.TransactionFilter{AccountID: "acct-1"})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "BRL", txns[0].Currency)

	flows, err := env.storage.CashFlows().List(ctx, models.CashFlowFilter{AccountID: "acct-1"})
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "BRL", flows[0].Currency)
}

func TestCommitIsIdempotent(t *testing.T) {
	llm := &fakeLLM{fn: func(string) (string, error) { return btgBRFullResponse, nil }}
	env := newTestEnv(t, llm)
	ctx := context.Background()

	doc := uploadAndParse(t, env)

	_, err := env.svc.Commit(ctx, doc.ID)
	require.NoError(t, err)

	second, err := env.svc.Commit(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Transactions)
	assert.Equal(t, 0, second.CashFlows)

	txns, err := env.storage.Transactions().List(ctx, models.TransactionFilter{AccountID: "acct-1"})
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestCommitRequiresParsedDocument(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})
	ctx := context.Background()

	doc, err := env.svc.Upload(ctx, "user-1", "acct-1", models.DocStatementBTGBR, "extrato.pdf", fakePDF)
	require.NoError(t, err)

	_, err = env.svc.Commit(ctx, doc.ID)
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestDeleteRemovesRecordAndPDF(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{})
	ctx := context.Background()

	doc, err := env.svc.Upload(ctx, "user-1", "acct-1", models.DocStatementBTGBR, "extrato.pdf", fakePDF)
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, doc.ID))

	_, err = env.svc.Get(ctx, doc.ID)
	require.ErrorIs(t, err, models.ErrNotFound)

	exists, err := env.storage.Files().HasFile(ctx, "documents", doc.ID+".pdf")
	require.NoError(t, err)
	assert.False(t, exists)
}

func decodeStored(t *testing.T, doc *models.Document) *models.ParsedStatement {
	t.Helper()
	var stmt models.ParsedStatement
	require.NoError(t, json.Unmarshal(doc.RawExtracted, &stmt))
	return &stmt
}
