package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfmartins/carteira/internal/models"
)

func TestDecodeJSONStrict(t *testing.T) {
	var out map[string]int
	require.NoError(t, decodeJSON(`{"a": 1}`, &out))
	assert.Equal(t, 1, out["a"])
}

func TestDecodeJSONMarkdownFence(t *testing.T) {
	text := "Here is the extraction:\n```json\n{\"a\": 2}\n```\nDone."
	var out map[string]int
	require.NoError(t, decodeJSON(text, &out))
	assert.Equal(t, 2, out["a"])
}

func TestDecodeJSONBareFence(t *testing.T) {
	text := "```\n{\"a\": 3}\n```"
	var out map[string]int
	require.NoError(t, decodeJSON(text, &out))
	assert.Equal(t, 3, out["a"])
}

func TestDecodeJSONFailure(t *testing.T) {
	var out map[string]int
	err := decodeJSON("the document could not be read", &out)
	require.ErrorIs(t, err, models.ErrParseFailed)
}

func TestNormalizeTypePortuguese(t *testing.T) {
	cases := []struct {
		raw  string
		want models.ParsedTransactionType
	}{
		{"COMPRA A VISTA", models.ParsedBuy},
		{"Venda à vista", models.ParsedSell},
		{"JUROS SOBRE CAPITAL PRÓPRIO", models.ParsedJCP},
		{"Dividendo", models.ParsedDividend},
		{"RENDIMENTO FII", models.ParsedInterest},
		{"JUROS S/CAPITAL", models.ParsedJCP},
		{"TAXA DE CUSTÓDIA", models.ParsedCustodyFee},
		{"CORRETAGEM", models.ParsedFee},
		{"IRRF S/ OPERAÇÕES", models.ParsedTax},
		{"IOF", models.ParsedTax},
		{"DESDOBRAMENTO", models.ParsedSplit},
		{"TED RETIRADA", models.ParsedTransferOut},
		{"TED RECEBIDA", models.ParsedTransferIn},
		{"DOC RECEBIDO", models.ParsedTransferIn},
		{"SAQUE", models.ParsedTransferOut},
		{"APLICAÇÃO", models.ParsedApplication},
		{"RESGATE", models.ParsedRedemption},
		{"EMPRÉSTIMO DE ATIVOS", models.ParsedLendingOut},
		{"LIQUIDAÇÃO EMPRÉSTIMO", models.ParsedLendingReturn},
		{"LIQ BOLSA", models.ParsedSettlement},
		{"BONIFICAÇÃO", models.ParsedSubscription},
		{"SUBSCRIÇÃO DE AÇÕES", models.ParsedSubscription},
		{"ALUGUEL DE AÇÕES", models.ParsedInterest},
		{"EVENTO DESCONHECIDO", models.ParsedOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, normalizeType(tc.raw, ptVocabulary), tc.raw)
	}
}

func TestNormalizeTypeSingleLetterAbbreviations(t *testing.T) {
	assert.Equal(t, models.ParsedBuy, normalizeType("C", ptVocabulary))
	assert.Equal(t, models.ParsedSell, normalizeType("V", ptVocabulary))
	assert.Equal(t, models.ParsedTax, normalizeType("IR", ptVocabulary))
	// The abbreviations never fire as substrings of longer labels.
	assert.Equal(t, models.ParsedTransferOut, normalizeType("RETIRADA", ptVocabulary))
}

func TestNormalizeTypeEnglish(t *testing.T) {
	cases := []struct {
		raw  string
		want models.ParsedTransactionType
	}{
		{"Wire Transfer In", models.ParsedTransferIn},
		{"Wire In", models.ParsedTransferIn},
		{"Wire Out", models.ParsedTransferOut},
		{"WITHHOLDING TAX", models.ParsedTax},
		{"Withholding", models.ParsedTax},
		{"purchase", models.ParsedBuy},
		{"Sale", models.ParsedSell},
		{"Brokerage", models.ParsedFee},
		{"Commission", models.ParsedFee},
		{"Spinoff", models.ParsedSubscription},
		{"Spin-Off AAPL", models.ParsedSubscription},
		{"Settlement", models.ParsedSettlement},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, normalizeType(tc.raw, enVocabulary), tc.raw)
	}
}

func TestNormalizeTypeCanonicalPassthrough(t *testing.T) {
	// An LLM already answering in the canonical vocabulary loses nothing.
	assert.Equal(t, models.ParsedTransferIn, normalizeType("TRANSFER_IN", ptVocabulary))
	assert.Equal(t, models.ParsedBuy, normalizeType("buy", enVocabulary))
}

func TestBTGBRDecodeNormalizes(t *testing.T) {
	parser := newBTGBRParser()
	raw := "```json\n" + `{
		"period": {"start_date": "2026-01-01", "end_date": "2026-01-31"},
		"transactions": [
			{"date": "2026-01-10", "raw_type": "COMPRA", "ticker": "PETR4", "quantity": 100, "price": 35.5, "fees": 4.9, "currency": "BRL"}
		],
		"cash_movements": [
			{"date": "2026-01-15", "raw_type": "DIVIDENDO", "description": "PETR4", "amount": 120.5, "currency": "BRL"}
		],
		"consolidated_position": {"renda_variavel": 3550, "conta_corrente": 120.5, "total": 3670.5}
	}` + "\n```"

	stmt, err := parser.Decode([]byte(raw))
	require.NoError(t, err)

	require.Len(t, stmt.Transactions, 1)
	assert.Equal(t, models.ParsedBuy, stmt.Transactions[0].Type)
	assert.Equal(t, "COMPRA", stmt.Transactions[0].RawType)

	require.Len(t, stmt.CashMovements, 1)
	assert.Equal(t, models.ParsedDividend, stmt.CashMovements[0].Type)

	assert.Empty(t, parser.Validate(stmt))
}

func TestBTGBRValidateReportsMissing(t *testing.T) {
	parser := newBTGBRParser()
	stmt := &models.ParsedStatement{
		Transactions: []models.ParsedTransaction{{Date: "2026-01-10"}},
	}
	missing := parser.Validate(stmt)
	assert.Contains(t, missing, sectionPeriod)
	assert.Contains(t, missing, sectionConsolidated)
}

func TestCaymanDecodeAdaptsConsolidated(t *testing.T) {
	parser := newBTGCaymanParser()
	raw := `{
		"period": {"start_date": "2026-02-01", "end_date": "2026-02-28"},
		"stock_positions": [{"ticker": "AAPL", "quantity": -50, "avg_price": 180}],
		"consolidated_position": {
			"cash": 10000,
			"equities_long": 25000,
			"equities_short": -9000,
			"structured_products": 5000,
			"total": 31000
		}
	}`

	stmt, err := parser.Decode([]byte(raw))
	require.NoError(t, err)

	c := stmt.ConsolidatedPosition
	require.NotNil(t, c)
	assert.Equal(t, "10000", c.ContaCorrente.String())
	assert.Equal(t, "16000", c.RendaVariavel.String())
	assert.Equal(t, "5000", c.RendaFixa.String())
	assert.Equal(t, "31000", c.Total.String())
	assert.Nil(t, c.Derivativos)
}

func TestRegistryLookup(t *testing.T) {
	reg := defaultRegistry()

	for _, docType := range []models.DocumentType{
		models.DocStatementBTGBR, models.DocStatementBTGCayman,
		models.DocStatementXP, models.DocTradeNote,
	} {
		parser, err := reg.lookup(docType)
		require.NoError(t, err)
		assert.Equal(t, docType, parser.DocumentType())
		assert.NotEmpty(t, parser.PromptTemplate())
	}

	_, err := reg.lookup("STATEMENT_UNKNOWN")
	require.ErrorIs(t, err, models.ErrValidation)
}
