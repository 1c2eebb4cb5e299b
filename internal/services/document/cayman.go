package document

import (
	"github.com/shopspring/decimal"

	"github.com/lfmartins/carteira/internal/models"
)

// btgCaymanParser handles the English BTG Pactual Cayman statement. Its
// consolidated summary uses the offshore category names and is mapped into
// the canonical breakdown on decode.
type btgCaymanParser struct {
	canonicalParser
}

func newBTGCaymanParser() *btgCaymanParser {
	return &btgCaymanParser{canonicalParser{
		docType:    models.DocStatementBTGCayman,
		vocabulary: enVocabulary,
		expected:   []string{sectionPeriod, sectionConsolidated},
		prompt:     btgCaymanPrompt,
		focused:    btgCaymanFocusedPrompts,
	}}
}

const btgCaymanPrompt = `You are extracting data from a BTG Pactual Cayman (offshore) account statement, written in English.

Return ONLY a JSON object with this exact structure (omit sections absent from the document):

{
  "period": {"start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD"},
  "transactions": [{"date": "YYYY-MM-DD", "raw_type": "<label as printed, e.g. BUY, SELL, WIRE TRANSFER IN>", "ticker": "", "quantity": 0, "price": 0, "fees": 0, "currency": "USD"}],
  "cash_movements": [{"date": "YYYY-MM-DD", "raw_type": "", "description": "", "amount": 0, "currency": "USD"}],
  "stock_positions": [{"ticker": "", "name": "", "quantity": 0, "avg_price": 0, "current_price": 0, "market_value": 0, "currency": "USD"}],
  "consolidated_position": {"cash": 0, "equities_long": 0, "equities_short": 0, "structured_products": 0, "funds": 0, "derivatives": 0, "total": 0}
}

Rules:
- Keep movement labels verbatim in raw_type.
- Negative stock quantity means a short position.
- equities_short is reported as a negative number when present.
- Do not invent values. Omit fields you cannot read.`

var btgCaymanFocusedPrompts = map[string]string{
	sectionTransactions: `From this BTG Cayman statement, extract ONLY the trade activity (buys, sells). Return JSON: {"transactions": [{"date": "YYYY-MM-DD", "raw_type": "", "ticker": "", "quantity": 0, "price": 0, "fees": 0, "currency": "USD"}]}`,
	sectionCashMovements: `From this BTG Cayman statement, extract ONLY the cash activity (dividends, interest, fees, wires). Return JSON: {"cash_movements": [{"date": "YYYY-MM-DD", "raw_type": "", "description": "", "amount": 0, "currency": "USD"}]}`,
	sectionStockPositions: `From this BTG Cayman statement, extract ONLY the equity holdings table. Return JSON: {"stock_positions": [{"ticker": "", "quantity": 0, "avg_price": 0, "current_price": 0, "market_value": 0, "currency": "USD"}]}`,
	sectionConsolidated: `From this BTG Cayman statement, extract ONLY the portfolio summary. Return JSON: {"consolidated_position": {"cash": 0, "equities_long": 0, "equities_short": 0, "structured_products": 0, "funds": 0, "derivatives": 0, "total": 0}}`,
	sectionPeriod: `From this BTG Cayman statement, extract ONLY the statement period. Return JSON: {"period": {"start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD"}}`,
}

// caymanConsolidated is the offshore summary dialect.
type caymanConsolidated struct {
	Cash               *decimal.Decimal `json:"cash,omitempty"`
	EquitiesLong       *decimal.Decimal `json:"equities_long,omitempty"`
	EquitiesShort      *decimal.Decimal `json:"equities_short,omitempty"`
	StructuredProducts *decimal.Decimal `json:"structured_products,omitempty"`
	Funds              *decimal.Decimal `json:"funds,omitempty"`
	Derivatives        *decimal.Decimal `json:"derivatives,omitempty"`
	Total              *decimal.Decimal `json:"total,omitempty"`
}

type caymanStatement struct {
	Period         *models.StatementPeriod      `json:"period,omitempty"`
	Transactions   []models.ParsedTransaction   `json:"transactions,omitempty"`
	CashMovements  []models.ParsedCashMovement  `json:"cash_movements,omitempty"`
	StockPositions []models.ParsedStockPosition `json:"stock_positions,omitempty"`
	Consolidated   *caymanConsolidated          `json:"consolidated_position,omitempty"`
}

func (p *btgCaymanParser) Decode(raw []byte) (*models.ParsedStatement, error) {
	var dialect caymanStatement
	if err := decodeJSON(string(raw), &dialect); err != nil {
		return nil, err
	}

	stmt := &models.ParsedStatement{
		Period:         dialect.Period,
		Transactions:   dialect.Transactions,
		CashMovements:  dialect.CashMovements,
		StockPositions: dialect.StockPositions,
	}
	if dialect.Consolidated != nil {
		stmt.ConsolidatedPosition = adaptCaymanConsolidated(dialect.Consolidated)
	}
	normalizeStatementTypes(stmt, p.vocabulary)
	return stmt, nil
}

// adaptCaymanConsolidated maps the offshore category names onto the
// canonical breakdown: cash -> conta_corrente, long + short equities ->
// renda_variavel, structured products -> renda_fixa.
func adaptCaymanConsolidated(c *caymanConsolidated) *models.ParsedConsolidated {
	out := &models.ParsedConsolidated{
		ContaCorrente:      c.Cash,
		RendaFixa:          c.StructuredProducts,
		FundosInvestimento: c.Funds,
		Derivativos:        c.Derivatives,
		Total:              c.Total,
	}

	equities := decimal.Zero
	hasEquities := false
	if c.EquitiesLong != nil {
		equities = equities.Add(*c.EquitiesLong)
		hasEquities = true
	}
	if c.EquitiesShort != nil {
		equities = equities.Add(*c.EquitiesShort)
		hasEquities = true
	}
	if hasEquities {
		out.RendaVariavel = &equities
	}
	return out
}
