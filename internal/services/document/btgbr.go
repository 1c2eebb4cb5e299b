package document

import (
	"github.com/lfmartins/carteira/internal/models"
)

// btgBRParser handles the Portuguese BTG Pactual Brazil monthly statement.
type btgBRParser struct {
	canonicalParser
}

func newBTGBRParser() *btgBRParser {
	return &btgBRParser{canonicalParser{
		docType:    models.DocStatementBTGBR,
		vocabulary: ptVocabulary,
		expected:   []string{sectionPeriod, sectionConsolidated},
		prompt:     btgBRPrompt,
		focused:    btgBRFocusedPrompts,
	}}
}

const btgBRPrompt = `You are extracting data from a BTG Pactual Brasil monthly investment statement (extrato mensal), written in Portuguese.

Return ONLY a JSON object with this exact structure (omit sections that do not appear in the document):

{
  "period": {"start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD"},
  "transactions": [{"date": "YYYY-MM-DD", "raw_type": "<label as printed, e.g. COMPRA, VENDA, SUBSCRIÇÃO>", "ticker": "<B3 ticker>", "quantity": 0, "price": 0, "fees": 0, "currency": "BRL"}],
  "cash_movements": [{"date": "YYYY-MM-DD", "raw_type": "<label as printed, e.g. DIVIDENDO, JCP, TED RETIRADA>", "description": "", "amount": 0, "currency": "BRL"}],
  "stock_positions": [{"ticker": "", "name": "", "quantity": 0, "avg_price": 0, "current_price": 0, "market_value": 0, "currency": "BRL"}],
  "fixed_income_positions": [{"description": "", "issuer": "", "indexer_rate": "", "quantity": 0, "principal": 0, "current_value": 0, "maturity_date": "YYYY-MM-DD"}],
  "investment_fund_positions": [{"fund_name": "", "cnpj": "", "quota_quantity": 0, "quota_value": 0, "gross_value": 0, "net_value": 0}],
  "consolidated_position": {"renda_fixa": 0, "fundos_investimento": 0, "renda_variavel": 0, "derivativos": 0, "conta_corrente": 0, "coe": 0, "total": 0}
}

Rules:
- Keep movement labels verbatim in raw_type; do not translate them.
- Numbers use Brazilian formatting in the document (1.234,56); output plain JSON numbers (1234.56).
- Negative stock quantity means a short position.
- Dates are DD/MM/YYYY in the document; output ISO YYYY-MM-DD.
- Do not invent values. Omit fields you cannot read.`

var btgBRFocusedPrompts = map[string]string{
	sectionTransactions: `From this BTG Pactual Brasil statement, extract ONLY the "Movimentação de Renda Variável" entries (compras, vendas, subscrições). Return JSON: {"transactions": [{"date": "YYYY-MM-DD", "raw_type": "", "ticker": "", "quantity": 0, "price": 0, "fees": 0, "currency": "BRL"}]}`,
	sectionCashMovements: `From this BTG Pactual Brasil statement, extract ONLY the cash ledger entries (dividendos, JCP, rendimentos, taxas, TEDs). Return JSON: {"cash_movements": [{"date": "YYYY-MM-DD", "raw_type": "", "description": "", "amount": 0, "currency": "BRL"}]}`,
	sectionStockPositions: `From this BTG Pactual Brasil statement, extract ONLY the "Posição em Renda Variável" table. Return JSON: {"stock_positions": [{"ticker": "", "quantity": 0, "avg_price": 0, "current_price": 0, "market_value": 0, "currency": "BRL"}]}`,
	sectionFixedIncome: `From this BTG Pactual Brasil statement, extract ONLY the "Renda Fixa" holdings table. Return JSON: {"fixed_income_positions": [{"description": "", "issuer": "", "indexer_rate": "", "quantity": 0, "principal": 0, "current_value": 0, "maturity_date": "YYYY-MM-DD"}]}`,
	sectionInvestmentFunds: `From this BTG Pactual Brasil statement, extract ONLY the "Fundos de Investimento" holdings table. Return JSON: {"investment_fund_positions": [{"fund_name": "", "cnpj": "", "quota_quantity": 0, "quota_value": 0, "gross_value": 0, "net_value": 0}]}`,
	sectionConsolidated: `From this BTG Pactual Brasil statement, extract ONLY the "Posição Consolidada" summary. Return JSON: {"consolidated_position": {"renda_fixa": 0, "fundos_investimento": 0, "renda_variavel": 0, "derivativos": 0, "conta_corrente": 0, "coe": 0, "total": 0}}`,
	sectionPeriod: `From this BTG Pactual Brasil statement, extract ONLY the statement period. Return JSON: {"period": {"start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD"}}`,
}

// canonicalParser implements the shared Decode/Validate behavior for
// dialects whose JSON already matches the canonical statement shape.
type canonicalParser struct {
	docType    models.DocumentType
	vocabulary []vocabEntry
	expected   []string
	prompt     string
	focused    map[string]string
}

func (p *canonicalParser) DocumentType() models.DocumentType { return p.docType }
func (p *canonicalParser) PromptTemplate() string            { return p.prompt }

func (p *canonicalParser) FocusedPrompt(section string) (string, bool) {
	prompt, ok := p.focused[section]
	return prompt, ok
}

func (p *canonicalParser) Decode(raw []byte) (*models.ParsedStatement, error) {
	var stmt models.ParsedStatement
	if err := decodeJSON(string(raw), &stmt); err != nil {
		return nil, err
	}
	normalizeStatementTypes(&stmt, p.vocabulary)
	return &stmt, nil
}

func (p *canonicalParser) Validate(stmt *models.ParsedStatement) []string {
	var missing []string
	for _, section := range p.expected {
		if sectionEmpty(stmt, section) {
			missing = append(missing, section)
		}
	}
	return missing
}

func sectionEmpty(stmt *models.ParsedStatement, section string) bool {
	switch section {
	case sectionPeriod:
		return stmt.Period == nil || stmt.Period.EndDate == ""
	case sectionTransactions:
		return len(stmt.Transactions) == 0
	case sectionCashMovements:
		return len(stmt.CashMovements) == 0
	case sectionStockPositions:
		return len(stmt.StockPositions) == 0
	case sectionFixedIncome:
		return len(stmt.FixedIncomePositions) == 0
	case sectionInvestmentFunds:
		return len(stmt.InvestmentFundPositions) == 0
	case sectionConsolidated:
		return stmt.ConsolidatedPosition == nil
	}
	return false
}
