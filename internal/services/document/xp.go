package document

import (
	"github.com/lfmartins/carteira/internal/models"
)

// xpParser handles the Portuguese XP Investimentos monthly statement. The
// layout differs from BTG but the canonical shape and vocabulary are shared.
func newXPParser() *canonicalParser {
	return &canonicalParser{
		docType:    models.DocStatementXP,
		vocabulary: ptVocabulary,
		expected:   []string{sectionPeriod},
		prompt:     xpPrompt,
		focused:    xpFocusedPrompts,
	}
}

const xpPrompt = `You are extracting data from an XP Investimentos monthly statement (extrato mensal), written in Portuguese.

Return ONLY a JSON object with this exact structure (omit sections absent from the document):

{
  "period": {"start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD"},
  "transactions": [{"date": "YYYY-MM-DD", "raw_type": "<label as printed>", "ticker": "", "quantity": 0, "price": 0, "fees": 0, "currency": "BRL"}],
  "cash_movements": [{"date": "YYYY-MM-DD", "raw_type": "", "description": "", "amount": 0, "currency": "BRL"}],
  "stock_positions": [{"ticker": "", "name": "", "quantity": 0, "avg_price": 0, "current_price": 0, "market_value": 0, "currency": "BRL"}],
  "fixed_income_positions": [{"description": "", "issuer": "", "indexer_rate": "", "quantity": 0, "principal": 0, "current_value": 0, "maturity_date": "YYYY-MM-DD"}],
  "investment_fund_positions": [{"fund_name": "", "cnpj": "", "quota_quantity": 0, "quota_value": 0, "gross_value": 0, "net_value": 0}],
  "consolidated_position": {"renda_fixa": 0, "fundos_investimento": 0, "renda_variavel": 0, "derivativos": 0, "conta_corrente": 0, "coe": 0, "total": 0}
}

Rules:
- Keep movement labels verbatim in raw_type; do not translate them.
- Numbers use Brazilian formatting in the document (1.234,56); output plain JSON numbers (1234.56).
- Dates are DD/MM/YYYY in the document; output ISO YYYY-MM-DD.
- Do not invent values. Omit fields you cannot read.`

var xpFocusedPrompts = map[string]string{
	sectionTransactions: `From this XP statement, extract ONLY the renda variável trade entries. Return JSON: {"transactions": [{"date": "YYYY-MM-DD", "raw_type": "", "ticker": "", "quantity": 0, "price": 0, "fees": 0, "currency": "BRL"}]}`,
	sectionCashMovements: `From this XP statement, extract ONLY the cash ledger entries. Return JSON: {"cash_movements": [{"date": "YYYY-MM-DD", "raw_type": "", "description": "", "amount": 0, "currency": "BRL"}]}`,
	sectionStockPositions: `From this XP statement, extract ONLY the equity holdings table. Return JSON: {"stock_positions": [{"ticker": "", "quantity": 0, "avg_price": 0, "current_price": 0, "market_value": 0, "currency": "BRL"}]}`,
	sectionConsolidated: `From this XP statement, extract ONLY the consolidated summary. Return JSON: {"consolidated_position": {"renda_fixa": 0, "fundos_investimento": 0, "renda_variavel": 0, "derivativos": 0, "conta_corrente": 0, "coe": 0, "total": 0}}`,
	sectionPeriod: `From this XP statement, extract ONLY the statement period. Return JSON: {"period": {"start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD"}}`,
}

// tradeNoteParser handles B3 brokerage trade notes (notas de corretagem),
// which carry only trades and their fees.
func newTradeNoteParser() *canonicalParser {
	return &canonicalParser{
		docType:    models.DocTradeNote,
		vocabulary: ptVocabulary,
		expected:   []string{sectionTransactions},
		prompt:     tradeNotePrompt,
		focused: map[string]string{
			sectionTransactions: `From this nota de corretagem, extract ONLY the executed trades. Return JSON: {"transactions": [{"date": "YYYY-MM-DD", "raw_type": "C or V", "ticker": "", "quantity": 0, "price": 0, "fees": 0, "currency": "BRL"}]}`,
		},
	}
}

const tradeNotePrompt = `You are extracting data from a Brazilian brokerage trade note (nota de corretagem / nota de negociação), written in Portuguese.

Return ONLY a JSON object:

{
  "period": {"end_date": "YYYY-MM-DD"},
  "transactions": [{"date": "YYYY-MM-DD", "raw_type": "<COMPRA or VENDA>", "ticker": "<B3 ticker>", "quantity": 0, "price": 0, "fees": 0, "currency": "BRL"}]
}

Rules:
- The trade date (data do pregão) is the date for every trade on the note.
- Spread the note's total costs (taxa de liquidação, emolumentos, corretagem) across the trades proportionally to their value, into the fees field.
- "C" means COMPRA (buy), "V" means VENDA (sell).
- Output plain JSON numbers. Do not invent values.`
