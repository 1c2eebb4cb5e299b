package document

import (
	"fmt"

	"github.com/lfmartins/carteira/internal/models"
)

// Statement section names, as used by validation and focused retries.
const (
	sectionPeriod          = "period"
	sectionTransactions    = "transactions"
	sectionCashMovements   = "cash_movements"
	sectionStockPositions  = "stock_positions"
	sectionFixedIncome     = "fixed_income_positions"
	sectionInvestmentFunds = "investment_fund_positions"
	sectionConsolidated    = "consolidated_position"
)

// Parser turns raw LLM output for one broker dialect into the canonical
// statement shape.
type Parser interface {
	DocumentType() models.DocumentType
	// PromptTemplate is the full-extraction prompt.
	PromptTemplate() string
	// FocusedPrompt returns a retry prompt scoped to one missing section,
	// or ok=false when the section has no focused retry.
	FocusedPrompt(section string) (string, bool)
	// Decode parses dialect JSON into the canonical statement, normalizing
	// vocabulary and category names.
	Decode(raw []byte) (*models.ParsedStatement, error)
	// Validate returns the names of sections that are missing but expected
	// for this document type.
	Validate(stmt *models.ParsedStatement) []string
}

// registry maps document types to parsers.
type registry struct {
	parsers map[models.DocumentType]Parser
}

func newRegistry(parsers ...Parser) *registry {
	r := &registry{parsers: make(map[models.DocumentType]Parser, len(parsers))}
	for _, p := range parsers {
		r.parsers[p.DocumentType()] = p
	}
	return r
}

func (r *registry) lookup(docType models.DocumentType) (Parser, error) {
	p, ok := r.parsers[docType]
	if !ok {
		return nil, fmt.Errorf("%w: no parser for document type %q", models.ErrValidation, docType)
	}
	return p, nil
}

// defaultRegistry wires every supported broker dialect.
func defaultRegistry() *registry {
	return newRegistry(
		newBTGBRParser(),
		newBTGCaymanParser(),
		newXPParser(),
		newTradeNoteParser(),
	)
}
