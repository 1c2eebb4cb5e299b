package document

import (
	"strings"

	"github.com/lfmartins/carteira/internal/models"
)

// ptVocabulary normalizes Portuguese (B3 / BTG BR / XP) movement labels
// into the canonical parsed-transaction vocabulary. Keys are matched as
// uppercase substrings, longest first.
var ptVocabulary = []vocabEntry{
	{"JUROS SOBRE CAPITAL", models.ParsedJCP},
	{"JUROS S/CAPITAL", models.ParsedJCP},
	{"TAXA DE CUSTODIA", models.ParsedCustodyFee},
	{"TRANSFERENCIA DE ENTRADA", models.ParsedTransferIn},
	{"TRANSFERENCIA DE SAIDA", models.ParsedTransferOut},
	{"DEVOLUCAO DE EMPRESTIMO", models.ParsedLendingReturn},
	{"LIQUIDACAO EMPRESTIMO", models.ParsedLendingReturn},
	{"EMPRESTIMO DE ATIVOS", models.ParsedLendingOut},
	{"GRUPAMENTO", models.ParsedSplit},
	{"DESDOBRAMENTO", models.ParsedSplit},
	{"BONIFICACAO", models.ParsedSubscription},
	{"SUBSCRICAO", models.ParsedSubscription},
	{"AMORTIZACAO", models.ParsedOther},
	{"EMPRESTIMO", models.ParsedLendingOut},
	{"LIQ BOLSA", models.ParsedSettlement},
	{"LIQUIDACAO", models.ParsedSettlement},
	{"APLICACAO", models.ParsedApplication},
	{"RESGATE", models.ParsedRedemption},
	{"RENDIMENTO", models.ParsedInterest},
	{"DIVIDENDO", models.ParsedDividend},
	{"COMPRA", models.ParsedBuy},
	{"VENDA", models.ParsedSell},
	{"DEPOSITO", models.ParsedTransferIn},
	{"RETIRADA", models.ParsedTransferOut},
	{"SAQUE", models.ParsedTransferOut},
	{"TED", models.ParsedTransferIn},
	{"DOC", models.ParsedTransferIn},
	{"CORRETAGEM", models.ParsedFee},
	{"TAXA", models.ParsedFee},
	{"IRRF", models.ParsedTax},
	{"IOF", models.ParsedTax},
	{"IMPOSTO", models.ParsedTax},
	{"JCP", models.ParsedJCP},
	{"JUROS", models.ParsedInterest},
	{"ALUGUEL", models.ParsedInterest},
}

// enVocabulary normalizes English (BTG Cayman) movement labels.
var enVocabulary = []vocabEntry{
	{"WITHHOLDING TAX", models.ParsedTax},
	{"WITHHOLDING", models.ParsedTax},
	{"CUSTODY FEE", models.ParsedCustodyFee},
	{"MANAGEMENT FEE", models.ParsedFee},
	{"WIRE TRANSFER IN", models.ParsedTransferIn},
	{"WIRE TRANSFER OUT", models.ParsedTransferOut},
	{"WIRE OUT", models.ParsedTransferOut},
	{"WIRE IN", models.ParsedTransferIn},
	{"SECURITIES LENDING", models.ParsedLendingOut},
	{"STOCK SPLIT", models.ParsedSplit},
	{"SPIN-OFF", models.ParsedSubscription},
	{"SPINOFF", models.ParsedSubscription},
	{"BROKERAGE", models.ParsedFee},
	{"COMMISSION", models.ParsedFee},
	{"SUBSCRIPTION", models.ParsedSubscription},
	{"SETTLEMENT", models.ParsedSettlement},
	{"REDEMPTION", models.ParsedRedemption},
	{"PURCHASE", models.ParsedBuy},
	{"DIVIDEND", models.ParsedDividend},
	{"INTEREST", models.ParsedInterest},
	{"DEPOSIT", models.ParsedTransferIn},
	{"WITHDRAWAL", models.ParsedTransferOut},
	{"TRANSFER IN", models.ParsedTransferIn},
	{"TRANSFER OUT", models.ParsedTransferOut},
	{"BUY", models.ParsedBuy},
	{"SELL", models.ParsedSell},
	{"SALE", models.ParsedSell},
	{"FEE", models.ParsedFee},
	{"TAX", models.ParsedTax},
}

type vocabEntry struct {
	label string
	typ   models.ParsedTransactionType
}

// canonicalTypes are accepted as-is regardless of dialect, so an LLM that
// already answers in the canonical vocabulary never loses information.
var canonicalTypes = map[models.ParsedTransactionType]bool{
	models.ParsedBuy: true, models.ParsedSell: true, models.ParsedDividend: true,
	models.ParsedJCP: true, models.ParsedInterest: true, models.ParsedFee: true,
	models.ParsedCustodyFee: true, models.ParsedTax: true,
	models.ParsedTransferIn: true, models.ParsedTransferOut: true,
	models.ParsedApplication: true, models.ParsedRedemption: true,
	models.ParsedLendingOut: true, models.ParsedLendingReturn: true,
	models.ParsedSettlement: true, models.ParsedSplit: true,
	models.ParsedSubscription: true, models.ParsedOther: true,
}

// exactLabels are abbreviations matched on the whole label only. Substring
// matching would misfire here: "IR" occurs inside RETIRADA.
var exactLabels = map[string]models.ParsedTransactionType{
	"C":  models.ParsedBuy,
	"V":  models.ParsedSell,
	"IR": models.ParsedTax,
}

// normalizeType maps a raw dialect label to the canonical vocabulary.
// Unknown labels become OTHER rather than failing the parse.
func normalizeType(raw string, vocabulary []vocabEntry) models.ParsedTransactionType {
	label := strings.ToUpper(strings.TrimSpace(raw))
	label = stripAccents(label)
	if canonicalTypes[models.ParsedTransactionType(label)] {
		return models.ParsedTransactionType(label)
	}
	if typ, ok := exactLabels[label]; ok {
		return typ
	}
	for _, entry := range vocabulary {
		if strings.Contains(label, entry.label) {
			return entry.typ
		}
	}
	return models.ParsedOther
}

// stripAccents folds the Portuguese accented characters seen in statement
// labels to their ASCII base.
func stripAccents(s string) string {
	replacer := strings.NewReplacer(
		"Á", "A", "À", "A", "Â", "A", "Ã", "A",
		"É", "E", "Ê", "E",
		"Í", "I",
		"Ó", "O", "Ô", "O", "Õ", "O",
		"Ú", "U", "Ü", "U",
		"Ç", "C",
	)
	return replacer.Replace(s)
}

// normalizeStatementTypes rewrites every transaction and cash movement type
// using the dialect vocabulary, keeping the raw label for audit.
func normalizeStatementTypes(stmt *models.ParsedStatement, vocabulary []vocabEntry) {
	for i := range stmt.Transactions {
		txn := &stmt.Transactions[i]
		if txn.RawType == "" {
			txn.RawType = string(txn.Type)
		}
		txn.Type = normalizeType(txn.RawType, vocabulary)
	}
	for i := range stmt.CashMovements {
		mv := &stmt.CashMovements[i]
		if mv.RawType == "" {
			mv.RawType = string(mv.Type)
		}
		mv.Type = normalizeType(mv.RawType, vocabulary)
	}
}
