package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lfmartins/carteira/internal/models"
)

// parsedTxnTypes maps the canonical parsed vocabulary onto journal types.
// Entries absent here are cash events, not position events.
var parsedTxnTypes = map[models.ParsedTransactionType]models.TransactionType{
	models.ParsedBuy:          models.TxnBuy,
	models.ParsedSell:         models.TxnSell,
	models.ParsedSubscription: models.TxnSubscription,
	models.ParsedTransferIn:   models.TxnTransferIn,
	models.ParsedTransferOut:  models.TxnTransferOut,
	models.ParsedSplit:        models.TxnSplit,
}

// parsedCashTypes maps the canonical parsed vocabulary onto cash flow types.
var parsedCashTypes = map[models.ParsedTransactionType]models.CashFlowType{
	models.ParsedDividend:    models.CashDividend,
	models.ParsedJCP:         models.CashJCP,
	models.ParsedInterest:    models.CashInterest,
	models.ParsedFee:         models.CashFee,
	models.ParsedCustodyFee:  models.CashFee,
	models.ParsedTax:         models.CashTax,
	models.ParsedSettlement:  models.CashSettlement,
	models.ParsedTransferIn:  models.CashDeposit,
	models.ParsedTransferOut: models.CashWithdrawal,
	models.ParsedApplication: models.CashOther,
	models.ParsedRedemption:  models.CashOther,
	models.ParsedOther:       models.CashOther,
}

// Commit applies a COMPLETED document's sections to the ledger. Transactions
// and cash flows get deterministic IDs derived from the document, so running
// Commit twice never duplicates entries. Statement sections are applied in
// dependency order: journal writes, replay, position reconciliation, holding
// replacement, cash flows with quota issuance, and finally the consolidated
// snapshot.
func (s *Service) Commit(ctx context.Context, documentID string) (*models.CommitResult, error) {
	doc, err := s.storage.Documents().Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.ParsingStatus != models.ParseCompleted || len(doc.RawExtracted) == 0 {
		return nil, fmt.Errorf("%w: document %s is not parsed", models.ErrValidation, documentID)
	}
	if doc.AccountID == "" {
		return nil, fmt.Errorf("%w: document %s has no account", models.ErrValidation, documentID)
	}

	var stmt models.ParsedStatement
	if err := json.Unmarshal(doc.RawExtracted, &stmt); err != nil {
		return nil, fmt.Errorf("%w: stored statement is unreadable: %v", models.ErrParseFailed, err)
	}

	account, err := s.storage.Accounts().Get(ctx, doc.AccountID)
	if err != nil {
		return nil, err
	}

	endDate := time.Now().UTC().Truncate(24 * time.Hour)
	if stmt.Period != nil && !stmt.Period.EndDateTime().IsZero() {
		endDate = stmt.Period.EndDateTime()
	}

	result := &models.CommitResult{DocumentID: doc.ID}
	pairs := make(map[string]bool)

	s.commitTransactions(ctx, doc, account, &stmt, result, pairs)

	for assetID := range pairs {
		if err := s.replay.ReplayAfterChange(ctx, doc.AccountID, assetID); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("replay %s: %v", assetID, err))
			continue
		}
		result.ReplayedPairs++
	}

	if len(stmt.StockPositions) > 0 {
		recon, err := s.reconcile.Reconcile(ctx, doc.AccountID, stmt.StockPositions, endDate, doc.ID)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("reconciliation: %v", err))
		} else {
			result.Reconciliation = recon
			result.Warnings = append(result.Warnings, recon.Warnings...)
		}
	}

	s.commitHoldings(ctx, doc, &stmt, endDate, result)
	s.commitCashMovements(ctx, doc, account, &stmt, result)

	if stmt.ConsolidatedPosition != nil {
		breakdown := consolidatedBreakdown(stmt.ConsolidatedPosition)
		if _, err := s.snapshots.ApplyStatement(ctx, doc.UserID, doc.AccountID, doc.ID, endDate, breakdown); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("snapshot: %v", err))
		}
	}

	s.logger.Info().
		Str("document", doc.ID).
		Int("transactions", result.Transactions).
		Int("cash_flows", result.CashFlows).
		Int("replayed_pairs", result.ReplayedPairs).
		Int("warnings", len(result.Warnings)).
		Msg("Document committed")
	return result, nil
}

func (s *Service) commitTransactions(ctx context.Context, doc *models.Document, account *models.Account, stmt *models.ParsedStatement, result *models.CommitResult, pairs map[string]bool) {
	for i, parsed := range stmt.Transactions {
		txnType, isPosition := parsedTxnTypes[parsed.Type]
		if !isPosition || parsed.Ticker == "" {
			// Ticker-less or cash-vocabulary entries flow to the cash journal.
			if flow := s.cashFlowFromParsed(doc, account, models.ParsedCashMovement{
				Date:        parsed.Date,
				Type:        parsed.Type,
				RawType:     parsed.RawType,
				Description: parsed.Description,
				Amount:      parsed.Amount,
				Currency:    parsed.Currency,
			}, fmt.Sprintf("%s-txn-%03d", doc.ID, i)); flow != nil {
				s.createCashFlow(ctx, flow, result)
			}
			continue
		}

		executedAt, err := parseStatementDate(parsed.Date)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("transaction %d: %v", i, err))
			continue
		}

		asset, err := s.quotes.EnsureAsset(ctx, parsed.Ticker)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("transaction %d (%s): %v", i, parsed.Ticker, err))
			continue
		}

		txn := &models.Transaction{
			ID:           fmt.Sprintf("%s-txn-%03d", doc.ID, i),
			AccountID:    doc.AccountID,
			AssetID:      asset.ID,
			DocumentID:   doc.ID,
			Type:         txnType,
			Quantity:     derefAbs(parsed.Quantity),
			Price:        deref(parsed.Price),
			Fees:         deref(parsed.Fees),
			Currency:     currencyOr(parsed.Currency, account.Currency),
			ExchangeRate: decimal.NewFromInt(1),
			ExecutedAt:   executedAt,
			CreatedAt:    time.Now().UTC(),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := txn.Validate(); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("transaction %d (%s): %v", i, parsed.Ticker, err))
			continue
		}
		if err := s.storage.Transactions().Create(ctx, txn); err != nil {
			if errors.Is(err, models.ErrConflict) {
				// Already committed on a previous run.
				pairs[asset.ID] = true
				continue
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf("transaction %d (%s): %v", i, parsed.Ticker, err))
			continue
		}
		pairs[asset.ID] = true
		result.Transactions++
	}
}

func (s *Service) commitCashMovements(ctx context.Context, doc *models.Document, account *models.Account, stmt *models.ParsedStatement, result *models.CommitResult) {
	for i, parsed := range stmt.CashMovements {
		flow := s.cashFlowFromParsed(doc, account, parsed, fmt.Sprintf("%s-cf-%03d", doc.ID, i))
		if flow == nil {
			continue
		}
		if !s.createCashFlow(ctx, flow, result) {
			continue
		}

		// Deposits and withdrawals move money across the fund boundary and
		// adjust shares outstanding at the previous day's share value.
		switch flow.Type {
		case models.CashDeposit:
			if _, err := s.fund.IssueShares(ctx, doc.UserID, flow.ID, flow.Amount, flow.ExecutedAt); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("issue shares for %s: %v", flow.ID, err))
			}
		case models.CashWithdrawal:
			if _, err := s.fund.RedeemShares(ctx, doc.UserID, flow.ID, flow.Amount, flow.ExecutedAt); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("redeem shares for %s: %v", flow.ID, err))
			}
		}
	}
}

// cashFlowFromParsed builds the cash flow for one parsed movement. Nil when
// the entry carries no amount.
func (s *Service) cashFlowFromParsed(doc *models.Document, account *models.Account, parsed models.ParsedCashMovement, id string) *models.CashFlow {
	if parsed.Amount == nil || parsed.Amount.IsZero() {
		return nil
	}
	executedAt, err := parseStatementDate(parsed.Date)
	if err != nil {
		return nil
	}
	flowType, ok := parsedCashTypes[parsed.Type]
	if !ok {
		flowType = models.CashOther
	}
	notes := parsed.Description
	if notes == "" {
		notes = parsed.RawType
	}
	return &models.CashFlow{
		ID:           id,
		AccountID:    doc.AccountID,
		Type:         flowType,
		Amount:       parsed.Amount.Abs(),
		Currency:     currencyOr(parsed.Currency, account.Currency),
		ExchangeRate: decimal.NewFromInt(1),
		ExecutedAt:   executedAt,
		Notes:        notes,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
}

// createCashFlow writes the flow, treating an ID conflict as an earlier
// commit of the same document. Reports whether the flow was newly written.
func (s *Service) createCashFlow(ctx context.Context, flow *models.CashFlow, result *models.CommitResult) bool {
	if err := flow.Validate(); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("cash flow %s: %v", flow.ID, err))
		return false
	}
	if err := s.storage.CashFlows().Create(ctx, flow); err != nil {
		if !errors.Is(err, models.ErrConflict) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("cash flow %s: %v", flow.ID, err))
		}
		return false
	}
	result.CashFlows++
	return true
}

func (s *Service) commitHoldings(ctx context.Context, doc *models.Document, stmt *models.ParsedStatement, endDate time.Time, result *models.CommitResult) {
	if len(stmt.FixedIncomePositions) > 0 {
		positions := make([]*models.FixedIncomePosition, 0, len(stmt.FixedIncomePositions))
		for _, parsed := range stmt.FixedIncomePositions {
			pos := &models.FixedIncomePosition{
				ID:            uuid.NewString(),
				AccountID:     doc.AccountID,
				Description:   parsed.Description,
				Issuer:        parsed.Issuer,
				IndexerRate:   parsed.IndexerRate,
				Quantity:      deref(parsed.Quantity),
				Principal:     deref(parsed.Principal),
				CurrentValue:  deref(parsed.CurrentValue),
				ReferenceDate: endDate,
				DocumentID:    doc.ID,
				UpdatedAt:     time.Now().UTC(),
			}
			if maturity, err := parseStatementDate(parsed.MaturityDate); err == nil {
				pos.MaturityDate = &maturity
			}
			positions = append(positions, pos)
		}
		if err := s.storage.FixedIncome().ReplaceForAccount(ctx, doc.AccountID, positions); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("fixed income: %v", err))
		} else {
			result.FixedIncome = len(positions)
		}
	}

	if len(stmt.InvestmentFundPositions) > 0 {
		positions := make([]*models.InvestmentFundPosition, 0, len(stmt.InvestmentFundPositions))
		for _, parsed := range stmt.InvestmentFundPositions {
			positions = append(positions, &models.InvestmentFundPosition{
				ID:            uuid.NewString(),
				AccountID:     doc.AccountID,
				FundName:      parsed.FundName,
				CNPJ:          parsed.CNPJ,
				QuotaQuantity: deref(parsed.QuotaQuantity),
				QuotaValue:    deref(parsed.QuotaValue),
				GrossValue:    deref(parsed.GrossValue),
				NetValue:      deref(parsed.NetValue),
				ReferenceDate: endDate,
				DocumentID:    doc.ID,
				UpdatedAt:     time.Now().UTC(),
			})
		}
		if err := s.storage.InvestmentFunds().ReplaceForAccount(ctx, doc.AccountID, positions); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("investment funds: %v", err))
		} else {
			result.InvestmentFunds = len(positions)
		}
	}
}

func consolidatedBreakdown(c *models.ParsedConsolidated) models.CategoryBreakdown {
	return models.CategoryBreakdown{
		RendaFixa:          deref(c.RendaFixa),
		FundosInvestimento: deref(c.FundosInvestimento),
		RendaVariavel:      deref(c.RendaVariavel),
		Derivativos:        deref(c.Derivativos),
		ContaCorrente:      deref(c.ContaCorrente),
		COE:                deref(c.COE),
	}
}

func parseStatementDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: date is missing", models.ErrValidation)
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", models.ErrValidation, s)
	}
	return t.UTC(), nil
}

func currencyOr(currency, fallback string) string {
	if currency == "" {
		return fallback
	}
	return currency
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func derefAbs(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return d.Abs()
}
