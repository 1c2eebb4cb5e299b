// Package snapshot materializes daily portfolio totals per account and
// consolidated, and renders the share value chart.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

var _ interfaces.SnapshotService = (*Service)(nil)

// Service derives daily snapshots from positions, prices, cash and FX.
// A statement-sourced snapshot is authoritative and is never overwritten by
// a derived one for the same (account, date).
type Service struct {
	storage      interfaces.StorageManager
	fx           interfaces.FXService
	logger       *common.Logger
	baseCurrency string
}

// NewService creates a new snapshot service.
func NewService(storage interfaces.StorageManager, fx interfaces.FXService, baseCurrency string, logger *common.Logger) *Service {
	if baseCurrency == "" {
		baseCurrency = "BRL"
	}
	return &Service{storage: storage, fx: fx, logger: logger, baseCurrency: baseCurrency}
}

// Materialize writes one snapshot per active account plus the consolidated
// row for the date. Returns every row written, consolidated first.
func (s *Service) Materialize(ctx context.Context, userID string, date time.Time) ([]*models.PortfolioSnapshot, error) {
	date = midnightUTC(date)

	accounts, err := s.storage.Accounts().ListByUser(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	consolidated := &models.PortfolioSnapshot{
		UserID:   userID,
		Date:     date,
		Currency: s.baseCurrency,
	}
	written := []*models.PortfolioSnapshot{consolidated}

	for _, account := range accounts {
		snap, err := s.accountSnapshot(ctx, userID, account, date)
		if err != nil {
			return nil, err
		}

		// A statement already owns this (account, date); keep it and fold
		// its values into the consolidated row instead.
		existing, err := s.storage.Snapshots().Get(ctx, userID, date, account.ID)
		if err == nil && existing.DocumentID != "" {
			snap = existing
		} else {
			if err == nil {
				snap.ID = existing.ID
				snap.CreatedAt = existing.CreatedAt
			}
			if err := s.storage.Snapshots().Upsert(ctx, snap); err != nil {
				return nil, err
			}
		}
		written = append(written, snap)

		if err := s.fold(ctx, consolidated, snap, account.Currency, date); err != nil {
			return nil, err
		}
	}

	if err := s.upsertKeepingIdentity(ctx, consolidated); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("user", userID).
		Str("date", date.Format("2006-01-02")).
		Int("accounts", len(accounts)).
		Str("nav", consolidated.NAV.String()).
		Msg("Snapshots materialized")
	return written, nil
}

// accountSnapshot derives one account's snapshot in its own currency.
func (s *Service) accountSnapshot(ctx context.Context, userID string, account *models.Account, date time.Time) (*models.PortfolioSnapshot, error) {
	snap := &models.PortfolioSnapshot{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      date,
		AccountID: account.ID,
		Currency:  account.Currency,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	positions, err := s.storage.Positions().ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if len(positions) > 0 {
		assetIDs := make([]string, len(positions))
		for i, p := range positions {
			assetIDs[i] = p.AssetID
		}
		prices, err := s.storage.Quotes().AtDate(ctx, assetIDs, date)
		if err != nil {
			return nil, err
		}
		for _, p := range positions {
			value := p.TotalCost
			if pp, ok := prices[p.AssetID]; ok {
				value = p.Quantity.Mul(pp.Price)
			}
			if p.PositionType == models.PositionShort {
				value = value.Neg()
				snap.TotalCost = snap.TotalCost.Sub(p.TotalCost)
			} else {
				snap.TotalCost = snap.TotalCost.Add(p.TotalCost)
			}
			snap.Categories.RendaVariavel = snap.Categories.RendaVariavel.Add(value)
		}
	}

	fixed, err := s.storage.FixedIncome().ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	for _, f := range fixed {
		snap.Categories.RendaFixa = snap.Categories.RendaFixa.Add(f.CurrentValue)
	}

	funds, err := s.storage.InvestmentFunds().ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	for _, f := range funds {
		snap.Categories.FundosInvestimento = snap.Categories.FundosInvestimento.Add(f.NetValue)
	}

	cash, err := s.accountCash(ctx, account.ID, date)
	if err != nil {
		return nil, err
	}
	snap.Categories.ContaCorrente = cash

	realized, err := s.accountRealized(ctx, account.ID, date)
	if err != nil {
		return nil, err
	}
	snap.RealizedPnL = realized

	snap.NAV = snap.Categories.Total().Round(2)
	snap.UnrealizedPnL = snap.Categories.RendaVariavel.Sub(snap.TotalCost).Round(2)
	snap.TotalCost = snap.TotalCost.Round(2)
	return snap, nil
}

// accountCash sums the account's cash flows through the date, signed by
// type, in the account currency.
func (s *Service) accountCash(ctx context.Context, accountID string, date time.Time) (decimal.Decimal, error) {
	cutoff := date.AddDate(0, 0, 1).Add(-time.Nanosecond)
	flows, err := s.storage.CashFlows().List(ctx, models.CashFlowFilter{AccountID: accountID, To: &cutoff})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, f := range flows {
		amount := f.Amount
		switch f.Type {
		case models.CashWithdrawal, models.CashFee, models.CashTax:
			amount = amount.Neg()
		}
		total = total.Add(amount)
	}
	return total.Round(2), nil
}

func (s *Service) accountRealized(ctx context.Context, accountID string, date time.Time) (decimal.Decimal, error) {
	cutoff := date.AddDate(0, 0, 1).Add(-time.Nanosecond)
	trades, err := s.storage.RealizedTrades().List(ctx, models.RealizedFilter{AccountID: accountID, To: &cutoff})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(t.RealizedPnL)
	}
	return total.Round(2), nil
}

// fold converts one account snapshot to base currency and adds it into the
// consolidated row.
func (s *Service) fold(ctx context.Context, consolidated, snap *models.PortfolioSnapshot, currency string, date time.Time) error {
	convert := func(v decimal.Decimal) (decimal.Decimal, error) {
		if currency == s.baseCurrency || v.IsZero() {
			return v, nil
		}
		out, _, err := s.fx.Convert(ctx, v, currency, s.baseCurrency, date)
		return out, err
	}

	nav, err := convert(snap.NAV)
	if err != nil {
		return err
	}
	cost, err := convert(snap.TotalCost)
	if err != nil {
		return err
	}
	realized, err := convert(snap.RealizedPnL)
	if err != nil {
		return err
	}
	unrealized, err := convert(snap.UnrealizedPnL)
	if err != nil {
		return err
	}

	consolidated.NAV = consolidated.NAV.Add(nav).Round(2)
	consolidated.TotalCost = consolidated.TotalCost.Add(cost).Round(2)
	consolidated.RealizedPnL = consolidated.RealizedPnL.Add(realized).Round(2)
	consolidated.UnrealizedPnL = consolidated.UnrealizedPnL.Add(unrealized).Round(2)

	for _, pair := range []struct {
		dst *decimal.Decimal
		src decimal.Decimal
	}{
		{&consolidated.Categories.RendaFixa, snap.Categories.RendaFixa},
		{&consolidated.Categories.FundosInvestimento, snap.Categories.FundosInvestimento},
		{&consolidated.Categories.RendaVariavel, snap.Categories.RendaVariavel},
		{&consolidated.Categories.Derivativos, snap.Categories.Derivativos},
		{&consolidated.Categories.ContaCorrente, snap.Categories.ContaCorrente},
		{&consolidated.Categories.COE, snap.Categories.COE},
	} {
		v, err := convert(pair.src)
		if err != nil {
			return err
		}
		*pair.dst = pair.dst.Add(v).Round(2)
	}
	return nil
}

func (s *Service) upsertKeepingIdentity(ctx context.Context, snap *models.PortfolioSnapshot) error {
	existing, err := s.storage.Snapshots().Get(ctx, snap.UserID, snap.Date, snap.AccountID)
	if err == nil {
		snap.ID = existing.ID
		snap.CreatedAt = existing.CreatedAt
	} else if errors.Is(err, models.ErrNotFound) {
		snap.ID = uuid.NewString()
		snap.CreatedAt = time.Now().UTC()
	} else {
		return err
	}
	snap.UpdatedAt = time.Now().UTC()
	return s.storage.Snapshots().Upsert(ctx, snap)
}

// ApplyStatement overwrites the account snapshot with the statement's
// consolidated categories. The statement is authoritative for its account
// and date; the consolidated row is rebuilt from the stored account rows.
func (s *Service) ApplyStatement(ctx context.Context, userID, accountID, documentID string, date time.Time, consolidated models.CategoryBreakdown) (*models.PortfolioSnapshot, error) {
	date = midnightUTC(date)

	account, err := s.storage.Accounts().Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	realized, err := s.accountRealized(ctx, accountID, date)
	if err != nil {
		return nil, err
	}

	snap := &models.PortfolioSnapshot{
		UserID:      userID,
		Date:        date,
		AccountID:   accountID,
		Currency:    account.Currency,
		NAV:         consolidated.Total().Round(2),
		RealizedPnL: realized,
		Categories:  consolidated,
		DocumentID:  documentID,
	}
	if err := s.upsertKeepingIdentity(ctx, snap); err != nil {
		return nil, err
	}

	if err := s.rebuildConsolidated(ctx, userID, date); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("account", accountID).
		Str("document", documentID).
		Str("date", date.Format("2006-01-02")).
		Str("nav", snap.NAV.String()).
		Msg("Statement snapshot applied")
	return snap, nil
}

// rebuildConsolidated recomputes the consolidated row for the date from the
// stored per-account rows.
func (s *Service) rebuildConsolidated(ctx context.Context, userID string, date time.Time) error {
	rows, err := s.storage.Snapshots().History(ctx, userID, &date, &date)
	if err != nil {
		return err
	}

	consolidated := &models.PortfolioSnapshot{
		UserID:   userID,
		Date:     date,
		Currency: s.baseCurrency,
	}
	for _, row := range rows {
		if row.AccountID == "" {
			continue
		}
		if err := s.fold(ctx, consolidated, row, row.Currency, date); err != nil {
			return err
		}
	}
	return s.upsertKeepingIdentity(ctx, consolidated)
}

// History returns snapshots for the user ascending by date.
func (s *Service) History(ctx context.Context, userID string, from, to *time.Time) ([]*models.PortfolioSnapshot, error) {
	return s.storage.Snapshots().History(ctx, userID, from, to)
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
