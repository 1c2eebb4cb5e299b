// Package fund implements the personal-fund quota engine: NAV computation,
// daily share valuation, and share issuance against cash flows.
package fund

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

var _ interfaces.FundService = (*Service)(nil)

const shareScale = 8

var one = decimal.NewFromInt(1)

// Service is the NAV & quota engine. Share accounting follows fund
// mechanics: deposits issue shares at the previous day's share value,
// withdrawals redeem them, and performance is measured on the share value
// so cash flows never distort returns.
type Service struct {
	storage           interfaces.StorageManager
	fx                interfaces.FXService
	logger            *common.Logger
	baseCurrency      string
	initialShareValue decimal.Decimal
}

// NewService creates a new fund service. initialShareValue is the bootstrap
// quota price from configuration; zero or negative falls back to the default.
func NewService(storage interfaces.StorageManager, fx interfaces.FXService, baseCurrency string, initialShareValue decimal.Decimal, logger *common.Logger) *Service {
	if baseCurrency == "" {
		baseCurrency = "BRL"
	}
	if !initialShareValue.IsPositive() {
		initialShareValue = models.InitialShareValue
	}
	return &Service{
		storage:           storage,
		fx:                fx,
		logger:            logger,
		baseCurrency:      baseCurrency,
		initialShareValue: initialShareValue,
	}
}

// NAV computes total portfolio value for the user at the date: market value
// of open positions (short negative) plus statement-sourced fixed income and
// fund holdings plus cumulative cash, all in base currency. Each holding
// converts at its own currency, so a USD-listed asset inside a BRL account
// still converts at the USD rate. Positions without a price enter at cost.
// convert=false skips FX and sums raw values.
func (s *Service) NAV(ctx context.Context, userID string, date time.Time, convert bool) (*models.NAVResult, error) {
	if date.IsZero() {
		date = time.Now().UTC()
	}
	date = midnightUTC(date)

	accounts, err := s.storage.Accounts().ListByUser(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	result := &models.NAVResult{
		UserID:       userID,
		Date:         date,
		BaseCurrency: s.baseCurrency,
	}

	for _, account := range accounts {
		values, err := s.accountValues(ctx, account, date)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			continue
		}

		line := models.AccountNAVLine{
			AccountID: account.ID,
			Name:      account.Name,
			Currency:  account.Currency,
		}
		for _, currency := range sortedCurrencies(values) {
			value := values[currency]
			if value.IsZero() {
				continue
			}
			if convert && currency != s.baseCurrency {
				converted, rate, err := s.fx.Convert(ctx, value, currency, s.baseCurrency, date)
				if err != nil {
					return nil, err
				}
				if rate == nil {
					result.MissingFX = appendUnique(result.MissingFX, currency)
				} else {
					if currency == "USD" {
						result.PTAXRateUsed = *rate
					}
					if currency == account.Currency {
						line.FXRate = rate
					}
				}
				value = converted
			}
			line.Value = line.Value.Add(value)
		}
		if line.Value.IsZero() {
			continue
		}
		line.Value = line.Value.Round(2)
		result.Accounts = append(result.Accounts, line)
		result.TotalMarketValue = result.TotalMarketValue.Add(line.Value)
	}

	cash, err := s.totalCash(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	result.TotalCash = cash.Round(2)
	result.TotalMarketValue = result.TotalMarketValue.Round(2)
	result.NAV = result.TotalMarketValue.Add(result.TotalCash).Round(2)
	return result, nil
}

// accountValues sums the account's holdings bucketed by currency: positions
// in their asset's currency, fixed income and investment funds in the
// account currency.
func (s *Service) accountValues(ctx context.Context, account *models.Account, date time.Time) (map[string]decimal.Decimal, error) {
	values := make(map[string]decimal.Decimal)
	add := func(currency string, v decimal.Decimal) {
		values[currency] = values[currency].Add(v)
	}

	positions, err := s.storage.Positions().ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions for %s: %w", account.ID, err)
	}
	if len(positions) > 0 {
		assetIDs := make([]string, len(positions))
		for i, p := range positions {
			assetIDs[i] = p.AssetID
		}
		assets, err := s.storage.Assets().GetBatch(ctx, assetIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to load assets: %w", err)
		}
		prices, err := s.storage.Quotes().AtDate(ctx, assetIDs, date)
		if err != nil {
			return nil, fmt.Errorf("failed to load prices: %w", err)
		}

		for _, p := range positions {
			value := p.TotalCost
			if pp, ok := prices[p.AssetID]; ok {
				value = p.Quantity.Mul(pp.Price)
			}
			if p.PositionType == models.PositionShort {
				value = value.Neg()
			}
			currency := account.Currency
			if asset, ok := assets[p.AssetID]; ok && asset.Currency != "" {
				currency = asset.Currency
			}
			add(currency, value)
		}
	}

	fixed, err := s.storage.FixedIncome().ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	for _, f := range fixed {
		add(account.Currency, f.CurrentValue)
	}

	funds, err := s.storage.InvestmentFunds().ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	for _, f := range funds {
		add(account.Currency, f.NetValue)
	}

	return values, nil
}

func sortedCurrencies(values map[string]decimal.Decimal) []string {
	currencies := make([]string, 0, len(values))
	for c := range values {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	return currencies
}

// totalCash sums the signed base-currency effect of every cash flow up to
// and including the date.
func (s *Service) totalCash(ctx context.Context, userID string, date time.Time) (decimal.Decimal, error) {
	cutoff := midnightUTC(date).AddDate(0, 0, 1).Add(-time.Nanosecond)
	flows, err := s.storage.CashFlows().ListByUser(ctx, userID, cutoff)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list cash flows: %w", err)
	}
	total := decimal.Zero
	for _, f := range flows {
		total = total.Add(f.SignedAmount())
	}
	return total, nil
}

// CreateDailyFundShare materializes the quota row for (user, date):
// NAV, shares outstanding at that date, share value, and return figures.
// The first row bootstraps shares as NAV / initial share value so the first
// quota prices exactly at the configured bootstrap. A zero NAV writes
// nothing and returns nil.
func (s *Service) CreateDailyFundShare(ctx context.Context, userID string, date time.Time) (*models.FundShare, error) {
	date = midnightUTC(date)

	nav, err := s.NAV(ctx, userID, date, true)
	if err != nil {
		return nil, err
	}
	if nav.NAV.IsZero() {
		return nil, nil
	}

	shares, err := s.SharesOutstanding(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	var shareValue decimal.Decimal
	if shares.IsZero() {
		shares = nav.NAV.DivRound(s.initialShareValue, shareScale)
		shareValue = s.initialShareValue
	} else {
		shareValue = nav.NAV.DivRound(shares, shareScale)
	}

	share := &models.FundShare{
		ID:                uuid.NewString(),
		UserID:            userID,
		Date:              date,
		NAV:               nav.NAV,
		SharesOutstanding: shares.Round(shareScale),
		ShareValue:        shareValue,
		CumulativeReturn:  shareValue.DivRound(s.initialShareValue, shareScale).Sub(one),
		CreatedAt:         time.Now().UTC(),
	}

	prev, err := s.storage.FundShares().LatestBefore(ctx, userID, date)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if prev != nil && !prev.ShareValue.IsZero() {
		share.DailyReturn = shareValue.DivRound(prev.ShareValue, shareScale).Sub(one)
	}

	if existing, err := s.storage.FundShares().Get(ctx, userID, date); err == nil {
		share.ID = existing.ID
		share.CreatedAt = existing.CreatedAt
	}

	if err := s.storage.FundShares().Upsert(ctx, share); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("user", userID).
		Str("date", date.Format("2006-01-02")).
		Str("nav", share.NAV.String()).
		Str("share_value", share.ShareValue.String()).
		Msg("Fund share materialized")
	return share, nil
}

// SharesOutstanding at a date is the last materialized share count plus the
// shares affected by cash flows since that row. With no history it is the
// cumulative shares affected up to the date.
func (s *Service) SharesOutstanding(ctx context.Context, userID string, asOf time.Time) (decimal.Decimal, error) {
	asOf = midnightUTC(asOf)
	cutoff := asOf.AddDate(0, 0, 1).Add(-time.Nanosecond)

	base := decimal.Zero
	since := time.Time{}
	anchor, err := s.storage.FundShares().LatestBefore(ctx, userID, asOf.AddDate(0, 0, 1))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return decimal.Zero, err
	}
	if anchor != nil {
		base = anchor.SharesOutstanding
		since = anchor.Date.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	flows, err := s.storage.CashFlows().ListByUser(ctx, userID, cutoff)
	if err != nil {
		return decimal.Zero, err
	}
	for _, f := range flows {
		if f.SharesAffected == nil {
			continue
		}
		if !since.IsZero() && !f.ExecutedAt.After(since) {
			continue
		}
		base = base.Add(*f.SharesAffected)
	}
	return base, nil
}

// IssueShares issues shares for a deposit at the previous day's share value
// and stamps the cash flow with the share delta.
func (s *Service) IssueShares(ctx context.Context, userID, cashFlowID string, amount decimal.Decimal, date time.Time) (decimal.Decimal, error) {
	return s.adjustShares(ctx, userID, cashFlowID, amount, date, false)
}

// RedeemShares burns shares for a withdrawal at the previous day's share
// value. Fails with ErrInsufficientShares when the user holds fewer shares
// than the redemption requires.
func (s *Service) RedeemShares(ctx context.Context, userID, cashFlowID string, amount decimal.Decimal, date time.Time) (decimal.Decimal, error) {
	return s.adjustShares(ctx, userID, cashFlowID, amount, date, true)
}

func (s *Service) adjustShares(ctx context.Context, userID, cashFlowID string, amount decimal.Decimal, date time.Time, redeem bool) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be > 0", models.ErrValidation)
	}
	date = midnightUTC(date)

	value := s.initialShareValue
	prev, err := s.storage.FundShares().LatestBefore(ctx, userID, date)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return decimal.Zero, err
	}
	if prev != nil && prev.ShareValue.IsPositive() {
		value = prev.ShareValue
	}

	shares := amount.DivRound(value, shareScale)
	if redeem {
		outstanding, err := s.SharesOutstanding(ctx, userID, date)
		if err != nil {
			return decimal.Zero, err
		}
		if shares.GreaterThan(outstanding) {
			return decimal.Zero, fmt.Errorf("%w: need %s, have %s",
				models.ErrInsufficientShares, shares, outstanding)
		}
		shares = shares.Neg()
	}

	flow, err := s.storage.CashFlows().Get(ctx, cashFlowID)
	if err != nil {
		return decimal.Zero, err
	}
	flow.SharesAffected = &shares
	flow.UpdatedAt = time.Now().UTC()
	if err := s.storage.CashFlows().Update(ctx, flow); err != nil {
		return decimal.Zero, err
	}
	return shares, nil
}

// History returns fund share rows ascending by date.
func (s *Service) History(ctx context.Context, userID string, from, to *time.Time, limit int) ([]*models.FundShare, error) {
	return s.storage.FundShares().History(ctx, userID, from, to, limit)
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
