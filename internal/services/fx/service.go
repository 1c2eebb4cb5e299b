// Package fx resolves dated currency rates with a bounded fallback window.
package fx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

var _ interfaces.FXService = (*Service)(nil)

// inverseScale keeps derived rates precise enough for the symmetry
// invariant (rate × inverse within 1e-6 of 1).
const inverseScale = 10

// Service resolves conversion rates. Lookup order: exact or most recent rate
// within the fallback window, then the inverse pair within the same window.
type Service struct {
	storage    interfaces.StorageManager
	provider   interfaces.FXProvider
	logger     *common.Logger
	windowDays int
}

// NewService creates a new FX service. provider may be nil when ingestion
// is not configured; lookups still work against stored rates.
func NewService(storage interfaces.StorageManager, provider interfaces.FXProvider, windowDays int, logger *common.Logger) *Service {
	if windowDays <= 0 {
		windowDays = 7
	}
	return &Service{storage: storage, provider: provider, logger: logger, windowDays: windowDays}
}

// Rate returns the conversion rate from -> to at the date. Identical
// currencies short-circuit to 1. ok=false means no rate within the window
// in either direction.
func (s *Service) Rate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, bool, error) {
	if from == to {
		return decimal.NewFromInt(1), true, nil
	}

	direct, err := s.storage.Rates().LatestWithin(ctx, from, to, date, s.windowDays)
	if err == nil {
		return direct.Rate, true, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return decimal.Zero, false, fmt.Errorf("failed to look up rate %s/%s: %w", from, to, err)
	}

	inverse, err := s.storage.Rates().LatestWithin(ctx, to, from, date, s.windowDays)
	if err == nil {
		if inverse.Rate.IsZero() {
			return decimal.Zero, false, nil
		}
		return decimal.NewFromInt(1).DivRound(inverse.Rate, inverseScale), true, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return decimal.Zero, false, fmt.Errorf("failed to look up rate %s/%s: %w", to, from, err)
	}
	return decimal.Zero, false, nil
}

// Convert applies Rate to the amount. When no rate resolves the amount is
// returned unchanged with a nil rate so callers can flag partial results.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to string, date time.Time) (decimal.Decimal, *decimal.Decimal, error) {
	rate, ok, err := s.Rate(ctx, from, to, date)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if !ok {
		return amount, nil, nil
	}
	return amount.Mul(rate), &rate, nil
}

// Upsert stores a rate row, normalizing the date to midnight UTC.
func (s *Service) Upsert(ctx context.Context, rate *models.ExchangeRate) error {
	if rate.FromCurrency == "" || rate.ToCurrency == "" {
		return fmt.Errorf("%w: currency pair is required", models.ErrValidation)
	}
	if !rate.Rate.IsPositive() {
		return fmt.Errorf("%w: rate must be > 0", models.ErrValidation)
	}
	rate.Date = midnightUTC(rate.Date)
	rate.UpdatedAt = time.Now().UTC()
	return s.storage.Rates().Upsert(ctx, rate)
}

// SyncRates ingests provider rates for the pair over [start, end]. Returns
// the number of rows written.
func (s *Service) SyncRates(ctx context.Context, from, to string, start, end time.Time) (int, error) {
	if s.provider == nil {
		return 0, fmt.Errorf("%w: no FX provider configured", models.ErrProvider)
	}

	rates, err := s.provider.FetchRates(ctx, from, to, start, end)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", models.ErrProvider, s.provider.Name(), err)
	}

	n := 0
	for i := range rates {
		r := rates[i]
		r.Source = s.provider.Name()
		if err := s.Upsert(ctx, &r); err != nil {
			return n, err
		}
		n++
	}

	s.logger.Info().
		Str("pair", from+"/"+to).
		Int("rates", n).
		Str("provider", s.provider.Name()).
		Msg("FX sync complete")
	return n, nil
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
