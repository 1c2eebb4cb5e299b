// Package quote stores dated prices and drives provider ingestion.
package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

var _ interfaces.QuoteService = (*Service)(nil)

// syncWindowDays is the trailing window SyncAll refreshes.
const syncWindowDays = 30

// Service is the quote store plus provider ingestion. Latest lookups go
// through a TTL cache; the cache is an optimization only and every lookup
// is correct when it is cold.
type Service struct {
	storage     interfaces.StorageManager
	provider    interfaces.QuoteProvider
	logger      *common.Logger
	parallelism int

	cache *priceCache
}

// NewService creates a new quote service. provider may be nil; sync
// operations then fail with ErrProvider while lookups keep working.
func NewService(storage interfaces.StorageManager, provider interfaces.QuoteProvider, parallelism int, cacheTTL time.Duration, logger *common.Logger) *Service {
	if parallelism <= 0 {
		parallelism = 5
	}
	return &Service{
		storage:     storage,
		provider:    provider,
		logger:      logger,
		parallelism: parallelism,
		cache:       newPriceCache(cacheTTL),
	}
}

// Upsert stores a quote, normalizing the date to midnight UTC.
func (s *Service) Upsert(ctx context.Context, quote *models.Quote) error {
	if quote.AssetID == "" {
		return fmt.Errorf("%w: asset_id is required", models.ErrValidation)
	}
	if quote.Date.IsZero() {
		return fmt.Errorf("%w: date is required", models.ErrValidation)
	}
	if quote.Close.IsNegative() {
		return fmt.Errorf("%w: close must be >= 0", models.ErrValidation)
	}
	quote.Date = midnightUTC(quote.Date)
	quote.UpdatedAt = time.Now().UTC()
	if err := s.storage.Quotes().Upsert(ctx, quote); err != nil {
		return err
	}
	s.cache.invalidate(quote.AssetID)
	return nil
}

// Latest returns the newest effective price per asset.
func (s *Service) Latest(ctx context.Context, assetIDs []string) (map[string]models.PricePoint, error) {
	hits, misses := s.cache.get(assetIDs)
	if len(misses) == 0 {
		return hits, nil
	}

	fetched, err := s.storage.Quotes().Latest(ctx, misses)
	if err != nil {
		return nil, err
	}
	s.cache.put(fetched)
	for id, pp := range fetched {
		hits[id] = pp
	}
	return hits, nil
}

// AtDate returns, per asset, the effective price with the greatest date not
// after target. Historical lookups bypass the cache.
func (s *Service) AtDate(ctx context.Context, assetIDs []string, target time.Time) (map[string]models.PricePoint, error) {
	return s.storage.Quotes().AtDate(ctx, assetIDs, midnightUTC(target))
}

// History returns quotes for the asset ascending by date.
func (s *Service) History(ctx context.Context, assetID string, from, to *time.Time, limit int) ([]*models.Quote, error) {
	return s.storage.Quotes().History(ctx, assetID, from, to, limit)
}

// SyncTickers fetches daily bars for each ticker over [from, to] with a
// bounded worker pool. Per-ticker failures land in the report; only a
// canceled context fails the batch.
func (s *Service) SyncTickers(ctx context.Context, tickers []string, from, to time.Time) (*models.QuoteSyncReport, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no quote provider configured", models.ErrProvider)
	}

	started := time.Now()
	report := &models.QuoteSyncReport{Requested: len(tickers), Errors: make(map[string]string)}

	var mu sync.Mutex
	pool := newWorkerPool(ctx, s.parallelism)
	for _, ticker := range tickers {
		ticker := ticker
		pool.Go(func(ctx context.Context) error {
			upserted, err := s.syncOne(ctx, ticker, from, to)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors[ticker] = err.Error()
				return nil
			}
			report.Synced++
			report.Upserted += upserted
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, err
	}

	report.Elapsed = time.Since(started)
	if len(report.Errors) == 0 {
		report.Errors = nil
	}

	s.logger.Info().
		Int("requested", report.Requested).
		Int("synced", report.Synced).
		Int("upserted", report.Upserted).
		Int("failed", report.Requested-report.Synced).
		Dur("elapsed", report.Elapsed).
		Msg("Quote sync complete")
	return report, nil
}

func (s *Service) syncOne(ctx context.Context, ticker string, from, to time.Time) (int, error) {
	asset, err := s.EnsureAsset(ctx, ticker)
	if err != nil {
		return 0, err
	}

	bars, err := s.provider.FetchDaily(ctx, asset.Ticker, from, to)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.provider.Name(), err)
	}

	n := 0
	for _, bar := range bars {
		q := &models.Quote{
			AssetID:       asset.ID,
			Date:          bar.Date,
			Open:          bar.Open,
			High:          bar.High,
			Low:           bar.Low,
			Close:         bar.Close,
			AdjustedClose: bar.AdjustedClose,
			Volume:        bar.Volume,
			Source:        s.provider.Name(),
		}
		if err := s.Upsert(ctx, q); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// SyncAll refreshes every active asset over the trailing window.
func (s *Service) SyncAll(ctx context.Context) (*models.QuoteSyncReport, error) {
	assets, err := s.storage.Assets().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	var tickers []string
	for _, a := range assets {
		if a.IsActive {
			tickers = append(tickers, a.Ticker)
		}
	}

	to := time.Now().UTC()
	return s.SyncTickers(ctx, tickers, to.AddDate(0, 0, -syncWindowDays), to)
}

// EnsureAsset resolves a ticker to an asset, creating it with the inferred
// type and currency when unknown.
func (s *Service) EnsureAsset(ctx context.Context, ticker string) (*models.Asset, error) {
	normalized := models.NormalizeTicker(ticker)
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty ticker", models.ErrValidation)
	}

	asset, err := s.storage.Assets().GetByTicker(ctx, normalized)
	if err == nil {
		return asset, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	asset = &models.Asset{
		ID:        uuid.NewString(),
		Ticker:    normalized,
		Name:      normalized,
		AssetType: models.InferAssetType(normalized),
		Currency:  models.InferAssetCurrency(normalized),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.storage.Assets().Create(ctx, asset); err != nil {
		// Lost a concurrent create race; the winner's row is the asset.
		if errors.Is(err, models.ErrConflict) {
			return s.storage.Assets().GetByTicker(ctx, normalized)
		}
		return nil, err
	}

	s.logger.Info().
		Str("ticker", normalized).
		Str("type", string(asset.AssetType)).
		Str("currency", asset.Currency).
		Msg("Asset auto-created")
	return asset, nil
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
