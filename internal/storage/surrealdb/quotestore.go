package surrealdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

// QuoteStore implements interfaces.QuoteStore using SurrealDB. The record id
// is (asset, date), which makes upserts idempotent per calendar day.
type QuoteStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewQuoteStore creates a new QuoteStore.
func NewQuoteStore(db *surrealdb.DB, logger *common.Logger) *QuoteStore {
	return &QuoteStore{db: db, logger: logger}
}

func quoteKey(assetID string, date time.Time) string {
	return recordKey(assetID, dateKey(date))
}

func (s *QuoteStore) Upsert(ctx context.Context, quote *models.Quote) error {
	return upsertRow(ctx, s.db, "quote", quoteKey(quote.AssetID, quote.Date), quote)
}

// Latest returns, per asset, the effective price of the newest row.
func (s *QuoteStore) Latest(ctx context.Context, assetIDs []string) (map[string]models.PricePoint, error) {
	sql := `SELECT * FROM quote WHERE data.asset_id = $asset_id
		ORDER BY data.date DESC LIMIT 1`
	return s.pricePoints(ctx, assetIDs, sql, nil)
}

// AtDate returns, per asset, the effective price of the newest row with
// date <= target.
func (s *QuoteStore) AtDate(ctx context.Context, assetIDs []string, target time.Time) (map[string]models.PricePoint, error) {
	sql := `SELECT * FROM quote WHERE data.asset_id = $asset_id AND data.date <= $target
		ORDER BY data.date DESC LIMIT 1`
	return s.pricePoints(ctx, assetIDs, sql, map[string]any{"target": target})
}

func (s *QuoteStore) pricePoints(ctx context.Context, assetIDs []string, sql string, extra map[string]any) (map[string]models.PricePoint, error) {
	points := make(map[string]models.PricePoint, len(assetIDs))
	for _, assetID := range assetIDs {
		vars := map[string]any{"asset_id": assetID}
		for k, v := range extra {
			vars[k] = v
		}
		quote, err := queryOneRow[models.Quote](ctx, s.db, sql, vars)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		points[assetID] = models.PricePoint{
			AssetID: assetID,
			Date:    quote.Date,
			Price:   quote.EffectivePrice(),
		}
	}
	return points, nil
}

func (s *QuoteStore) History(ctx context.Context, assetID string, from, to *time.Time, limit int) ([]*models.Quote, error) {
	sql := "SELECT * FROM quote WHERE data.asset_id = $asset_id"
	vars := map[string]any{"asset_id": assetID}

	if from != nil {
		sql += " AND data.date >= $from"
		vars["from"] = *from
	}
	if to != nil {
		sql += " AND data.date <= $to"
		vars["to"] = *to
	}

	sql += " ORDER BY data.date ASC"
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}

	return queryRows[models.Quote](ctx, s.db, sql, vars)
}

// Compile-time check
var _ interfaces.QuoteStore = (*QuoteStore)(nil)

// ExchangeRateStore implements interfaces.ExchangeRateStore using SurrealDB.
// The record id is (date, from, to).
type ExchangeRateStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewExchangeRateStore creates a new ExchangeRateStore.
func NewExchangeRateStore(db *surrealdb.DB, logger *common.Logger) *ExchangeRateStore {
	return &ExchangeRateStore{db: db, logger: logger}
}

func rateKey(rate *models.ExchangeRate) string {
	return recordKey(dateKey(rate.Date), rate.FromCurrency, rate.ToCurrency)
}

func (s *ExchangeRateStore) Upsert(ctx context.Context, rate *models.ExchangeRate) error {
	return upsertRow(ctx, s.db, "exchange_rate", rateKey(rate), rate)
}

// LatestWithin returns the most recent rate for the pair with date in
// [target - windowDays, target].
func (s *ExchangeRateStore) LatestWithin(ctx context.Context, from, to string, target time.Time, windowDays int) (*models.ExchangeRate, error) {
	floor := target.AddDate(0, 0, -windowDays)
	sql := `SELECT * FROM exchange_rate
		WHERE data.from_currency = $from AND data.to_currency = $to
			AND data.date <= $target AND data.date >= $floor
		ORDER BY data.date DESC LIMIT 1`
	rate, err := queryOneRow[models.ExchangeRate](ctx, s.db, sql, map[string]any{
		"from":   from,
		"to":     to,
		"target": target,
		"floor":  floor,
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: no %s/%s rate within %d days of %s",
				models.ErrNotFound, from, to, windowDays, target.Format("2006-01-02"))
		}
		return nil, err
	}
	return rate, nil
}

// Compile-time check
var _ interfaces.ExchangeRateStore = (*ExchangeRateStore)(nil)
