package interfaces

import (
	"context"
	"time"

	"github.com/lfmartins/carteira/internal/models"
)

// QuoteProvider fetches daily bars for a ticker over a date range.
// Implementations append provider-specific suffixes (e.g. ".SA") on the wire
// but return canonical tickers.
type QuoteProvider interface {
	FetchDaily(ctx context.Context, ticker string, from, to time.Time) ([]models.ProviderBar, error)
	Name() string
}

// FXProvider returns daily mid-rates for a currency pair over a range.
type FXProvider interface {
	FetchRates(ctx context.Context, from, to string, start, end time.Time) ([]models.ExchangeRate, error)
	Name() string
}

// LLMProvider drives the statement extraction. The returned text is expected
// to contain a JSON document, possibly wrapped in markdown fences.
type LLMProvider interface {
	GenerateFromPDF(ctx context.Context, pdf []byte, prompt string, maxTokens int) (string, error)
}
