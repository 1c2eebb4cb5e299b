// Package brapi provides a client for the brapi.dev B3 market data API.
package brapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/models"
)

const (
	DefaultBaseURL   = "https://brapi.dev/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Client implements the QuoteProvider interface. brapi serves B3 tickers in
// their canonical form, so no wire suffix is needed.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *common.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new brapi client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies the provider in quote source fields.
func (c *Client) Name() string { return "brapi" }

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("brapi API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("token", c.apiKey)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("brapi API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// quoteResponse is the /quote payload.
type quoteResponse struct {
	Results []struct {
		Symbol              string    `json:"symbol"`
		HistoricalDataPrice []barJSON `json:"historicalDataPrice"`
	} `json:"results"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type barJSON struct {
	Date     int64    `json:"date"` // unix seconds
	Open     *float64 `json:"open"`
	High     *float64 `json:"high"`
	Low      *float64 `json:"low"`
	Close    *float64 `json:"close"`
	AdjClose *float64 `json:"adjustedClose"`
	Volume   int64    `json:"volume"`
}

// FetchDaily retrieves daily bars for the ticker covering [from, to].
func (c *Client) FetchDaily(ctx context.Context, ticker string, from, to time.Time) ([]models.ProviderBar, error) {
	params := url.Values{}
	params.Set("range", rangeFor(from))
	params.Set("interval", "1d")

	var resp quoteResponse
	if err := c.get(ctx, "/quote/"+url.PathEscape(ticker), params, &resp); err != nil {
		return nil, err
	}
	if resp.Error {
		return nil, fmt.Errorf("brapi: %s", resp.Message)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("brapi: no results for %s", ticker)
	}

	raw := resp.Results[0].HistoricalDataPrice
	bars := make([]models.ProviderBar, 0, len(raw))
	for _, b := range raw {
		if b.Close == nil {
			continue
		}
		date := time.Unix(b.Date, 0).UTC().Truncate(24 * time.Hour)
		if date.Before(from) || date.After(to) {
			continue
		}
		bar := models.ProviderBar{
			Ticker: ticker,
			Date:   date,
			Open:   fromFloat(b.Open),
			High:   fromFloat(b.High),
			Low:    fromFloat(b.Low),
			Close:  fromFloat(b.Close),
			Volume: b.Volume,
		}
		if b.AdjClose != nil {
			adj := decimal.NewFromFloat(*b.AdjClose)
			bar.AdjustedClose = &adj
		}
		bars = append(bars, bar)
	}

	c.logger.Debug().Str("ticker", ticker).Int("bars", len(bars)).Msg("Fetched daily bars")
	return bars, nil
}

// rangeFor picks the smallest brapi range parameter covering the window start.
func rangeFor(from time.Time) string {
	age := time.Since(from)
	switch {
	case age <= 28*24*time.Hour:
		return "1mo"
	case age <= 88*24*time.Hour:
		return "3mo"
	case age <= 360*24*time.Hour:
		return "1y"
	default:
		return "max"
	}
}

func fromFloat(f *float64) decimal.Decimal {
	if f == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*f)
}

// Ensure Client implements QuoteProvider
var _ interfaces.QuoteProvider = (*Client)(nil)
