// Package bcb provides a client for the Banco Central do Brasil PTAX
// exchange rate service (Olinda OData API).
package bcb

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
	DefaultBaseURL   = "https://olinda.bcb.gov.br/olinda/servico/PTAX/versao/v1/odata"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 2 // requests per second
)

// Client implements the FXProvider interface for the USD/BRL PTAX rate.
// Other pairs are not served by this provider.
type Client struct {
	baseURL    string
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

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new PTAX client. No API key is required.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
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

// Name identifies the provider in rate source fields.
func (c *Client) Name() string { return "bcb-ptax" }

// ptaxResponse is the CotacaoDolarPeriodo payload.
type ptaxResponse struct {
	Value []struct {
		CotacaoCompra   float64 `json:"cotacaoCompra"`
		CotacaoVenda    float64 `json:"cotacaoVenda"`
		DataHoraCotacao string  `json:"dataHoraCotacao"` // "2006-01-02 15:04:05.999"
	} `json:"value"`
}

// FetchRates returns the daily PTAX mid-rate ((compra + venda) / 2) for
// USD -> BRL over [start, end], one rate per business day. The inverse pair
// is derived by the FX service, not here.
func (c *Client) FetchRates(ctx context.Context, from, to string, start, end time.Time) ([]models.ExchangeRate, error) {
	if from != "USD" || to != "BRL" {
		return nil, fmt.Errorf("%w: PTAX serves USD->BRL only, got %s->%s", models.ErrValidation, from, to)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("@dataInicial", fmt.Sprintf("'%s'", start.Format("01-02-2006")))
	params.Set("@dataFinalCotacao", fmt.Sprintf("'%s'", end.Format("01-02-2006")))
	params.Set("$format", "json")
	params.Set("$top", "1000")

	reqURL := fmt.Sprintf("%s/CotacaoDolarPeriodo(dataInicial=@dataInicial,dataFinalCotacao=@dataFinalCotacao)?%s",
		c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().
		Time("start", start).
		Time("end", end).
		Msg("PTAX API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("PTAX API error: %s (status: %d)", string(body), resp.StatusCode)
	}

	var payload ptaxResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// One bulletin per business day; a later row for the same date wins.
	byDate := make(map[time.Time]models.ExchangeRate, len(payload.Value))
	order := make([]time.Time, 0, len(payload.Value))
	two := decimal.NewFromInt(2)
	for _, row := range payload.Value {
		if len(row.DataHoraCotacao) < 10 {
			continue
		}
		date, err := time.Parse("2006-01-02", row.DataHoraCotacao[:10])
		if err != nil {
			continue
		}
		mid := decimal.NewFromFloat(row.CotacaoCompra).
			Add(decimal.NewFromFloat(row.CotacaoVenda)).
			Div(two)
		if _, seen := byDate[date]; !seen {
			order = append(order, date)
		}
		byDate[date] = models.ExchangeRate{
			Date:         date,
			FromCurrency: "USD",
			ToCurrency:   "BRL",
			Rate:         mid,
			Source:       c.Name(),
		}
	}

	rates := make([]models.ExchangeRate, 0, len(order))
	for _, date := range order {
		rates = append(rates, byDate[date])
	}

	c.logger.Debug().Int("rates", len(rates)).Msg("Fetched PTAX rates")
	return rates, nil
}

// Ensure Client implements FXProvider
var _ interfaces.FXProvider = (*Client)(nil)
