package bcb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfmartins/carteira/internal/models"
)

func TestFetchRatesParsesMidRate(t *testing.T) {
	var capturedQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value": [
			{"cotacaoCompra": 5.10, "cotacaoVenda": 5.12, "dataHoraCotacao": "2026-01-15 13:09:02.932"},
			{"cotacaoCompra": 5.20, "cotacaoVenda": 5.22, "dataHoraCotacao": "2026-01-16 13:08:11.004"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC)

	rates, err := client.FetchRates(context.Background(), "USD", "BRL", start, end)
	require.NoError(t, err)

	assert.Contains(t, capturedQuery, "dataInicial=%2701-15-2026%27")

	require.Len(t, rates, 2)
	assert.Equal(t, "USD", rates[0].FromCurrency)
	assert.Equal(t, "BRL", rates[0].ToCurrency)
	assert.Equal(t, "5.11", rates[0].Rate.String())
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), rates[0].Date)
	assert.Equal(t, "bcb-ptax", rates[0].Source)
	assert.Equal(t, "5.21", rates[1].Rate.String())
}

func TestFetchRatesLastBulletinWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"value": [
			{"cotacaoCompra": 5.00, "cotacaoVenda": 5.02, "dataHoraCotacao": "2026-01-15 10:05:00.000"},
			{"cotacaoCompra": 5.10, "cotacaoVenda": 5.12, "dataHoraCotacao": "2026-01-15 13:09:02.932"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	rates, err := client.FetchRates(context.Background(), "USD", "BRL",
		time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, rates, 1)
	assert.Equal(t, "5.11", rates[0].Rate.String())
}

func TestFetchRatesRejectsOtherPairs(t *testing.T) {
	client := NewClient()
	_, err := client.FetchRates(context.Background(), "EUR", "BRL", time.Now(), time.Now())
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestFetchRatesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.FetchRates(context.Background(), "USD", "BRL", time.Now(), time.Now())
	require.Error(t, err)
}
