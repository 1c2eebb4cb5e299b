package models

import (
	"regexp"
	"strings"
	"time"
)

// AssetType classifies a tradable instrument.
type AssetType string

const (
	AssetStock    AssetType = "STOCK"
	AssetETF      AssetType = "ETF"
	AssetFII      AssetType = "FII"
	AssetBDR      AssetType = "BDR"
	AssetFiagro   AssetType = "FIAGRO"
	AssetREIT     AssetType = "REIT"
	AssetFund     AssetType = "FUND"
	AssetBond     AssetType = "BOND"
	AssetTreasury AssetType = "TREASURY"
	AssetOption   AssetType = "OPTION"
	AssetFuture   AssetType = "FUTURE"
	AssetCrypto   AssetType = "CRYPTO"
)

// Asset is a tradable instrument. The ticker alone identifies the asset
// across the system; it is stored uppercase with any ".SA" suffix stripped.
type Asset struct {
	ID        string    `json:"id"`
	Ticker    string    `json:"ticker"`
	Name      string    `json:"name"`
	AssetType AssetType `json:"asset_type"`
	Currency  string    `json:"currency"`
	Exchange  string    `json:"exchange"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

/// b3TickerPattern matches Brazilian (B3) tickers: 3+ letter prefix with a
// 1-2 digit suffix, 3-6 characters total (e.g. PETR4, HGLG11, B3SA3).
var b3TickerPattern = regexp.MustCompile(`^[A-Z]{3,}[0-9]{1,2}$`)

// NormalizeTicker uppercases a ticker and strips the ".SA" Brazilian suffix.
func NormalizeTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	t = strings.TrimSuffix(t, ".SA")
	return t
}

// IsBrazilianTicker reports whether the ticker matches the B3 shape.
func IsBrazilianTicker(ticker string) bool {
	t := NormalizeTicker(ticker)
	if len(t) < 3 || len(t) > 6 {
		return false
	}
	return b3TickerPattern.MatchString(t)
}

// InferAssetType applies the ticker heuristic: B3 suffix 11 with a 4-letter
// prefix is an FII, 34/35 is a BDR, AGRO/FIAG names are FIAGRO, everything
// else local is a STOCK. Foreign tickers default to STOCK.
func InferAssetType(ticker string) AssetType {
	t := NormalizeTicker(ticker)
	if !IsBrazilianTicker(t) {
		return AssetStock
	}

	prefix := strings.TrimRight(t, "0123456789")
	suffix := t[len(prefix):]

	if strings.Contains(t, "AGRO") || strings.HasPrefix(t, "FIAG") {
		return AssetFiagro
	}
	if suffix == "11" && len(prefix) == 4 {
		return AssetFII
	}
	if suffix == "34" || suffix == "35" {
		return AssetBDR
	}
	return AssetStock
}

// InferAssetCurrency returns BRL for B3 tickers and USD otherwise.
func InferAssetCurrency(ticker string) string {
	if IsBrazilianTicker(ticker) {
		return "BRL"
	}
	return "USD"
}

// ProviderTicker returns the ticker in quote-provider format. B3 providers
// that prefer the ".SA" suffix get it appended on the wire only.
func ProviderTicker(ticker string, saSuffix bool) string {
	t := NormalizeTicker(ticker)
	if saSuffix && IsBrazilianTicker(t) {
		return t + ".SA"
	}
	return t
}
