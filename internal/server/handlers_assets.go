package server

import (
	"net/http"
	"strings"
	"time"
)

// handleAssets handles /api/assets (GET list, POST ensure-by-ticker).
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		assets, err := s.app.Storage.Assets().List(r.Context())
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, assets)

	case http.MethodPost:
		var req struct {
			Ticker string `json:"ticker"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Ticker) == "" {
			WriteError(w, http.StatusBadRequest, "Ticker is required")
			return
		}
		asset, err := s.app.QuoteService.EnsureAsset(r.Context(), req.Ticker)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, asset)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// routeAssets dispatches /api/assets/{id} and /api/assets/{id}/quotes.
func (s *Server) routeAssets(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/assets/")
	assetID, sub, _ := strings.Cut(rest, "/")
	if assetID == "" {
		WriteError(w, http.StatusBadRequest, "Asset id is required in path")
		return
	}

	switch sub {
	case "":
		s.handleAssetByID(w, r, assetID)
	case "quotes":
		s.handleAssetQuotes(w, r, assetID)
	default:
		WriteError(w, http.StatusNotFound, "Unknown asset resource")
	}
}

func (s *Server) handleAssetByID(w http.ResponseWriter, r *http.Request, assetID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	asset, err := s.app.Storage.Assets().Get(r.Context(), assetID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, asset)
}

func (s *Server) handleAssetQuotes(w http.ResponseWriter, r *http.Request, assetID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
		return
	}
	limit := queryInt(r, "limit", 0)

	quotes, err := s.app.QuoteService.History(r.Context(), assetID, from, to, limit)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, quotes)
}

// handleQuoteSync handles POST /api/quotes/sync. With no tickers in the
// body every active asset is refreshed.
func (s *Server) handleQuoteSync(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Tickers []string `json:"tickers,omitempty"`
		From    string   `json:"from,omitempty"`
		To      string   `json:"to,omitempty"`
	}
	if r.ContentLength > 0 && !DecodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	if len(req.Tickers) == 0 {
		report, err := s.app.QuoteService.SyncAll(ctx)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, report)
		return
	}

	to := time.Now()
	from := to.AddDate(0, -1, 0)
	if req.From != "" {
		parsed, err := time.Parse("2006-01-02", req.From)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if req.To != "" {
		parsed, err := time.Parse("2006-01-02", req.To)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
			return
		}
		to = parsed
	}

	report, err := s.app.QuoteService.SyncTickers(ctx, req.Tickers, from, to)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// handleFXRate handles GET /api/fx/rate?from=USD&to=BRL&date=YYYY-MM-DD.
func (s *Server) handleFXRate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	fromCur := strings.ToUpper(r.URL.Query().Get("from"))
	toCur := strings.ToUpper(r.URL.Query().Get("to"))
	if fromCur == "" || toCur == "" {
		WriteError(w, http.StatusBadRequest, "from and to currencies are required")
		return
	}
	date := time.Now()
	if at, err := queryDate(r, "date"); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	} else if at != nil {
		date = *at
	}

	rate, ok, err := s.app.FXService.Rate(r.Context(), fromCur, toCur, date)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if !ok {
		WriteError(w, http.StatusNotFound, "No rate available for the pair within the fallback window")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"from": fromCur,
		"to":   toCur,
		"date": date.Format("2006-01-02"),
		"rate": rate,
	})
}

// handleFXSync handles POST /api/fx/sync.
func (s *Server) handleFXSync(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		From  string `json:"from"`
		To    string `json:"to"`
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid start date, expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid end date, expected YYYY-MM-DD")
		return
	}

	count, err := s.app.FXService.SyncRates(r.Context(),
		strings.ToUpper(req.From), strings.ToUpper(req.To), start, end)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"rates": count})
}
