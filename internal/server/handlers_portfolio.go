package server

import (
	"net/http"
	"time"

	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/models"
)

// handlePortfolioPositions handles GET /api/portfolio/positions.
func (s *Server) handlePortfolioPositions(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	positions, err := s.app.Storage.Positions().ListByUser(r.Context(), common.ResolveUserID(r.Context()))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, positions)
}

// handleConsolidatedPositions handles GET /api/portfolio/positions/consolidated:
// the same asset aggregated across accounts with a weighted average price.
func (s *Server) handleConsolidatedPositions(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	consolidated, err := s.app.PnLService.Consolidated(r.Context(), common.ResolveUserID(r.Context()))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, consolidated)
}

// handleAllocation handles GET /api/portfolio/allocation?top=N.
func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	allocation, err := s.app.PnLService.Allocation(r.Context(),
		common.ResolveUserID(r.Context()), queryInt(r, "top", 0))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, allocation)
}

// handleConsolidatedView handles GET /api/portfolio/consolidated: the full
// portfolio panel at the given date (default today).
func (s *Server) handleConsolidatedView(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	var date time.Time
	if parsed, err := queryDate(r, "date"); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	} else if parsed != nil {
		date = *parsed
	}

	view, err := s.app.PnLService.ConsolidatedView(r.Context(), common.ResolveUserID(r.Context()), date)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// handleRealizedPnL handles GET /api/portfolio/realized. With by_asset=true
// the summary is broken down per asset.
func (s *Server) handleRealizedPnL(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	accountID := r.URL.Query().Get("account_id")
	if accountID != "" {
		if _, err := s.ownedAccount(ctx, accountID); err != nil {
			WriteServiceError(w, err)
			return
		}
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

	filter := models.RealizedFilter{
		UserID:    common.ResolveUserID(ctx),
		AccountID: accountID,
		AssetID:   r.URL.Query().Get("asset_id"),
		From:      from,
		To:        to,
	}

	if r.URL.Query().Get("by_asset") == "true" {
		byAsset, err := s.app.PnLService.RealizedByAsset(ctx, filter)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, byAsset)
		return
	}

	summary, err := s.app.PnLService.Realized(ctx, filter)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

// handleUnrealizedPnL handles GET /api/portfolio/unrealized.
func (s *Server) handleUnrealizedPnL(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	accountID := r.URL.Query().Get("account_id")
	if accountID != "" {
		if _, err := s.ownedAccount(ctx, accountID); err != nil {
			WriteServiceError(w, err)
			return
		}
	}
	var at time.Time
	if parsed, err := queryDate(r, "date"); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	} else if parsed != nil {
		at = *parsed
	}

	summary, err := s.app.PnLService.Unrealized(ctx, common.ResolveUserID(ctx), accountID, at)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

// handleNAV handles GET /api/portfolio/nav.
func (s *Server) handleNAV(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	date := time.Now()
	if parsed, err := queryDate(r, "date"); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	} else if parsed != nil {
		date = *parsed
	}
	convert := r.URL.Query().Get("convert") != "false"

	nav, err := s.app.FundService.NAV(r.Context(), common.ResolveUserID(r.Context()), date, convert)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, nav)
}

// handleSnapshots handles GET /api/portfolio/snapshots.
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
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

	snapshots, err := s.app.SnapshotService.History(r.Context(), common.ResolveUserID(r.Context()), from, to)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snapshots)
}

// handleSnapshotMaterialize handles POST /api/portfolio/snapshots/materialize.
func (s *Server) handleSnapshotMaterialize(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	date := time.Now()
	if parsed, err := queryDate(r, "date"); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	} else if parsed != nil {
		date = *parsed
	}

	snapshots, err := s.app.SnapshotService.Materialize(r.Context(), common.ResolveUserID(r.Context()), date)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snapshots)
}

// handleFundPerformance handles GET /api/fund/performance.
func (s *Server) handleFundPerformance(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	perf, err := s.app.FundService.Performance(r.Context(), common.ResolveUserID(r.Context()))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, perf)
}

// handleFundHistory handles GET /api/fund/history.
func (s *Server) handleFundHistory(w http.ResponseWriter, r *http.Request) {
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

	history, err := s.app.FundService.History(r.Context(), common.ResolveUserID(r.Context()),
		from, to, queryInt(r, "limit", 0))
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, history)
}

// handleFundClose handles POST /api/fund/close: writes the daily fund share
// row for the caller at the given date.
func (s *Server) handleFundClose(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	date := time.Now()
	if parsed, err := queryDate(r, "date"); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	} else if parsed != nil {
		date = *parsed
	}

	share, err := s.app.FundService.CreateDailyFundShare(r.Context(), common.ResolveUserID(r.Context()), date)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if share == nil {
		// Zero NAV: nothing to value, nothing written.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	WriteJSON(w, http.StatusOK, share)
}

// handleFundChart handles GET /api/fund/chart: renders the share value
// history chart and streams the PNG.
func (s *Server) handleFundChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()
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

	key, err := s.app.SnapshotService.RenderShareValueChart(ctx, common.ResolveUserID(ctx), from, to)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	data, contentType, err := s.app.Storage.Files().GetFile(ctx, "charts", key)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
