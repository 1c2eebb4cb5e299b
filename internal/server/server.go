// Package server is the HTTP REST adapter over the application services.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lfmartins/carteira/internal/app"
	"github.com/lfmartins/carteira/internal/common"
)

// Server wraps the HTTP server and application reference.
type Server struct {
	app    *app.App
	server *http.Server
	logger *common.Logger
}

// NewServer creates a new HTTP REST API server.
func NewServer(a *app.App) *Server {
	s := &Server{
		app:    a,
		logger: a.Logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := applyMiddleware(mux, a.Logger, a.Config)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	// Auth
	mux.HandleFunc("/api/auth/register", s.handleAuthRegister)
	mux.HandleFunc("/api/auth/login", s.handleAuthLogin)
	mux.HandleFunc("/api/auth/validate", s.handleAuthValidate)

	// Accounts
	mux.HandleFunc("/api/accounts/", s.routeAccounts)
	mux.HandleFunc("/api/accounts", s.handleAccounts)

	// Assets & quotes
	mux.HandleFunc("/api/assets/", s.routeAssets)
	mux.HandleFunc("/api/assets", s.handleAssets)
	mux.HandleFunc("/api/quotes/sync", s.handleQuoteSync)

	// FX
	mux.HandleFunc("/api/fx/rate", s.handleFXRate)
	mux.HandleFunc("/api/fx/sync", s.handleFXSync)

	// Journal
	mux.HandleFunc("/api/transactions/", s.routeTransactions)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/cashflows/", s.routeCashFlows)
	mux.HandleFunc("/api/cashflows", s.handleCashFlows)

	// Portfolio
	mux.HandleFunc("/api/portfolio/positions/consolidated", s.handleConsolidatedPositions)
	mux.HandleFunc("/api/portfolio/positions", s.handlePortfolioPositions)
	mux.HandleFunc("/api/portfolio/allocation", s.handleAllocation)
	mux.HandleFunc("/api/portfolio/consolidated", s.handleConsolidatedView)
	mux.HandleFunc("/api/portfolio/realized", s.handleRealizedPnL)
	mux.HandleFunc("/api/portfolio/unrealized", s.handleUnrealizedPnL)
	mux.HandleFunc("/api/portfolio/nav", s.handleNAV)
	mux.HandleFunc("/api/portfolio/snapshots/materialize", s.handleSnapshotMaterialize)
	mux.HandleFunc("/api/portfolio/snapshots", s.handleSnapshots)

	// Fund (quota engine)
	mux.HandleFunc("/api/fund/performance", s.handleFundPerformance)
	mux.HandleFunc("/api/fund/history", s.handleFundHistory)
	mux.HandleFunc("/api/fund/close", s.handleFundClose)
	mux.HandleFunc("/api/fund/chart", s.handleFundChart)

	// Documents
	mux.HandleFunc("/api/documents/", s.routeDocuments)
	mux.HandleFunc("/api/documents", s.handleDocuments)
}
