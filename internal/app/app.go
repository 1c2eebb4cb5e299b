// Package app wires configuration, storage, clients and services into a
// runnable application core.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lfmartins/carteira/internal/clients/bcb"
	"github.com/lfmartins/carteira/internal/clients/brapi"
	"github.com/lfmartins/carteira/internal/clients/gemini"
	"github.com/lfmartins/carteira/internal/common"
	"github.com/lfmartins/carteira/internal/interfaces"
	"github.com/lfmartins/carteira/internal/services/document"
	"github.com/lfmartins/carteira/internal/services/fund"
	"github.com/lfmartins/carteira/internal/services/fx"
	"github.com/lfmartins/carteira/internal/services/ledger"
	"github.com/lfmartins/carteira/internal/services/pnl"
	"github.com/lfmartins/carteira/internal/services/quote"
	"github.com/lfmartins/carteira/internal/services/reconcile"
	"github.com/lfmartins/carteira/internal/services/replay"
	"github.com/lfmartins/carteira/internal/services/snapshot"
	"github.com/lfmartins/carteira/internal/storage/surrealdb"
)

// App holds all initialized services and clients. It is the shared core
// used by cmd/carteira-server.
type App struct {
	Config  *common.Config
	Logger  *common.Logger
	Storage interfaces.StorageManager

	BrapiClient  *brapi.Client
	BCBClient    *bcb.Client
	GeminiClient *gemini.Client

	QuoteService     interfaces.QuoteService
	FXService        interfaces.FXService
	ReplayService    interfaces.ReplayService
	PnLService       interfaces.PnLService
	FundService      interfaces.FundService
	SnapshotService  interfaces.SnapshotService
	ReconcileService interfaces.ReconcileService
	DocumentService  interfaces.DocumentService
	LedgerService    interfaces.LedgerService

	StartupTime time.Time

	scheduler *Scheduler
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, clients and all services. configPath may be
// empty, in which case CARTEIRA_CONFIG and the binary directory are tried.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("CARTEIRA_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "carteira.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/carteira.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative data path to binary directory
	if config.Storage.DataPath != "" && !filepath.IsAbs(config.Storage.DataPath) {
		config.Storage.DataPath = filepath.Join(binDir, config.Storage.DataPath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := surrealdb.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ctx := context.Background()

	// Quote provider is optional; without a brapi token price sync is
	// unavailable but the ledger still works.
	var brapiClient *brapi.Client
	var quoteProvider interfaces.QuoteProvider
	if config.Clients.Brapi.APIKey != "" {
		brapiClient = brapi.NewClient(config.Clients.Brapi.APIKey,
			brapi.WithBaseURL(config.Clients.Brapi.BaseURL),
			brapi.WithRateLimit(config.Clients.Brapi.RateLimit),
			brapi.WithTimeout(config.Clients.Brapi.GetTimeout()),
			brapi.WithLogger(logger),
		)
		quoteProvider = brapiClient
	} else {
		logger.Warn().Msg("brapi API key not configured - quote sync will be unavailable")
	}

	bcbClient := bcb.NewClient(
		bcb.WithBaseURL(config.Clients.BCB.BaseURL),
		bcb.WithTimeout(config.Clients.BCB.GetTimeout()),
		bcb.WithLogger(logger),
	)

	var geminiClient *gemini.Client
	var llmProvider interfaces.LLMProvider
	if config.Clients.Gemini.APIKey != "" {
		geminiClient, err = gemini.NewClient(ctx, config.Clients.Gemini.APIKey,
			gemini.WithModel(config.Clients.Gemini.Model),
			gemini.WithLogger(logger),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client")
		} else {
			llmProvider = geminiClient
		}
	} else {
		logger.Warn().Msg("Gemini API key not configured - statement parsing will be unavailable")
	}

	baseCurrency := config.Portfolio.BaseCurrency
	cacheTTL := time.Duration(config.Portfolio.PriceCacheTTLSeconds) * time.Second

	fxService := fx.NewService(storageManager, bcbClient, config.Portfolio.FXFallbackDays, logger)
	quoteService := quote.NewService(storageManager, quoteProvider, config.Portfolio.QuoteParallelism, cacheTTL, logger)
	replayService := replay.NewService(storageManager, logger)
	initialShareValue := decimal.NewFromInt(int64(config.Portfolio.InitialShareValue))
	fundService := fund.NewService(storageManager, fxService, baseCurrency, initialShareValue, logger)
	pnlService := pnl.NewService(storageManager, replayService, fundService, logger)
	snapshotService := snapshot.NewService(storageManager, fxService, baseCurrency, logger)
	reconcileService := reconcile.NewService(storageManager, quoteService, logger)
	documentService := document.NewService(storageManager, llmProvider, quoteService,
		replayService, reconcileService, snapshotService, fundService,
		config.Server.MaxPDFBytes, logger)
	ledgerService := ledger.NewService(storageManager, replayService, fundService, logger)

	a := &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		BrapiClient:      brapiClient,
		BCBClient:        bcbClient,
		GeminiClient:     geminiClient,
		QuoteService:     quoteService,
		FXService:        fxService,
		ReplayService:    replayService,
		PnLService:       pnlService,
		FundService:      fundService,
		SnapshotService:  snapshotService,
		ReconcileService: reconcileService,
		DocumentService:  documentService,
		LedgerService:    ledgerService,
		StartupTime:      startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// StartScheduler launches the daily job scheduler (quote sync, NAV close,
// snapshots) in the configured timezone.
func (a *App) StartScheduler() error {
	scheduler, err := NewScheduler(a, a.Logger)
	if err != nil {
		return err
	}
	a.scheduler = scheduler
	a.scheduler.Start()
	return nil
}

// Close releases all resources. Shutdown order: stop scheduler, close
// storage.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
		a.scheduler = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
