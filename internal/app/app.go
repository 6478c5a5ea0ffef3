// Package app wires configuration, storage, clients, and services into the
// shared core used by cmd/drift-server.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/harborfin/drift/internal/clients/eodhd"
	"github.com/harborfin/drift/internal/clients/gemini"
	"github.com/harborfin/drift/internal/common"
	"github.com/harborfin/drift/internal/interfaces"
	"github.com/harborfin/drift/internal/services/market"
	"github.com/harborfin/drift/internal/services/portfolio"
	"github.com/harborfin/drift/internal/services/positions"
	"github.com/harborfin/drift/internal/services/rebalance"
	"github.com/harborfin/drift/internal/services/risk"
	"github.com/harborfin/drift/internal/storage"
)

// App holds all initialized services and clients.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	MarketClient     interfaces.MarketDataClient
	AdvisorClient    interfaces.AdvisorClient
	MarketService    interfaces.MarketService
	PortfolioService interfaces.PortfolioService
	PositionService  interfaces.PositionService
	RiskService      interfaces.RiskService
	RebalanceService interfaces.RebalanceService
	DefaultPortfolio string
	StartupTime      time.Time

	session         *eodhd.Session
	schedulerCancel context.CancelFunc
}

// NewApp initializes storage, clients, and services from the resolved config
// path. configPath may be empty, in which case the default resolution logic
// is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	config, err := common.LoadConfig(common.ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ctx := context.Background()
	kvStorage := storageManager.KeyValueStorage()

	eodhdKey, err := common.ResolveAPIKey(ctx, kvStorage, "eodhd_api_key", config.Clients.EODHD.APIKey)
	if err != nil {
		logger.Warn().Msg("EODHD API key not configured - market data will be unavailable")
	}

	geminiKey, err := common.ResolveAPIKey(ctx, kvStorage, "gemini_api_key", config.Clients.Gemini.APIKey)
	if err != nil {
		logger.Warn().Msg("Gemini API key not configured - advisory overlay will be unavailable")
	}

	var marketClient interfaces.MarketDataClient
	var session *eodhd.Session
	if eodhdKey != "" {
		session = eodhd.NewSession(config.Clients.EODHD.BaseURL, eodhdKey, config.Clients.EODHD.GetTimeout(), logger)
		marketClient = eodhd.NewClient(eodhdKey,
			eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
			eodhd.WithLogger(logger),
			eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
			eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
			eodhd.WithSession(session),
		)
	}

	var advisorClient interfaces.AdvisorClient
	if geminiKey != "" {
		client, err := gemini.NewClient(ctx, geminiKey,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Clients.Gemini.Model),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client")
		} else {
			advisorClient = client
		}
	}

	marketService := market.NewService(storageManager.MarketStorage(), marketClient, logger)
	portfolioService := portfolio.NewService(storageManager, marketService, logger)
	positionService := positions.NewService(storageManager, logger)
	riskService := risk.NewService(storageManager, marketService, logger)
	rebalanceService := rebalance.NewService(
		positionService,
		marketService,
		riskService,
		advisorClient,
		storageManager.RecommendationStorage(),
		config.Rebalance,
		logger,
	)

	a := &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		MarketClient:     marketClient,
		AdvisorClient:    advisorClient,
		MarketService:    marketService,
		PortfolioService: portfolioService,
		PositionService:  positionService,
		RiskService:      riskService,
		RebalanceService: rebalanceService,
		DefaultPortfolio: config.DefaultPortfolio(),
		StartupTime:      startupStart,
		session:          session,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// DataPath returns the resolved storage directory.
func (a *App) DataPath() string {
	path, err := filepath.Abs(a.Config.Storage.Path)
	if err != nil {
		return a.Config.Storage.Path
	}
	return path
}

// StartPriceScheduler launches the background price refresh goroutine.
func (a *App) StartPriceScheduler(interval time.Duration) {
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	a.schedulerCancel = schedulerCancel
	go startPriceScheduler(schedulerCtx, a.PortfolioService, a.MarketService, a.Config.Portfolios, a.Logger, interval)
}

// Close releases all resources held by the App.
// Shutdown order: cancel scheduler, close session, close storage.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
	if a.session != nil {
		a.session.Close()
		a.session = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
