// Package app wires configuration, storage, provider clients and services
// into a runnable application.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/pulse/internal/clients/alphavantage"
	"github.com/bobmcallan/pulse/internal/clients/coingecko"
	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/notify"
	"github.com/bobmcallan/pulse/internal/services/alert"
	"github.com/bobmcallan/pulse/internal/services/history"
	"github.com/bobmcallan/pulse/internal/services/portfolio"
	"github.com/bobmcallan/pulse/internal/services/quote"
	"github.com/bobmcallan/pulse/internal/services/valuation"
	"github.com/bobmcallan/pulse/internal/services/watchlist"
	"github.com/bobmcallan/pulse/internal/storage"
)

// App holds all initialized services and clients.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	StockClient      interfaces.StockHistoryClient
	CryptoClient     interfaces.CryptoHistoryClient
	HistoryService   interfaces.HistoryService
	QuoteService     interfaces.QuoteService
	ValuationService interfaces.ValuationService
	PortfolioService interfaces.PortfolioService
	WatchlistService interfaces.WatchlistService
	AlertService     interfaces.AlertService
	StartupTime      time.Time

	scheduler       *cron.Cron
	warmCacheCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp loads configuration and initializes the application.
// configPath may be empty, in which case PULSE_CONFIG, then pulse.toml next
// to the binary, then config/pulse.toml are tried.
func NewApp(configPath string) (*App, error) {
	common.LoadVersionFromFile()

	binDir := getBinaryDir()
	if configPath == "" {
		configPath = os.Getenv("PULSE_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "pulse.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/pulse.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	return New(context.Background(), config, common.NewLoggerFromConfig(config.Logging))
}

// New initializes storage, clients and services from an already loaded config.
func New(ctx context.Context, config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	for _, name := range config.ValidateRequired() {
		if name == "auth.jwt_secret" {
			return nil, fmt.Errorf("auth.jwt_secret must be set to a non-default value in production")
		}
		logger.Warn().Str("setting", name).Msg("Required setting is missing")
	}

	storageManager, err := storage.NewStorageManager(ctx, logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	av := config.Clients.AlphaVantage
	stockClient := alphavantage.NewClient(av.APIKey,
		alphavantage.WithBaseURL(av.BaseURL),
		alphavantage.WithLogger(logger),
		alphavantage.WithRateLimit(av.RateLimit),
		alphavantage.WithTimeout(av.GetTimeout()),
	)

	cg := config.Clients.CoinGecko
	cryptoClient := coingecko.NewClient(cg.APIKey,
		coingecko.WithBaseURL(cg.BaseURL),
		coingecko.WithLogger(logger),
		coingecko.WithRateLimit(cg.RateLimit),
		coingecko.WithTimeout(cg.GetTimeout()),
	)

	vs := config.Valuation.VsCurrency
	historyService := history.NewService(stockClient, cryptoClient, storageManager.HistoricalCacheStore(), logger, vs)
	quoteService := quote.NewService(stockClient, cryptoClient, logger, vs)
	valuationService := valuation.NewService(storageManager.HoldingStore(), historyService, logger)
	portfolioService := portfolio.NewService(storageManager.HoldingStore(), quoteService, logger)
	watchlistService := watchlist.NewService(storageManager.WatchlistStore(), logger)
	alertService := alert.NewService(
		storageManager.WatchlistStore(),
		quoteService,
		notify.FromConfig(config.Alerts, logger),
		config.Alerts.ThresholdPct,
		logger,
	)

	a := &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		StockClient:      stockClient,
		CryptoClient:     cryptoClient,
		HistoryService:   historyService,
		QuoteService:     quoteService,
		ValuationService: valuationService,
		PortfolioService: portfolioService,
		WatchlistService: watchlistService,
		AlertService:     alertService,
		StartupTime:      startupStart,
	}

	logger.Info().Str("storage", storageManager.Backend()).Dur("startup", time.Since(startupStart)).Msg("App initialized")
	return a, nil
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, cancel warm cache, close storage.
func (a *App) Close() {
	a.StopScheduler()
	if a.warmCacheCancel != nil {
		a.warmCacheCancel()
		a.warmCacheCancel = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}

// StartWarmCache warms the stock history cache once in the background.
func (a *App) StartWarmCache() {
	if os.Getenv("PULSE_WARM_CACHE") == "off" {
		a.Logger.Info().Msg("Warm cache: disabled via PULSE_WARM_CACHE=off")
		return
	}

	warmCtx, warmCancel := context.WithTimeout(context.Background(), 5*time.Minute)
	a.warmCacheCancel = warmCancel
	go func() {
		defer warmCancel()
		warmStockHistory(warmCtx, a.Storage.HoldingStore(), a.HistoryService, a.warmRange(), a.Logger)
	}()
}
