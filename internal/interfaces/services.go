package interfaces

import (
	"context"

	"github.com/bobmcallan/pulse/internal/models"
)

// HistoryService fetches price series for many assets at once.
type HistoryService interface {
	// FetchSeries fetches every asset concurrently. It never fails as a
	// whole: assets that could not be fetched are listed in the batch's
	// Failed slice and their series is absent or a stale placeholder.
	FetchSeries(ctx context.Context, assets []models.AssetRef, r models.ValuationRange) *models.SeriesBatch

	// WarmStockHistory refreshes stale cache entries for the given symbols.
	WarmStockHistory(ctx context.Context, symbols []string, r models.ValuationRange) *models.SeriesBatch
}

// QuoteService fetches live prices.
type QuoteService interface {
	GetQuotes(ctx context.Context, assets []models.AssetRef) *models.QuoteBatch
}

// ValuationService builds the time-aligned portfolio value series.
type ValuationService interface {
	GetValuation(ctx context.Context, userID string, r models.ValuationRange) (*models.ValuationResult, error)
}

// PortfolioService manages holdings and point-in-time metrics.
type PortfolioService interface {
	ListHoldings(ctx context.Context, userID string) ([]models.Holding, error)
	AddHolding(ctx context.Context, userID string, h models.Holding) (*models.Holding, error)
	UpdateHolding(ctx context.Context, userID, id string, update models.HoldingUpdate) (*models.Holding, error)
	RemoveHolding(ctx context.Context, userID, id string) error
	GetPortfolioSummary(ctx context.Context, userID string) (*models.PortfolioSummary, error)
}

// WatchlistService manages per-user watchlists.
type WatchlistService interface {
	GetWatchlist(ctx context.Context, userID string) ([]models.WatchlistItem, error)
	AddOrUpdateItem(ctx context.Context, userID string, item models.WatchlistItem) (*models.WatchlistItem, error)
	// RemoveItem removes the symbol. An empty asset type matches any type.
	RemoveItem(ctx context.Context, userID, symbol string, assetType models.AssetType) error
}

// AlertService scans watchlists for significant moves.
type AlertService interface {
	Scan(ctx context.Context, userID string) ([]models.PriceAlert, error)
	// ResetNotified forgets which symbols were already alerted for every user.
	ResetNotified()
}
