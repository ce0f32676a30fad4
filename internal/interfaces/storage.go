// Package interfaces defines service contracts for Pulse
package interfaces

import (
	"context"
	"errors"

	"github.com/bobmcallan/pulse/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput wraps validation failures of caller-supplied data.
	ErrInvalidInput = errors.New("invalid input")
)

// StorageManager coordinates the storage backends
type StorageManager interface {
	HoldingStore() HoldingStore
	WatchlistStore() WatchlistStore
	HistoricalCacheStore() HistoricalCacheStore

	// Backend names the active backend ("file" or "surrealdb").
	Backend() string

	// Lifecycle
	Close() error
}

// HoldingStore persists holdings per user.
type HoldingStore interface {
	ListHoldings(ctx context.Context, userID string) ([]models.Holding, error)
	GetHolding(ctx context.Context, userID, id string) (*models.Holding, error)
	SaveHolding(ctx context.Context, userID string, h *models.Holding) error
	DeleteHolding(ctx context.Context, userID, id string) error

	// ListUsers returns the ids of users that own at least one holding.
	ListUsers(ctx context.Context) ([]string, error)
}

// WatchlistStore persists watchlist items per user.
type WatchlistStore interface {
	ListWatchlist(ctx context.Context, userID string) ([]models.WatchlistItem, error)
	SaveWatchlistItem(ctx context.Context, userID string, item *models.WatchlistItem) error
	DeleteWatchlistItem(ctx context.Context, userID, id string) error

	// ListUsers returns the ids of users with a non-empty watchlist.
	ListUsers(ctx context.Context) ([]string, error)
}

// HistoricalCacheStore persists raw stock history keyed by upper-case symbol.
// The store only reads and writes; freshness and write-back rules belong to
// the caller.
type HistoricalCacheStore interface {
	// GetStockHistory returns ErrNotFound when no entry exists.
	GetStockHistory(ctx context.Context, symbol string) (*models.StockHistoricalCacheEntry, error)
	PutStockHistory(ctx context.Context, entry *models.StockHistoricalCacheEntry) error
	// PurgeStockHistory deletes every entry and returns how many were removed.
	PurgeStockHistory(ctx context.Context) (int, error)
}
