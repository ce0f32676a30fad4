// Package watchlist provides watchlist management services
package watchlist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// Compile-time interface check
var _ interfaces.WatchlistService = (*Service)(nil)

// Service implements WatchlistService
type Service struct {
	store  interfaces.WatchlistStore
	logger *common.Logger
	now    func() time.Time
}

// NewService creates a new watchlist service
func NewService(store interfaces.WatchlistStore, logger *common.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// GetWatchlist retrieves the user's watchlist
func (s *Service) GetWatchlist(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	items, err := s.store.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}
	return items, nil
}

// AddOrUpdateItem adds a new item or updates an existing one (upsert keyed
// on symbol and asset type). An update keeps the original id and creation
// time and only replaces the name when one is given.
func (s *Service) AddOrUpdateItem(ctx context.Context, userID string, item models.WatchlistItem) (*models.WatchlistItem, error) {
	item.Symbol = strings.ToUpper(strings.TrimSpace(item.Symbol))
	item.Name = strings.TrimSpace(item.Name)
	if item.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", interfaces.ErrInvalidInput)
	}
	if !item.AssetType.Valid() {
		return nil, fmt.Errorf("%w: asset_type must be stock or crypto", interfaces.ErrInvalidInput)
	}

	items, err := s.store.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}

	saved := item
	if existing, ok := findItem(items, item.Symbol, item.AssetType); ok {
		saved = existing
		if item.Name != "" {
			saved.Name = item.Name
		}
	} else {
		saved.ID = uuid.New().String()
		saved.CreatedAt = s.now().UTC()
	}

	if err := s.store.SaveWatchlistItem(ctx, userID, &saved); err != nil {
		return nil, fmt.Errorf("failed to save watchlist: %w", err)
	}

	s.logger.Info().Str("user", userID).Str("symbol", saved.Symbol).Str("asset_type", string(saved.AssetType)).Msg("Watchlist item upserted")
	return &saved, nil
}

// RemoveItem removes a symbol from the watchlist. An empty asset type
// removes the symbol whatever its type.
func (s *Service) RemoveItem(ctx context.Context, userID, symbol string, assetType models.AssetType) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	items, err := s.store.ListWatchlist(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get watchlist: %w", err)
	}

	removed := 0
	for _, it := range items {
		if !strings.EqualFold(it.Symbol, symbol) || (assetType != "" && it.AssetType != assetType) {
			continue
		}
		if err := s.store.DeleteWatchlistItem(ctx, userID, it.ID); err != nil {
			return fmt.Errorf("failed to remove %s from watchlist: %w", symbol, err)
		}
		removed++
	}
	if removed == 0 {
		return fmt.Errorf("symbol '%s' not in watchlist: %w", symbol, interfaces.ErrNotFound)
	}

	s.logger.Info().Str("user", userID).Str("symbol", symbol).Msg("Watchlist item removed")
	return nil
}

func findItem(items []models.WatchlistItem, symbol string, assetType models.AssetType) (models.WatchlistItem, bool) {
	for _, it := range items {
		if strings.EqualFold(it.Symbol, symbol) && it.AssetType == assetType {
			return it, true
		}
	}
	return models.WatchlistItem{}, false
}
