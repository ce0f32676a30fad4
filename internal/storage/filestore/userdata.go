package filestore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// --- HoldingStore ---

type holdingStore struct {
	store *Store
}

func (h *holdingStore) ListHoldings(_ context.Context, userID string) ([]models.Holding, error) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	dir := h.store.userDir(userID, holdingsDir)
	keys, err := listKeys(dir)
	if err != nil {
		return nil, err
	}

	holdings := make([]models.Holding, 0, len(keys))
	for _, key := range keys {
		var holding models.Holding
		if err := readJSON(dir, key, &holding); err != nil {
			h.store.logger.Warn().Err(err).Str("user", userID).Str("key", key).Msg("Skipping unreadable holding")
			continue
		}
		holdings = append(holdings, holding)
	}
	sort.SliceStable(holdings, func(i, j int) bool {
		return holdings[i].CreatedAt.Before(holdings[j].CreatedAt)
	})
	return holdings, nil
}

func (h *holdingStore) GetHolding(_ context.Context, userID, id string) (*models.Holding, error) {
	h.store.mu.RLock()
	defer h.store.mu.RUnlock()

	var holding models.Holding
	if err := readJSON(h.store.userDir(userID, holdingsDir), id, &holding); err != nil {
		return nil, fmt.Errorf("holding %s: %w", id, err)
	}
	return &holding, nil
}

func (h *holdingStore) SaveHolding(_ context.Context, userID string, holding *models.Holding) error {
	if holding == nil || holding.ID == "" {
		return fmt.Errorf("holding id is required")
	}

	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	if err := writeJSON(h.store.userDir(userID, holdingsDir), holding.ID, holding); err != nil {
		return fmt.Errorf("failed to save holding: %w", err)
	}
	if err := h.store.recordUser(userID); err != nil {
		return fmt.Errorf("failed to record user: %w", err)
	}
	h.store.logger.Debug().Str("user", userID).Str("id", holding.ID).Msg("Holding saved")
	return nil
}

func (h *holdingStore) DeleteHolding(_ context.Context, userID, id string) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	return deleteJSON(h.store.userDir(userID, holdingsDir), id)
}

func (h *holdingStore) ListUsers(_ context.Context) ([]string, error) {
	return h.store.usersWith(holdingsDir)
}

// --- WatchlistStore ---

type watchlistStore struct {
	store *Store
}

func (w *watchlistStore) ListWatchlist(_ context.Context, userID string) ([]models.WatchlistItem, error) {
	w.store.mu.RLock()
	defer w.store.mu.RUnlock()

	dir := w.store.userDir(userID, watchlistDir)
	keys, err := listKeys(dir)
	if err != nil {
		return nil, err
	}

	items := make([]models.WatchlistItem, 0, len(keys))
	for _, key := range keys {
		var item models.WatchlistItem
		if err := readJSON(dir, key, &item); err != nil {
			w.store.logger.Warn().Err(err).Str("user", userID).Str("key", key).Msg("Skipping unreadable watchlist item")
			continue
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (w *watchlistStore) SaveWatchlistItem(_ context.Context, userID string, item *models.WatchlistItem) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("watchlist item id is required")
	}

	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	if err := writeJSON(w.store.userDir(userID, watchlistDir), item.ID, item); err != nil {
		return fmt.Errorf("failed to save watchlist item: %w", err)
	}
	if err := w.store.recordUser(userID); err != nil {
		return fmt.Errorf("failed to record user: %w", err)
	}
	return nil
}

func (w *watchlistStore) DeleteWatchlistItem(_ context.Context, userID, id string) error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	return deleteJSON(w.store.userDir(userID, watchlistDir), id)
}

func (w *watchlistStore) ListUsers(_ context.Context) ([]string, error) {
	return w.store.usersWith(watchlistDir)
}

// --- HistoricalCacheStore ---

type historyStore struct {
	store *Store
}

func (hs *historyStore) dir() string {
	return filepath.Join(hs.store.basePath, historyDir)
}

func (hs *historyStore) GetStockHistory(_ context.Context, symbol string) (*models.StockHistoricalCacheEntry, error) {
	hs.store.mu.RLock()
	defer hs.store.mu.RUnlock()

	var entry models.StockHistoricalCacheEntry
	if err := readJSON(hs.dir(), symbol, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (hs *historyStore) PutStockHistory(_ context.Context, entry *models.StockHistoricalCacheEntry) error {
	if entry == nil || entry.Symbol == "" {
		return fmt.Errorf("stock history symbol is required")
	}

	hs.store.mu.Lock()
	defer hs.store.mu.Unlock()

	if err := writeJSON(hs.dir(), entry.Symbol, entry); err != nil {
		return fmt.Errorf("failed to save stock history: %w", err)
	}
	return nil
}

func (hs *historyStore) PurgeStockHistory(_ context.Context) (int, error) {
	hs.store.mu.Lock()
	defer hs.store.mu.Unlock()

	keys, err := listKeys(hs.dir())
	if err != nil {
		return 0, err
	}
	count := 0
	for _, key := range keys {
		if err := deleteJSON(hs.dir(), key); err != nil && !errors.Is(err, interfaces.ErrNotFound) {
			return count, err
		}
		count++
	}
	return count, nil
}
