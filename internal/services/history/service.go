// Package history fetches price series for stocks and crypto, applying the
// persisted stock history cache policy.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
	"github.com/bobmcallan/pulse/internal/series"
)

// Service implements interfaces.HistoryService
type Service struct {
	stocks     interfaces.StockHistoryClient
	crypto     interfaces.CryptoHistoryClient
	cache      interfaces.HistoricalCacheStore
	logger     *common.Logger
	vsCurrency string
	now        func() time.Time

	// writeMu makes the check-then-put of a cache write-back atomic.
	writeMu sync.Mutex
	flight  singleflight.Group
}

var _ interfaces.HistoryService = (*Service)(nil)

// NewService creates a new history service
func NewService(stocks interfaces.StockHistoryClient, crypto interfaces.CryptoHistoryClient, cache interfaces.HistoricalCacheStore, logger *common.Logger, vsCurrency string) *Service {
	if vsCurrency == "" {
		vsCurrency = "usd"
	}
	return &Service{
		stocks:     stocks,
		crypto:     crypto,
		cache:      cache,
		logger:     logger,
		vsCurrency: strings.ToLower(vsCurrency),
		now:        time.Now,
	}
}

// OutputSizeFor returns the stock history depth requested for a range.
// Daily ranges fit in the compact window; monthly history is always full.
func OutputSizeFor(r models.ValuationRange) models.OutputSize {
	if r.Monthly() {
		return models.OutputFull
	}
	return models.OutputCompact
}

// FetchSeries fetches every distinct asset concurrently and returns the
// series keyed by asset key. A failed asset is listed in Failed; if a stale
// cached copy existed its series is still returned as a placeholder.
func (s *Service) FetchSeries(ctx context.Context, assets []models.AssetRef, r models.ValuationRange) *models.SeriesBatch {
	batch := &models.SeriesBatch{Series: make(map[string]models.PriceSeries)}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	seen := make(map[string]bool, len(assets))
	for _, asset := range assets {
		key := asset.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		wg.Add(1)
		go func(asset models.AssetRef, key string) {
			defer wg.Done()

			ps, err := s.fetchOne(ctx, asset, r)

			mu.Lock()
			defer mu.Unlock()
			if ps != nil {
				batch.Series[key] = ps
			}
			if err != nil {
				batch.Failed = append(batch.Failed, key)
				s.logger.Warn().Err(err).Str("asset", key).Str("range", string(r)).Msg("Price history fetch failed")
			}
		}(asset, key)
	}
	wg.Wait()

	sort.Strings(batch.Failed)
	return batch
}

// WarmStockHistory refreshes the cache for symbols whose entries are stale
// or missing. Fresh entries are left alone.
func (s *Service) WarmStockHistory(ctx context.Context, symbols []string, r models.ValuationRange) *models.SeriesBatch {
	assets := make([]models.AssetRef, 0, len(symbols))
	for _, sym := range symbols {
		assets = append(assets, models.AssetRef{AssetType: models.AssetStock, ID: strings.ToUpper(strings.TrimSpace(sym))})
	}
	return s.FetchSeries(ctx, assets, r)
}

func (s *Service) fetchOne(ctx context.Context, asset models.AssetRef, r models.ValuationRange) (models.PriceSeries, error) {
	switch asset.AssetType {
	case models.AssetStock:
		return s.stockSeries(ctx, asset.ID, r.Granularity(), OutputSizeFor(r))
	case models.AssetCrypto:
		return s.cryptoSeries(ctx, asset.ID, r.Days())
	default:
		return nil, fmt.Errorf("unsupported asset type %q", asset.AssetType)
	}
}

// sharedFetchTimeout bounds a shared fetch once it is detached from the
// caller that started it.
const sharedFetchTimeout = 2 * time.Minute

// shared runs fn once per key for all concurrent callers. fn ignores the
// starting caller's cancellation; each caller stops waiting when its own
// ctx is done.
func (s *Service) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := s.flight.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return fn(fctx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) stockSeries(ctx context.Context, symbol string, g models.Granularity, size models.OutputSize) (models.PriceSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	key := "stock:" + symbol + ":" + string(g) + ":" + string(size)

	v, err := s.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.loadStock(ctx, symbol, g, size)
	})
	raw, _ := v.([]byte)
	if raw == nil {
		return nil, err
	}
	return series.ParseStockSeries(raw), err
}

// loadStock returns the raw payload for symbol. On fetch failure with a
// cached entry present, the cached payload is returned alongside the error.
func (s *Service) loadStock(ctx context.Context, symbol string, g models.Granularity, size models.OutputSize) ([]byte, error) {
	entry, err := s.cache.GetStockHistory(ctx, symbol)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Stock history cache read failed")
		}
		entry = nil
	}

	switch {
	case entry == nil:
		common.HistoryCacheLookups.WithLabelValues("miss").Inc()
	case !common.IsFreshAt(entry.FetchedTime(), common.FreshnessStockHistory, s.now()):
		common.HistoryCacheLookups.WithLabelValues("stale").Inc()
	case !entry.Satisfies(g, size):
		common.HistoryCacheLookups.WithLabelValues("mismatch").Inc()
	default:
		common.HistoryCacheLookups.WithLabelValues("hit").Inc()
		s.logger.Debug().Str("symbol", symbol).Msg("Stock history served from cache")
		return entry.Data, nil
	}

	raw, err := s.stocks.GetTimeSeries(ctx, symbol, g, size)
	if err != nil {
		if entry != nil && len(entry.Data) > 0 {
			return entry.Data, fmt.Errorf("fetch %s history, serving cached copy: %w", symbol, err)
		}
		return nil, fmt.Errorf("fetch %s history: %w", symbol, err)
	}

	if series.ParseStockPayload(raw).Kind == models.GranularityUnknown {
		s.logger.Warn().Str("symbol", symbol).Msg("Unrecognised stock history payload, not caching")
		return raw, nil
	}

	s.writeBack(ctx, &models.StockHistoricalCacheEntry{
		Symbol:      symbol,
		Data:        raw,
		OutputSize:  size,
		Granularity: g,
		FetchedAt:   s.now().UnixMilli(),
	})
	return raw, nil
}

// writeBack stores entry unless the store already holds an entry fetched at
// the same time or later.
func (s *Service) writeBack(ctx context.Context, entry *models.StockHistoricalCacheEntry) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.cache.GetStockHistory(ctx, entry.Symbol)
	if err == nil && existing != nil && existing.FetchedAt >= entry.FetchedAt {
		common.HistoryCacheWrites.WithLabelValues("skipped").Inc()
		s.logger.Debug().Str("symbol", entry.Symbol).Msg("Cached stock history is newer, skipping write-back")
		return
	}

	if err := s.cache.PutStockHistory(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("symbol", entry.Symbol).Msg("Failed to write stock history cache")
		return
	}
	common.HistoryCacheWrites.WithLabelValues("written").Inc()
}

// cryptoSeries bypasses the persisted cache. Identical in-flight requests
// share one provider call.
func (s *Service) cryptoSeries(ctx context.Context, coinID string, days int) (models.PriceSeries, error) {
	key := "crypto:" + coinID + ":" + strconv.Itoa(days) + ":" + s.vsCurrency

	v, err := s.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.crypto.GetMarketChart(ctx, coinID, s.vsCurrency, days)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s history: %w", coinID, err)
	}
	raw, _ := v.([]byte)
	return series.ParseCryptoSeries(raw), nil
}
