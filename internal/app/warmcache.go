package app

import (
	"context"
	"sort"
	"time"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// warmStockHistory refreshes the stock history cache for every stock held by
// any user, so the first valuation request after a quiet period is fast.
// Crypto series are not cached and are skipped. Returns the symbols warmed.
func warmStockHistory(ctx context.Context, holdings interfaces.HoldingStore, historyService interfaces.HistoryService, r models.ValuationRange, logger *common.Logger) []string {
	start := time.Now()

	users, err := holdings.ListUsers(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Warm cache: failed to list users")
		return nil
	}

	seen := make(map[string]bool)
	for _, userID := range users {
		list, err := holdings.ListHoldings(ctx, userID)
		if err != nil {
			logger.Warn().Err(err).Str("user", userID).Msg("Warm cache: failed to list holdings")
			continue
		}
		for _, h := range list {
			if h.AssetType == models.AssetStock {
				seen[h.SeriesID()] = true
			}
		}
	}

	if len(seen) == 0 {
		logger.Info().Msg("Warm cache: no stock holdings, skipping")
		return nil
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	batch := historyService.WarmStockHistory(ctx, symbols, r)

	logger.Info().
		Int("symbols", len(symbols)).
		Int("failed", len(batch.Failed)).
		Str("range", string(r)).
		Dur("elapsed", time.Since(start)).
		Msg("Warm cache: complete")
	return symbols
}
