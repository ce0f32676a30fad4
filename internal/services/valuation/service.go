// Package valuation builds the time-aligned portfolio value series.
package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
	"github.com/bobmcallan/pulse/internal/series"
)

// Service implements interfaces.ValuationService
type Service struct {
	holdings interfaces.HoldingStore
	history  interfaces.HistoryService
	logger   *common.Logger
	now      func() time.Time // injectable clock for testing
}

var _ interfaces.ValuationService = (*Service)(nil)

// NewService creates a new valuation service
func NewService(holdings interfaces.HoldingStore, history interfaces.HistoryService, logger *common.Logger) *Service {
	return &Service{
		holdings: holdings,
		history:  history,
		logger:   logger,
		now:      time.Now,
	}
}

// GetValuation returns the user's portfolio value on every date of the
// range's calendar. Assets whose history could not be fetched are listed in
// FailedSymbols and IsError is set; the series still includes the rest.
func (s *Service) GetValuation(ctx context.Context, userID string, r models.ValuationRange) (*models.ValuationResult, error) {
	start := time.Now()

	holdings, err := s.holdings.ListHoldings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	now := s.now().UTC()
	result := &models.ValuationResult{
		Range:      r,
		Points:     []models.ValuationPoint{},
		ComputedAt: now,
	}
	if len(holdings) == 0 {
		return result, nil
	}

	calendar := series.BuildCalendar(now, r)

	assets := make([]models.AssetRef, 0, len(holdings))
	for _, h := range holdings {
		assets = append(assets, h.AssetRef())
	}

	fetchStart := time.Now()
	batch := s.history.FetchSeries(ctx, assets, r)
	s.logger.Debug().Dur("elapsed", time.Since(fetchStart)).Int("assets", len(batch.Series)).Msg("GetValuation: history fetch complete")

	result.Points = Aggregate(holdings, batch.Series, calendar)
	result.FailedSymbols = batch.Failed
	result.IsError = len(batch.Failed) > 0

	common.ValuationDuration.WithLabelValues(string(r)).Observe(time.Since(start).Seconds())
	s.logger.Info().
		Str("user", userID).
		Str("range", string(r)).
		Int("holdings", len(holdings)).
		Int("points", len(result.Points)).
		Int("failed", len(result.FailedSymbols)).
		Dur("elapsed", time.Since(start)).
		Msg("Valuation computed")

	return result, nil
}
