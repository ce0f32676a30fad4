package alert

import (
	"context"
	"fmt"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// Service implements AlertService
type Service struct {
	watchlist    interfaces.WatchlistStore
	quotes       interfaces.QuoteService
	sinks        []interfaces.NotificationSink
	logger       *common.Logger
	thresholdPct float64
	notified     *notifiedTracker
}

var _ interfaces.AlertService = (*Service)(nil)

// NewService creates a new alert service
func NewService(watchlist interfaces.WatchlistStore, quotes interfaces.QuoteService, sinks []interfaces.NotificationSink, thresholdPct float64, logger *common.Logger) *Service {
	return &Service{
		watchlist:    watchlist,
		quotes:       quotes,
		sinks:        sinks,
		logger:       logger,
		thresholdPct: thresholdPct,
		notified:     newNotifiedTracker(),
	}
}

// Scan quotes the user's watchlist, detects significant moves and sends
// each alert to every sink. A symbol is marked notified only when every
// sink accepted its alert, so a failed delivery is retried on the next scan.
func (s *Service) Scan(ctx context.Context, userID string) ([]models.PriceAlert, error) {
	items, err := s.watchlist.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlist: %w", err)
	}
	if len(items) == 0 {
		return []models.PriceAlert{}, nil
	}

	refs := make([]models.AssetRef, 0, len(items))
	for _, item := range items {
		refs = append(refs, item.AssetRef())
	}
	batch := s.quotes.GetQuotes(ctx, refs)

	quoted := make([]models.WatchlistQuote, 0, len(items))
	for _, item := range items {
		q, ok := batch.Quotes[item.AssetKey()]
		if !ok {
			s.logger.Debug().Str("user", userID).Str("symbol", item.Symbol).Msg("No quote for watchlist item")
			continue
		}
		quoted = append(quoted, models.WatchlistQuote{
			Item:         item,
			Name:         item.DisplayName(),
			ChangePct:    q.ChangePct,
			CurrentPrice: q.Price,
		})
	}

	alerts := DetectSignificantPriceChanges(nil, quoted, s.thresholdPct, s.notified.snapshot(userID))
	for _, a := range alerts {
		if s.dispatch(ctx, userID, a) {
			s.notified.mark(userID, a.Symbol)
		}
	}

	if len(alerts) > 0 {
		s.logger.Info().Str("user", userID).Int("alerts", len(alerts)).Float64("threshold_pct", s.thresholdPct).Msg("Price alerts detected")
	}
	return alerts, nil
}

// dispatch reports whether every sink accepted the alert.
func (s *Service) dispatch(ctx context.Context, userID string, a models.PriceAlert) bool {
	ok := true
	for _, sink := range s.sinks {
		if err := sink.Notify(ctx, userID, a); err != nil {
			ok = false
			common.AlertsDispatched.WithLabelValues(sink.Name(), "error").Inc()
			s.logger.Warn().Err(err).Str("sink", sink.Name()).Str("user", userID).Str("symbol", a.Symbol).Msg("Alert delivery failed")
			continue
		}
		common.AlertsDispatched.WithLabelValues(sink.Name(), "sent").Inc()
	}
	return ok
}

// ResetNotified forgets every notified symbol for every user.
func (s *Service) ResetNotified() {
	s.notified.reset()
	s.logger.Info().Msg("Notified symbols reset")
}
