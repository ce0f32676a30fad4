package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// jobTimeout bounds a single scheduled run.
const jobTimeout = 5 * time.Minute

// StartScheduler registers the alert scan, notified reset and cache warm
// jobs and starts the cron runner.
func (a *App) StartScheduler() error {
	c := cron.New()

	jobs := []struct {
		name     string
		schedule string
		run      func(ctx context.Context)
	}{
		{"alert-scan", a.Config.Alerts.Schedule, func(ctx context.Context) {
			scanAlerts(ctx, a.Storage.WatchlistStore(), a.AlertService, a.Logger)
		}},
		{"alert-reset", a.Config.Alerts.ResetSchedule, func(context.Context) {
			a.AlertService.ResetNotified()
		}},
		{"history-warm", a.Config.Valuation.WarmSchedule, func(ctx context.Context) {
			warmStockHistory(ctx, a.Storage.HoldingStore(), a.HistoryService, a.warmRange(), a.Logger)
		}},
	}

	for _, job := range jobs {
		if job.schedule == "" {
			a.Logger.Info().Str("job", job.name).Msg("Scheduler: job disabled")
			continue
		}
		run := job.run
		name := job.name
		if _, err := c.AddFunc(job.schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			a.Logger.Debug().Str("job", name).Msg("Scheduler: running job")
			run(ctx)
		}); err != nil {
			return fmt.Errorf("invalid schedule %q for %s: %w", job.schedule, name, err)
		}
		a.Logger.Info().Str("job", name).Str("schedule", job.schedule).Msg("Scheduler: job registered")
	}

	c.Start()
	a.scheduler = c
	return nil
}

// StopScheduler stops the cron runner and waits for running jobs.
func (a *App) StopScheduler() {
	if a.scheduler == nil {
		return
	}
	<-a.scheduler.Stop().Done()
	a.scheduler = nil
	a.Logger.Info().Msg("Scheduler: stopped")
}

// warmRange is the range whose stock history the warm job keeps fresh.
func (a *App) warmRange() models.ValuationRange {
	r, err := models.ParseValuationRange(a.Config.Valuation.DefaultRange)
	if err != nil {
		return models.Range30D
	}
	return r
}

// scanAlerts runs an alert scan for every user with a watchlist and
// returns the number of alerts raised.
func scanAlerts(ctx context.Context, watchlists interfaces.WatchlistStore, alerts interfaces.AlertService, logger *common.Logger) int {
	start := time.Now()

	users, err := watchlists.ListUsers(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Alert scan: failed to list users")
		return 0
	}

	total := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		raised, err := alerts.Scan(ctx, userID)
		if err != nil {
			logger.Warn().Err(err).Str("user", userID).Msg("Alert scan: failed")
			continue
		}
		total += len(raised)
	}

	logger.Info().
		Int("users", len(users)).
		Int("alerts", total).
		Dur("elapsed", time.Since(start)).
		Msg("Alert scan: complete")
	return total
}
