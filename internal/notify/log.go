// Package notify provides price alert notification sinks.
package notify

import (
	"context"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// LogSink writes alerts to the application log. It never fails.
type LogSink struct {
	logger *common.Logger
}

var _ interfaces.NotificationSink = (*LogSink)(nil)

func NewLogSink(logger *common.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Notify(_ context.Context, userID string, a models.PriceAlert) error {
	s.logger.Info().
		Str("user", userID).
		Str("symbol", a.Symbol).
		Str("direction", string(a.Direction)).
		Float64("change_pct", a.ChangePct).
		Float64("price", a.CurrentPrice).
		Msg("Price alert")
	return nil
}

