package notify

import (
	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
)

// FromConfig builds the configured sinks. The log sink is always present.
func FromConfig(cfg common.AlertsConfig, logger *common.Logger) []interfaces.NotificationSink {
	sinks := []interfaces.NotificationSink{NewLogSink(logger)}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhookSink(cfg.WebhookURL, nil))
	}
	if cfg.Email.Enabled() {
		sinks = append(sinks, NewEmailSink(cfg.Email, logger))
	}
	return sinks
}
