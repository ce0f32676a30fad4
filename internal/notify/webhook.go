package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// WebhookSink POSTs each alert as JSON to a fixed URL.
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

var _ interfaces.NotificationSink = (*WebhookSink)(nil)

type webhookPayload struct {
	UserID  string            `json:"user_id"`
	Subject string            `json:"subject"`
	Alert   models.PriceAlert `json:"alert"`
	SentAt  time.Time         `json:"sent_at"`
}

// NewWebhookSink creates a webhook sink. A nil client gets a 10s timeout.
func NewWebhookSink(url string, httpClient *http.Client) *WebhookSink {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSink{url: url, httpClient: httpClient}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Notify(ctx context.Context, userID string, a models.PriceAlert) error {
	body, err := json.Marshal(webhookPayload{
		UserID:  userID,
		Subject: formatSubject(a),
		Alert:   a,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
