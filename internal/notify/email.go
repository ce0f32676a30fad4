package notify

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/interfaces"
	"github.com/bobmcallan/pulse/internal/models"
)

// mailSender is the part of *sendgrid.Client the sink uses.
type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailSink sends alerts through SendGrid to a single configured address.
type EmailSink struct {
	client mailSender
	config common.EmailConfig
	logger *common.Logger
}

var _ interfaces.NotificationSink = (*EmailSink)(nil)

// NewEmailSink creates a SendGrid-backed email sink.
func NewEmailSink(config common.EmailConfig, logger *common.Logger) *EmailSink {
	return &EmailSink{
		client: sendgrid.NewSendClient(config.APIKey),
		config: config,
		logger: logger,
	}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Notify(ctx context.Context, userID string, a models.PriceAlert) error {
	subject := formatSubject(a)
	text := formatBody(a)
	htmlContent := fmt.Sprintf("<p>%s</p>", html.EscapeString(text))

	from := mail.NewEmail(s.config.FromName, s.config.FromEmail)
	to := mail.NewEmail("", s.config.To)
	message := mail.NewSingleEmail(from, subject, to, text, htmlContent)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("email service error: status %d, body: %s", resp.StatusCode, resp.Body)
	}

	s.logger.Debug().Str("user", userID).Str("symbol", a.Symbol).Int("status_code", resp.StatusCode).Msg("Alert email sent")
	return nil
}
