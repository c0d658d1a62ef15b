package email

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/rassdread/homecheff-app-sub014/pkg/config"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

// ReviewRequest is the content of a review invitation email.
type ReviewRequest struct {
	ToEmail      string
	ToName       string
	ProductTitle string
	OrderNumber  string
	ReviewURL    string
}

// Sender delivers transactional email.
type Sender interface {
	SendReviewRequest(ctx context.Context, req ReviewRequest) error
}

type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridSender sends email through the SendGrid v3 API.
type SendGridSender struct {
	client mailClient
	from   *mail.Email
	logg   *logger.Logger
}

// NewSender returns a SendGrid sender, or a log-only sender when no API key is
// configured.
func NewSender(cfg config.SendgridConfig, logg *logger.Logger) (Sender, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &LogSender{logg: logg}, nil
	}
	return newSendGridSender(sendgrid.NewSendClient(cfg.APIKey), cfg, logg), nil
}

func newSendGridSender(client mailClient, cfg config.SendgridConfig, logg *logger.Logger) *SendGridSender {
	return &SendGridSender{
		client: client,
		from:   mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
		logg:   logg,
	}
}

func (s *SendGridSender) SendReviewRequest(ctx context.Context, req ReviewRequest) error {
	if strings.TrimSpace(req.ToEmail) == "" {
		return errors.New("recipient email required")
	}
	subject := fmt.Sprintf("Hoe was %s? Laat een review achter", req.ProductTitle)
	plain, htmlBody := renderReviewRequest(req)
	message := mail.NewSingleEmail(s.from, subject, mail.NewEmail(req.ToName, req.ToEmail), plain, htmlBody)

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d", resp.StatusCode)
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_number": req.OrderNumber,
		"status_code":  resp.StatusCode,
	})
	s.logg.Info(logCtx, "review request email sent")
	return nil
}

// LogSender only logs outgoing mail. It is used when SendGrid is not configured.
type LogSender struct {
	logg *logger.Logger
}

func (s *LogSender) SendReviewRequest(ctx context.Context, req ReviewRequest) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_number": req.OrderNumber,
		"review_url":   req.ReviewURL,
	})
	s.logg.Info(logCtx, "sendgrid not configured; review request email skipped")
	return nil
}

func renderReviewRequest(req ReviewRequest) (string, string) {
	name := req.ToName
	if name == "" {
		name = "daar"
	}
	plain := fmt.Sprintf(
		"Hoi %s,\n\nBedankt voor je bestelling %s. Wat vond je van %s?\nLaat hier je review achter: %s\n\nGroeten,\nHomeCheff",
		name, req.OrderNumber, req.ProductTitle, req.ReviewURL,
	)
	htmlBody := fmt.Sprintf(
		`<p>Hoi %s,</p><p>Bedankt voor je bestelling %s. Wat vond je van <strong>%s</strong>?</p><p><a href="%s">Schrijf een review</a></p><p>Groeten,<br>HomeCheff</p>`,
		html.EscapeString(name), html.EscapeString(req.OrderNumber), html.EscapeString(req.ProductTitle), html.EscapeString(req.ReviewURL),
	)
	return plain, htmlBody
}
