// Package notifier formats buyback records into alert emails.
package notifier

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/ternarybob/setwatch/internal/common"
	"github.com/ternarybob/setwatch/internal/interfaces"
	"github.com/ternarybob/setwatch/internal/models"
	"github.com/ternarybob/setwatch/internal/services/mailer"
)

// Service renders and sends one email per record
type Service struct {
	sender   interfaces.MailSender
	logger   arbor.ILogger
	from     string
	fromName string
	to       []string
	dryRun   bool
	location *time.Location
	markdown goldmark.Markdown
	now      func() time.Time
}

// NewService creates a notifier. In dry-run mode messages are logged instead of sent.
func NewService(sender interfaces.MailSender, config *common.Config, loc *time.Location, logger arbor.ILogger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		sender:   sender,
		logger:   logger,
		from:     config.SMTP.From,
		fromName: config.SMTP.FromName,
		to:       config.SMTP.To,
		dryRun:   config.Watch.DryRun,
		location: loc,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithXHTML()),
		),
		now: time.Now,
	}
}

// Notify sends the alert for record. Any rejection or connection failure is a delivery error.
func (s *Service) Notify(ctx context.Context, record *models.BuybackRecord) error {
	subject := Subject(record.Symbol, s.subjectDate(record))
	body := Body(record, s.location)

	if s.dryRun {
		s.logger.Info().
			Str("news_id", record.NewsID).
			Str("subject", subject).
			Strs("to", s.to).
			Msg("DRY_RUN enabled, email not sent")
		s.logger.Info().Msgf("Email body:\n%s", body)
		return nil
	}

	msg, err := mailer.Compose(mailer.Message{
		From:     s.from,
		FromName: s.fromName,
		To:       s.to,
		Subject:  subject,
		Text:     body,
		HTML:     s.renderHTML(body),
		Date:     s.now(),
	})
	if err != nil {
		return models.DeliveryError(fmt.Errorf("failed to compose email: %w", err)).WithNewsID(record.NewsID)
	}

	if err := s.sender.Send(ctx, s.to, msg); err != nil {
		return models.DeliveryError(err).WithNewsID(record.NewsID)
	}

	s.logger.Info().
		Str("news_id", record.NewsID).
		Str("subject", subject).
		Int("fields", record.PresentCount()).
		Msg("Notification sent")
	return nil
}

// subjectDate prefers the report date, then the publish time, then today, all in local exchange time
func (s *Service) subjectDate(record *models.BuybackRecord) time.Time {
	switch {
	case record.Has(models.FieldReportDate):
		return record.ReportDate
	case !record.Published.IsZero():
		return record.Published.In(s.location)
	default:
		return s.now().In(s.location)
	}
}

func (s *Service) renderHTML(markdown string) string {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(markdown), &buf); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to convert markdown to HTML")
		return emailTemplate("<pre>" + html.EscapeString(markdown) + "</pre>")
	}
	return emailTemplate(buf.String())
}
