package infrastructure

import (
	"context"

	"auctioneer/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// LogEmailSender writes outbound emails to the log instead of a provider.
// Used in development and as the fallback when no provider is configured.
// One-time codes are deliberately not logged outside development.
type LogEmailSender struct {
	logPayload bool
}

// NewLogEmailSender creates a new logging email sender. logPayload controls
// whether template data (including one-time codes) is written to the log.
func NewLogEmailSender(logPayload bool) interfaces.EmailSender {
	return &LogEmailSender{logPayload: logPayload}
}

// Send logs the email instead of dispatching it
func (s *LogEmailSender) Send(ctx context.Context, toAddress string, template interfaces.EmailTemplate, data map[string]any) error {
	fields := log.Fields{
		"to":       toAddress,
		"template": template,
	}
	if s.logPayload {
		fields["data"] = data
	}
	log.WithFields(fields).Info("Email dispatched")
	return nil
}
