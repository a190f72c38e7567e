// Package mailer implements delivery.Mailer.
//
// HTTPMailer talks to a transactional email API; LogMailer only logs and is
// meant for local development.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"news-digest/internal/config"
	"news-digest/internal/usecase/delivery"

	"github.com/google/uuid"
)

// New builds the mailer selected by cfg.Provider.
func New(cfg config.MailConfig) (delivery.Mailer, error) {
	switch cfg.Provider {
	case config.MailProviderHTTP:
		return NewHTTPMailer(HTTPConfig{
			APIURL:            cfg.APIURL,
			APIKey:            cfg.APIKey,
			From:              cfg.From,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}), nil
	case config.MailProviderLog, "":
		return NewLogMailer(slog.Default()), nil
	}
	return nil, fmt.Errorf("unsupported mail provider %q", cfg.Provider)
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send logs msg and returns a random message id.
func (m *LogMailer) Send(_ context.Context, msg delivery.Message) (string, error) {
	id := "log-" + uuid.NewString()
	m.logger.Info("email logged",
		slog.String("message_id", id),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("html_length", len(msg.HTML)))
	return id, nil
}
