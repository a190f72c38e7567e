// Package delivery renders digest and account emails and hands them to a
// Mailer. Outside production nothing is sent; the rendered message is only
// logged.
package delivery

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"news-digest/internal/domain/entity"
	"news-digest/internal/observability/metrics"
	"news-digest/internal/service/unsubscribe"

	"github.com/google/uuid"
)

// PreviewMessageID is returned for messages that were rendered but not sent.
const PreviewMessageID = "preview-mode"

// DateLayout is how dates are printed in emails.
const DateLayout = "January 2, 2006"

// ScheduleLayout prints when the next digest goes out.
const ScheduleLayout = "Monday, January 2, 2006 at 3:04 PM"

const (
	subjectWelcome      = "Welcome to News Digest - Your First Personalized Digest"
	subjectUpdated      = "Your Updated News Digest - Based on Your New Preferences"
	subjectConfirmation = "Welcome to News Digest - Subscription Confirmed"
	subjectGoodbye      = "Unsubscribe Confirmation - News Digest"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("email").
	Funcs(template.FuncMap{
		"date":     func(t time.Time) string { return t.Format(DateLayout) },
		"schedule": func(t time.Time) string { return t.Format(ScheduleLayout) },
	}).
	ParseFS(templateFS, "templates/*.html"))

// ErrNoRecipient is returned when the user has no email address.
var ErrNoRecipient = errors.New("recipient email is empty")

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
	// IdempotencyKey lets the provider drop a resend of the same message.
	IdempotencyKey string
}

// Mailer sends a rendered message and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Result is the outcome of a delivery attempt. Delivery never returns an
// error; provider failures are reported here.
type Result struct {
	Success   bool
	MessageID string
	Err       error
}

// Service renders and delivers emails.
type Service struct {
	mailer     Mailer
	signer     *unsubscribe.Signer
	production bool
	now        func() time.Time
}

// NewService creates a delivery Service. Messages are only handed to mailer
// when production is true.
func NewService(mailer Mailer, signer *unsubscribe.Signer, production bool) *Service {
	return &Service{
		mailer:     mailer,
		signer:     signer,
		production: production,
		now:        time.Now,
	}
}

// Subject returns the subject line for a digest of the given mode.
func Subject(mode entity.DigestMode, freq entity.Frequency) string {
	switch mode {
	case entity.ModeWelcome:
		return subjectWelcome
	case entity.ModePreferencesUpdated:
		return subjectUpdated
	}
	if freq == entity.FrequencyWeekly {
		return "Your Weekly News Digest"
	}
	return "Your Daily News Digest"
}

type digestView struct {
	Title              string
	Name               string
	Welcome            bool
	PreferencesUpdated bool
	Frequency          entity.Frequency
	NextDigestAt       time.Time
	Introduction       string
	Articles           []entity.Article
	Topics             string
	PreferencesURL     string
	UnsubscribeURL     string
}

type accountView struct {
	Name           string
	Topics         string
	Sources        string
	Frequency      entity.Frequency
	FormatText     string
	NextDigestAt   time.Time
	PreferencesURL string
	UnsubscribeURL string
	BaseURL        string
}

// Deliver sends a persisted digest to its user. Articles are rendered in
// digest order. Repeated calls for the same digest share an idempotency key,
// so the provider drops a retry of a message it already accepted.
func (s *Service) Deliver(ctx context.Context, user *entity.User, d *entity.Digest, mode entity.DigestMode) Result {
	var key string
	if d != nil && d.ID > 0 {
		key = fmt.Sprintf("digest-%d", d.ID)
	}
	return s.deliver(ctx, user, d, mode, key)
}

// Resend sends a persisted digest again under a fresh idempotency key, for
// an operator who wants the user to receive it a second time.
func (s *Service) Resend(ctx context.Context, user *entity.User, d *entity.Digest, mode entity.DigestMode) Result {
	var key string
	if d != nil && d.ID > 0 {
		key = fmt.Sprintf("digest-%d-resend-%s", d.ID, uuid.NewString())
	}
	return s.deliver(ctx, user, d, mode, key)
}

func (s *Service) deliver(ctx context.Context, user *entity.User, d *entity.Digest, mode entity.DigestMode, key string) Result {
	if user == nil || d == nil {
		return Result{Err: errors.New("deliver: user and digest are required")}
	}
	prefs := user.Preferences

	view := digestView{
		Title:              digestTitle(mode),
		Name:               user.Name,
		Welcome:            mode == entity.ModeWelcome,
		PreferencesUpdated: mode == entity.ModePreferencesUpdated,
		Frequency:          prefs.Frequency,
		NextDigestAt:       prefs.Frequency.NextDigestAt(s.now()),
		Introduction:       d.Summary,
		Articles:           d.Articles,
		Topics:             prefs.TopicsString(),
		PreferencesURL:     s.signer.PreferencesURL(user.ID, user.Email),
		UnsubscribeURL:     s.signer.UnsubscribeURL(user.Email),
	}

	return s.send(ctx, string(mode), "digest.html", view, Message{
		To:             user.Email,
		Subject:        Subject(mode, prefs.Frequency),
		IdempotencyKey: key,
	})
}

// SendConfirmation tells a new subscriber their subscription is active and
// when the first regular digest will arrive.
func (s *Service) SendConfirmation(ctx context.Context, user *entity.User) Result {
	if user == nil {
		return Result{Err: errors.New("send confirmation: user is required")}
	}
	prefs := user.Preferences
	formatText := "short summaries"
	if prefs.Format == entity.FormatDetailed {
		formatText = "detailed analysis"
	}
	view := accountView{
		Name:           user.Name,
		Topics:         prefs.TopicsString(),
		Sources:        strings.Join(prefs.Sources, ", "),
		Frequency:      prefs.Frequency,
		FormatText:     formatText,
		NextDigestAt:   prefs.Frequency.NextDigestAt(s.now()),
		PreferencesURL: s.signer.PreferencesURL(user.ID, user.Email),
		UnsubscribeURL: s.signer.UnsubscribeURL(user.Email),
	}
	return s.send(ctx, "confirmation", "confirmation.html", view, Message{
		To:      user.Email,
		Subject: subjectConfirmation,
	})
}

// SendUnsubscribeConfirmation says goodbye to a user who just unsubscribed.
func (s *Service) SendUnsubscribeConfirmation(ctx context.Context, user *entity.User) Result {
	if user == nil {
		return Result{Err: errors.New("send unsubscribe confirmation: user is required")}
	}
	view := accountView{
		Name:    user.Name,
		BaseURL: s.signer.BaseURL(),
	}
	return s.send(ctx, "goodbye", "goodbye.html", view, Message{
		To:      user.Email,
		Subject: subjectGoodbye,
	})
}

func (s *Service) send(ctx context.Context, kind, tmpl string, view any, msg Message) Result {
	logger := slog.Default()

	if msg.To == "" {
		metrics.RecordEmail(kind, "failed")
		return Result{Err: ErrNoRecipient}
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, tmpl, view); err != nil {
		metrics.RecordEmail(kind, "failed")
		return Result{Err: fmt.Errorf("render %s: %w", tmpl, err)}
	}
	msg.HTML = buf.String()

	if !s.production {
		logger.Info("email not sent outside production",
			slog.String("kind", kind),
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
			slog.Int("html_length", len(msg.HTML)))
		metrics.RecordEmail(kind, "preview")
		return Result{Success: true, MessageID: PreviewMessageID}
	}

	id, err := s.mailer.Send(ctx, msg)
	if err != nil {
		logger.Error("email delivery failed",
			slog.String("kind", kind),
			slog.String("to", msg.To),
			slog.Any("error", err))
		metrics.RecordEmail(kind, "failed")
		return Result{Err: err}
	}

	logger.Info("email sent",
		slog.String("kind", kind),
		slog.String("to", msg.To),
		slog.String("message_id", id))
	metrics.RecordEmail(kind, "sent")
	return Result{Success: true, MessageID: id}
}

func digestTitle(mode entity.DigestMode) string {
	switch mode {
	case entity.ModeWelcome:
		return "Welcome to News Digest!"
	case entity.ModePreferencesUpdated:
		return "Your Updated News Digest"
	}
	return "Your Personalized News Digest"
}
