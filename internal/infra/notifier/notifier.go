// Package notifier posts operational alerts about digest batches to chat
// webhooks (Slack and Discord). Alerts are best effort: a failed post is
// logged by the caller and never affects digest delivery.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	env "news-digest/pkg/config"
)

// maxListedFailures caps the per-user lines in one alert.
const maxListedFailures = 10

// Failure is one user whose digest failed in a batch.
type Failure struct {
	UserID string
	Stage  string
	Reason string
}

// Report summarizes one scheduled task run.
type Report struct {
	Task       string
	Users      int
	Sent       int
	NoArticles int
	Duplicate  int
	Failed     int
	Failures   []Failure
	// Err is set when the task itself failed (as opposed to single users).
	Err      string
	Duration time.Duration
}

// Title is the one-line headline used as the fallback text.
func (r Report) Title() string {
	if r.Err != "" {
		return fmt.Sprintf("news-digest %s failed", r.Task)
	}
	return fmt.Sprintf("news-digest %s: %d of %d digests failed", r.Task, r.Failed, r.Users)
}

// Body renders the counts and up to maxListedFailures failures as plain
// lines.
func (r Report) Body() string {
	var b strings.Builder
	if r.Err != "" {
		fmt.Fprintf(&b, "error: %s\n", r.Err)
	}
	fmt.Fprintf(&b, "users: %d, sent: %d, no articles: %d, duplicate: %d, failed: %d (%s)\n",
		r.Users, r.Sent, r.NoArticles, r.Duplicate, r.Failed, r.Duration.Round(time.Second))
	for i, f := range r.Failures {
		if i == maxListedFailures {
			fmt.Fprintf(&b, "... and %d more\n", len(r.Failures)-maxListedFailures)
			break
		}
		fmt.Fprintf(&b, "- %s at %s: %s\n", f.UserID, f.Stage, f.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Notifier delivers a Report to one channel.
type Notifier interface {
	Notify(ctx context.Context, r Report) error
	Name() string
}

// Multi fans a report out to every channel and joins the errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, r Report) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Name() string { return "multi" }

// FromEnv builds the channels configured through SLACK_WEBHOOK_URL and
// DISCORD_WEBHOOK_URL. Invalid URLs are logged and skipped. The result is
// empty when no channel is configured.
func FromEnv(logger *slog.Logger) Multi {
	timeout := env.GetEnvDuration("ALERT_WEBHOOK_TIMEOUT", 10*time.Second)
	var m Multi
	if u := env.GetEnvString("SLACK_WEBHOOK_URL", ""); u != "" {
		if err := validateWebhookURL(u, "hooks.slack.com", "/services/"); err != nil {
			logger.Warn("slack alerts disabled", slog.Any("error", err))
		} else {
			m = append(m, NewSlack(u, timeout))
		}
	}
	if u := env.GetEnvString("DISCORD_WEBHOOK_URL", ""); u != "" {
		if err := validateWebhookURL(u, "discord.com", "/api/webhooks/"); err != nil {
			logger.Warn("discord alerts disabled", slog.Any("error", err))
		} else {
			m = append(m, NewDiscord(u, timeout))
		}
	}
	return m
}

func validateWebhookURL(raw, host, pathPrefix string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "https" {
		return errors.New("webhook url must use https")
	}
	if u.Host != host {
		return fmt.Errorf("unexpected webhook host %q", u.Host)
	}
	if !strings.HasPrefix(u.Path, pathPrefix) {
		return fmt.Errorf("unexpected webhook path %q", u.Path)
	}
	return nil
}
