package notifier

import (
	"context"
	"time"

	"news-digest/internal/utils/text"
)

// Slack section blocks are limited to 3000 characters.
const maxSlackSection = 3000

type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Slack posts reports to an incoming webhook using Block Kit.
type Slack struct {
	webhook
}

// NewSlack creates a Slack notifier for webhookURL.
func NewSlack(webhookURL string, timeout time.Duration) *Slack {
	return &Slack{webhook: newWebhook(webhookURL, timeout)}
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Notify(ctx context.Context, r Report) error {
	return s.post(ctx, slackPayload{
		Text: r.Title(),
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: text.Truncate(r.Title(), 150)}},
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: "```" + text.TruncateWithSuffix(r.Body(), maxSlackSection-6, "...") + "```"}},
		},
	})
}
