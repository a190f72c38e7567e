package notifier

import (
	"context"
	"time"

	"news-digest/internal/utils/text"
)

const (
	maxDiscordTitle       = 256
	maxDiscordDescription = 4096

	colorRed    = 0xE74C3C
	colorOrange = 0xE67E22
)

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

// Discord posts reports to a channel webhook as a single embed.
type Discord struct {
	webhook
	now func() time.Time
}

// NewDiscord creates a Discord notifier for webhookURL.
func NewDiscord(webhookURL string, timeout time.Duration) *Discord {
	return &Discord{webhook: newWebhook(webhookURL, timeout), now: time.Now}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Notify(ctx context.Context, r Report) error {
	color := colorOrange
	if r.Err != "" {
		color = colorRed
	}
	return d.post(ctx, discordPayload{Embeds: []discordEmbed{{
		Title:       text.TruncateWithSuffix(r.Title(), maxDiscordTitle, "..."),
		Description: text.TruncateWithSuffix(r.Body(), maxDiscordDescription, "..."),
		Color:       color,
		Timestamp:   d.now().UTC().Format(time.RFC3339),
	}}})
}
