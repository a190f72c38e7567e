package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"news-digest/internal/domain/entity"
	"news-digest/internal/observability/metrics"
	"news-digest/internal/utils/text"
)

const excerptChars = 100

var errEmptyOutput = errors.New("generator returned empty output")

// Composer writes the personalized introduction of a digest.
type Composer struct {
	gen     Generator
	timeout time.Duration
	now     func() time.Time
}

// NewComposer creates a Composer. timeout bounds the single upstream call.
func NewComposer(gen Generator, timeout time.Duration) *Composer {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Composer{gen: gen, timeout: timeout, now: time.Now}
}

// Compose returns an introduction for articles. It never fails: when the
// generator is unavailable the result of FallbackIntroduction is returned.
func (c *Composer) Compose(
	ctx context.Context,
	articles []*entity.Article,
	prefs entity.Preferences,
	mode entity.DigestMode,
	userName string,
) string {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.gen.Generate(callCtx, c.prompt(articles, prefs, mode, userName))
	if err == nil && strings.TrimSpace(out) == "" {
		err = errEmptyOutput
	}
	if err != nil {
		slog.Default().Warn("introduction generation failed, using fallback",
			slog.String("mode", string(mode)),
			slog.Any("error", err))
		metrics.RecordIntroduction(false)
		return FallbackIntroduction(prefs, mode, len(articles))
	}

	metrics.RecordIntroduction(true)
	return strings.TrimSpace(out)
}

// FallbackIntroduction is built only from preferences and the article count.
func FallbackIntroduction(prefs entity.Preferences, mode entity.DigestMode, articleCount int) string {
	format := prefs.Format.Descriptor()
	topics := prefs.TopicsString()

	switch mode {
	case entity.ModeWelcome:
		return fmt.Sprintf("Welcome to your first %s news digest on %s! We've gathered %d articles that match your interests. You'll receive your next digest on your %s schedule.",
			format, topics, articleCount, prefs.Frequency)
	case entity.ModePreferencesUpdated:
		return fmt.Sprintf("Here's your updated %s news digest on %s. We've gathered %d articles that match your new preferences.",
			format, topics, articleCount)
	}
	return fmt.Sprintf("Here's your %s news digest on %s. We've gathered %d articles that match your interests.",
		format, topics, articleCount)
}

func (c *Composer) prompt(articles []*entity.Article, prefs entity.Preferences, mode entity.DigestMode, userName string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a personalized introduction for %s's news digest.\n", userName)
	fmt.Fprintf(&b, "The reader is interested in: %s.\n", prefs.TopicsString())
	fmt.Fprintf(&b, "The digest contains %d articles and should be written in a %s style.\n", len(articles), prefs.Format.Descriptor())

	switch mode {
	case entity.ModeWelcome:
		next := prefs.Frequency.NextDigestAt(c.now())
		fmt.Fprintf(&b, "This is the reader's first digest. Welcome them and mention that regular digests arrive on a %s schedule, the next one on %s.\n",
			prefs.Frequency, next.Format("Monday, January 2"))
	case entity.ModePreferencesUpdated:
		b.WriteString("The reader has just changed their preferences. Explain that this digest reflects their new selection.\n")
	}

	b.WriteString("\nArticles:\n")
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. %s (%s): %s\n", i+1, a.Title, a.Source, text.TruncateWithSuffix(a.Summary, excerptChars, "..."))
	}

	b.WriteString(`
Rules:
- Refer to the articles above by their actual titles or content.
- Do not use placeholders such as [Name], [Topic] or "Article 1".
- Keep it under 150 words and address the reader by name.
`)
	return b.String()
}
