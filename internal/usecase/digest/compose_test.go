package digest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"news-digest/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrefs() entity.Preferences {
	return entity.Preferences{
		Topics:    []string{"AI", "Climate"},
		Sources:   []string{"BBC"},
		Frequency: entity.FrequencyWeekly,
		Format:    entity.FormatShort,
	}
}

func summarized(title, summary string) *entity.Article {
	a := article(title)
	a.Summary = summary
	return a
}

func TestCompose_Prompt(t *testing.T) {
	long := strings.Repeat("x", 150)
	gen := &recordingGen{reply: "Hi Ann, big week for chips."}
	c := NewComposer(gen, time.Second)
	c.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	tests := []struct {
		mode     entity.DigestMode
		contains []string
		absent   []string
	}{
		{
			mode:     entity.ModeWelcome,
			contains: []string{"first digest", "weekly schedule", "Sunday, March 15"},
			absent:   []string{"changed their preferences"},
		},
		{
			mode:     entity.ModePreferencesUpdated,
			contains: []string{"changed their preferences"},
			absent:   []string{"first digest"},
		},
		{
			mode:   entity.ModeRegular,
			absent: []string{"first digest", "changed their preferences"},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			gen.prompts = nil
			got := c.Compose(context.Background(), []*entity.Article{
				summarized("Chips rally", long),
				summarized("Ice melts", "short"),
			}, testPrefs(), tt.mode, "Ann")

			assert.Equal(t, "Hi Ann, big week for chips.", got)
			require.Len(t, gen.prompts, 1)
			p := gen.prompts[0]
			assert.Contains(t, p, "Ann's news digest")
			assert.Contains(t, p, "AI, Climate")
			assert.Contains(t, p, "concise style")
			assert.Contains(t, p, "1. Chips rally (Reuters): "+strings.Repeat("x", 97)+"...")
			assert.NotContains(t, p, strings.Repeat("x", 98))
			assert.Contains(t, p, "2. Ice melts (Reuters): short")
			assert.Contains(t, p, "placeholders")
			for _, s := range tt.contains {
				assert.Contains(t, p, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, p, s)
			}
		})
	}
}

func TestCompose_Fallback(t *testing.T) {
	c := NewComposer(&recordingGen{err: errors.New("unavailable")}, time.Second)
	articles := []*entity.Article{summarized("Chips rally", "secret detail")}

	tests := []struct {
		mode entity.DigestMode
		want string
	}{
		{entity.ModeRegular, "Here's your concise news digest on AI, Climate. We've gathered 1 articles that match your interests."},
		{entity.ModePreferencesUpdated, "Here's your updated concise news digest on AI, Climate. We've gathered 1 articles that match your new preferences."},
		{entity.ModeWelcome, "Welcome to your first concise news digest on AI, Climate! We've gathered 1 articles that match your interests. You'll receive your next digest on your weekly schedule."},
	}
	for _, tt := range tests {
		got := c.Compose(context.Background(), articles, testPrefs(), tt.mode, "Ann")
		assert.Equal(t, tt.want, got)
		assert.NotContains(t, got, "Chips rally")
		assert.NotContains(t, got, "secret detail")
	}
}

func TestCompose_EmptyOutputFallsBack(t *testing.T) {
	c := NewComposer(&recordingGen{reply: "\n"}, time.Second)
	prefs := testPrefs()
	prefs.Format = entity.FormatDetailed

	got := c.Compose(context.Background(), nil, prefs, entity.ModeRegular, "Ann")

	assert.Equal(t, "Here's your detailed news digest on AI, Climate. We've gathered 0 articles that match your interests.", got)
}
