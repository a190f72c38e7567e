package entity

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPreferences() Preferences {
	return Preferences{
		Topics:    []string{"AI", "Climate"},
		Sources:   []string{"BBC", "Reuters"},
		Frequency: FrequencyDaily,
		Format:    FormatShort,
	}
}

func TestValidatePreferences(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(p *Preferences)
		wantField string
	}{
		{name: "valid", mutate: func(p *Preferences) {}},
		{name: "no topics", mutate: func(p *Preferences) { p.Topics = nil }, wantField: "topics"},
		{name: "blank topic", mutate: func(p *Preferences) { p.Topics = []string{"AI", "  "} }, wantField: "topics"},
		{name: "topic too long", mutate: func(p *Preferences) { p.Topics = []string{strings.Repeat("a", 101)} }, wantField: "topics"},
		{name: "no sources", mutate: func(p *Preferences) { p.Sources = []string{} }, wantField: "sources"},
		{name: "bad frequency", mutate: func(p *Preferences) { p.Frequency = "monthly" }, wantField: "frequency"},
		{name: "bad format", mutate: func(p *Preferences) { p.Format = "long" }, wantField: "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPreferences()
			tt.mutate(&p)

			err := ValidatePreferences(p)

			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"reader@example.com", false},
		{"", true},
		{"not-an-email", true},
		{"Reader <reader@example.com>", true},
		{strings.Repeat("a", 250) + "@x.io", true},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("Ada"))
	assert.Error(t, ValidateName(" "))
	assert.Error(t, ValidateName(strings.Repeat("n", 101)))
}
