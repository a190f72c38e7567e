package entity

import (
	"strings"
	"time"
)

// Frequency is how often a subscriber receives a regular digest.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// Format controls how verbose the digest introduction is.
type Format string

const (
	FormatShort    Format = "short"
	FormatDetailed Format = "detailed"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f == FormatShort || f == FormatDetailed
}

// Descriptor returns the wording used when talking about the format to a model
// or a reader ("concise" or "detailed").
func (f Format) Descriptor() string {
	if f == FormatDetailed {
		return "detailed"
	}
	return "concise"
}

// Preferences are replaced wholesale on every update.
type Preferences struct {
	Topics    []string  `json:"topics"`
	Sources   []string  `json:"sources"`
	Frequency Frequency `json:"frequency"`
	Format    Format    `json:"format"`
}

// TopicsString joins topics for display ("AI, Climate").
func (p Preferences) TopicsString() string {
	return strings.Join(p.Topics, ", ")
}

// Clone returns a copy that shares no slices with p.
func (p Preferences) Clone() Preferences {
	c := p
	c.Topics = append([]string(nil), p.Topics...)
	c.Sources = append([]string(nil), p.Sources...)
	return c
}

// User is a digest subscriber. Email is unique and is the lookup key for
// preference and unsubscribe flows.
type User struct {
	ID          string
	Email       string
	Name        string
	Preferences Preferences
	CreatedAt   time.Time
}
