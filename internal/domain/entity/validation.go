package entity

import (
	"fmt"
	"net/mail"
	"strings"
)

const (
	maxEmailLength = 254
	maxNameLength  = 100
	maxTopics      = 20
	maxTopicLength = 100
)

// ValidateEmail checks that email is a bare RFC 5322 address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if len(email) > maxEmailLength {
		return &ValidationError{
			Field:   "email",
			Message: fmt.Sprintf("email must not exceed %d characters", maxEmailLength),
		}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "email format is invalid"}
	}
	return nil
}

// ValidateName checks the subscriber display name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if len([]rune(name)) > maxNameLength {
		return &ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("name must not exceed %d characters", maxNameLength),
		}
	}
	return nil
}

// ValidatePreferences enforces the subscription-boundary rules: at least one
// topic and one source, known frequency and format.
func ValidatePreferences(p Preferences) error {
	if len(p.Topics) == 0 {
		return &ValidationError{Field: "topics", Message: "at least one topic is required"}
	}
	if len(p.Topics) > maxTopics {
		return &ValidationError{
			Field:   "topics",
			Message: fmt.Sprintf("no more than %d topics are allowed", maxTopics),
		}
	}
	for _, t := range p.Topics {
		t = strings.TrimSpace(t)
		if t == "" {
			return &ValidationError{Field: "topics", Message: "topics must not be blank"}
		}
		if len([]rune(t)) > maxTopicLength {
			return &ValidationError{
				Field:   "topics",
				Message: fmt.Sprintf("topic must not exceed %d characters", maxTopicLength),
			}
		}
	}
	if len(p.Sources) == 0 {
		return &ValidationError{Field: "sources", Message: "at least one source is required"}
	}
	for _, s := range p.Sources {
		if strings.TrimSpace(s) == "" {
			return &ValidationError{Field: "sources", Message: "sources must not be blank"}
		}
	}
	if !p.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Message: "frequency must be daily or weekly"}
	}
	if !p.Format.Valid() {
		return &ValidationError{Field: "format", Message: "format must be short or detailed"}
	}
	return nil
}
