// Package subscription serves the public subscriber endpoints: sign-up,
// preference lookup and update, and unsubscribe.
package subscription

import (
	"time"

	"news-digest/internal/domain/entity"
)

// PreferencesDTO is the JSON form of entity.Preferences.
type PreferencesDTO struct {
	Topics    []string `json:"topics"`
	Sources   []string `json:"sources"`
	Frequency string   `json:"frequency"`
	Format    string   `json:"format"`
}

func (p PreferencesDTO) toEntity() entity.Preferences {
	return entity.Preferences{
		Topics:    p.Topics,
		Sources:   p.Sources,
		Frequency: entity.Frequency(p.Frequency),
		Format:    entity.Format(p.Format),
	}
}

func preferencesDTO(p entity.Preferences) PreferencesDTO {
	return PreferencesDTO{
		Topics:    nonNil(p.Topics),
		Sources:   nonNil(p.Sources),
		Frequency: string(p.Frequency),
		Format:    string(p.Format),
	}
}

// UserDTO is a subscriber as returned by the API.
type UserDTO struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	Preferences PreferencesDTO `json:"preferences"`
	CreatedAt   time.Time      `json:"created_at"`
}

func userDTO(u *entity.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Preferences: preferencesDTO(u.Preferences),
		CreatedAt:   u.CreatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
