package repository

import (
	"context"

	"news-digest/internal/domain/entity"
)

// UserRepository stores digest subscribers.
// Get and GetByEmail return entity.ErrNotFound when no row matches.
// Create returns entity.ErrAlreadyExists when the email is taken.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	Get(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	ListByFrequency(ctx context.Context, freq entity.Frequency) ([]*entity.User, error)
	UpdatePreferences(ctx context.Context, id string, prefs entity.Preferences) error
	Delete(ctx context.Context, id string) error
}
