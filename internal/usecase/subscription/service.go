package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"news-digest/internal/domain/entity"
	"news-digest/internal/repository"
	"news-digest/internal/usecase/delivery"

	"github.com/google/uuid"
)

// JobScheduler queues a digest for a user after delay.
type JobScheduler interface {
	Enqueue(ctx context.Context, userID string, mode entity.DigestMode, delay time.Duration) error
}

// AccountMailer sends the account emails around a subscription.
type AccountMailer interface {
	SendConfirmation(ctx context.Context, user *entity.User) delivery.Result
	SendUnsubscribeConfirmation(ctx context.Context, user *entity.User) delivery.Result
}

// TokenVerifier checks unsubscribe tokens.
type TokenVerifier interface {
	Verify(email, token string) bool
}

// Service manages subscribers.
type Service struct {
	Users  repository.UserRepository
	Jobs   JobScheduler
	Mail   AccountMailer
	Tokens TokenVerifier
	// WelcomeDelay postpones the welcome digest after sign-up.
	WelcomeDelay time.Duration

	now func() time.Time
}

// NewService creates a subscription Service.
func NewService(users repository.UserRepository, jobs JobScheduler, mail AccountMailer, tokens TokenVerifier, welcomeDelay time.Duration) *Service {
	return &Service{
		Users:        users,
		Jobs:         jobs,
		Mail:         mail,
		Tokens:       tokens,
		WelcomeDelay: welcomeDelay,
		now:          time.Now,
	}
}

// Subscribe registers a new subscriber, sends the confirmation email and
// queues the welcome digest. Returns entity.ErrAlreadyExists when the email
// is taken.
func (s *Service) Subscribe(ctx context.Context, email, name string, prefs entity.Preferences) (*entity.User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	prefs = normalizePreferences(prefs)

	if err := entity.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := entity.ValidateName(name); err != nil {
		return nil, err
	}
	if err := entity.ValidatePreferences(prefs); err != nil {
		return nil, err
	}

	if _, err := s.Users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("subscribe %s: %w", email, entity.ErrAlreadyExists)
	} else if !errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("look up subscriber: %w", err)
	}

	user := &entity.User{
		ID:          uuid.NewString(),
		Email:       email,
		Name:        name,
		Preferences: prefs,
		CreatedAt:   s.now(),
	}
	if err := s.Users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create subscriber: %w", err)
	}

	logger := slog.Default().With(slog.String("user_id", user.ID))
	logger.Info("subscriber created", slog.Int("topics", len(prefs.Topics)))

	// the subscription is already committed; mail and job failures are logged
	if res := s.Mail.SendConfirmation(context.WithoutCancel(ctx), user); !res.Success {
		logger.Warn("confirmation email not sent", slog.Any("error", res.Err))
	}
	if err := s.Jobs.Enqueue(ctx, user.ID, entity.ModeWelcome, s.WelcomeDelay); err != nil {
		logger.Error("failed to queue welcome digest", slog.Any("error", err))
	}

	return user, nil
}

// GetByEmail returns the subscriber with email, or entity.ErrNotFound.
func (s *Service) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	email = normalizeEmail(email)
	if err := entity.ValidateEmail(email); err != nil {
		return nil, err
	}
	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return user, nil
}

// UpdatePreferences replaces a subscriber's preferences and queues a digest
// reflecting them.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, prefs entity.Preferences) (*entity.User, error) {
	prefs = normalizePreferences(prefs)
	if err := entity.ValidatePreferences(prefs); err != nil {
		return nil, err
	}

	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	if err := s.Users.UpdatePreferences(ctx, userID, prefs); err != nil {
		return nil, fmt.Errorf("update preferences: %w", err)
	}
	user.Preferences = prefs

	if err := s.Jobs.Enqueue(ctx, userID, entity.ModePreferencesUpdated, 0); err != nil {
		slog.Default().Error("failed to queue preferences digest",
			slog.String("user_id", userID),
			slog.Any("error", err))
	}
	return user, nil
}

// Unsubscribe verifies token, says goodbye and deletes the subscriber.
func (s *Service) Unsubscribe(ctx context.Context, email, token string) error {
	email = normalizeEmail(email)
	if err := entity.ValidateEmail(email); err != nil {
		return err
	}
	if token == "" || !s.Tokens.Verify(email, token) {
		return ErrInvalidToken
	}

	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get subscriber: %w", err)
	}

	if res := s.Mail.SendUnsubscribeConfirmation(context.WithoutCancel(ctx), user); !res.Success {
		slog.Default().Warn("unsubscribe confirmation not sent",
			slog.String("user_id", user.ID),
			slog.Any("error", res.Err))
	}

	if err := s.Users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	slog.Default().Info("subscriber deleted", slog.String("user_id", user.ID))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizePreferences trims entries and drops duplicates, keeping order.
func normalizePreferences(p entity.Preferences) entity.Preferences {
	p.Topics = uniqueTrimmed(p.Topics)
	p.Sources = uniqueTrimmed(p.Sources)
	return p
}

func uniqueTrimmed(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
