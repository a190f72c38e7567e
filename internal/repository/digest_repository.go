package repository

import (
	"context"
	"time"

	"news-digest/internal/domain/entity"
)

// DigestRepository stores assembled digests. Digests are append-only.
type DigestRepository interface {
	// CreateIfAbsent inserts d unless a digest with the same user and mode was
	// created at or after since. When one exists it is returned with
	// created=false and d is not stored. A zero since always inserts.
	CreateIfAbsent(ctx context.Context, d *entity.Digest, since time.Time) (stored *entity.Digest, created bool, err error)
	// FindRecent returns the newest digest of the given user and mode created
	// at or after since, or entity.ErrNotFound.
	FindRecent(ctx context.Context, userID string, mode entity.DigestMode, since time.Time) (*entity.Digest, error)
	Get(ctx context.Context, id int64) (*entity.Digest, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*entity.Digest, error)
}
