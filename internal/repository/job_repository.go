package repository

import (
	"context"
	"time"

	"news-digest/internal/domain/entity"
)

// JobRepository is the durable store behind the delayed digest job queue.
type JobRepository interface {
	Enqueue(ctx context.Context, job *entity.DigestJob) error
	// ClaimDue atomically moves up to limit pending jobs with ExecuteAt <= now
	// to running and returns them. Concurrent workers never claim the same job.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*entity.DigestJob, error)
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	// Reschedule puts a running job back to pending at executeAt, recording
	// reason. A non-zero digestID marks a stored digest still to be sent.
	Reschedule(ctx context.Context, id int64, executeAt time.Time, reason string, digestID int64) error
}
