package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"news-digest/internal/domain/entity"
	"news-digest/internal/repository"
)

// DefaultJobLease is how long a claimed job may stay running before another
// worker is allowed to reclaim it.
const DefaultJobLease = 15 * time.Minute

type JobRepo struct {
	db    *sql.DB
	lease time.Duration
}

func NewJobRepo(db *sql.DB, lease time.Duration) repository.JobRepository {
	if lease <= 0 {
		lease = DefaultJobLease
	}
	return &JobRepo{db: db, lease: lease}
}

const jobColumns = `id, user_id, mode, execute_at, status, attempts, last_error, digest_id, created_at, updated_at`

func scanJob(row rowScanner) (*entity.DigestJob, error) {
	var j entity.DigestJob
	var mode, status string
	if err := row.Scan(&j.ID, &j.UserID, &mode, &j.ExecuteAt, &status,
		&j.Attempts, &j.LastError, &j.DigestID, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Mode = entity.DigestMode(mode)
	j.Status = entity.JobStatus(status)
	return &j, nil
}

func (repo *JobRepo) Enqueue(ctx context.Context, job *entity.DigestJob) error {
	const query = `
INSERT INTO digest_jobs (user_id, mode, execute_at, status)
VALUES ($1, $2, $3, 'pending')
RETURNING id, created_at, updated_at`
	err := repo.db.QueryRowContext(ctx, query, job.UserID, string(job.Mode), job.ExecuteAt).
		Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("Enqueue: %w", err)
	}
	job.Status = entity.JobPending
	return nil
}

// ClaimDue uses FOR UPDATE SKIP LOCKED so parallel pollers split the due set.
// Jobs left running past the lease (crashed worker) are claimed again.
func (repo *JobRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*entity.DigestJob, error) {
	query := `
UPDATE digest_jobs SET
       status     = 'running',
       attempts   = attempts + 1,
       updated_at = $1
WHERE id IN (
    SELECT id FROM digest_jobs
    WHERE (status = 'pending' AND execute_at <= $1)
       OR (status = 'running' AND updated_at <= $2)
    ORDER BY execute_at
    LIMIT $3
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + jobColumns
	rows, err := repo.db.QueryContext(ctx, query, now, now.Add(-repo.lease), limit)
	if err != nil {
		return nil, fmt.Errorf("ClaimDue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	jobs := make([]*entity.DigestJob, 0, limit)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("ClaimDue: Scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (repo *JobRepo) MarkDone(ctx context.Context, id int64) error {
	const query = `UPDATE digest_jobs SET status = 'done', last_error = '', updated_at = now() WHERE id = $1`
	return repo.exec(ctx, "MarkDone", query, id)
}

func (repo *JobRepo) MarkFailed(ctx context.Context, id int64, reason string) error {
	const query = `UPDATE digest_jobs SET status = 'failed', last_error = $2, updated_at = now() WHERE id = $1`
	return repo.exec(ctx, "MarkFailed", query, id, reason)
}

func (repo *JobRepo) Reschedule(ctx context.Context, id int64, executeAt time.Time, reason string, digestID int64) error {
	const query = `
UPDATE digest_jobs SET
       status     = 'pending',
       execute_at = $2,
       last_error = $3,
       digest_id  = $4,
       updated_at = now()
WHERE id = $1`
	return repo.exec(ctx, "Reschedule", query, id, executeAt, reason, digestID)
}

func (repo *JobRepo) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: RowsAffected: %w", op, err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}
