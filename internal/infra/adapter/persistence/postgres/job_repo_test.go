package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"news-digest/internal/domain/entity"
	pg "news-digest/internal/infra/adapter/persistence/postgres"
)

var jobCols = []string{"id", "user_id", "mode", "execute_at", "status", "attempts", "last_error", "digest_id", "created_at", "updated_at"}

func TestJobRepo_Enqueue(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	at := time.Date(2025, 3, 1, 8, 0, 10, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO digest_jobs")).
		WithArgs("u1", "welcome", at).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), at, at))

	job := &entity.DigestJob{UserID: "u1", Mode: entity.ModeWelcome, ExecuteAt: at}
	if err := pg.NewJobRepo(db, 0).Enqueue(context.Background(), job); err != nil {
		t.Fatalf("Enqueue err=%v", err)
	}
	if job.ID != 11 || job.Status != entity.JobPending {
		t.Fatalf("job=%+v", job)
	}
}

func TestJobRepo_ClaimDue(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	lease := 5 * time.Minute

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs(now, now.Add(-lease), 20).
		WillReturnRows(sqlmock.NewRows(jobCols).
			AddRow(int64(1), "u1", "welcome", now.Add(-time.Minute), "running", 1, "", int64(0), now, now).
			AddRow(int64(2), "u2", "preferences_updated", now, "running", 2, "smtp down", int64(41), now, now))

	jobs, err := pg.NewJobRepo(db, lease).ClaimDue(context.Background(), now, 20)
	if err != nil {
		t.Fatalf("ClaimDue err=%v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("len=%d", len(jobs))
	}
	if jobs[1].Mode != entity.ModePreferencesUpdated || jobs[1].Attempts != 2 || jobs[1].DigestID != 41 || jobs[1].Status != entity.JobRunning {
		t.Fatalf("job=%+v", jobs[1])
	}
}

func TestJobRepo_StatusTransitions(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'done'")).WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'failed'")).WithArgs(int64(2), "user not found").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("status     = 'pending'")).WithArgs(int64(3), at, "deliver failed", int64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'done'")).WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := pg.NewJobRepo(db, 0)
	ctx := context.Background()
	if err := repo.MarkDone(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkFailed(ctx, 2, "user not found"); err != nil {
		t.Fatal(err)
	}
	if err := repo.Reschedule(ctx, 3, at, "deliver failed", 41); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkDone(ctx, 99); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
