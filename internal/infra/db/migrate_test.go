package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateUp_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	for _, pattern := range []string{
		"CREATE TABLE IF NOT EXISTS users",
		"CREATE TABLE IF NOT EXISTS articles",
		"CREATE TABLE IF NOT EXISTS digests",
		"CREATE TABLE IF NOT EXISTS digest_jobs",
		"CREATE INDEX IF NOT EXISTS idx_users_frequency",
		"CREATE INDEX IF NOT EXISTS idx_articles_published_at",
		"CREATE INDEX IF NOT EXISTS idx_digests_user_mode_created",
		"CREATE INDEX IF NOT EXISTS idx_digest_jobs_due",
	} {
		mock.ExpectExec(pattern).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	err = MigrateUp(context.Background(), db)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUp_StopsOnFirstError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS articles").
		WillReturnError(sql.ErrConnDone)

	err = MigrateUp(context.Background(), db)

	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.Contains(t, err.Error(), "migrate step 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}
