package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"news-digest/internal/domain/entity"
	"news-digest/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) repository.UserRepository {
	return &UserRepo{db: db}
}

const userColumns = `id, email, name, topics, sources, frequency, format, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*entity.User, error) {
	var u entity.User
	var freq, format string
	if err := row.Scan(&u.ID, &u.Email, &u.Name,
		pq.Array(&u.Preferences.Topics), pq.Array(&u.Preferences.Sources),
		&freq, &format, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Preferences.Frequency = entity.Frequency(freq)
	u.Preferences.Format = entity.Format(format)
	return &u, nil
}

func (repo *UserRepo) Create(ctx context.Context, user *entity.User) error {
	const query = `
INSERT INTO users
       (id, email, name, topics, sources, frequency, format, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	p := user.Preferences
	_, err := repo.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name,
		pq.Array(p.Topics), pq.Array(p.Sources),
		string(p.Frequency), string(p.Format), user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("Create: %w", entity.ErrAlreadyExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *UserRepo) Get(ctx context.Context, id string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(repo.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return u, nil
}

func (repo *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(repo.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetByEmail: %w", err)
	}
	return u, nil
}

func (repo *UserRepo) ListByFrequency(ctx context.Context, freq entity.Frequency) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE frequency = $1 ORDER BY created_at`
	rows, err := repo.db.QueryContext(ctx, query, string(freq))
	if err != nil {
		return nil, fmt.Errorf("ListByFrequency: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := make([]*entity.User, 0, 64)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByFrequency: Scan: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (repo *UserRepo) UpdatePreferences(ctx context.Context, id string, prefs entity.Preferences) error {
	const query = `
UPDATE users SET
       topics    = $1,
       sources   = $2,
       frequency = $3,
       format    = $4
WHERE id = $5`
	res, err := repo.db.ExecContext(ctx, query,
		pq.Array(prefs.Topics), pq.Array(prefs.Sources),
		string(prefs.Frequency), string(prefs.Format), id,
	)
	if err != nil {
		return fmt.Errorf("UpdatePreferences: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdatePreferences: RowsAffected: %w", err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (repo *UserRepo) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: RowsAffected: %w", err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}
