package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"news-digest/internal/domain/entity"
	"news-digest/internal/repository"
)

type DigestRepo struct {
	db *sql.DB
}

func NewDigestRepo(db *sql.DB) repository.DigestRepository {
	return &DigestRepo{db: db}
}

// snapshotArticle is the JSONB shape of an article embedded in a digest.
type snapshotArticle struct {
	ID          int64     `json:"id,omitempty"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Content     string    `json:"content,omitempty"`
	Summary     string    `json:"summary"`
	Topics      []string  `json:"topics"`
}

func encodeSnapshot(articles []entity.Article) ([]byte, error) {
	out := make([]snapshotArticle, len(articles))
	for i, a := range articles {
		out[i] = snapshotArticle{
			ID:          a.ID,
			Title:       a.Title,
			URL:         a.URL,
			Source:      a.Source,
			PublishedAt: a.PublishedAt,
			Content:     a.Content,
			Summary:     a.Summary,
			Topics:      a.Topics,
		}
	}
	return json.Marshal(out)
}

func decodeSnapshot(raw []byte) ([]entity.Article, error) {
	var in []snapshotArticle
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]entity.Article, len(in))
	for i, a := range in {
		out[i] = entity.Article{
			ID:          a.ID,
			Title:       a.Title,
			URL:         a.URL,
			Source:      a.Source,
			PublishedAt: a.PublishedAt,
			Content:     a.Content,
			Summary:     a.Summary,
			Topics:      a.Topics,
		}
	}
	return out, nil
}

func scanDigest(row rowScanner) (*entity.Digest, error) {
	var d entity.Digest
	var mode string
	var raw []byte
	if err := row.Scan(&d.ID, &d.UserID, &mode, &d.Summary, &raw, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Mode = entity.DigestMode(mode)
	articles, err := decodeSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("decode articles: %w", err)
	}
	d.Articles = articles
	return &d, nil
}

const digestColumns = `id, user_id, mode, summary, articles, created_at`

// CreateIfAbsent serializes writers for the same user and mode with a
// transaction-scoped advisory lock, so two concurrent runs cannot both insert.
func (repo *DigestRepo) CreateIfAbsent(ctx context.Context, d *entity.Digest, since time.Time) (*entity.Digest, bool, error) {
	raw, err := encodeSnapshot(d.Articles)
	if err != nil {
		return nil, false, fmt.Errorf("CreateIfAbsent: encode: %w", err)
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("CreateIfAbsent: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if !since.IsZero() {
		const lock = `SELECT pg_advisory_xact_lock(hashtext($1))`
		if _, err := tx.ExecContext(ctx, lock, d.UserID+":"+string(d.Mode)); err != nil {
			return nil, false, fmt.Errorf("CreateIfAbsent: lock: %w", err)
		}

		query := `SELECT ` + digestColumns + `
FROM digests
WHERE user_id = $1 AND mode = $2 AND created_at >= $3
ORDER BY created_at DESC
LIMIT 1`
		existing, err := scanDigest(tx.QueryRowContext(ctx, query, d.UserID, string(d.Mode), since))
		switch {
		case err == nil:
			if err := tx.Commit(); err != nil {
				return nil, false, fmt.Errorf("CreateIfAbsent: Commit: %w", err)
			}
			return existing, false, nil
		case !errors.Is(err, sql.ErrNoRows):
			return nil, false, fmt.Errorf("CreateIfAbsent: lookup: %w", err)
		}
	}

	const insert = `
INSERT INTO digests (user_id, mode, summary, articles, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	var id int64
	if err := tx.QueryRowContext(ctx, insert,
		d.UserID, string(d.Mode), d.Summary, raw, d.CreatedAt,
	).Scan(&id); err != nil {
		return nil, false, fmt.Errorf("CreateIfAbsent: insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("CreateIfAbsent: Commit: %w", err)
	}

	stored := *d
	stored.ID = id
	return &stored, true, nil
}

func (repo *DigestRepo) FindRecent(ctx context.Context, userID string, mode entity.DigestMode, since time.Time) (*entity.Digest, error) {
	query := `SELECT ` + digestColumns + `
FROM digests
WHERE user_id = $1 AND mode = $2 AND created_at >= $3
ORDER BY created_at DESC
LIMIT 1`
	d, err := scanDigest(repo.db.QueryRowContext(ctx, query, userID, string(mode), since))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("FindRecent: %w", err)
	}
	return d, nil
}

func (repo *DigestRepo) Get(ctx context.Context, id int64) (*entity.Digest, error) {
	query := `SELECT ` + digestColumns + ` FROM digests WHERE id = $1`
	d, err := scanDigest(repo.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return d, nil
}

func (repo *DigestRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*entity.Digest, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + digestColumns + `
FROM digests
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`
	rows, err := repo.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer func() { _ = rows.Close() }()

	digests := make([]*entity.Digest, 0, limit)
	for rows.Next() {
		d, err := scanDigest(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByUser: Scan: %w", err)
		}
		digests = append(digests, d)
	}
	return digests, rows.Err()
}
