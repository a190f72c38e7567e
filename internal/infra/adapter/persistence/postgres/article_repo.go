package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"news-digest/internal/domain/entity"
	"news-digest/internal/repository"

	"github.com/lib/pq"
)

type ArticleRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewArticleRepo(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepo{db: db, now: time.Now}
}

// SaveBatch inserts every article in one transaction. Rows whose URL already
// exists are skipped, never updated.
func (repo *ArticleRepo) SaveBatch(ctx context.Context, articles []*entity.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	const query = `
INSERT INTO articles
       (title, url, source, published_at, content, summary, topics, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (url) DO NOTHING`

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("SaveBatch: BeginTx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("SaveBatch: Prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	createdAt := repo.now()
	inserted := 0
	for _, a := range articles {
		if a == nil {
			continue
		}
		res, err := stmt.ExecContext(ctx,
			a.Title, a.URL, a.Source, a.PublishedAt,
			a.Content, a.Summary, pq.Array(a.Topics), createdAt,
		)
		if err != nil {
			return 0, fmt.Errorf("SaveBatch: Exec %q: %w", a.URL, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("SaveBatch: Commit: %w", err)
	}
	return inserted, nil
}
