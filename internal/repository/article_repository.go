package repository

import (
	"context"

	"news-digest/internal/domain/entity"
)

// ArticleRepository persists fetched articles. The digest pipeline only
// inserts; existing rows keyed by URL are left untouched.
type ArticleRepository interface {
	// SaveBatch inserts articles whose URL is not yet stored and returns the
	// number of rows inserted.
	SaveBatch(ctx context.Context, articles []*entity.Article) (int, error)
}
