package fetch

import (
	"context"
	"time"
)

// Query is one topic search against the article provider.
type Query struct {
	Query          string
	PageSize       int
	PublishedAfter time.Time
}

// SearchResult is a provider result before any filtering.
type SearchResult struct {
	Title       string
	URL         string
	Source      string
	PublishedAt time.Time
	Content     string
}

// Searcher queries an external news provider. Results are returned in
// provider order, most recent first.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]SearchResult, error)
}
