// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as User, Article and Digest, along with
// their validation rules and domain-specific errors.
package entity

import "time"

// Article represents a news article surfaced by a topic search.
// URL is the natural key used for deduplication. An empty Summary means the
// article has not been summarized yet.
type Article struct {
	ID          int64
	Title       string
	URL         string
	Source      string
	PublishedAt time.Time
	Content     string
	Summary     string
	// Topics lists every query topic that surfaced this URL, in first-seen order.
	Topics    []string
	CreatedAt time.Time
}

// HasSummary reports whether the article already carries a summary.
func (a *Article) HasSummary() bool {
	return a.Summary != ""
}

// HasTopic reports whether topic is already recorded on the article.
func (a *Article) HasTopic(topic string) bool {
	for _, t := range a.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// AddTopic appends topic unless it is already present.
func (a *Article) AddTopic(topic string) {
	if !a.HasTopic(topic) {
		a.Topics = append(a.Topics, topic)
	}
}

// Clone returns a deep copy of the article.
func (a *Article) Clone() *Article {
	if a == nil {
		return nil
	}
	c := *a
	if a.Topics != nil {
		c.Topics = append([]string(nil), a.Topics...)
	}
	return &c
}
