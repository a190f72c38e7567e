// Package fetch turns user topics into a deduplicated, recency-filtered and
// source-filtered list of un-summarized articles.
package fetch

import (
	"fmt"
	"strings"
)

// UpstreamError reports that the search provider could not serve any topic.
// Individual topic failures are tolerated; only a total outage is an error.
type UpstreamError struct {
	Topics []string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("article search failed for all topics [%s]: %v", strings.Join(e.Topics, ", "), e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
