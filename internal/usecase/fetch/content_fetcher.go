package fetch

import (
	"context"
	"errors"
)

// ContentFetcher fetches the full text of an article page. It is used to
// enrich provider snippets that are too short to summarize well.
//
// Implementations must guard against SSRF, bound the response size, enforce
// a timeout and validate redirect targets. Callers treat every error as
// "keep the snippet".
type ContentFetcher interface {
	FetchContent(ctx context.Context, url string) (string, error)
}

// Sentinel errors for content fetching.
var (
	// ErrInvalidURL indicates the URL is malformed or not http(s).
	ErrInvalidURL = errors.New("invalid URL or unsupported scheme")

	// ErrPrivateIP indicates the host resolves to a private, loopback or
	// link-local address.
	ErrPrivateIP = errors.New("private IP access denied (SSRF prevention)")

	// ErrTooManyRedirects indicates the redirect chain exceeded the configured maximum.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrBodyTooLarge indicates the response body exceeded the size limit.
	ErrBodyTooLarge = errors.New("response body too large")

	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("request timeout")

	// ErrReadabilityFailed indicates no readable content could be extracted.
	ErrReadabilityFailed = errors.New("content extraction failed")
)
