// Package subscription implements the subscriber lifecycle: sign-up,
// preference lookup and update, and token-verified unsubscribe. Each change
// that should produce a digest enqueues a delayed job instead of running the
// pipeline inline.
package subscription

import "errors"

// ErrInvalidToken is returned when an unsubscribe token is missing or does
// not match the email.
var ErrInvalidToken = errors.New("invalid unsubscribe token")
