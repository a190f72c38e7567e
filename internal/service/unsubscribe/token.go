// Package unsubscribe signs and verifies the one-click unsubscribe links
// included in every digest email. Tokens never expire; rotating the secret
// invalidates every outstanding link.
package unsubscribe

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"strings"
)

// tokenLength is the number of hex characters kept from the digest.
const tokenLength = 32

// Token derives the unsubscribe token for email.
func Token(email, secret string) string {
	sum := sha256.Sum256([]byte(email + ":" + secret))
	return hex.EncodeToString(sum[:])[:tokenLength]
}

// Verify reports whether token was issued for email under secret.
func Verify(email, token, secret string) bool {
	if token == "" {
		return false
	}
	expected := Token(email, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(token))) == 1
}

// NormalizeBaseURL adds https:// to scheme-less base URLs and drops a
// trailing slash.
func NormalizeBaseURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return base
}

// Signer builds links for a fixed base URL and secret.
type Signer struct {
	baseURL string
	secret  string
}

// NewSigner creates a Signer.
func NewSigner(baseURL, secret string) *Signer {
	return &Signer{baseURL: NormalizeBaseURL(baseURL), secret: secret}
}

// Token returns the token for email.
func (s *Signer) Token(email string) string {
	return Token(email, s.secret)
}

// Verify checks token against email.
func (s *Signer) Verify(email, token string) bool {
	return Verify(email, token, s.secret)
}

// UnsubscribeURL is {base}/unsubscribe?email={email}&token={token}.
func (s *Signer) UnsubscribeURL(email string) string {
	v := url.Values{}
	v.Set("email", email)
	v.Set("token", s.Token(email))
	return s.baseURL + "/unsubscribe?" + v.Encode()
}

// PreferencesURL is {base}/preferences?userId={id}&email={email}.
func (s *Signer) PreferencesURL(userID, email string) string {
	v := url.Values{}
	v.Set("userId", userID)
	v.Set("email", email)
	return s.baseURL + "/preferences?" + v.Encode()
}

// BaseURL returns the normalized base URL.
func (s *Signer) BaseURL() string {
	return s.baseURL
}
