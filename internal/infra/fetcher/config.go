package fetcher

import (
	"fmt"
	"time"

	env "news-digest/pkg/config"
)

// Config bounds what the readability fetcher is willing to download.
type Config struct {
	// Timeout applies to each page fetch.
	Timeout time.Duration
	// MaxBodySize is the largest HTML body read, in bytes.
	MaxBodySize int64
	// MaxRedirects is the longest redirect chain followed.
	MaxRedirects int
	// DenyPrivateIPs rejects hosts resolving to loopback, private or
	// link-local addresses, including redirect targets.
	DenyPrivateIPs bool
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		MaxBodySize:    5 * 1024 * 1024,
		MaxRedirects:   5,
		DenyPrivateIPs: true,
	}
}

// Validate checks the configuration for values that are unsafe or useless.
func (c Config) Validate() error {
	if err := env.ValidateDurationRange(c.Timeout, time.Second, 2*time.Minute); err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	const minBody, maxBody = int64(1024), int64(50 * 1024 * 1024)
	if c.MaxBodySize < minBody || c.MaxBodySize > maxBody {
		return fmt.Errorf("max body size must be between %d and %d bytes, got %d", minBody, maxBody, c.MaxBodySize)
	}
	if c.MaxRedirects < 0 || c.MaxRedirects > 10 {
		return fmt.Errorf("max redirects must be between 0 and 10, got %d", c.MaxRedirects)
	}
	return nil
}

// LoadConfigFromEnv reads CONTENT_FETCH_* overrides on top of DefaultConfig.
func LoadConfigFromEnv() (Config, error) {
	d := DefaultConfig()
	cfg := Config{
		Timeout:        env.GetEnvDuration("CONTENT_FETCH_TIMEOUT", d.Timeout),
		MaxBodySize:    int64(env.GetEnvInt("CONTENT_FETCH_MAX_BODY_SIZE", int(d.MaxBodySize))),
		MaxRedirects:   env.GetEnvInt("CONTENT_FETCH_MAX_REDIRECTS", d.MaxRedirects),
		DenyPrivateIPs: env.GetEnvBool("CONTENT_FETCH_DENY_PRIVATE_IPS", d.DenyPrivateIPs),
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("content fetch config: %w", err)
	}
	return cfg, nil
}
