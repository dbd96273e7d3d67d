// Package configuration holds the settings of the structured generation client.
package configuration

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Configuration validation errors.
var (
	ErrInvalidTimeout   = errors.New("http timeout must be positive")
	ErrInvalidRateLimit = errors.New("invalid rate limit configuration")
)

// Config holds the settings of the structured generation client.
type Config struct {
	// HTTPTimeout bounds every backend call.
	HTTPTimeout time.Duration `json:"http_timeout" yaml:"http_timeout"`

	// HTTPClient overrides the client used for OpenAI-compatible backends.
	HTTPClient *http.Client `json:"-" yaml:"-"`

	// RateLimit throttles calls per backend.
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`

	// Observability controls what the logging middleware records.
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// RateLimitConfig is a token bucket applied independently to each backend.
type RateLimitConfig struct {
	Enabled           bool    `json:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst"`

	// Wait blocks until a token is available instead of failing fast.
	Wait bool `json:"wait" yaml:"wait"`
}

// ObservabilityConfig controls request logging.
type ObservabilityConfig struct {
	// LogPrompts includes full prompts in debug logs; lengths are logged otherwise.
	LogPrompts bool `json:"log_prompts" yaml:"log_prompts"`
}

// Validate checks the configuration for values the client cannot work with.
func (c *Config) Validate() error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidTimeout, c.HTTPTimeout)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("%w: requests_per_second must be positive", ErrInvalidRateLimit)
		}
		if c.RateLimit.Burst < 1 {
			return fmt.Errorf("%w: burst must be at least 1", ErrInvalidRateLimit)
		}
	}
	return nil
}
