package configuration

import "time"

// Default client settings.
const (
	DefaultHTTPTimeout       = 120 * time.Second
	DefaultRequestsPerSecond = 2.0
	DefaultBurst             = 4
)

// DefaultConfig returns a client configuration with production defaults:
// a generous timeout for long documents and a waiting per-backend limiter.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout: DefaultHTTPTimeout,
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: DefaultRequestsPerSecond,
			Burst:             DefaultBurst,
			Wait:              true,
		},
	}
}
