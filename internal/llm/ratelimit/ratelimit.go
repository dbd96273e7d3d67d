// Package ratelimit throttles backend calls with one token bucket per backend.
//
// Each arena run sends one question request and two concurrent answer
// requests, so limits are keyed by backend rather than by run. A limiter is
// created lazily on first use and shared by every run in the process.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ahrav/go-arena/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-arena/internal/llm/errors"
	"github.com/ahrav/go-arena/internal/llm/transport"
)

type rateLimitMiddleware struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	config   configuration.RateLimitConfig
	logger   *slog.Logger
}

// NewMiddleware returns a transport.Middleware enforcing cfg per backend.
// A disabled configuration yields a pass-through middleware.
func NewMiddleware(cfg configuration.RateLimitConfig) (transport.Middleware, error) {
	if !cfg.Enabled {
		return func(next transport.Handler) transport.Handler { return next }, nil
	}
	if cfg.RequestsPerSecond <= 0 || cfg.Burst < 1 {
		return nil, fmt.Errorf("%w: rate %v burst %d",
			configuration.ErrInvalidRateLimit, cfg.RequestsPerSecond, cfg.Burst)
	}

	m := &rateLimitMiddleware{
		limiters: make(map[string]*rate.Limiter),
		config:   cfg,
		logger:   slog.Default().With("component", "ratelimit"),
	}
	return m.middleware, nil
}

func (m *rateLimitMiddleware) middleware(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		limiter := m.limiterFor(key(req))

		if m.config.Wait {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("waiting for rate limit on %s: %w", req.BackendName, err)
			}
			return next.Handle(ctx, req)
		}

		if !limiter.Allow() {
			// Size the retry hint without consuming a token.
			reservation := limiter.Reserve()
			delay := reservation.Delay()
			reservation.Cancel()

			retryAfter := max(int(math.Ceil(delay.Seconds())), 1)
			m.logger.Warn("local rate limit exceeded",
				"backend", req.BackendName,
				"retry_after_seconds", retryAfter)
			return nil, &llmerrors.RateLimitError{
				Provider:   req.Provider,
				Backend:    req.BackendName,
				Limit:      int(m.config.RequestsPerSecond),
				RetryAfter: retryAfter,
			}
		}
		return next.Handle(ctx, req)
	})
}

func (m *rateLimitMiddleware) limiterFor(k string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[k]
	if !ok {
		l = rate.NewLimiter(rate.Limit(m.config.RequestsPerSecond), m.config.Burst)
		m.limiters[k] = l
	}
	return l
}

// key identifies a backend; two backends sharing a server still get separate buckets.
func key(req *transport.Request) string {
	return req.Provider + "|" + req.Endpoint + "|" + req.BackendName + "|" + req.Model
}
