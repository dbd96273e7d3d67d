package ratelimit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-arena/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-arena/internal/llm/errors"
	"github.com/ahrav/go-arena/internal/llm/transport"
)

func countingHandler(calls *atomic.Int32) transport.Handler {
	return transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		calls.Add(1)
		return &transport.Response{Content: "{}"}, nil
	})
}

func TestMiddleware_Disabled(t *testing.T) {
	mw, err := NewMiddleware(configuration.RateLimitConfig{Enabled: false})
	require.NoError(t, err)

	var calls atomic.Int32
	h := mw(countingHandler(&calls))
	for range 10 {
		_, err := h.Handle(context.Background(), &transport.Request{BackendName: "A"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(10), calls.Load())
}

func TestMiddleware_InvalidConfig(t *testing.T) {
	_, err := NewMiddleware(configuration.RateLimitConfig{Enabled: true, RequestsPerSecond: 0, Burst: 1})
	assert.ErrorIs(t, err, configuration.ErrInvalidRateLimit)
}

func TestMiddleware_FailFastPerBackend(t *testing.T) {
	mw, err := NewMiddleware(configuration.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 0.001,
		Burst:             1,
	})
	require.NoError(t, err)

	var calls atomic.Int32
	h := mw(countingHandler(&calls))
	ctx := context.Background()

	_, err = h.Handle(ctx, &transport.Request{BackendName: "Backend A"})
	require.NoError(t, err)

	_, err = h.Handle(ctx, &transport.Request{BackendName: "Backend A"})
	var rlErr *llmerrors.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, "Backend A", rlErr.Backend)
	assert.GreaterOrEqual(t, rlErr.RetryAfter, 1)

	// A different backend has its own bucket.
	_, err = h.Handle(ctx, &transport.Request{BackendName: "Backend B"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMiddleware_WaitHonorsContext(t *testing.T) {
	mw, err := NewMiddleware(configuration.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 0.001,
		Burst:             1,
		Wait:              true,
	})
	require.NoError(t, err)

	var calls atomic.Int32
	h := mw(countingHandler(&calls))

	_, err = h.Handle(context.Background(), &transport.Request{BackendName: "A"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.Handle(ctx, &transport.Request{BackendName: "A"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
