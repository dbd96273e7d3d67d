// Package providers adapts the normalized transport request to each backend
// wire protocol: OpenAI-compatible chat/completions over HTTP and Gemini
// through the Google SDK.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	llmerrors "github.com/ahrav/go-arena/internal/llm/errors"
	"github.com/ahrav/go-arena/internal/llm/transport"
)

// Supported provider identifiers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ErrMissingEndpoint is returned when an HTTP backend has no base URL.
var ErrMissingEndpoint = errors.New("backend endpoint is required")

// Router dispatches each request to the core handler of its provider.
type Router struct {
	handlers map[string]transport.Handler
	closers  []io.Closer
}

// NewRouter creates a router serving OpenAI-compatible backends through
// client and Gemini backends through the SDK.
func NewRouter(client *http.Client) *Router {
	gemini := NewGeminiHandler()
	return &Router{
		handlers: map[string]transport.Handler{
			ProviderOpenAI: transport.NewHTTPHandler(client, NewOpenAIAdapter()),
			ProviderGemini: gemini,
		},
		closers: []io.Closer{gemini},
	}
}

// NewRouterWithHandlers builds a router over explicit handlers.
func NewRouterWithHandlers(handlers map[string]transport.Handler) *Router {
	return &Router{handlers: handlers}
}

// Handle implements transport.Handler. An empty provider means OpenAI-compatible.
func (r *Router) Handle(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	provider := req.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}
	h, ok := r.handlers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, provider)
	}
	return h.Handle(ctx, req)
}

// Close releases provider resources.
func (r *Router) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
