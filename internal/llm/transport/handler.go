// Package transport defines the request pipeline shared by every backend call:
// a normalized Request/Response pair, the Handler abstraction, and composable
// Middleware for cross-cutting concerns such as rate limiting and logging.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Request is the provider-neutral description of one structured backend call.
type Request struct {
	// RequestID correlates log lines for one call.
	RequestID string

	// Provider selects the adapter ("openai" or "gemini").
	Provider string

	// BackendName is the human-facing backend label, used for logs and errors.
	BackendName string

	// Endpoint is the backend base URL; adapters append their own path.
	Endpoint string

	// Credential is sent as the provider's authentication secret.
	Credential string

	// Model is the model identifier sent with the request.
	Model string

	SystemPrompt string
	UserPrompt   string

	// JSONResponse asks the backend to return a single JSON object.
	JSONResponse bool

	// Timeout bounds this call when positive.
	Timeout time.Duration
}

// NormalizedUsage is token accounting common to every provider.
type NormalizedUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// Response is the provider-neutral result of one backend call.
type Response struct {
	Content            string
	FinishReason       string
	ProviderRequestIDs []string
	Usage              NormalizedUsage
	RawBody            []byte
}

// ProviderAdapter abstracts provider-specific HTTP request and response formats.
type ProviderAdapter interface {
	Build(ctx context.Context, req *Request) (*http.Request, error)
	Parse(httpResp *http.Response) (*Response, error)
	Name() string
}

// Handler processes one backend request.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware transforms a Handler into an enhanced Handler.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler.
// Middleware executes in the order provided with the first middleware outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// NewHTTPHandler creates a core handler that performs HTTP calls through adapter.
func NewHTTPHandler(client *http.Client, adapter ProviderAdapter) Handler {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpHandler{client: client, adapter: adapter}
}

type httpHandler struct {
	client  *http.Client
	adapter ProviderAdapter
}

// Handle implements Handler by making one HTTP request to the backend.
func (h *httpHandler) Handle(ctx context.Context, req *Request) (*Response, error) {
	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := h.adapter.Build(reqCtx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	httpResp, err := h.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	resp, err := h.adapter.Parse(httpResp)
	if err != nil {
		return nil, err
	}
	resp.Usage.LatencyMs = latency.Milliseconds()
	return resp, nil
}
