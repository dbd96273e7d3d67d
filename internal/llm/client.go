// Package llm implements the structured generation client: one
// schema-constrained call to a generative backend that returns validated
// JSON or a typed failure.
//
// Calls flow through a transport.Handler chain of logging and per-backend
// rate limiting in front of a provider router. The client never retries;
// call sites wrap Generate with a retry.Policy when they want more attempts.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/llm/configuration"
	"github.com/ahrav/go-arena/internal/llm/providers"
	"github.com/ahrav/go-arena/internal/llm/ratelimit"
	"github.com/ahrav/go-arena/internal/llm/transport"
)

// Generator issues structured requests. *Client is the production implementation.
type Generator interface {
	Generate(ctx context.Context, req StructuredRequest) (*StructuredResult, error)
}

// StructuredRequest is one schema-constrained call.
type StructuredRequest struct {
	Backend      domain.Backend
	SystemPrompt string
	UserPrompt   string
	Schema       *Schema
}

// StructuredResult is a reply that parsed as JSON and satisfied its schema.
type StructuredResult struct {
	// Raw is the JSON text the value was decoded from.
	Raw string

	// Value is the decoded JSON document.
	Value any

	Usage transport.NormalizedUsage
}

// Client is the structured generation client.
type Client struct {
	handler transport.Handler
	config  configuration.Config
	logger  *slog.Logger
	closer  io.Closer
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	core   transport.Handler
	logger *slog.Logger
}

// WithCoreHandler replaces the provider router, typically with a test double.
func WithCoreHandler(h transport.Handler) Option {
	return func(o *clientOptions) { o.core = h }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = l }
}

// NewClient builds a client from cfg.
func NewClient(cfg configuration.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid llm configuration: %w", err)
	}

	o := clientOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	var closer io.Closer
	core := o.core
	if core == nil {
		httpClient := cfg.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{}
		}
		router := providers.NewRouter(httpClient)
		core, closer = router, router
	}

	limit, err := ratelimit.NewMiddleware(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With("component", "llm")

	return &Client{
		handler: transport.Chain(core, NewLoggingMiddleware(cfg.Observability, logger), limit),
		config:  cfg,
		logger:  logger,
		closer:  closer,
	}, nil
}

// Close releases provider resources.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// Generate sends one request and validates the reply against req.Schema.
func (c *Client) Generate(ctx context.Context, req StructuredRequest) (*StructuredResult, error) {
	if err := req.Backend.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if req.Schema == nil {
		return nil, fmt.Errorf("%w: schema is required", ErrInvalidRequest)
	}

	resp, err := c.handler.Handle(ctx, &transport.Request{
		RequestID:    uuid.NewString(),
		Provider:     req.Backend.ProviderName(),
		BackendName:  req.Backend.Name,
		Endpoint:     req.Backend.Endpoint,
		Credential:   req.Backend.Credential,
		Model:        req.Backend.Model,
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
		JSONResponse: true,
		Timeout:      c.config.HTTPTimeout,
	})
	if err != nil {
		return nil, err
	}

	raw := stripFences(resp.Content)
	if raw == "" {
		return nil, &GenerationError{Kind: KindEmptyResponse, Backend: req.Backend.Name, Schema: req.Schema.Name()}
	}

	value, err := decodeJSON(raw)
	if err != nil {
		return nil, &GenerationError{
			Kind:       KindMalformedResponse,
			Backend:    req.Backend.Name,
			Schema:     req.Schema.Name(),
			Diagnostic: err.Error(),
			Raw:        raw,
			Cause:      err,
		}
	}

	if err := req.Schema.Validate(value); err != nil {
		c.logger.WarnContext(ctx, "schema violation",
			"backend", req.Backend.Name,
			"schema", req.Schema.Name(),
			"diagnostic", err.Error())
		return nil, &GenerationError{
			Kind:       KindSchemaViolation,
			Backend:    req.Backend.Name,
			Schema:     req.Schema.Name(),
			Diagnostic: err.Error(),
			Raw:        raw,
			Cause:      err,
		}
	}

	return &StructuredResult{Raw: raw, Value: value, Usage: resp.Usage}, nil
}

// Decode converts a validated result into a typed value.
func Decode[T any](res *StructuredResult) (T, error) {
	var out T
	if res == nil {
		return out, fmt.Errorf("%w: nil result", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(res.Raw), &out); err != nil {
		return out, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return out, nil
}

var errTrailingData = errors.New("unexpected data after JSON value")

func decodeJSON(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errTrailingData
	}
	return v, nil
}

// stripFences trims whitespace and a surrounding markdown code fence, which
// some backends emit even in JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
