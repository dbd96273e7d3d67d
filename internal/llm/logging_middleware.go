package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahrav/go-arena/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-arena/internal/llm/errors"
	"github.com/ahrav/go-arena/internal/llm/transport"
)

// NewLoggingMiddleware logs the lifecycle of each backend call. Prompts are
// logged only when cfg.LogPrompts is set; otherwise only their lengths are.
func NewLoggingMiddleware(cfg configuration.ObservabilityConfig, logger *slog.Logger) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			fields := []any{
				"request_id", req.RequestID,
				"backend", req.BackendName,
				"provider", req.Provider,
				"model", req.Model,
			}
			if cfg.LogPrompts {
				logger.DebugContext(ctx, "backend request",
					append(fields, "system_prompt", req.SystemPrompt, "user_prompt", req.UserPrompt)...)
			} else {
				logger.DebugContext(ctx, "backend request",
					append(fields, "system_prompt_length", len(req.SystemPrompt), "user_prompt_length", len(req.UserPrompt))...)
			}

			start := time.Now()
			resp, err := next.Handle(ctx, req)
			duration := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "backend request failed",
					append(fields,
						"duration_ms", duration.Milliseconds(),
						"error_type", llmerrors.Classify(err),
						"retryable", llmerrors.IsRetryable(err),
						"error", err)...)
				return nil, err
			}

			logger.InfoContext(ctx, "backend request completed",
				append(fields,
					"duration_ms", duration.Milliseconds(),
					"finish_reason", resp.FinishReason,
					"prompt_tokens", resp.Usage.PromptTokens,
					"completion_tokens", resp.Usage.CompletionTokens,
					"content_length", len(resp.Content))...)
			return resp, nil
		})
	}
}
