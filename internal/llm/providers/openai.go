package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	llmerrors "github.com/ahrav/go-arena/internal/llm/errors"
	"github.com/ahrav/go-arena/internal/llm/transport"
)

// OpenAIAdapter implements transport.ProviderAdapter for OpenAI-compatible
// chat/completions APIs such as vLLM and OpenAI itself.
type OpenAIAdapter struct{}

// NewOpenAIAdapter creates an OpenAI-compatible adapter. Endpoint and
// credential travel on each request because every backend has its own.
func NewOpenAIAdapter() *OpenAIAdapter { return &OpenAIAdapter{} }

// Name returns the provider name.
func (a *OpenAIAdapter) Name() string { return ProviderOpenAI }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// Build constructs a chat/completions request with a system and a user message.
func (a *OpenAIAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	if req.Endpoint == "" {
		return nil, fmt.Errorf("%w: backend %q", ErrMissingEndpoint, req.BackendName)
	}
	endpoint := strings.TrimRight(req.Endpoint, "/") + "/chat/completions"

	body := chatRequest{Model: req.Model}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.UserPrompt})
	if req.JSONResponse {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	}
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}
	return httpReq, nil
}

// Parse extracts content and usage from a chat/completions response.
func (a *OpenAIAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseOpenAIError(httpResp, body)
	}

	var resp struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int64 `json:"prompt_tokens"`
			CompletionTokens int64 `json:"completion_tokens"`
			TotalTokens      int64 `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := &transport.Response{
		Usage: transport.NormalizedUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		RawBody: body,
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.FinishReason = resp.Choices[0].FinishReason
	}
	if resp.ID != "" {
		out.ProviderRequestIDs = append(out.ProviderRequestIDs, resp.ID)
	}
	if reqID := httpResp.Header.Get("x-request-id"); reqID != "" {
		out.ProviderRequestIDs = append(out.ProviderRequestIDs, reqID)
	}
	return out, nil
}

// parseOpenAIError converts an error response into a ProviderError.
func parseOpenAIError(httpResp *http.Response, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}

	pe := &llmerrors.ProviderError{
		Provider:   ProviderOpenAI,
		StatusCode: httpResp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		pe.Message = errResp.Error.Message
		if errResp.Error.Code != nil {
			pe.Code = fmt.Sprint(errResp.Error.Code)
		}
		if pe.Code == "" {
			pe.Code = errResp.Error.Type
		}
	}
	if pe.Message == "" {
		pe.Message = http.StatusText(httpResp.StatusCode)
	}
	pe.Type = llmerrors.ClassifyStatus(httpResp.StatusCode, pe.Code)
	if ra, err := strconv.Atoi(httpResp.Header.Get("Retry-After")); err == nil && ra > 0 {
		pe.RetryAfter = ra
	}
	return pe
}
