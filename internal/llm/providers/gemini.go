package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	llmerrors "github.com/ahrav/go-arena/internal/llm/errors"
	"github.com/ahrav/go-arena/internal/llm/transport"
)

// GeminiHandler serves Gemini backends through the Google generative AI SDK.
// Clients are created lazily per credential and endpoint and reused afterwards.
type GeminiHandler struct {
	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGeminiHandler creates a Gemini handler with an empty client cache.
func NewGeminiHandler() *GeminiHandler {
	return &GeminiHandler{clients: make(map[string]*genai.Client)}
}

// Handle implements transport.Handler.
func (g *GeminiHandler) Handle(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	client, err := g.client(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	model := client.GenerativeModel(req.Model)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	if req.JSONResponse {
		model.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(req.UserPrompt))
	latency := time.Since(start)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	out := geminiResponse(resp)
	out.Usage.LatencyMs = latency.Milliseconds()
	return out, nil
}

// Close releases every cached SDK client.
func (g *GeminiHandler) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var errs []error
	for k, c := range g.clients {
		errs = append(errs, c.Close())
		delete(g.clients, k)
	}
	return errors.Join(errs...)
}

func (g *GeminiHandler) client(ctx context.Context, req *transport.Request) (*genai.Client, error) {
	key := req.Endpoint + "|" + req.Credential

	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[key]; ok {
		return c, nil
	}

	opts := []option.ClientOption{option.WithAPIKey(req.Credential)}
	if req.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(req.Endpoint))
	}
	c, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client for %s: %w", req.BackendName, err)
	}
	g.clients[key] = c
	return c, nil
}

// geminiResponse concatenates the text parts of the first candidate.
func geminiResponse(resp *genai.GenerateContentResponse) *transport.Response {
	out := &transport.Response{}
	if resp == nil {
		return out
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		cand := resp.Candidates[0]
		out.FinishReason = strings.ToLower(cand.FinishReason.String())
		if cand.Content != nil {
			var sb strings.Builder
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					sb.WriteString(string(text))
				}
			}
			out.Content = sb.String()
		}
	}
	if resp.UsageMetadata != nil {
		out.Usage = transport.NormalizedUsage{
			PromptTokens:     int64(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int64(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out
}

// classifyGeminiError maps SDK errors onto ProviderError so retry policies
// treat Gemini and OpenAI-compatible backends alike.
func classifyGeminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &llmerrors.ProviderError{
			Provider:   ProviderGemini,
			StatusCode: http.StatusOK,
			Message:    blocked.Error(),
			Type:       llmerrors.ErrorTypeContent,
		}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &llmerrors.ProviderError{
			Provider:   ProviderGemini,
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Type:       llmerrors.ClassifyStatus(apiErr.Code, ""),
		}
	}

	return &llmerrors.ProviderError{
		Provider: ProviderGemini,
		Message:  err.Error(),
		Type:     llmerrors.ErrorTypeUnknown,
	}
}
