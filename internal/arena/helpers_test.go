package arena

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/llm"
	"github.com/ahrav/go-arena/internal/llm/configuration"
	"github.com/ahrav/go-arena/internal/llm/transport"
)

var (
	testBackendA = domain.Backend{Role: domain.RoleA, Name: "Backend A", Endpoint: "http://a.local/v1", Model: "model-a"}
	testBackendB = domain.Backend{Role: domain.RoleB, Name: "Backend B", Endpoint: "http://b.local/v1", Model: "model-b"}
)

// reply is one scripted backend outcome.
type reply struct {
	content string
	err     error
	delay   time.Duration
}

// scriptedHandler answers question requests and answer requests per backend.
type scriptedHandler struct {
	mu        sync.Mutex
	questions reply
	answers   map[string]reply // keyed by backend name
	calls     atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func (h *scriptedHandler) Handle(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	h.calls.Add(1)
	n := h.inFlight.Add(1)
	defer h.inFlight.Add(-1)
	for {
		cur := h.maxFlight.Load()
		if n <= cur || h.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	h.mu.Lock()
	r := h.questions
	if strings.HasPrefix(req.UserPrompt, "Answer the following questions:") {
		r = h.answers[req.BackendName]
	}
	h.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &transport.Response{Content: r.content}, nil
}

func newScriptedClient(t *testing.T, h transport.Handler) *llm.Client {
	t.Helper()
	cfg := configuration.DefaultConfig()
	cfg.RateLimit.Enabled = false
	c, err := llm.NewClient(cfg, llm.WithCoreHandler(h))
	require.NoError(t, err)
	return c
}

func questionsJSON(t *testing.T, qs ...string) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{"questions": qs})
	require.NoError(t, err)
	return string(b)
}

func answersJSON(t *testing.T, pairs ...[2]string) string {
	t.Helper()
	items := make([]map[string]string, 0, len(pairs))
	for _, p := range pairs {
		items = append(items, map[string]string{"question": p[0], "answer": p[1]})
	}
	b, err := json.Marshal(map[string]any{"questions": items})
	require.NoError(t, err)
	return string(b)
}

func newTestRunner(t *testing.T, h transport.Handler, seed uint64) *Runner {
	t.Helper()
	r, err := NewRunner(newScriptedClient(t, h), RunnerConfig{
		BackendA:   testBackendA,
		BackendB:   testBackendB,
		Randomizer: NewRandomizer(seed),
		Now:        func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
		NewID:      func() string { return "run-1" },
	})
	require.NoError(t, err)
	return r
}
