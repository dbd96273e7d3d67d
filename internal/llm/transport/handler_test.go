package transport_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-arena/internal/llm/transport"
)

// echoAdapter posts the user prompt and returns the response body as content.
type echoAdapter struct {
	url string
}

func (a *echoAdapter) Name() string { return "echo" }

func (a *echoAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader([]byte(req.UserPrompt)))
}

func (a *echoAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	return &transport.Response{Content: string(body), RawBody: body}, nil
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) transport.Middleware {
		return func(next transport.Handler) transport.Handler {
			return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
				order = append(order, name+":before")
				resp, err := next.Handle(ctx, req)
				order = append(order, name+":after")
				return resp, err
			})
		}
	}
	core := transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		order = append(order, "core")
		return &transport.Response{Content: "ok"}, nil
	})

	h := transport.Chain(core, mw("first"), mw("second"))
	resp, err := h.Handle(context.Background(), &transport.Request{})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, []string{"first:before", "second:before", "core", "second:after", "first:after"}, order)
}

func TestChain_NoMiddleware(t *testing.T) {
	core := transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		return &transport.Response{Content: "bare"}, nil
	})
	resp, err := transport.Chain(core).Handle(context.Background(), &transport.Request{})
	require.NoError(t, err)
	assert.Equal(t, "bare", resp.Content)
}

func TestHTTPHandler_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(append([]byte("echo:"), body...))
	}))
	defer srv.Close()

	h := transport.NewHTTPHandler(srv.Client(), &echoAdapter{url: srv.URL})
	resp, err := h.Handle(context.Background(), &transport.Request{UserPrompt: "hello"})

	require.NoError(t, err)
	assert.Equal(t, "echo:hello", resp.Content)
	assert.GreaterOrEqual(t, resp.Usage.LatencyMs, int64(0))
}

func TestHTTPHandler_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	h := transport.NewHTTPHandler(srv.Client(), &echoAdapter{url: srv.URL})
	_, err := h.Handle(context.Background(), &transport.Request{Timeout: 20 * time.Millisecond})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
