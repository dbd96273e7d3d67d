package domain //nolint:testpackage // Need access to unexported validate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBackend_Validate verifies role, name, model and endpoint rules,
// including the endpoint requirement for OpenAI-compatible backends.
func TestBackend_Validate(t *testing.T) {
	valid := Backend{Role: RoleA, Name: "vllm-a", Endpoint: "http://localhost:8000/v1", Model: "llama"}

	tests := []struct {
		name    string
		mutate  func(b *Backend)
		wantErr bool
	}{
		{"valid", func(*Backend) {}, false},
		{"role B", func(b *Backend) { b.Role = RoleB }, false},
		{"missing role", func(b *Backend) { b.Role = "" }, true},
		{"unknown role", func(b *Backend) { b.Role = "C" }, true},
		{"missing name", func(b *Backend) { b.Name = "" }, true},
		{"missing model", func(b *Backend) { b.Model = "" }, true},
		{"bad endpoint", func(b *Backend) { b.Endpoint = "not a url" }, true},
		{"openai without endpoint", func(b *Backend) { b.Endpoint = "" }, true},
		{"gemini without endpoint", func(b *Backend) { b.Endpoint = ""; b.Provider = ProviderGemini }, false},
		{"unknown provider", func(b *Backend) { b.Provider = "anthropic" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid
			tt.mutate(&b)
			err := b.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidBackend)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBackend_ProviderName(t *testing.T) {
	assert.Equal(t, ProviderOpenAI, Backend{}.ProviderName())
	assert.Equal(t, ProviderGemini, Backend{Provider: ProviderGemini}.ProviderName())
	assert.Equal(t, "a (m)", Backend{Name: "a", Model: "m"}.String())
}

// TestBackend_CredentialNotSerialized verifies the API key never leaves the
// process through JSON encoding of a run.
func TestBackend_CredentialNotSerialized(t *testing.T) {
	run := ArenaRun{
		ID:       "r",
		BackendA: Backend{Role: RoleA, Name: "a", Model: "m", Credential: "sk-secret"},
	}
	b, err := json.Marshal(run)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "sk-secret")
}

func TestOperator_Validate(t *testing.T) {
	tests := []struct {
		name    string
		op      Operator
		wantErr bool
	}{
		{"empty", Operator{}, false},
		{"name only", Operator{Name: "Ada"}, false},
		{"valid email", Operator{Name: "Ada", Email: "ada@example.com"}, false},
		{"bad email", Operator{Name: "Ada", Email: "not-an-email"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOperator)
				return
			}
			assert.NoError(t, err)
		})
	}
}
