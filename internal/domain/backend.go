// Package domain provides the core types of an arena evaluation: the two
// generative backends being compared, the question set they answer, the blind
// comparison units shown to an operator, and the judgment records exported
// once every unit is judged. Types carry validator/v10 tags and expose
// Validate methods so every package boundary can reject malformed input early.
package domain

import (
	"fmt"
)

// BackendRole identifies which side of an arena a backend occupies.
// Exactly two roles exist per evaluation run.
type BackendRole string

const (
	// RoleA is the backend that also generates the shared question set.
	RoleA BackendRole = "A"

	// RoleB is the challenger backend that only answers questions.
	RoleB BackendRole = "B"
)

// IsValid reports whether the role is one of the two arena roles.
func (r BackendRole) IsValid() bool { return r == RoleA || r == RoleB }

// Provider names understood by the structured generation client.
const (
	// ProviderOpenAI is any OpenAI-compatible chat/completions endpoint (vLLM, OpenAI).
	ProviderOpenAI = "openai"

	// ProviderGemini is Google's Gemini API.
	ProviderGemini = "gemini"
)

// Backend identifies one independently addressable generative service.
// A backend is immutable for the lifetime of a run. The credential is never
// serialized so runs can be persisted, logged and returned over HTTP safely.
type Backend struct {
	// Role is the arena side this backend plays.
	Role BackendRole `json:"role" bson:"role" validate:"required,oneof=A B"`

	// Name is the human-facing label used in judgment labels and exports.
	Name string `json:"name" bson:"name" validate:"required"`

	// Endpoint is the base URL of the backend API. Optional for Gemini.
	Endpoint string `json:"endpoint" bson:"endpoint" validate:"omitempty,url"`

	// Credential authenticates calls to the backend.
	Credential string `json:"-" bson:"-"`

	// Model is the model identifier sent with every request.
	Model string `json:"model" bson:"model" validate:"required"`

	// Provider selects the wire protocol; empty means ProviderOpenAI.
	Provider string `json:"provider,omitempty" bson:"provider,omitempty" validate:"omitempty,oneof=openai gemini"`
}

// Validate checks that the backend carries everything needed for a call.
func (b *Backend) Validate() error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("%w: backend %q: %w", ErrInvalidBackend, b.Name, err)
	}
	if b.ProviderName() == ProviderOpenAI && b.Endpoint == "" {
		return fmt.Errorf("%w: backend %q: endpoint is required for %s backends",
			ErrInvalidBackend, b.Name, ProviderOpenAI)
	}
	return nil
}

// ProviderName returns the effective provider, defaulting to OpenAI-compatible.
func (b Backend) ProviderName() string {
	if b.Provider == "" {
		return ProviderOpenAI
	}
	return b.Provider
}

// String returns "name (model)" for logs.
func (b Backend) String() string { return fmt.Sprintf("%s (%s)", b.Name, b.Model) }

// Operator identifies the person recording judgments.
type Operator struct {
	Name  string `json:"operatorName" validate:"max=200"`
	Email string `json:"operatorEmail" validate:"omitempty,email"`
}

// Validate rejects malformed operator emails; an empty email is allowed.
func (o *Operator) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOperator, err)
	}
	return nil
}
