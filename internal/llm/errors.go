package llm

import (
	"errors"
	"fmt"
)

// Generation-layer failures of a single structured call.
var (
	ErrEmptyResponse     = errors.New("empty response")
	ErrMalformedResponse = errors.New("malformed response")
	ErrSchemaViolation   = errors.New("schema violation")
	ErrInvalidRequest    = errors.New("invalid structured request")
)

// ErrorKind identifies which generation-layer check failed.
type ErrorKind string

// Generation error kinds.
const (
	KindEmptyResponse     ErrorKind = "empty_response"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindSchemaViolation   ErrorKind = "schema_violation"
)

// GenerationError reports a backend reply that could not be turned into
// validated structured data.
type GenerationError struct {
	Kind    ErrorKind
	Backend string
	Schema  string

	// Diagnostic is the parser or validator output.
	Diagnostic string

	// Raw is the content the backend returned.
	Raw string

	Cause error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("%s from %s", e.sentinel().Error(), e.Backend)
	if e.Schema != "" {
		msg += " (schema " + e.Schema + ")"
	}
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *GenerationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.sentinel(), e.Cause}
	}
	return []error{e.sentinel()}
}

func (e *GenerationError) sentinel() error {
	switch e.Kind {
	case KindEmptyResponse:
		return ErrEmptyResponse
	case KindMalformedResponse:
		return ErrMalformedResponse
	default:
		return ErrSchemaViolation
	}
}
