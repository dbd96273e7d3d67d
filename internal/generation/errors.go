// Package generation provides the Temporal activities that call the arena
// backends: question generation against backend A and answer collection
// from either backend.
package generation

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	llmerrors "github.com/ahrav/go-arena/internal/llm/errors"
)

// Application error types reported to the workflow.
const (
	ErrorTypeValidation = "Validation"
	ErrorTypeBackend    = "Backend"
	ErrorTypeCancelled  = "Cancelled"
)

// ErrUnknownRole is returned when an activity is asked to call a backend
// role the worker has no configuration for.
var ErrUnknownRole = errors.New("unknown backend role")

// nonRetryable wraps cause as a Temporal application error the server will
// not retry. Backend calls retry inside the activity under their own
// retry.Policy, so every activity failure is final.
func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

// backendFailure classifies a failed backend call for the workflow.
func backendFailure(cause error) error {
	return nonRetryable(ErrorTypeBackend, cause, string(llmerrors.Classify(cause)))
}
