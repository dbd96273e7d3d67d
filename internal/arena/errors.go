package arena

import (
	"errors"
	"fmt"
)

var (
	// ErrRunFailure indicates question generation failed and no comparison
	// units were created.
	ErrRunFailure = errors.New("arena run failed")

	// ErrPartialBackendFailure indicates one backend failed to answer; its
	// answers were replaced by sentinels and the run continued.
	ErrPartialBackendFailure = errors.New("partial backend failure")

	// ErrEmptySession indicates a judgment was recorded on a run with no units.
	ErrEmptySession = errors.New("session has no comparison units")
)

// Run stages reported by RunError.
const (
	StageValidate  = "validate"
	StageQuestions = "questions"
)

// RunError reports a fatal pipeline failure together with the stage and backend involved.
type RunError struct {
	Stage   string
	Backend string
	Err     error
}

func (e *RunError) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("arena run failed at %s (%s): %v", e.Stage, e.Backend, e.Err)
	}
	return fmt.Sprintf("arena run failed at %s: %v", e.Stage, e.Err)
}

// Unwrap matches ErrRunFailure and the underlying cause.
func (e *RunError) Unwrap() []error { return []error{ErrRunFailure, e.Err} }
