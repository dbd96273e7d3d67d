package export

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteJudgment is returned when export is attempted before every
	// comparison unit carries a judgment. Nothing is written.
	ErrIncompleteJudgment = errors.New("not every comparison has been judged")

	// ErrPersistence marks a failed store write. The run is left untouched and
	// the export may be retried.
	ErrPersistence = errors.New("persistence failure")
)

// PersistenceError wraps the store failure for one export attempt.
type PersistenceError struct {
	RunID string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist judgments for run %s: %v", e.RunID, e.Err)
}

// Unwrap exposes both ErrPersistence and the underlying store error.
func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }
