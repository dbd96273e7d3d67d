package domain

import "errors"

// ErrInvalidInput indicates that an arena run request contains invalid data.
var ErrInvalidInput = errors.New("invalid arena input")

// ErrInvalidBackend indicates that a backend definition is incomplete.
var ErrInvalidBackend = errors.New("invalid backend")

// ErrInvalidOperator indicates that operator identity failed validation.
var ErrInvalidOperator = errors.New("invalid operator")

// ErrInvalidJudgment indicates an unrecognized judgment label.
var ErrInvalidJudgment = errors.New("invalid judgment")

// ErrInvalidRun indicates that an arena run violates its structural invariants.
var ErrInvalidRun = errors.New("invalid arena run")
