package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownParameter is returned when a key has no raw value, no pushed
	// cascade value and no formula for the stage's kind.
	ErrUnknownParameter = errors.New("unknown parameter")
	// ErrCyclicDependency is returned when resolving a key re-enters itself.
	ErrCyclicDependency = errors.New("cyclic parameter dependency")
	// ErrUnknownMetricKey is returned for keys outside the declared metric set.
	ErrUnknownMetricKey = errors.New("unknown metric key")
	// ErrUnknownPhase is returned for registry entries with an undefined phase.
	ErrUnknownPhase = errors.New("unknown phase")
	// ErrInvalidRegistry covers the remaining registry configuration errors.
	ErrInvalidRegistry = errors.New("invalid metric registry")
	// ErrInvalidGlobals is returned when the global inputs can't be evaluated.
	ErrInvalidGlobals = errors.New("invalid globals")
	// ErrIndexOutOfRange is returned by chain edits addressing a missing stage.
	ErrIndexOutOfRange = errors.New("stage index out of range")
)

// ParameterError records a failed lookup on one stage.
type ParameterError struct {
	Stage string
	Key   Metric
	Err   error
}

func (e *ParameterError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Key, e.Err)
}

func (e *ParameterError) Unwrap() error { return e.Err }
