package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrTransport              = errors.New("transport failure")
	ErrDecode                 = errors.New("decode failure")
	ErrStaleSession           = errors.New("session changed while request was in flight")
)

// TransitionError reports an operation that is illegal from the current state.
// It matches ErrInvalidStateTransition with errors.Is.
type TransitionError struct {
	Op   string
	From State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed from state %s", e.Op, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}
