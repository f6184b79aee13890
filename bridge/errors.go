package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCommand is returned for a command the dispatcher does not know.
	ErrUnknownCommand = errors.New("vptree: unknown command")
	// ErrSessionBusy is returned when a session is re-entered from its own
	// distance callback with anything other than add.
	ErrSessionBusy = errors.New("vptree: session is busy")
	// ErrSessionMismatch is returned when an incremental handle is used with
	// a session that does not own it.
	ErrSessionMismatch = errors.New("vptree: incremental session belongs to another tree")
	// ErrInvalidState is returned for an incremental operation not allowed
	// in the session's current state.
	ErrInvalidState = errors.New("vptree: invalid incremental session state")
)

// ArgCountError reports a command invoked with the wrong number of arguments.
type ArgCountError struct {
	Command  string
	Expected int
	Got      int
}

func (e *ArgCountError) Error() string {
	return fmt.Sprintf("vptree: %s expects %d arguments, got %d", e.Command, e.Expected, e.Got)
}

// CallbackError reports a distance callback that failed or returned a value
// that is not a non-negative number. It aborts the enclosing operation.
type CallbackError struct {
	Value any
	Err   error
}

func (e *CallbackError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("vptree: distance callback returned %v: %v", e.Value, e.Err)
	}
	return fmt.Sprintf("vptree: distance callback failed: %v", e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }
