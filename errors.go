package gojabridge

import (
	"errors"
	"fmt"
)

// TimeoutMessage is the message of the Error value substituted for the
// engine's interrupt signal, once [Instance.Terminate] takes effect.
const TimeoutMessage = "execution timed out"

var (
	// ErrClosed is returned by [Instance.Close] on a second call, and is the
	// panic value (wrapped) for any other use of a closed instance.
	ErrClosed = errors.New("gojabridge: instance closed")

	// ErrForeignHandle indicates a handle or value was used with an
	// instance other than the one that created it.
	ErrForeignHandle = errors.New("gojabridge: handle belongs to another instance")

	// ErrHandleReleased indicates a handle was used or dropped after it had
	// already been released (including a reference value decoded twice).
	ErrHandleReleased = errors.New("gojabridge: handle already released")

	// ErrConcurrentEntry indicates an instance was entered from a second
	// goroutine while a scope was active on another.
	ErrConcurrentEntry = errors.New("gojabridge: concurrent instance entry")

	// ErrNotExportable is returned by [Instance.Export] for values with no
	// JSON-compatible representation.
	ErrNotExportable = errors.New("gojabridge: value not exportable")

	// ErrDataNodeShape is returned by [Instance.ExportDataNode] when the
	// object does not have the expected data node shape.
	ErrDataNodeShape = errors.New("gojabridge: unexpected data node shape")

	// ErrDetachedBuffer is returned by [Instance.ExportDataNode] when one of
	// the referenced ArrayBuffers has been detached.
	ErrDetachedBuffer = errors.New("gojabridge: detached array buffer")
)

// ScriptError is the Go error form of an exception [Outcome], see
// [Outcome.Err].
type ScriptError struct {
	// Message is the string conversion of the thrown value, or its message
	// property when it is an Error object.
	Message string
	// Kind is the wire kind of the thrown value.
	Kind Kind
	// Terminated is true if the exception is the synthesized timeout error.
	Terminated bool
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	if e.Message == "" {
		return "script exception"
	}
	return "script exception: " + e.Message
}

// IsTerminated reports whether err (or any error it wraps) is a
// [ScriptError] caused by [Instance.Terminate].
func IsTerminated(err error) bool {
	var se *ScriptError
	return errors.As(err, &se) && se.Terminated
}

// protocolViolation panics with err wrapped with additional detail. Used
// for caller contract violations which the bridge does not recover from.
func protocolViolation(err error, format string, args ...any) {
	panic(fmt.Errorf("%w: "+format, append([]any{err}, args...)...))
}
