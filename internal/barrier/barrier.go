// Package barrier implements the barrier protocol (C7): a sentinel
// failure raised by the user's graph-building code when a value it needs
// is not yet computed, caught only at the one loader call site, and used
// to re-enter scheduling in phases.
package barrier

import "errors"

// Error is the sentinel raised when a barrier is hit. It carries no
// payload: the reload loop simply re-runs the builder from scratch once
// progress has (maybe) been made by the scheduler.
type Error struct {
	reason string
}

func (e *Error) Error() string {
	if e.reason == "" {
		return "barrier: a required value is not yet available"
	}
	return "barrier: " + e.reason
}

// Raise is called by graph-building code (typically inside a helper that
// demands a Task's value before the graph is fully built) to signal that
// building must stop here and resume after the scheduler makes more
// progress.
func Raise(reason string) error {
	return &Error{reason: reason}
}

// IsBarrier reports whether err is (or wraps) a barrier Error.
func IsBarrier(err error) bool {
	var b *Error
	return errors.As(err, &b)
}

// Catch runs build and reports whether it hit a barrier. A barrier error
// is swallowed (it is the expected signal to retry, not a failure); any
// other error propagates. This is the single catch site the protocol
// requires — everywhere else a barrier Error is just an ordinary error
// bubbling up the call stack.
func Catch(build func() error) (hasBarrier bool, err error) {
	err = build()
	if err == nil {
		return false, nil
	}
	if IsBarrier(err) {
		return true, nil
	}
	return false, err
}
