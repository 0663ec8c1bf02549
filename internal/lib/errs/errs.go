// Package errs defines the error values shared by the sampling engine and its
// adapters. Every error is recoverable; callers match with errors.Is.
package errs

import "errors"

var (
	// ErrSampleRejected means a candidate point was closer to the last
	// recorded point than the movement threshold. It is a filtering outcome,
	// not a fault.
	ErrSampleRejected = errors.New("sample rejected: below movement threshold")

	ErrPivotLimitReached    = errors.New("pivot limit reached")
	ErrNoPivotToUndo        = errors.New("no pivot to undo")
	ErrInsufficientVertices = errors.New("insufficient vertices: at least 3 required")
	ErrSessionNotActive     = errors.New("session not active")

	// ErrSourceUnavailable is the parent of every location source failure
	ErrSourceUnavailable = errors.New("location source unavailable")

	ErrPermissionDenied = sourceError("permission denied")
	ErrSignalLost       = sourceError("signal lost")
	ErrTimeout          = sourceError("timeout")
)

type sourceErr struct {
	reason string
}

func sourceError(reason string) error {
	return &sourceErr{reason: reason}
}

func (e *sourceErr) Error() string {
	return ErrSourceUnavailable.Error() + ": " + e.reason
}

func (e *sourceErr) Unwrap() error {
	return ErrSourceUnavailable
}
