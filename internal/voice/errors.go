package voice

import "errors"

var (
	// ErrTurnInProgress is returned while a turn is loading
	ErrTurnInProgress = errors.New("a turn is already in progress")
	// ErrNotConfigured is returned while the backend health check fails
	ErrNotConfigured = errors.New("backend not configured")
	// ErrEmptyInput is returned for blank input by the asynchronous entry points
	ErrEmptyInput = errors.New("empty input")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("controller closed")
)
