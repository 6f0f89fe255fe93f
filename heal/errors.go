package heal

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the orchestrator is running.
	ErrAlreadyRunning = errors.New("heal: orchestrator already running")

	// ErrNilRegistry indicates a nil registry was provided.
	ErrNilRegistry = errors.New("heal: registry is nil")

	// ErrNilPolicy indicates a nil policy was provided.
	ErrNilPolicy = errors.New("heal: policy is nil")
)
