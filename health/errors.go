package health

import "errors"

var (
	// ErrProbeFailed indicates a probe reported a non-healthy status.
	ErrProbeFailed = errors.New("health: probe failed")

	// ErrProbeTimeout indicates a probe did not finish within its timeout.
	ErrProbeTimeout = errors.New("health: probe timeout")

	// ErrProbePanic indicates a probe panicked.
	ErrProbePanic = errors.New("health: probe panicked")

	// ErrProbeNotFound indicates no probe is registered under the name.
	ErrProbeNotFound = errors.New("health: probe not found")
)
