package config

import "errors"

var (
	// ErrInvalid wraps every validation problem.
	ErrInvalid = errors.New("config: invalid")

	// ErrRead indicates the YAML file could not be read or decoded.
	ErrRead = errors.New("config: read failed")
)
