package orchestrator

import "errors"

// Common errors for orchestrator operations
var (
	ErrMissingRequester    = errors.New("environment creator must be a valid user")
	ErrNameTaken           = errors.New("environment name already in use")
	ErrEnvironmentNotReady = errors.New("environment is not ready")
	ErrInvalidName         = errors.New("invalid name")
)
