package coordinator

import "errors"

// Domain errors for the coordinator package.
// Use errors.Is() to check for these in calling code.
var (
	// ErrDeviceNotFound is returned when a device id has never been
	// observed on the bus.
	ErrDeviceNotFound = errors.New("coordinator: device not found")

	// ErrNotConfirmed is returned by SendCommandRetry when the retry
	// schedule is exhausted without a state echo from the target.
	ErrNotConfirmed = errors.New("coordinator: command not confirmed")

	// ErrAlreadyStarted is returned when starting a running hub.
	ErrAlreadyStarted = errors.New("coordinator: hub already started")
)
