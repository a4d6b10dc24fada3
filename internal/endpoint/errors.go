package endpoint

import "errors"

// Domain errors for the endpoint package.
var (
	// ErrInvalidIdentity is returned when an identity is missing its
	// id or class. Both are mandatory: id is the addressing key and
	// class is carried on every outbound envelope.
	ErrInvalidIdentity = errors.New("endpoint: invalid identity")

	// ErrNoBus is returned when constructing an endpoint without a bus.
	ErrNoBus = errors.New("endpoint: bus is required")
)
