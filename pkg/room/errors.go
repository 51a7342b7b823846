package room

import "errors"

var (
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("room: invalid configuration")

	// ErrDisconnected is returned by Run when the server ends the
	// session rather than the caller. The SDK retries transient drops
	// itself; this fires only once those retries are exhausted.
	ErrDisconnected = errors.New("room: disconnected from server")
)
