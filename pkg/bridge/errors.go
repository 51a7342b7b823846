package bridge

import "errors"

// Sentinel errors for common conditions.
var (
	// ErrSourceClosed is returned by Source.Next after the final frame.
	// The bridge treats it as a clean end of stream.
	ErrSourceClosed = errors.New("bridge: source closed")

	// ErrNilTransformer is returned when a bridge is built without a
	// transform.
	ErrNilTransformer = errors.New("bridge: transformer required")

	// ErrNilPromptState is returned when a bridge is built without a
	// prompt state.
	ErrNilPromptState = errors.New("bridge: prompt state required")

	// ErrInvalidConfig is wrapped by configuration validation failures.
	ErrInvalidConfig = errors.New("bridge: invalid config")
)
