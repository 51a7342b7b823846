package frame

import "errors"

// Conversion errors. All of them are per-frame conditions: callers log,
// drop the frame, and keep the stream alive.
var (
	// ErrUnsupportedFormat indicates a pixel format this package cannot
	// convert (anything other than I420).
	ErrUnsupportedFormat = errors.New("frame: unsupported pixel format")

	// ErrSizeMismatch indicates a buffer whose length does not match the
	// declared dimensions, or dimensions that are themselves invalid.
	ErrSizeMismatch = errors.New("frame: buffer size does not match dimensions")

	// ErrEncodeSize indicates the encoder produced a buffer violating the
	// I420 size invariant. This is an internal assertion, not an input
	// condition; it is still handled by dropping the frame.
	ErrEncodeSize = errors.New("frame: encoded buffer size invariant violated")
)
