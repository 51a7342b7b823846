// Package codec defines the compressed-video boundary. Decoders turn
// depacketized bitstream samples into raw frames; encoders do the
// reverse. Implementations own native resources and must be closed.
package codec

import (
	"errors"

	"github.com/ivid/go-streamdiff/pkg/frame"
)

// Sentinel errors for codec conditions.
var (
	// ErrNoFrame is returned by Decode when the sample was consumed but
	// no displayable frame came out, typically while waiting for a
	// keyframe after joining or after loss. Callers skip and usually
	// request a new keyframe.
	ErrNoFrame = errors.New("codec: no frame produced")

	// ErrDimensionMismatch is returned by Encode when the frame does not
	// match the resolution the encoder was built for.
	ErrDimensionMismatch = errors.New("codec: frame dimensions do not match encoder")
)

// VideoDecoder decodes one encoded sample at a time. Samples must be
// complete frames in decode order; packet reassembly happens upstream.
// Not safe for concurrent use.
type VideoDecoder interface {
	Decode(encoded []byte) (frame.Raw, error)
	Close() error
}

// VideoEncoder encodes raw frames at a fixed resolution decided at
// construction. Not safe for concurrent use.
type VideoEncoder interface {
	Encode(raw frame.Raw) ([]byte, error)

	// ForceKeyframe requests that the next encoded frame be a keyframe.
	// Best effort; encoders without the capability ignore it.
	ForceKeyframe()

	Close() error
}
