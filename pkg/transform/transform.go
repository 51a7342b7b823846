// Package transform defines the pluggable per-frame image transform
// invoked by the bridge, together with two built-in implementations: a
// passthrough used for wiring tests and an OpenCV edge stylizer. The
// generative img2img transformer lives in pkg/diffusion.
package transform

import (
	"context"
	"errors"
	"image"
)

// ErrModelFailure indicates the generative model failed to produce an
// image. The bridge logs it, drops the frame, and moves on; there is no
// retry and no substitute frame.
var ErrModelFailure = errors.New("transform: model failure")

// Request carries one frame into a transform. It is built fresh for
// every processed frame and never retained after the call returns.
type Request struct {
	// Image is the model-sized RGB input.
	Image image.Image

	// Prompt is the guidance text snapshotted for this frame.
	Prompt string

	// Strength in [0,1] controls how far the model strays from the
	// input image. Ignored by non-generative transforms.
	Strength float64

	// Steps is the number of inference steps, at least 1.
	Steps int

	// GuidanceScale is the classifier-free guidance weight, >= 0.
	GuidanceScale float64
}

// Transformer turns one frame into another. Implementations are not
// required to be safe for concurrent calls; the bridge invokes them
// from a single goroutine and generative implementations additionally
// serialize with their own lock.
type Transformer interface {
	Transform(ctx context.Context, req Request) (image.Image, error)
}

// Passthrough returns the input unchanged. Useful as the "none"
// transform and in pipeline tests.
type Passthrough struct{}

// Transform echoes the request image.
func (Passthrough) Transform(ctx context.Context, req Request) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return req.Image, nil
}

// Verify Passthrough implements Transformer at compile time.
var _ Transformer = Passthrough{}
