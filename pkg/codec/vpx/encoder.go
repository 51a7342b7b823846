package vpx

import (
	"fmt"
	"image"

	mdcodec "github.com/pion/mediadevices/pkg/codec"
	mdvpx "github.com/pion/mediadevices/pkg/codec/vpx"
	mdframe "github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	"github.com/ivid/go-streamdiff/pkg/codec"
	"github.com/ivid/go-streamdiff/pkg/frame"
)

const (
	// DefaultBitrate is the VP8 target bitrate when none is configured,
	// sized for the 1280x720 outbound feed.
	DefaultBitrate = 1_000_000

	encoderFrameRate = 30
)

// Encoder encodes I420 frames to VP8 at a fixed resolution. Not safe
// for concurrent use.
type Encoder struct {
	width  int
	height int

	// pending holds the frame handed to the mediadevices reader while a
	// single Encode call is in flight.
	pending *image.YCbCr
	rc      mdcodec.ReadCloser
	closed  bool
}

var _ codec.VideoEncoder = (*Encoder)(nil)

// NewEncoder builds a realtime VP8 encoder for the given resolution.
// bitrate is in bits per second; zero or negative selects
// DefaultBitrate.
func NewEncoder(width, height, bitrate int) (*Encoder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("vpx: invalid encoder resolution %dx%d", width, height)
	}
	if bitrate <= 0 {
		bitrate = DefaultBitrate
	}
	params, err := mdvpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vpx: vp8 params: %w", err)
	}
	params.BitRate = bitrate

	e := &Encoder{width: width, height: height}
	reader := video.ReaderFunc(func() (image.Image, func(), error) {
		return e.pending, func() {}, nil
	})
	rc, err := params.BuildVideoEncoder(reader, prop.Media{
		Video: prop.Video{
			Width:       width,
			Height:      height,
			FrameRate:   encoderFrameRate,
			FrameFormat: mdframe.FormatI420,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vpx: build encoder: %w", err)
	}
	e.rc = rc
	return e, nil
}

// Encode compresses one I420 frame. The frame must match the encoder's
// construction resolution or codec.ErrDimensionMismatch is returned.
func (e *Encoder) Encode(raw frame.Raw) ([]byte, error) {
	if e.closed {
		return nil, fmt.Errorf("vpx: encoder is closed")
	}
	if int(raw.Width) != e.width || int(raw.Height) != e.height {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d",
			codec.ErrDimensionMismatch, raw.Width, raw.Height, e.width, e.height)
	}
	img, err := raw.ToYCbCr()
	if err != nil {
		return nil, err
	}
	e.pending = img
	b, release, err := e.rc.Read()
	e.pending = nil
	if err != nil {
		return nil, fmt.Errorf("vpx: encode: %w", err)
	}
	// The encoder reuses its output buffer between reads.
	out := make([]byte, len(b))
	copy(out, b)
	release()
	return out, nil
}

// ForceKeyframe requests a keyframe on the next Encode. Best effort.
func (e *Encoder) ForceKeyframe() {
	if e.rc == nil {
		return
	}
	if kf, ok := e.rc.Controller().(mdcodec.KeyFrameController); ok {
		_ = kf.ForceKeyFrame()
	}
}

// Close shuts down the underlying encoder.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.rc.Close()
}
