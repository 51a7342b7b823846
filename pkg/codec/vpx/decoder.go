// Package vpx provides VP8 coding backed by libvpx. The decoder wraps
// the xlab/libvpx-go binding directly; the encoder drives the same
// library through the pion/mediadevices realtime encoder.
package vpx

import (
	"errors"
	"fmt"

	libvpx "github.com/xlab/libvpx-go/vpx"

	"github.com/ivid/go-streamdiff/pkg/codec"
	"github.com/ivid/go-streamdiff/pkg/frame"
)

// ErrDecoderClosed is returned by Decode after Close.
var ErrDecoderClosed = errors.New("vpx: decoder is closed")

// Decoder decodes VP8 frames to I420. One instance per track; not safe
// for concurrent use.
type Decoder struct {
	ctx    *libvpx.CodecCtx
	closed bool
}

var _ codec.VideoDecoder = (*Decoder)(nil)

// NewDecoder initializes a libvpx VP8 decoder.
func NewDecoder() (*Decoder, error) {
	ctx := libvpx.NewCodecCtx()
	errc := libvpx.CodecDecInitVer(ctx, libvpx.DecoderIfaceVP8(), nil, 0, libvpx.DecoderABIVersion)
	if err := libvpx.Error(errc); err != nil {
		return nil, fmt.Errorf("vpx: init decoder: %w", err)
	}
	return &Decoder{ctx: ctx}, nil
}

// Decode feeds one complete VP8 frame to the decoder and returns the
// picture as an owned I420 copy. Before the first keyframe arrives the
// decoder consumes input without producing output and Decode returns
// codec.ErrNoFrame; callers skip the sample and request a keyframe.
func (d *Decoder) Decode(encoded []byte) (frame.Raw, error) {
	if d.closed {
		return frame.Raw{}, ErrDecoderClosed
	}
	errc := libvpx.CodecDecode(d.ctx, string(encoded), uint32(len(encoded)), nil, 0)
	if err := libvpx.Error(errc); err != nil {
		return frame.Raw{}, fmt.Errorf("vpx: decode: %w", err)
	}
	var iter libvpx.CodecIter
	img := libvpx.CodecGetFrame(d.ctx, &iter)
	if img == nil {
		return frame.Raw{}, codec.ErrNoFrame
	}
	img.Deref()
	// The planes alias libvpx's internal buffer, reused on the next
	// Decode call. FromYCbCr copies them out.
	raw, err := frame.FromYCbCr(img.ImageYCbCr())
	if err != nil {
		return frame.Raw{}, fmt.Errorf("vpx: decoded frame: %w", err)
	}
	return raw, nil
}

// Close releases the libvpx context.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if err := libvpx.Error(libvpx.CodecDestroy(d.ctx)); err != nil {
		return fmt.Errorf("vpx: destroy decoder: %w", err)
	}
	return nil
}
