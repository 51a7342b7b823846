package frame

import (
	"fmt"
	"image"
)

// PixelFormat identifies the layout of a Raw frame's buffer.
type PixelFormat uint8

const (
	FormatUnknown PixelFormat = iota
	// FormatI420 is YUV 4:2:0 planar: Y plane, then Cb, then Cr.
	FormatI420
)

// String returns the conventional name of the format.
func (f PixelFormat) String() string {
	switch f {
	case FormatI420:
		return "I420"
	default:
		return "unknown"
	}
}

// Default sizes used for wiring when nothing more specific is
// configured. The model contract fixes its input edge; the outbound
// track resolution matches the published feed.
const (
	DefaultDecodeSize   = 512
	DefaultEncodeWidth  = 1280
	DefaultEncodeHeight = 720
)

// Raw is one uncompressed video frame as it crosses the transport
// boundary. Data layout is defined by Format; for I420 the length
// invariant is checked by Validate.
type Raw struct {
	Width  uint32
	Height uint32
	Format PixelFormat
	Data   []byte
}

// I420Size returns the required buffer length for an I420 frame of the
// given dimensions. Chroma planes round up for odd dimensions.
func I420Size(width, height uint32) int {
	w, h := int(width), int(height)
	cw, ch := (w+1)/2, (h+1)/2
	return w*h + 2*cw*ch
}

// NewI420 allocates a zeroed I420 frame of the given dimensions.
func NewI420(width, height uint32) Raw {
	return Raw{
		Width:  width,
		Height: height,
		Format: FormatI420,
		Data:   make([]byte, I420Size(width, height)),
	}
}

// Validate checks that the frame's declared format and dimensions are
// consistent with its buffer. It returns ErrUnsupportedFormat for
// non-I420 frames and ErrSizeMismatch for dimension or length problems.
func (r Raw) Validate() error {
	if r.Format != FormatI420 {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, r.Format)
	}
	if r.Width == 0 || r.Height == 0 {
		return fmt.Errorf("%w: zero dimension %dx%d", ErrSizeMismatch, r.Width, r.Height)
	}
	if want := I420Size(r.Width, r.Height); len(r.Data) != want {
		return fmt.Errorf("%w: got %d bytes, want %d for %dx%d",
			ErrSizeMismatch, len(r.Data), want, r.Width, r.Height)
	}
	return nil
}

// ToYCbCr wraps the frame's planes in an image.YCbCr without copying.
// The returned image aliases r.Data; it is valid only as long as the
// buffer is.
func (r Raw) ToYCbCr() (*image.YCbCr, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	w, h := int(r.Width), int(r.Height)
	cw, ch := (w+1)/2, (h+1)/2
	ySize := w * h
	cSize := cw * ch
	return &image.YCbCr{
		Y:              r.Data[:ySize:ySize],
		Cb:             r.Data[ySize : ySize+cSize : ySize+cSize],
		Cr:             r.Data[ySize+cSize : ySize+2*cSize : ySize+2*cSize],
		YStride:        w,
		CStride:        cw,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, w, h),
	}, nil
}

// FromYCbCr copies a 4:2:0 subsampled image into a fresh I420 frame.
// Decoders hand out images backed by buffers they reuse, so the planes
// are copied row by row rather than aliased.
func FromYCbCr(img *image.YCbCr) (Raw, error) {
	if img.SubsampleRatio != image.YCbCrSubsampleRatio420 {
		return Raw{}, fmt.Errorf("%w: subsample ratio %s", ErrUnsupportedFormat, img.SubsampleRatio)
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= 0 || h <= 0 {
		return Raw{}, fmt.Errorf("%w: zero dimension %dx%d", ErrSizeMismatch, w, h)
	}
	raw := NewI420(uint32(w), uint32(h))
	cw, ch := (w+1)/2, (h+1)/2
	yPlane := raw.Data[:w*h]
	cbPlane := raw.Data[w*h : w*h+cw*ch]
	crPlane := raw.Data[w*h+cw*ch:]
	for row := 0; row < h; row++ {
		off := img.YOffset(img.Rect.Min.X, img.Rect.Min.Y+row)
		copy(yPlane[row*w:], img.Y[off:off+w])
	}
	for row := 0; row < ch; row++ {
		off := img.COffset(img.Rect.Min.X, img.Rect.Min.Y+2*row)
		copy(cbPlane[row*cw:], img.Cb[off:off+cw])
		copy(crPlane[row*cw:], img.Cr[off:off+cw])
	}
	return raw, nil
}
