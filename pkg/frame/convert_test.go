package frame

import (
	"errors"
	"image"
	"testing"
)

// gradient builds a smooth test image so chroma subsampling loss stays
// small and measurable.
func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := y*img.Stride + x*4
			img.Pix[off] = uint8(x * 255 / w)
			img.Pix[off+1] = uint8(y * 255 / h)
			img.Pix[off+2] = uint8((x + y) * 255 / (w + h))
			img.Pix[off+3] = 255
		}
	}
	return img
}

func TestI420Size(t *testing.T) {
	// Even dimensions follow the w*h*3/2 rule.
	if got := I420Size(1280, 720); got != 1280*720*3/2 {
		t.Errorf("Expected %d bytes for 1280x720, got %d", 1280*720*3/2, got)
	}
	if got := I420Size(512, 512); got != 512*512*3/2 {
		t.Errorf("Expected %d bytes for 512x512, got %d", 512*512*3/2, got)
	}

	// Odd dimensions round chroma planes up.
	if got := I420Size(3, 3); got != 9+2*4 {
		t.Errorf("Expected 17 bytes for 3x3, got %d", got)
	}
}

func TestValidate(t *testing.T) {
	good := NewI420(64, 48)
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate failed on well-formed frame: %v", err)
	}

	// Truncated buffer
	bad := good
	bad.Data = bad.Data[:len(bad.Data)-1]
	if err := bad.Validate(); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Expected ErrSizeMismatch for truncated buffer, got %v", err)
	}

	// Oversized buffer
	bad = good
	bad.Data = append(append([]byte{}, good.Data...), 0)
	if err := bad.Validate(); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Expected ErrSizeMismatch for oversized buffer, got %v", err)
	}

	// Unknown format
	bad = good
	bad.Format = FormatUnknown
	if err := bad.Validate(); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}

	// Zero dimensions
	zero := Raw{Width: 0, Height: 0, Format: FormatI420, Data: nil}
	if err := zero.Validate(); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Expected ErrSizeMismatch for zero dimensions, got %v", err)
	}
}

func TestToYCbCrAliasesBuffer(t *testing.T) {
	raw := NewI420(16, 16)
	img, err := raw.ToYCbCr()
	if err != nil {
		t.Fatalf("ToYCbCr failed: %v", err)
	}
	if img.Rect.Dx() != 16 || img.Rect.Dy() != 16 {
		t.Errorf("Expected 16x16 image, got %dx%d", img.Rect.Dx(), img.Rect.Dy())
	}

	// Writing through the raw buffer must be visible in the image.
	raw.Data[0] = 200
	if img.Y[0] != 200 {
		t.Error("Expected YCbCr view to alias the frame buffer")
	}
}

func TestFromYCbCrRoundTrip(t *testing.T) {
	raw := NewI420(32, 24)
	for i := range raw.Data {
		raw.Data[i] = byte(i * 7)
	}
	img, err := raw.ToYCbCr()
	if err != nil {
		t.Fatalf("ToYCbCr failed: %v", err)
	}
	back, err := FromYCbCr(img)
	if err != nil {
		t.Fatalf("FromYCbCr failed: %v", err)
	}
	if back.Width != raw.Width || back.Height != raw.Height {
		t.Fatalf("Expected %dx%d, got %dx%d", raw.Width, raw.Height, back.Width, back.Height)
	}
	for i := range raw.Data {
		if back.Data[i] != raw.Data[i] {
			t.Fatalf("Plane data differs at byte %d: got %d, want %d", i, back.Data[i], raw.Data[i])
		}
	}

	// Copy, not alias.
	raw.Data[0]++
	if back.Data[0] == raw.Data[0] {
		t.Error("Expected FromYCbCr to copy plane data")
	}
}

func TestDecodeRGBSize(t *testing.T) {
	raw := NewI420(640, 480)
	img, err := DecodeRGB(raw, 512)
	if err != nil {
		t.Fatalf("DecodeRGB failed: %v", err)
	}
	if img.Bounds().Dx() != 512 || img.Bounds().Dy() != 512 {
		t.Errorf("Expected 512x512 output, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}

	// Non-square input still lands on the square model size.
	wide := NewI420(1280, 720)
	img, err = DecodeRGB(wide, 512)
	if err != nil {
		t.Fatalf("DecodeRGB failed for 1280x720: %v", err)
	}
	if img.Bounds().Dx() != 512 || img.Bounds().Dy() != 512 {
		t.Errorf("Expected 512x512 output, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}

	// Already at model size: no resampling, same dimensions.
	square := NewI420(512, 512)
	img, err = DecodeRGB(square, 512)
	if err != nil {
		t.Fatalf("DecodeRGB failed for 512x512: %v", err)
	}
	if img.Bounds().Dx() != 512 || img.Bounds().Dy() != 512 {
		t.Errorf("Expected 512x512 output, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestDecodeRGBRejectsMalformed(t *testing.T) {
	// Truncated data produces no image.
	raw := NewI420(64, 64)
	raw.Data = raw.Data[:len(raw.Data)-10]
	img, err := DecodeRGB(raw, 512)
	if !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("Expected ErrSizeMismatch, got %v", err)
	}
	if img != nil {
		t.Error("Expected nil image for malformed frame")
	}

	// Unknown formats are rejected up front.
	unknown := Raw{Width: 64, Height: 64, Format: FormatUnknown, Data: make([]byte, 64*64*3/2)}
	_, err = DecodeRGB(unknown, 512)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestEncodeI420Length(t *testing.T) {
	img := gradient(512, 512)

	sizes := []struct{ w, h int }{
		{1280, 720},
		{512, 512},
		{640, 360},
		{321, 181},
	}
	for _, s := range sizes {
		raw, err := EncodeI420(img, s.w, s.h)
		if err != nil {
			t.Fatalf("EncodeI420(%dx%d) failed: %v", s.w, s.h, err)
		}
		if raw.Format != FormatI420 {
			t.Errorf("Expected I420 format, got %s", raw.Format)
		}
		if int(raw.Width) != s.w || int(raw.Height) != s.h {
			t.Errorf("Expected %dx%d, got %dx%d", s.w, s.h, raw.Width, raw.Height)
		}
		if len(raw.Data) != I420Size(uint32(s.w), uint32(s.h)) {
			t.Errorf("Expected %d bytes for %dx%d, got %d",
				I420Size(uint32(s.w), uint32(s.h)), s.w, s.h, len(raw.Data))
		}
		if err := raw.Validate(); err != nil {
			t.Errorf("Encoded frame failed validation: %v", err)
		}
	}
}

func TestEncodeI420Defaults(t *testing.T) {
	raw, err := EncodeI420(gradient(512, 512), 0, 0)
	if err != nil {
		t.Fatalf("EncodeI420 failed: %v", err)
	}
	if raw.Width != DefaultEncodeWidth || raw.Height != DefaultEncodeHeight {
		t.Errorf("Expected %dx%d default, got %dx%d",
			DefaultEncodeWidth, DefaultEncodeHeight, raw.Width, raw.Height)
	}
}

func TestRoundTripError(t *testing.T) {
	src := gradient(512, 512)

	raw, err := EncodeI420(src, 512, 512)
	if err != nil {
		t.Fatalf("EncodeI420 failed: %v", err)
	}
	back, err := DecodeRGB(raw, 512)
	if err != nil {
		t.Fatalf("DecodeRGB failed: %v", err)
	}

	// Chroma subsampling is lossy. On a smooth image the average error
	// per channel stays within a couple of code values.
	var total, n int64
	for y := 0; y < 512; y++ {
		for x := 0; x < 512; x++ {
			so := y*src.Stride + x*4
			bo := y*back.Stride + x*4
			for c := 0; c < 3; c++ {
				d := int64(src.Pix[so+c]) - int64(back.Pix[bo+c])
				if d < 0 {
					d = -d
				}
				total += d
				n++
			}
		}
	}
	avg := float64(total) / float64(n)
	if avg > 2.5 {
		t.Errorf("Average round-trip error too large: %.2f", avg)
	}
}
