package frame

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// DecodeRGB validates an I420 frame and converts it to an RGB image
// resized to a size x size square. The model input is a fixed square,
// so non-square sources are stretched, not letterboxed. A size of zero
// or less falls back to DefaultDecodeSize.
//
// On error no image is produced and the input is untouched.
func DecodeRGB(raw Raw, size int) (*image.NRGBA, error) {
	if size <= 0 {
		size = DefaultDecodeSize
	}
	ycc, err := raw.ToYCbCr()
	if err != nil {
		return nil, err
	}
	if int(raw.Width) == size && int(raw.Height) == size {
		return imaging.Clone(ycc), nil
	}
	return imaging.Resize(ycc, size, size, imaging.Lanczos), nil
}

// EncodeI420 converts an RGB image into an I420 frame at the given
// output resolution, resizing first when the dimensions differ. Chroma
// is produced by averaging each 2x2 block before converting, which is
// the usual area-averaged 4:2:0 downsample.
//
// Width or height of zero or less falls back to the default outbound
// track resolution.
func EncodeI420(img image.Image, width, height int) (Raw, error) {
	if width <= 0 || height <= 0 {
		width, height = DefaultEncodeWidth, DefaultEncodeHeight
	}
	var src *image.NRGBA
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		src = imaging.Resize(img, width, height, imaging.Linear)
	} else if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		src = n
	} else {
		src = imaging.Clone(img)
	}

	raw := NewI420(uint32(width), uint32(height))
	cw, ch := (width+1)/2, (height+1)/2
	yPlane := raw.Data[:width*height]
	cbPlane := raw.Data[width*height : width*height+cw*ch]
	crPlane := raw.Data[width*height+cw*ch:]

	for y := 0; y < height; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < width; x++ {
			r, g, b := row[x*4], row[x*4+1], row[x*4+2]
			yy, _, _ := color.RGBToYCbCr(r, g, b)
			yPlane[y*width+x] = yy
		}
	}

	for cy := 0; cy < ch; cy++ {
		for cx := 0; cx < cw; cx++ {
			var rSum, gSum, bSum, n uint32
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					x, y := cx*2+dx, cy*2+dy
					if x >= width || y >= height {
						continue
					}
					off := y*src.Stride + x*4
					rSum += uint32(src.Pix[off])
					gSum += uint32(src.Pix[off+1])
					bSum += uint32(src.Pix[off+2])
					n++
				}
			}
			_, cb, cr := color.RGBToYCbCr(uint8(rSum/n), uint8(gSum/n), uint8(bSum/n))
			cbPlane[cy*cw+cx] = cb
			crPlane[cy*cw+cx] = cr
		}
	}

	if want := I420Size(uint32(width), uint32(height)); len(raw.Data) != want {
		return Raw{}, fmt.Errorf("%w: got %d bytes, want %d for %dx%d",
			ErrEncodeSize, len(raw.Data), want, width, height)
	}
	return raw, nil
}
