package transform

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"
)

// Canny thresholds and overlay placement for the edge stylizer.
const (
	cannyLowThreshold  = 50
	cannyHighThreshold = 150
	overlayFontScale   = 1.0
	overlayThickness   = 2
)

// Edge is the classical, model-free stylizer: detected edges are
// painted green over a sharpened copy of the frame, the result is
// blended back onto the original, and the current prompt is drawn in
// the top-left corner. It keeps the feed recognizable while making the
// processing visibly obvious.
type Edge struct {
	mu sync.Mutex // Protects OpenCV buffers
}

// NewEdge creates the edge stylizer.
func NewEdge() *Edge {
	return &Edge{}
}

// Transform applies the edge overlay pipeline to one frame.
func (e *Edge) Transform(ctx context.Context, req Request) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	src, err := gocv.ImageToMatRGB(req.Image)
	if err != nil {
		return nil, fmt.Errorf("edge: convert input: %w", err)
	}
	defer src.Close()
	if src.Empty() {
		return nil, fmt.Errorf("edge: empty input image")
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, cannyLowThreshold, cannyHighThreshold)

	// Thicken edges slightly so they survive the downstream resize.
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(2, 2))
	defer kernel.Close()
	gocv.Dilate(edges, &edges, kernel)

	colored := src.Clone()
	defer colored.Close()
	green := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 255, 0, 0),
		src.Rows(), src.Cols(), src.Type())
	defer green.Close()
	green.CopyToWithMask(&colored, edges)

	// Unsharp mask over the edge-painted copy.
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(colored, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)
	sharpened := gocv.NewMat()
	defer sharpened.Close()
	gocv.AddWeighted(colored, 1.5, blurred, -0.5, 0, &sharpened)

	out := gocv.NewMat()
	defer out.Close()
	gocv.AddWeighted(src, 0.6, sharpened, 0.4, 0, &out)

	gocv.PutText(&out, req.Prompt, image.Pt(50, 50),
		gocv.FontHersheySimplex, overlayFontScale,
		color.RGBA{G: 255, A: 255}, overlayThickness)

	img, err := out.ToImage()
	if err != nil {
		return nil, fmt.Errorf("edge: convert output: %w", err)
	}
	return img, nil
}

// Verify Edge implements Transformer at compile time.
var _ Transformer = (*Edge)(nil)
