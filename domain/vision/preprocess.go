package vision

// Frame preprocessing. Frames arrive as 8-bit BGR Mats; matching runs on a
// single-channel intensity image or on its Canny edge map.

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// EdgeParams configures edge extraction. BlurKernel <= 0 disables the blur.
type EdgeParams struct {
	Low        float64
	High       float64
	BlurKernel int
}

// DefaultEdgeParams mirrors the default watcher configuration.
func DefaultEdgeParams() EdgeParams {
	return EdgeParams{Low: 60, High: 160, BlurKernel: 3}
}

// ToIntensity converts a BGR frame to a single-channel gray Mat owned by the caller.
func ToIntensity(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Empty() || frame.Type() != gocv.MatTypeCV8UC3 {
		return gocv.NewMat(), fmt.Errorf("%w: rows=%d cols=%d channels=%d type=%d",
			ErrInvalidImageShape, frame.Rows(), frame.Cols(), frame.Channels(), frame.Type())
	}
	gray := gocv.NewMat()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	return gray, nil
}

// ToEdges returns the binary edge map of an intensity image. Output dimensions
// always equal input dimensions.
func ToEdges(intensity gocv.Mat, p EdgeParams) gocv.Mat {
	src := intensity
	if k := oddKernel(p.BlurKernel); k > 0 {
		blurred := gocv.NewMat()
		defer blurred.Close()
		gocv.GaussianBlur(intensity, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)
		src = blurred
	}
	edges := gocv.NewMat()
	gocv.Canny(src, &edges, float32(p.Low), float32(p.High))
	return edges
}

// oddKernel bumps an even positive kernel size to the next odd value.
// Non-positive sizes return 0 (no blur).
func oddKernel(k int) int {
	if k <= 0 {
		return 0
	}
	if k%2 == 0 {
		return k + 1
	}
	return k
}

// FrameFromImage converts a captured image into a BGR frame.
func FrameFromImage(img image.Image) (gocv.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return gocv.NewMat(), fmt.Errorf("%w: empty image", ErrInvalidImageShape)
	}
	return gocv.ImageToMatRGB(img)
}
