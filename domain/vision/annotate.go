package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var annotateColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// Label formats the debug label for a candidate, e.g. "HIT bobber sc=0.9312".
func Label(kind string, c Candidate) string {
	return fmt.Sprintf("%s %s sc=%.4f", kind, c.Template, c.Score)
}

// Annotate returns a copy of frame with the candidate box, a center dot and a
// text label drawn on it. The caller owns the returned Mat.
func Annotate(frame gocv.Mat, c Candidate, label string) gocv.Mat {
	out := frame.Clone()
	gocv.Rectangle(&out, c.Rect(), annotateColor, 2)
	gocv.Circle(&out, c.Center, 4, annotateColor, -1)
	org := image.Pt(c.TopLeft.X, max(12, c.TopLeft.Y-8))
	gocv.PutText(&out, label, org, gocv.FontHersheySimplex, 0.5, annotateColor, 1)
	return out
}
