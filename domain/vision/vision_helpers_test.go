package vision

import (
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"os"
	"sync"
	"testing"

	"gocv.io/x/gocv"
)

// grayMat builds a single-channel Mat of the given size filled with v.
func grayMat(t *testing.T, w, h int, v byte) gocv.Mat {
	t.Helper()
	buf := make([]byte, w*h)
	for i := range buf {
		buf[i] = v
	}
	m, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC1, buf)
	if err != nil {
		t.Fatalf("NewMatFromBytes: %v", err)
	}
	return m
}

// noiseImage returns a deterministic RGBA noise pattern.
func noiseImage(w, h int, seed uint64) *image.RGBA {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		v := byte(r.IntN(256))
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, byte(255-v), byte(v/2), 255
	}
	return img
}

// uniformImage returns a solid RGBA image.
func uniformImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// paste copies src into dst with its top-left at at.
func paste(dst, src *image.RGBA, at image.Point) {
	b := src.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.SetRGBA(at.X+x, at.Y+y, src.RGBAAt(x, y))
		}
	}
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// templateFromImage builds a Template directly from an in-memory image.
func templateFromImage(t *testing.T, name string, img image.Image) Template {
	t.Helper()
	bgr, err := FrameFromImage(img)
	if err != nil {
		t.Fatalf("FrameFromImage: %v", err)
	}
	defer bgr.Close()
	gray, err := ToIntensity(bgr)
	if err != nil {
		t.Fatalf("ToIntensity: %v", err)
	}
	return Template{Name: name, Intensity: gray, Edges: ToEdges(gray, DefaultEdgeParams())}
}

// scriptedCorrelator returns queued surfaces in call order, or the surface
// registered for the template size when bySize is set. It records the
// template sizes it was asked about.
type scriptedCorrelator struct {
	mu       sync.Mutex
	surfaces []surface
	bySize   map[image.Point]surface
	calls    []image.Point
}

func (s *scriptedCorrelator) correlate(src, tmpl gocv.Mat, mode gocv.TemplateMatchMode) surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	size := image.Pt(tmpl.Cols(), tmpl.Rows())
	s.calls = append(s.calls, size)
	if s.bySize != nil {
		return s.bySize[size]
	}
	if len(s.calls) > len(s.surfaces) {
		return surface{}
	}
	return s.surfaces[len(s.calls)-1]
}
