package capture

import (
	"fmt"
	"image"
	"image/draw"
)

// Region is a screen-space rectangle.
type Region struct {
	Left, Top, Width, Height int
}

// RegionFromRect converts an image.Rectangle.
func RegionFromRect(r image.Rectangle) Region {
	return Region{Left: r.Min.X, Top: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

func (r Region) Right() int  { return r.Left + r.Width }
func (r Region) Bottom() int { return r.Top + r.Height }

// Origin is the screen position of the region's top-left pixel.
func (r Region) Origin() image.Point { return image.Pt(r.Left, r.Top) }

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle { return image.Rect(r.Left, r.Top, r.Right(), r.Bottom()) }

// Empty reports whether the region has no area.
func (r Region) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.Left, r.Top, r.Width, r.Height)
}

// grabClipped captures the part of r that lies on screen and pads the rest
// with opaque black, so the returned image always spans r and pixel (0,0)
// maps to r.Origin().
func grabClipped(r Region, screen image.Rectangle, grab func(image.Rectangle) (*image.RGBA, error)) (*image.RGBA, error) {
	want := r.Rect()
	visible := want.Intersect(screen)
	if visible.Empty() {
		return nil, fmt.Errorf("capture: region %s outside screen %v", r, screen)
	}
	img, err := grab(visible)
	if err != nil {
		return nil, err
	}
	if visible == want {
		return img, nil
	}
	full := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(full, full.Bounds(), image.Black, image.Point{}, draw.Src)
	draw.Draw(full, visible.Sub(want.Min), img, img.Bounds().Min, draw.Src)
	return full, nil
}
