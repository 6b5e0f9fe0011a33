package capture

import (
	"fmt"
	"image"

	"github.com/vova616/screenshot"
)

// ScreenshotBackend captures through github.com/vova616/screenshot.
type ScreenshotBackend struct{}

func (ScreenshotBackend) Grab(r Region) (*image.RGBA, error) {
	if r.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrEmptyRegion, r)
	}
	img, err := screenshot.CaptureRect(r.Rect())
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot %s: %w", r, err)
	}
	return img, nil
}

func (ScreenshotBackend) Close() error { return nil }

// ScreenRegion returns the bounds of the primary screen.
func ScreenRegion() (Region, error) {
	rect, err := screenshot.ScreenRect()
	if err != nil {
		return Region{}, fmt.Errorf("capture: screen bounds: %w", err)
	}
	return RegionFromRect(rect), nil
}
