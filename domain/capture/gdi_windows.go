//go:build windows

package capture

// GDI capture. Each Grab creates a temporary top-down DIB, BitBlts the
// region into it and converts BGRA to a heap-owned *image.RGBA.

import (
	"fmt"
	"image"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	smCxScreen = 0
	smCyScreen = 1
	srcCopy    = 0x00CC0020
	gdiError   = ^uintptr(0)
)

var (
	user32                 = windows.NewLazySystemDLL("user32.dll")
	gdi32                  = windows.NewLazySystemDLL("gdi32.dll")
	procGetDC              = user32.NewProc("GetDC")
	procReleaseDC          = user32.NewProc("ReleaseDC")
	procGetSystemMetrics   = user32.NewProc("GetSystemMetrics")
	procCreateCompatibleDC = gdi32.NewProc("CreateCompatibleDC")
	procDeleteDC           = gdi32.NewProc("DeleteDC")
	procSelectObject       = gdi32.NewProc("SelectObject")
	procBitBlt             = gdi32.NewProc("BitBlt")
	procCreateDIBSection   = gdi32.NewProc("CreateDIBSection")
	procDeleteObject       = gdi32.NewProc("DeleteObject")
)

// bitmapInfo is BITMAPINFO with a BITMAPINFOHEADER and one unused RGBQUAD.
type bitmapInfo struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
	_             [4]byte
}

type gdiBackend struct {
	screen image.Rectangle
}

func newGDIBackend() (Backend, error) {
	w, _, _ := procGetSystemMetrics.Call(smCxScreen)
	h, _, _ := procGetSystemMetrics.Call(smCyScreen)
	if int32(w) <= 0 || int32(h) <= 0 {
		return nil, fmt.Errorf("capture: gdi: invalid screen size %dx%d", int32(w), int32(h))
	}
	return &gdiBackend{screen: image.Rect(0, 0, int(w), int(h))}, nil
}

// Grab captures r. Parts of r off the primary screen come back black.
func (b *gdiBackend) Grab(r Region) (*image.RGBA, error) {
	if r.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrEmptyRegion, r)
	}
	return grabClipped(r, b.screen, bitBlt)
}

func (b *gdiBackend) Close() error { return nil }

func bitBlt(r image.Rectangle) (*image.RGBA, error) {
	w, h := r.Dx(), r.Dy()

	screenDC, _, err := procGetDC.Call(0)
	if screenDC == 0 {
		return nil, fmt.Errorf("capture: gdi: GetDC: %w", err)
	}
	defer procReleaseDC.Call(0, screenDC)

	memDC, _, err := procCreateCompatibleDC.Call(screenDC)
	if memDC == 0 {
		return nil, fmt.Errorf("capture: gdi: CreateCompatibleDC: %w", err)
	}
	defer procDeleteDC.Call(memDC)

	bi := bitmapInfo{
		Width:     int32(w),
		Height:    -int32(h), // negative height: top-down rows
		Planes:    1,
		BitCount:  32,
		SizeImage: uint32(w * h * 4),
	}
	bi.Size = uint32(unsafe.Offsetof(bi.ClrImportant) + unsafe.Sizeof(bi.ClrImportant))

	var bits unsafe.Pointer
	bmp, _, err := procCreateDIBSection.Call(memDC, uintptr(unsafe.Pointer(&bi)), 0, uintptr(unsafe.Pointer(&bits)), 0, 0)
	if bmp == 0 {
		return nil, fmt.Errorf("capture: gdi: CreateDIBSection: %w", err)
	}
	defer procDeleteObject.Call(bmp)

	if prev, _, err := procSelectObject.Call(memDC, bmp); prev == 0 || prev == gdiError {
		return nil, fmt.Errorf("capture: gdi: SelectObject: %w", err)
	}
	if ok, _, err := procBitBlt.Call(memDC, 0, 0, uintptr(w), uintptr(h), screenDC, uintptr(r.Min.X), uintptr(r.Min.Y), srcCopy); ok == 0 {
		return nil, fmt.Errorf("capture: gdi: BitBlt %v: %w", r, err)
	}

	n := w * h * 4
	src := unsafe.Slice((*byte)(bits), n)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < n; i += 4 {
		// DIB alpha is undefined; frames are always opaque.
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = src[i+2], src[i+1], src[i], 0xFF
	}
	return dst, nil
}
