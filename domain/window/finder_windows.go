//go:build windows

package window

import (
	"fmt"
	"regexp"
	"strings"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"

	"github.com/soocke/game-watcher-go/domain/capture"
)

var (
	user32             = windows.NewLazySystemDLL("user32.dll")
	procGetWindowTextW = user32.NewProc("GetWindowTextW")

	// The runtime never releases callbacks, so one is shared by all calls.
	enumWindowsCB = windows.NewCallback(enumWindowsProc)
)

// enumState is passed to enumWindowsProc through EnumWindows' lParam.
type enumState struct {
	re  *regexp.Regexp
	out []Handle
}

func enumWindowsProc(hwnd uintptr, lparam uintptr) uintptr {
	st := (*enumState)(unsafe.Pointer(lparam))
	h := win.HWND(hwnd)
	if !win.IsWindowVisible(h) || win.IsIconic(h) {
		return 1
	}
	if t := windowTitle(hwnd); t != "" && st.re.MatchString(t) {
		st.out = append(st.out, Handle(hwnd))
	}
	return 1
}

type winFinder struct{}

// NewFinder returns the Win32 window service.
func NewFinder() (Finder, error) { return winFinder{}, nil }

func (winFinder) FindByTitle(re *regexp.Regexp) ([]Handle, error) {
	st := &enumState{re: re}
	if err := windows.EnumWindows(enumWindowsCB, unsafe.Pointer(st)); err != nil {
		return nil, fmt.Errorf("window: EnumWindows: %w", err)
	}
	return st.out, nil
}

func (winFinder) Info(h Handle) (Info, error) {
	hwnd := win.HWND(h)
	var rc win.RECT
	if !win.GetClientRect(hwnd, &rc) {
		return Info{}, fmt.Errorf("window: GetClientRect failed for %#x", uintptr(h))
	}
	pt := win.POINT{X: rc.Left, Y: rc.Top}
	if !win.ClientToScreen(hwnd, &pt) {
		return Info{}, fmt.Errorf("window: ClientToScreen failed for %#x", uintptr(h))
	}
	return Info{
		Handle: h,
		Title:  windowTitle(uintptr(h)),
		Client: capture.Region{
			Left:   int(pt.X),
			Top:    int(pt.Y),
			Width:  int(rc.Right - rc.Left),
			Height: int(rc.Bottom - rc.Top),
		},
	}, nil
}

func (winFinder) IsForeground(h Handle) bool {
	return win.GetForegroundWindow() == win.HWND(h)
}

func windowTitle(hwnd uintptr) string {
	buf := make([]uint16, 512)
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return strings.TrimSpace(windows.UTF16ToString(buf[:n]))
}
