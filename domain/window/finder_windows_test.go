//go:build windows

package window

import (
	"regexp"
	"testing"
)

func TestWinFinder_RepeatedEnumeration(t *testing.T) {
	f, err := NewFinder()
	if err != nil {
		t.Fatalf("NewFinder: %v", err)
	}
	re := regexp.MustCompile(`.`)
	// Well past the runtime's limit on distinct syscall callbacks.
	for i := 0; i < 2500; i++ {
		if _, err := f.FindByTitle(re); err != nil {
			t.Fatalf("FindByTitle call %d: %v", i, err)
		}
	}
}
