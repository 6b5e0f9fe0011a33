//go:build !windows

package window

import (
	"errors"
	"regexp"
)

type unsupportedFinder struct{}

// NewFinder reports that window discovery is only available on Windows.
func NewFinder() (Finder, error) { return unsupportedFinder{}, errors.ErrUnsupported }

func (unsupportedFinder) FindByTitle(*regexp.Regexp) ([]Handle, error) {
	return nil, errors.ErrUnsupported
}

func (unsupportedFinder) Info(Handle) (Info, error) { return Info{}, errors.ErrUnsupported }

func (unsupportedFinder) IsForeground(Handle) bool { return false }
