//go:build !windows

package capture

import "errors"

func newGDIBackend() (Backend, error) {
	return nil, errors.ErrUnsupported
}
