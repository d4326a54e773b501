//go:build !linux

package bootstrap

import "errors"

func effectiveCaps() (uint64, error) {
	return 0, errors.New("capabilities are only supported on linux")
}
