// Package power answers whether the device is currently interactive, that is
// awake with its display on.
package power

import (
	"errors"
	"fmt"
	"log/slog"
)

// Capability is a live view of the device wake state. Implementations must not
// cache: every call reflects the state at call time.
type Capability interface {
	IsInteractive() bool
}

const (
	BackendBacklight = "backlight"
	BackendLogind    = "logind"
)

var (
	// ErrNoBacklight is returned when no usable sysfs backlight exists.
	ErrNoBacklight = errors.New("no backlight device found")
	// ErrUnknownBackend is returned for an unrecognised backend name.
	ErrUnknownBackend = errors.New("unknown power backend")
)

// Open returns the capability for the named backend. backlightDir is only
// used by the backlight backend, bus only by logind.
func Open(backend, backlightDir string, bus ObjectResolver, logger *slog.Logger) (Capability, error) {
	switch backend {
	case "", BackendBacklight:
		b, err := NewBacklight(backlightDir, logger)
		if err != nil {
			return nil, err
		}
		b.logger.Info("power backend ready", "backend", BackendBacklight, "dir", b.Dir())
		return b, nil
	case BackendLogind:
		l, err := NewLogind(bus, logger)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
