package power

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

const (
	logindDest   = "org.freedesktop.login1"
	logindPath   = dbus.ObjectPath("/org/freedesktop/login1")
	idleHintProp = "org.freedesktop.login1.Manager.IdleHint"
	sleepProp    = "org.freedesktop.login1.Manager.PreparingForSleep"
)

// PropertyReader is the subset of dbus.BusObject used by Logind.
type PropertyReader interface {
	GetProperty(p string) (dbus.Variant, error)
}

// ObjectResolver hands out bus objects; *dbus.Conn satisfies it.
type ObjectResolver interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
}

// Logind reads wake state from systemd-logind over the system bus.
type Logind struct {
	obj    PropertyReader
	logger *slog.Logger
}

// NewLogind binds to the login1 manager on bus and checks that it answers.
func NewLogind(bus ObjectResolver, logger *slog.Logger) (*Logind, error) {
	if bus == nil {
		return nil, fmt.Errorf("logind: no system bus")
	}
	return newLogind(bus.Object(logindDest, logindPath), logger)
}

func newLogind(obj PropertyReader, logger *slog.Logger) (*Logind, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := obj.GetProperty(idleHintProp); err != nil {
		return nil, fmt.Errorf("logind unavailable: %w", err)
	}
	return &Logind{obj: obj, logger: logger}, nil
}

// IsInteractive reports true when logind considers the seat active and the
// system is not on its way to sleep.
func (l *Logind) IsInteractive() bool {
	idle, ok := l.readBool(idleHintProp)
	if !ok || idle {
		return false
	}
	sleeping, ok := l.readBool(sleepProp)
	return ok && !sleeping
}

func (l *Logind) readBool(prop string) (value, ok bool) {
	v, err := l.obj.GetProperty(prop)
	if err != nil {
		l.logger.Debug("read logind property failed", "property", prop, "error", err)
		return false, false
	}
	b, ok := v.Value().(bool)
	if !ok {
		l.logger.Debug("unexpected logind property type", "property", prop, "signature", v.Signature().String())
	}
	return b, ok
}
