// Package bootstrap establishes the privileged execution context the daemon
// needs before any capability can be resolved: a running dispatch loop, a
// verified system identity and a system bus connection.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/connorhough/mediakeyd/internal/sysinfo"
	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

// ErrNotPrivileged indicates the process does not run with system privilege.
var ErrNotPrivileged = errors.New("process lacks system privilege")

// StartupError reports a fatal failure while establishing the context.
type StartupError struct {
	Stage string
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup failed at %s: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

// Bus is the system bus connection; *dbus.Conn satisfies it.
type Bus interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Close() error
}

// Options configures Bootstrap. Zero values select the real system.
type Options struct {
	// SysRoot prefixes the sysfs and procfs paths used for device identity.
	SysRoot        string
	CheckPrivilege func() error
	DialBus        func() (Bus, error)
	// DialAttempts bounds how often the bus dial is tried while the bus
	// daemon is still coming up. Defaults to 3.
	DialAttempts int
	// DialBackoff is the first delay between dial attempts; it doubles up to
	// maxDialBackoff. Defaults to 250ms.
	DialBackoff time.Duration
	Logger      *slog.Logger
}

// PrivilegedContext is the elevated context capabilities are resolved from.
type PrivilegedContext struct {
	bus    Bus
	looper *Looper
	device sysinfo.Device
	uid    int
}

// NewPrivilegedContext assembles a context from parts already obtained. It
// exists for callers that establish privilege some other way, such as tests.
func NewPrivilegedContext(bus Bus, looper *Looper, device sysinfo.Device, uid int) *PrivilegedContext {
	return &PrivilegedContext{bus: bus, looper: looper, device: device, uid: uid}
}

// Bus returns the system bus connection.
func (c *PrivilegedContext) Bus() Bus { return c.bus }

// Looper returns the dispatch loop the context was established on.
func (c *PrivilegedContext) Looper() *Looper { return c.looper }

// Device returns the host identity.
func (c *PrivilegedContext) Device() sysinfo.Device { return c.device }

// UID returns the effective uid the context was obtained with.
func (c *PrivilegedContext) UID() int { return c.uid }

// Bootstrap performs the one-time initialization. It is safe for concurrent
// use; every call after the first returns the first call's outcome.
type Bootstrap struct {
	opts   Options
	looper *Looper
	logger *slog.Logger

	once sync.Once
	pctx *PrivilegedContext
	err  error
}

// New returns a Bootstrap that has not run yet.
func New(opts Options) *Bootstrap {
	if opts.CheckPrivilege == nil {
		opts.CheckPrivilege = RequirePrivilege
	}
	if opts.DialBus == nil {
		opts.DialBus = DialSystemBus
	}
	if opts.DialAttempts <= 0 {
		opts.DialAttempts = defaultDialAttempts
	}
	if opts.DialBackoff <= 0 {
		opts.DialBackoff = defaultDialBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrap{opts: opts, looper: NewLooper(), logger: logger}
}

// Looper returns the dispatch loop owned by b.
func (b *Bootstrap) Looper() *Looper {
	return b.looper
}

// Initialize starts the dispatch loop, checks privilege and connects to the
// system bus. Failures are fatal: no partial context is ever returned.
func (b *Bootstrap) Initialize(ctx context.Context) (*PrivilegedContext, error) {
	b.once.Do(func() {
		b.pctx, b.err = b.initialize(ctx)
	})
	return b.pctx, b.err
}

func (b *Bootstrap) initialize(ctx context.Context) (*PrivilegedContext, error) {
	if b.looper.Start() {
		b.logger.Debug("dispatch loop started")
	}

	if err := b.opts.CheckPrivilege(); err != nil {
		return nil, &StartupError{Stage: "privilege", Err: err}
	}

	var bus Bus
	err := retryWithBackoff(ctx, b.opts.DialAttempts, b.opts.DialBackoff, func(attempt int) error {
		var dialErr error
		if err := b.looper.Post(ctx, func() {
			bus, dialErr = b.opts.DialBus()
		}); err != nil {
			return permanent(&StartupError{Stage: "dispatch-loop", Err: err})
		}
		if dialErr != nil {
			b.logger.Debug("system bus dial failed", "attempt", attempt, "error", dialErr)
		}
		return dialErr
	})
	if err != nil {
		var se *StartupError
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, &StartupError{Stage: "system-bus", Err: err}
	}

	device := sysinfo.Read(b.opts.SysRoot)
	uid := unix.Geteuid()
	b.logger.Info("privileged context established", "uid", uid, "device", device.String())
	return NewPrivilegedContext(bus, b.looper, device, uid), nil
}

// RequirePrivilege fails unless the effective uid is 0 or the process holds
// CAP_SYS_ADMIN in its effective set.
func RequirePrivilege() error {
	return checkPrivilege(unix.Geteuid(), effectiveCaps)
}

// capSysAdmin is CAP_SYS_ADMIN's bit in a capability set.
const capSysAdmin = 21

func checkPrivilege(euid int, caps func() (uint64, error)) error {
	if euid == 0 {
		return nil
	}
	effective, err := caps()
	if err != nil {
		return fmt.Errorf("%w: effective uid %d, read capabilities: %v", ErrNotPrivileged, euid, err)
	}
	if effective&(1<<capSysAdmin) == 0 {
		return fmt.Errorf("%w: effective uid %d without CAP_SYS_ADMIN", ErrNotPrivileged, euid)
	}
	return nil
}

// DialSystemBus connects to the D-Bus system bus.
func DialSystemBus() (Bus, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	return conn, nil
}
