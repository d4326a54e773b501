// Package daemon ties the privileged bootstrap, the capability registry and
// the event injector into the object the rest of the process talks to.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/connorhough/mediakeyd/internal/bootstrap"
	"github.com/connorhough/mediakeyd/internal/inject"
	"github.com/connorhough/mediakeyd/internal/registry"
	"github.com/connorhough/mediakeyd/internal/sysinfo"
)

// State is the daemon lifecycle state. The only transition is
// StateUninitialized to StateReady.
type State int32

const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures Start.
type Options struct {
	Bootstrap *bootstrap.Bootstrap
	Registry  *registry.Registry
	Inject    inject.Options
	Logger    *slog.Logger
}

// Daemon exposes the media key and wake state operations. A Daemon returned
// by Start is always Ready; the zero Daemon is Uninitialized and answers every
// call with a no-op.
type Daemon struct {
	state    atomic.Int32
	pctx     *bootstrap.PrivilegedContext
	services *registry.Services
	injector *inject.Injector
	logger   *slog.Logger
}

// Start runs the bootstrap and resolves the capabilities. Any error is fatal
// for the process.
func Start(ctx context.Context, opts Options) (*Daemon, error) {
	if opts.Bootstrap == nil || opts.Registry == nil {
		return nil, fmt.Errorf("daemon: bootstrap and registry are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pctx, err := opts.Bootstrap.Initialize(ctx)
	if err != nil {
		return nil, err
	}
	services, err := opts.Registry.Resolve(pctx)
	if err != nil {
		return nil, err
	}

	injOpts := opts.Inject
	if injOpts.Logger == nil {
		injOpts.Logger = logger
	}
	d := &Daemon{
		pctx:     pctx,
		services: services,
		injector: inject.New(services.Input, injOpts),
		logger:   logger,
	}
	d.state.Store(int32(StateReady))
	logger.Info("daemon ready", "device", pctx.Device().String(), "uid", pctx.UID())
	return d, nil
}

// State returns the lifecycle state.
func (d *Daemon) State() State {
	return State(d.state.Load())
}

// Device returns the host identity, or the zero Device before Ready.
func (d *Daemon) Device() sysinfo.Device {
	if d.State() != StateReady {
		return sysinfo.Device{}
	}
	return d.pctx.Device()
}

// IsInteractive reports the live wake state. It is false before Ready.
func (d *Daemon) IsInteractive() bool {
	if d.State() != StateReady {
		return false
	}
	return d.services.Power.IsInteractive()
}

// SendMediaNextEvent injects a media-next press. Failures are logged only.
func (d *Daemon) SendMediaNextEvent() {
	d.Emit(inject.KeyMediaNext)
}

// SendMediaPrevEvent injects a media-previous press. Failures are logged only.
func (d *Daemon) SendMediaPrevEvent() {
	d.Emit(inject.KeyMediaPrevious)
}

// Emit injects code and returns the outcome for callers that want it.
func (d *Daemon) Emit(code inject.KeyCode) inject.Result {
	if d.State() != StateReady {
		if d.logger != nil {
			d.logger.Warn("send event before ready", "key", code.String())
		}
		return inject.Result{Event: inject.NewKeyEvent(code), Err: inject.ErrNoCapability}
	}
	return d.injector.Emit(code)
}
