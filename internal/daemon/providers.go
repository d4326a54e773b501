//go:build linux

package daemon

import (
	"fmt"
	"log/slog"

	"github.com/connorhough/mediakeyd/internal/bootstrap"
	"github.com/connorhough/mediakeyd/internal/config"
	"github.com/connorhough/mediakeyd/internal/power"
	"github.com/connorhough/mediakeyd/internal/registry"
	"github.com/connorhough/mediakeyd/internal/uinput"
	"golang.org/x/sys/unix"
)

// NewRegistry returns a registry wired to the real capabilities: a uinput
// virtual keyboard and the configured power backend.
func NewRegistry(cfg *config.Config, logger *slog.Logger) *registry.Registry {
	r := registry.New(logger)
	r.Register(registry.NameInput, func(pctx *bootstrap.PrivilegedContext) (any, error) {
		if err := unix.Access(cfg.Input.UinputPath, unix.W_OK); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", bootstrap.ErrNotPrivileged, cfg.Input.UinputPath, err)
		}
		kb, err := uinput.Open(uinput.Options{
			Name:       cfg.Input.DeviceName,
			StaleAfter: cfg.Input.StaleAfter,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return kb, nil
	})
	r.Register(registry.NamePower, func(pctx *bootstrap.PrivilegedContext) (any, error) {
		var bus power.ObjectResolver
		if b := pctx.Bus(); b != nil {
			bus = b
		}
		return power.Open(cfg.Power.Backend, cfg.Power.BacklightDir, bus, logger)
	})
	return r
}
