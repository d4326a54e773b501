// Package registry resolves the daemon's capability handles from a privileged
// context and keeps them for the life of the process.
package registry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/connorhough/mediakeyd/internal/bootstrap"
	"github.com/connorhough/mediakeyd/internal/inject"
	"github.com/connorhough/mediakeyd/internal/power"
)

// Capability names.
const (
	NameInput = "input"
	NamePower = "power"
)

// ErrNoContext is returned when Resolve is called without a privileged context.
var ErrNoContext = errors.New("privileged context required")

// LookupError reports a capability that could not be resolved.
type LookupError struct {
	Name string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("resolve capability %q: %v", e.Name, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Provider produces a capability from a privileged context.
type Provider func(pctx *bootstrap.PrivilegedContext) (any, error)

// Services holds the resolved handles. It is immutable after Resolve.
type Services struct {
	Input inject.Capability
	Power power.Capability
}

// Registry maps capability names to providers and resolves them once.
type Registry struct {
	mu        sync.Mutex
	providers map[string]Provider
	logger    *slog.Logger

	once     sync.Once
	services *Services
	err      error
}

// New returns an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{providers: make(map[string]Provider), logger: logger}
}

// Register installs p under name, replacing any earlier provider. Registering
// after Resolve has no effect on the resolved services.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Names returns the registered capability names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up the input and power capabilities. The lookup runs exactly
// once; later calls return the cached services or the cached failure.
func (r *Registry) Resolve(pctx *bootstrap.PrivilegedContext) (*Services, error) {
	if pctx == nil {
		return nil, ErrNoContext
	}
	r.once.Do(func() {
		r.services, r.err = r.resolve(pctx)
	})
	return r.services, r.err
}

func (r *Registry) resolve(pctx *bootstrap.PrivilegedContext) (*Services, error) {
	in, err := lookup[inject.Capability](r, pctx, NameInput)
	if err != nil {
		return nil, err
	}
	pw, err := lookup[power.Capability](r, pctx, NamePower)
	if err != nil {
		release(r.logger, NameInput, in)
		return nil, err
	}
	r.logger.Info("capabilities resolved", "names", r.Names(), "input", fmt.Sprintf("%T", in), "power", fmt.Sprintf("%T", pw))
	return &Services{Input: in, Power: pw}, nil
}

func lookup[T any](r *Registry, pctx *bootstrap.PrivilegedContext, name string) (T, error) {
	var zero T
	r.mu.Lock()
	p, ok := r.providers[name]
	r.mu.Unlock()
	if !ok {
		return zero, &LookupError{Name: name, Err: errors.New("no provider registered")}
	}

	v, err := p(pctx)
	if err != nil {
		return zero, &LookupError{Name: name, Err: err}
	}
	c, ok := v.(T)
	if !ok {
		release(r.logger, name, v)
		return zero, &LookupError{Name: name, Err: fmt.Errorf("provider returned %T", v)}
	}
	return c, nil
}

func release(logger *slog.Logger, name string, v any) {
	if c, ok := v.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("release capability failed", "name", name, "error", err)
		}
	}
}
