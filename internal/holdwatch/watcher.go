//go:build linux

// Package holdwatch turns long presses of the hardware volume keys into media
// next/previous presses while the screen is off.
//
// A volume key going down while the device is not interactive grabs the
// source device, so the press does not change the volume, and arms a timer.
// Releasing the key before the timer fires gives the device back. When the
// timer fires first, VOLUMEUP becomes media-next and VOLUMEDOWN becomes
// media-previous; the grab is held until the key is released.
package holdwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/holoplot/go-evdev"
)

// DefaultHoldThreshold is how long a volume key must be held.
const DefaultHoldThreshold = 700 * time.Millisecond

// Controller is the set of daemon operations the watcher drives.
type Controller interface {
	IsInteractive() bool
	SendMediaNextEvent()
	SendMediaPrevEvent()
}

// Device is an evdev input device; *evdev.InputDevice satisfies it.
type Device interface {
	CapableEvents(t evdev.EvType) []evdev.EvCode
	ReadOne() (*evdev.InputEvent, error)
	Grab() error
	Ungrab() error
	Close() error
}

// bindings maps each watched key to the operation a long press triggers.
var bindings = map[evdev.EvCode]func(Controller){
	evdev.KEY_VOLUMEUP:   Controller.SendMediaNextEvent,
	evdev.KEY_VOLUMEDOWN: Controller.SendMediaPrevEvent,
}

// Options configures a Watcher.
type Options struct {
	// Dir holds the evdev nodes, normally /dev/input.
	Dir           string
	HoldThreshold time.Duration
	Open          func(path string) (Device, error)
	// AfterFunc schedules f after d and returns a stop function. It defaults
	// to time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) (stop func() bool)
	Logger    *slog.Logger
}

// attached is an open device. caps is every key it advertises; keys is the
// subset it owns.
type attached struct {
	path    string
	dev     Device
	caps    map[evdev.EvCode]bool
	keys    map[evdev.EvCode]bool
	grabbed bool
}

type hold struct {
	held bool
	gen  int
	stop func() bool
}

type devEvent struct {
	dev *attached
	ev  *evdev.InputEvent
	err error
}

type expiry struct {
	code evdev.EvCode
	gen  int
}

// Watcher watches the volume keys. A Watcher is single use.
type Watcher struct {
	ctl       Controller
	dir       string
	threshold time.Duration
	open      func(path string) (Device, error)
	afterFunc func(d time.Duration, f func()) func() bool
	logger    *slog.Logger

	devices map[string]*attached
	owners  map[evdev.EvCode]*attached
	holds   map[evdev.EvCode]*hold

	events   chan devEvent
	expiries chan expiry
	done     chan struct{}
}

// New returns a Watcher driving ctl.
func New(ctl Controller, opts Options) *Watcher {
	w := &Watcher{
		ctl:       ctl,
		dir:       opts.Dir,
		threshold: opts.HoldThreshold,
		open:      opts.Open,
		afterFunc: opts.AfterFunc,
		logger:    opts.Logger,
		devices:   make(map[string]*attached),
		owners:    make(map[evdev.EvCode]*attached),
		holds:     make(map[evdev.EvCode]*hold),
		events:    make(chan devEvent),
		expiries:  make(chan expiry),
		done:      make(chan struct{}),
	}
	if w.dir == "" {
		w.dir = "/dev/input"
	}
	if w.threshold <= 0 {
		w.threshold = DefaultHoldThreshold
	}
	if w.open == nil {
		w.open = openEvdev
	}
	if w.afterFunc == nil {
		w.afterFunc = func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		}
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	for code := range bindings {
		w.holds[code] = &hold{}
	}
	return w
}

func openEvdev(path string) (Device, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// Run watches until ctx is cancelled. It fails only when the input directory
// cannot be read.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := os.ReadDir(w.dir); err != nil {
		return fmt.Errorf("read input directory: %w", err)
	}
	defer close(w.done)
	defer w.closeAll()

	var hotplug <-chan fsnotify.Event
	var hotplugErrs <-chan error
	if fw, err := fsnotify.NewWatcher(); err != nil {
		w.logger.Warn("hot-plug detection unavailable", "error", err)
	} else {
		defer fw.Close()
		if err := fw.Add(w.dir); err != nil {
			w.logger.Warn("hot-plug detection unavailable", "dir", w.dir, "error", err)
		} else {
			hotplug, hotplugErrs = fw.Events, fw.Errors
		}
	}

	w.rescan(ctx)
	w.logger.Info("start event loop", "dir", w.dir, "hold_threshold", w.threshold)

	for {
		select {
		case <-ctx.Done():
			return nil
		case de := <-w.events:
			if de.err != nil {
				w.detach(de.dev, de.err)
				w.rescan(ctx)
				continue
			}
			w.handle(de.dev, de.ev)
		case ex := <-w.expiries:
			w.expire(ex)
		case ev, ok := <-hotplug:
			if !ok {
				hotplug = nil
				continue
			}
			if ev.Has(fsnotify.Create) && isEventNode(ev.Name) {
				w.logger.Debug("input device added", "path", ev.Name)
				w.rescan(ctx)
			}
		case err, ok := <-hotplugErrs:
			if !ok {
				hotplugErrs = nil
				continue
			}
			w.logger.Warn("hot-plug watch error", "error", err)
		}
	}
}

func isEventNode(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "event")
}

// rescan assigns every unowned key to the device advertising it with the
// fewest keys overall, which is normally the dedicated button device. Devices
// already attached for another key are candidates too.
func (w *Watcher) rescan(ctx context.Context) {
	paths, err := filepath.Glob(filepath.Join(w.dir, "event*"))
	if err != nil {
		w.logger.Warn("scan input devices failed", "error", err)
		return
	}
	sort.Strings(paths)

	type candidate struct {
		path string
		dev  Device
		caps map[evdev.EvCode]bool
		// existing is set when the device is already attached.
		existing *attached
	}
	var candidates []*candidate
	for _, path := range paths {
		if a, ok := w.devices[path]; ok {
			candidates = append(candidates, &candidate{path: path, dev: a.dev, caps: a.caps, existing: a})
			continue
		}
		dev, err := w.open(path)
		if err != nil {
			w.logger.Debug("open input device failed", "path", path, "error", err)
			continue
		}
		codes := dev.CapableEvents(evdev.EV_KEY)
		caps := make(map[evdev.EvCode]bool, len(codes))
		for _, c := range codes {
			caps[c] = true
		}
		candidates = append(candidates, &candidate{path: path, dev: dev, caps: caps})
	}

	chosen := make(map[*candidate]map[evdev.EvCode]bool)
	for code := range bindings {
		if w.owners[code] != nil {
			continue
		}
		var best *candidate
		for _, c := range candidates {
			if c.caps[code] && (best == nil || len(c.caps) < len(best.caps)) {
				best = c
			}
		}
		if best == nil {
			continue
		}
		if chosen[best] == nil {
			chosen[best] = make(map[evdev.EvCode]bool)
		}
		chosen[best][code] = true
	}

	for _, c := range candidates {
		keys, ok := chosen[c]
		if c.existing != nil {
			for code := range keys {
				c.existing.keys[code] = true
				w.owners[code] = c.existing
				w.logger.Info("watching key", "key", keyName(code), "path", c.path)
			}
			continue
		}
		if !ok {
			_ = c.dev.Close()
			continue
		}
		a := &attached{path: c.path, dev: c.dev, caps: c.caps, keys: keys}
		w.devices[c.path] = a
		for code := range keys {
			w.owners[code] = a
			w.logger.Info("watching key", "key", keyName(code), "path", c.path)
		}
		go w.read(ctx, a)
	}

	for code := range bindings {
		if w.owners[code] == nil {
			w.logger.Warn("no input device provides key", "key", keyName(code))
		}
	}
}

func (w *Watcher) read(ctx context.Context, a *attached) {
	for {
		ev, err := a.dev.ReadOne()
		select {
		case w.events <- devEvent{dev: a, ev: ev, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (w *Watcher) handle(a *attached, ev *evdev.InputEvent) {
	if ev == nil || ev.Type != evdev.EV_KEY || !a.keys[ev.Code] {
		return
	}
	h := w.holds[ev.Code]

	switch ev.Value {
	case 1:
		if w.ctl.IsInteractive() {
			return
		}
		if !a.grabbed {
			if err := a.dev.Grab(); err != nil {
				w.logger.Warn("grab failed", "path", a.path, "error", err)
				return
			}
			a.grabbed = true
			w.logger.Debug("grabbed", "path", a.path)
		}
		w.arm(ev.Code, h)
	case 0:
		w.disarm(h)
		w.releaseIfIdle(a)
	}
}

func (w *Watcher) arm(code evdev.EvCode, h *hold) {
	w.disarm(h)
	h.held = true
	gen := h.gen
	h.stop = w.afterFunc(w.threshold, func() {
		select {
		case w.expiries <- expiry{code: code, gen: gen}:
		case <-w.done:
		}
	})
}

func (w *Watcher) disarm(h *hold) {
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
	h.held = false
	h.gen++
}

func (w *Watcher) expire(ex expiry) {
	h := w.holds[ex.code]
	if h == nil || !h.held || h.gen != ex.gen {
		return
	}
	h.held = false
	h.stop = nil
	bindings[ex.code](w.ctl)
	w.logger.Info("hold triggered media key", "key", keyName(ex.code))
}

func (w *Watcher) releaseIfIdle(a *attached) {
	if !a.grabbed {
		return
	}
	for code := range a.keys {
		if w.holds[code].held {
			return
		}
	}
	if err := a.dev.Ungrab(); err != nil {
		w.logger.Warn("ungrab failed", "path", a.path, "error", err)
	}
	a.grabbed = false
	w.logger.Debug("ungrabbed", "path", a.path)
}

func (w *Watcher) detach(a *attached, cause error) {
	if errors.Is(cause, os.ErrClosed) {
		w.logger.Debug("input device closed", "path", a.path)
	} else {
		w.logger.Warn("input device lost", "path", a.path, "error", cause)
	}
	for code := range a.keys {
		w.disarm(w.holds[code])
		if w.owners[code] == a {
			delete(w.owners, code)
		}
	}
	delete(w.devices, a.path)
	_ = a.dev.Close()
}

func (w *Watcher) closeAll() {
	for _, h := range w.holds {
		if h.stop != nil {
			h.stop()
		}
	}
	for _, a := range w.devices {
		if a.grabbed {
			_ = a.dev.Ungrab()
		}
		_ = a.dev.Close()
	}
}

func keyName(code evdev.EvCode) string {
	switch code {
	case evdev.KEY_VOLUMEUP:
		return "KEY_VOLUMEUP"
	case evdev.KEY_VOLUMEDOWN:
		return "KEY_VOLUMEDOWN"
	default:
		return fmt.Sprintf("key %d", code)
	}
}
