//go:build linux

// Package uinput provides the input-injection capability backed by a virtual
// keyboard registered through /dev/uinput.
package uinput

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/connorhough/mediakeyd/internal/inject"
	"github.com/holoplot/go-evdev"
)

const (
	// DefaultDeviceName is the name the virtual keyboard registers with.
	DefaultDeviceName = "mediakeyd virtual keyboard"
	// DefaultStaleAfter is the oldest event the keyboard will still deliver.
	DefaultStaleAfter = time.Second

	busUSB = 0x03
	// submitWait bounds how long ModeWaitForResult blocks on the kernel write.
	submitWait = 500 * time.Millisecond
)

var (
	// ErrBadSource is returned for events not tagged as keyboard events.
	ErrBadSource = errors.New("event source is not keyboard-class")
	// ErrUnsupportedAction is returned for anything but a key-down event.
	ErrUnsupportedAction = errors.New("only key-down events can be injected")
	// ErrTimeout is returned when the kernel does not accept the event in time.
	ErrTimeout = errors.New("timed out waiting for event to be accepted")
	// ErrBusy is returned while an earlier write has not finished.
	ErrBusy = errors.New("previous event still being written")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("virtual keyboard closed")
)

// Options configures the virtual keyboard.
type Options struct {
	Name       string
	StaleAfter time.Duration
	Clock      inject.Clock
	Logger     *slog.Logger
}

type eventWriter interface {
	WriteOne(event *evdev.InputEvent) error
	Close() error
}

// Keyboard is a uinput virtual keyboard that can only emit media keys.
type Keyboard struct {
	mu         sync.Mutex
	pending    atomic.Bool
	dev        eventWriter
	staleAfter time.Duration
	clock      inject.Clock
	logger     *slog.Logger
}

// Open registers the virtual keyboard with the kernel. The caller needs write
// access to /dev/uinput.
func Open(opts Options) (*Keyboard, error) {
	name := opts.Name
	if name == "" {
		name = DefaultDeviceName
	}
	dev, err := evdev.CreateDevice(name, evdev.InputID{
		BusType: busUSB,
		Vendor:  0x1d6b,
		Product: 0x0104,
		Version: 1,
	}, map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: {
			evdev.EvCode(inject.KeyMediaNext),
			evdev.EvCode(inject.KeyMediaPrevious),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create uinput device %q: %w", name, err)
	}
	return newKeyboard(dev, opts), nil
}

func newKeyboard(dev eventWriter, opts Options) *Keyboard {
	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	clock := opts.Clock
	if clock == nil {
		clock = inject.SystemClock
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Keyboard{dev: dev, staleAfter: staleAfter, clock: clock, logger: logger}
}

// Inject validates ev and writes it to the virtual keyboard. Each press is
// followed by a release frame; the kernel drops a down for a key it still
// believes is held.
func (k *Keyboard) Inject(ev inject.KeyEvent, mode inject.Mode) error {
	if ev.Source != inject.SourceKeyboard {
		return ErrBadSource
	}
	if ev.Action != inject.ActionDown {
		return ErrUnsupportedAction
	}
	if !ev.Code.Valid() {
		return fmt.Errorf("%w: %s", inject.ErrUnknownKey, ev.Code)
	}
	if age := ev.Age(k.clock.Now()); age > k.staleAfter {
		return fmt.Errorf("%w: %s old (limit %s)", inject.ErrStaleEvent, age, k.staleAfter)
	}
	if ev.Flags&inject.FlagFromSystem != 0 {
		k.logger.Debug("event carries system provenance", "key", ev.Code.String())
	}

	// A write that outlives submitWait still reaches the kernel even though
	// the caller saw ErrTimeout, so nothing new is queued behind it.
	if !k.pending.CompareAndSwap(false, true) {
		return ErrBusy
	}
	frames := frames(ev)
	if mode == inject.ModeAsync {
		go func() {
			defer k.pending.Store(false)
			if err := k.write(frames); err != nil {
				k.logger.Warn("async inject failed", "key", ev.Code.String(), "error", err)
			}
		}()
		return nil
	}

	done := make(chan error, 1)
	go func() {
		defer k.pending.Store(false)
		done <- k.write(frames)
	}()

	timer := time.NewTimer(submitWait)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrTimeout
	}
}

// Close destroys the virtual keyboard. It waits for a write in flight.
func (k *Keyboard) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.dev == nil {
		return nil
	}
	err := k.dev.Close()
	k.dev = nil
	return err
}

func (k *Keyboard) write(frames []evdev.InputEvent) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.dev == nil {
		return ErrClosed
	}
	for i := range frames {
		if err := k.dev.WriteOne(&frames[i]); err != nil {
			return fmt.Errorf("write input event: %w", err)
		}
	}
	return nil
}

func frames(ev inject.KeyEvent) []evdev.InputEvent {
	tv := syscall.NsecToTimeval(int64(ev.EventTime))
	code := evdev.EvCode(ev.Code)
	return []evdev.InputEvent{
		{Time: tv, Type: evdev.EV_KEY, Code: code, Value: 1},
		{Time: tv, Type: evdev.EV_SYN, Code: evdev.SYN_REPORT, Value: 0},
		{Time: tv, Type: evdev.EV_KEY, Code: code, Value: 0},
		{Time: tv, Type: evdev.EV_SYN, Code: evdev.SYN_REPORT, Value: 0},
	}
}
