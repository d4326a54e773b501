package inject

import (
	"fmt"
	"log/slog"
)

// Capability delivers synthetic events into the system input pipeline.
type Capability interface {
	Inject(ev KeyEvent, mode Mode) error
}

// Options configures an Injector.
type Options struct {
	Clock Clock
	Mode  Mode
	// FromSystem sets FlagFromSystem on every submitted event.
	FromSystem bool
	Logger     *slog.Logger
}

// Result reports the outcome of a single submission.
type Result struct {
	Event    KeyEvent
	Accepted bool
	Err      error
}

// Injector builds and submits media key events. It holds no mutable state,
// so concurrent calls are allowed but not ordered relative to each other.
type Injector struct {
	input      Capability
	clock      Clock
	mode       Mode
	fromSystem bool
	logger     *slog.Logger
}

// New returns an Injector submitting through input. A zero Options uses the
// monotonic system clock, ModeWaitForResult and the default slog logger.
func New(input Capability, opts Options) *Injector {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Injector{
		input:      input,
		clock:      clock,
		mode:       opts.Mode,
		fromSystem: opts.FromSystem,
		logger:     logger,
	}
}

// EmitNext sends a media-next key press. Failures are logged, never returned.
func (i *Injector) EmitNext() {
	i.Emit(KeyMediaNext)
}

// EmitPrevious sends a media-previous key press. Failures are logged, never
// returned.
func (i *Injector) EmitPrevious() {
	i.Emit(KeyMediaPrevious)
}

// Emit constructs a key-down event for code and submits it.
func (i *Injector) Emit(code KeyCode) Result {
	return i.Submit(NewKeyEvent(code))
}

// Submit stamps ev with the current monotonic time, tags it as a keyboard
// event and hands it to the input capability. The returned Result is purely
// informational; Submit never panics.
func (i *Injector) Submit(ev KeyEvent) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Event: ev, Err: fmt.Errorf("inject %s: panic: %v", ev.Code, r)}
			i.logger.Error("send event panicked", "key", ev.Code.String(), "panic", r)
		}
	}()

	if i.input == nil {
		i.logger.Warn("send event failed", "key", ev.Code.String(), "error", ErrNoCapability)
		return Result{Event: ev, Err: ErrNoCapability}
	}
	if !ev.Code.Valid() {
		err := fmt.Errorf("%w: %s", ErrUnknownKey, ev.Code)
		i.logger.Warn("send event failed", "key", ev.Code.String(), "error", err)
		return Result{Event: ev, Err: err}
	}

	// Stamp as late as possible so the event is fresh when it arrives.
	now := i.clock.Now()
	ev.DownTime = now
	ev.EventTime = now
	ev.Source = SourceKeyboard
	if i.fromSystem {
		ev.Flags |= FlagFromSystem
	}

	if err := i.input.Inject(ev, i.mode); err != nil {
		i.logger.Warn("send event failed", "key", ev.Code.String(), "error", err)
		return Result{Event: ev, Err: err}
	}

	i.logger.Debug("send event", "key", ev.Code.String(), "event_time", ev.EventTime)
	return Result{Event: ev, Accepted: true}
}
