// Package inject builds synthetic media key events and submits them through
// an input-injection capability.
package inject

import (
	"errors"
	"fmt"
	"time"
)

// KeyCode identifies the key carried by a synthetic event. Values match the
// Linux input event codes so capabilities can forward them unchanged.
type KeyCode uint16

const (
	// KeyMediaNext is KEY_NEXTSONG.
	KeyMediaNext KeyCode = 163
	// KeyMediaPrevious is KEY_PREVIOUSSONG.
	KeyMediaPrevious KeyCode = 165
)

func (c KeyCode) String() string {
	switch c {
	case KeyMediaNext:
		return "MEDIA_NEXT"
	case KeyMediaPrevious:
		return "MEDIA_PREVIOUS"
	default:
		return fmt.Sprintf("KeyCode(%d)", uint16(c))
	}
}

// Valid reports whether c is one of the media keys this package emits.
func (c KeyCode) Valid() bool {
	return c == KeyMediaNext || c == KeyMediaPrevious
}

// Action is the key transition. Only ActionDown is ever produced.
type Action uint8

const (
	ActionDown Action = iota
)

func (a Action) String() string {
	if a == ActionDown {
		return "DOWN"
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

// Source tags the device class an event claims to originate from.
type Source uint32

const (
	SourceUnknown Source = 0
	// SourceKeyboard marks the event as coming from a keyboard-class device.
	// Input pipelines only route it like a hardware key when this is set.
	SourceKeyboard Source = 0x101
)

// Flags carries provenance bits.
type Flags uint32

const (
	// FlagFromSystem marks the event as originating from a trusted system
	// component rather than an application.
	FlagFromSystem Flags = 0x8
)

// Mode selects how a capability acknowledges a submitted event.
type Mode int

const (
	// ModeWaitForResult waits, for a bounded time, until the event has been
	// accepted or rejected. It does not require any window to hold focus.
	ModeWaitForResult Mode = iota
	// ModeAsync returns as soon as the event is queued.
	ModeAsync
)

// KeyEvent is a single synthetic key transition. Times are readings of the
// monotonic clock, not wall-clock instants.
type KeyEvent struct {
	Code      KeyCode
	Action    Action
	DownTime  time.Duration
	EventTime time.Duration
	Source    Source
	Flags     Flags
}

// NewKeyEvent returns an unstamped key-down event for code. Timestamps and
// source are filled in by Injector.Submit.
func NewKeyEvent(code KeyCode) KeyEvent {
	return KeyEvent{Code: code, Action: ActionDown}
}

// Age returns how old the event is relative to the monotonic reading now.
func (e KeyEvent) Age(now time.Duration) time.Duration {
	return now - e.EventTime
}

var (
	// ErrStaleEvent is returned by capabilities that refuse events whose
	// timestamp is too far in the past.
	ErrStaleEvent = errors.New("event timestamp is stale")
	// ErrUnknownKey is returned when an event carries a key code outside the
	// media keys.
	ErrUnknownKey = errors.New("unsupported key code")
	// ErrNoCapability is returned when no input capability has been resolved.
	ErrNoCapability = errors.New("input capability not resolved")
)
