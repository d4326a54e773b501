package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	// ErrLooperNotRunning is returned by Post before Start.
	ErrLooperNotRunning = errors.New("dispatch loop not started")
	// ErrLooperStopped is returned by Post after Quit.
	ErrLooperStopped = errors.New("dispatch loop stopped")
)

// Looper is a single-threaded dispatch loop. Every posted task runs on the
// same goroutine, which stays locked to one OS thread for the loop's lifetime.
type Looper struct {
	tasks     chan func()
	quit      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	quitOnce  sync.Once
	running   atomic.Bool
	starts    atomic.Int32
}

// NewLooper returns a stopped Looper.
func NewLooper() *Looper {
	return &Looper{
		tasks: make(chan func()),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the loop. Only the first call has any effect; it reports
// whether this call was the one that started it.
func (l *Looper) Start() bool {
	started := false
	l.startOnce.Do(func() {
		started = true
		l.starts.Add(1)
		ready := make(chan struct{})
		go l.loop(ready)
		<-ready
	})
	return started
}

// Starts returns how many times the loop has actually been started. It is
// never more than one.
func (l *Looper) Starts() int {
	return int(l.starts.Load())
}

// Running reports whether the loop accepts tasks.
func (l *Looper) Running() bool {
	return l.running.Load()
}

func (l *Looper) loop(ready chan<- struct{}) {
	runtime.LockOSThread()
	defer close(l.done)
	l.running.Store(true)
	close(ready)
	for {
		select {
		case task := <-l.tasks:
			task()
		case <-l.quit:
			l.running.Store(false)
			return
		}
	}
}

// Post runs fn on the loop thread and waits for it to return. A panic in fn
// is returned as an error instead of killing the loop.
func (l *Looper) Post(ctx context.Context, fn func()) error {
	if !l.Running() {
		select {
		case <-l.quit:
			return ErrLooperStopped
		default:
			return ErrLooperNotRunning
		}
	}

	done := make(chan error, 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("dispatch task panicked: %v", r)
				return
			}
			done <- nil
		}()
		fn()
	}

	select {
	case l.tasks <- task:
	case <-l.quit:
		return ErrLooperStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Quit stops the loop and waits for it to exit. Tasks already running finish
// first.
func (l *Looper) Quit() {
	l.quitOnce.Do(func() { close(l.quit) })
	if l.Starts() > 0 {
		<-l.done
	}
}
