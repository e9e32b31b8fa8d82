// Package eventloop provides the single "main thread" that owns all window
// and helper state. Work from other goroutines (socket reads, process exit,
// config file events) must be handed over with Post or Call.
package eventloop

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned when work is submitted to a loop that has exited.
var ErrStopped = errors.New("event loop stopped")

const defaultQueueSize = 64

// Loop runs posted functions one at a time on a single locked OS thread.
type Loop struct {
	queue    chan func()
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

// New creates a loop. Call Run to start draining it.
func New() *Loop {
	return &Loop{
		queue: make(chan func(), defaultQueueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Run drains the queue until ctx is canceled or Stop is called. Native window
// calls have thread affinity on Windows, so the goroutine is pinned.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("event loop already running")
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.stop:
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}

// Stop makes Run return after the function currently executing.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn. It reports false if the loop is already stopped.
func (l *Loop) Post(fn func()) bool {
	return l.PostOrCancel(nil, fn)
}

// PostOrCancel is Post that also gives up when cancel is closed while the
// queue is full.
func (l *Loop) PostOrCancel(cancel <-chan struct{}, fn func()) bool {
	select {
	case <-l.stop:
		return false
	default:
	}

	select {
	case l.queue <- fn:
		return true
	case <-l.stop:
		return false
	case <-cancel:
		return false
	}
}

// Call runs fn on the loop and waits for it to finish.
// Calling it from the loop itself would deadlock; use a direct call there.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Timer is a one-shot or repeating callback scheduled onto the loop.
type Timer struct {
	stopped atomic.Bool
	timer   *time.Timer
	ticker  *time.Ticker
	quit    chan struct{}
}

// Stop cancels the timer. Once Stop returns on the loop thread the callback
// will not run again, even if it already fired and is sitting in the queue.
// Stopping twice, or after the timer fired, does nothing.
func (t *Timer) Stop() {
	if t == nil || !t.stopped.CompareAndSwap(false, true) {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.ticker != nil {
		t.ticker.Stop()
		close(t.quit)
	}
}

// Stopped reports whether the timer was stopped or, for a one-shot timer,
// has already run.
func (t *Timer) Stopped() bool {
	return t != nil && t.stopped.Load()
}

// AfterFunc runs fn on the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return t
}

// Every runs fn on the loop every d until the returned timer is stopped.
func (l *Loop) Every(d time.Duration, fn func()) *Timer {
	t := &Timer{
		ticker: time.NewTicker(d),
		quit:   make(chan struct{}),
	}

	go func() {
		for {
			select {
			case <-t.quit:
				return
			case <-l.stop:
				return
			case <-t.ticker.C:
				l.Post(func() {
					if !t.stopped.Load() {
						fn()
					}
				})
			}
		}
	}()

	return t
}
