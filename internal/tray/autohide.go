package tray

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/TrayMinder/internal/eventloop"
	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

const (
	// PollInterval is how often the startup poller retries resolution.
	PollInterval = 500 * time.Millisecond
	// PollTimeout gives up on startup auto-hide.
	PollTimeout = 15 * time.Second
)

// PollState is the state of the startup auto-hide poller.
type PollState int

const (
	PollIdle PollState = iota
	PollPolling
	PollSucceeded
	PollTimedOut
	PollCanceled
)

func (s PollState) String() string {
	switch s {
	case PollPolling:
		return "polling"
	case PollSucceeded:
		return "succeeded"
	case PollTimedOut:
		return "timed out"
	case PollCanceled:
		return "canceled"
	default:
		return "idle"
	}
}

// Hider is the subset of the window controller the poller needs.
type Hider interface {
	Resolve() bool
	Hide()
}

// AutoHide hides the main window once it appears after startup.
type AutoHide struct {
	loop *eventloop.Loop
	win  Hider
	log  *zerolog.Logger

	Interval time.Duration
	Timeout  time.Duration

	state   PollState
	ticker  *eventloop.Timer
	timeout *eventloop.Timer
}

func NewAutoHide(loop *eventloop.Loop, win Hider) *AutoHide {
	return &AutoHide{
		loop:     loop,
		win:      win,
		log:      logger.WithComponent("autohide"),
		Interval: PollInterval,
		Timeout:  PollTimeout,
	}
}

// State returns the poller state. Call on the loop.
func (a *AutoHide) State() PollState {
	return a.state
}

// Start begins polling. It runs at most once per AutoHide; call on the loop.
func (a *AutoHide) Start() {
	if a.state != PollIdle {
		return
	}
	a.state = PollPolling
	a.ticker = a.loop.Every(a.Interval, a.poll)
	a.timeout = a.loop.AfterFunc(a.Timeout, func() {
		if a.state != PollPolling {
			return
		}
		a.finish(PollTimedOut)
		a.log.Info().Dur("timeout", a.Timeout).Msg("main window never appeared; auto-hide skipped")
	})
	a.log.Debug().Dur("interval", a.Interval).Msg("auto-hide polling started")
}

// Stop cancels polling, e.g. at shutdown.
func (a *AutoHide) Stop() {
	if a.state == PollPolling {
		a.finish(PollCanceled)
		return
	}
	a.stopTimers()
}

func (a *AutoHide) poll() {
	if a.state != PollPolling {
		return
	}
	if !a.win.Resolve() {
		return
	}
	a.win.Hide()
	a.finish(PollSucceeded)
	a.log.Info().Msg("main window hidden at startup")
}

// finish moves to a terminal state and cancels both timers together.
func (a *AutoHide) finish(s PollState) {
	a.state = s
	a.stopTimers()
}

func (a *AutoHide) stopTimers() {
	a.ticker.Stop()
	a.timeout.Stop()
}
