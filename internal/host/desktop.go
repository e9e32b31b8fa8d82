package host

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/TrayMinder/internal/eventloop"
	"github.com/bryanchriswhite/TrayMinder/internal/logger"
	"github.com/bryanchriswhite/TrayMinder/internal/window"
)

// DefaultPollInterval is how often the desktop host rescans the target's
// windows.
const DefaultPollInterval = 500 * time.Millisecond

// ErrNoMainWindow is returned by NativeHandle before the target has shown a
// window.
var ErrNoMainWindow = errors.New("target has no main window")

// DesktopConfig selects the target application.
type DesktopConfig struct {
	Service window.Service
	Loop    *eventloop.Loop

	// Command launches the target. When empty, PID attaches to a running
	// process; when both are empty the current process is the target.
	Command []string
	PID     int
	// Class restricts main windows to one window class.
	Class string

	PollInterval time.Duration
}

type tracked struct {
	id        string
	handle    window.Handle
	minimized bool
}

// Desktop is a Host backed by a separate target process.
type Desktop struct {
	cfg DesktopConfig
	log *zerolog.Logger

	pid     int
	cmd     *exec.Cmd
	done    chan struct{}
	doneMu  sync.Once
	poll    *eventloop.Timer
	started bool

	windows []*tracked
	opened  callbacks
	closed  callbacks
	minHook map[string]*callbacks
}

var _ Host = (*Desktop)(nil)

func NewDesktop(cfg DesktopConfig) *Desktop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Desktop{
		cfg:     cfg,
		log:     logger.WithComponent("host"),
		done:    make(chan struct{}),
		minHook: make(map[string]*callbacks),
	}
}

// Start launches or attaches to the target and begins tracking its windows.
// Call on the event loop.
func (d *Desktop) Start() error {
	if d.started {
		return nil
	}

	switch {
	case len(d.cfg.Command) > 0:
		cmd := exec.Command(d.cfg.Command[0], d.cfg.Command[1:]...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to start %s: %w", d.cfg.Command[0], err)
		}
		d.cmd = cmd
		d.pid = cmd.Process.Pid
		go func() {
			err := cmd.Wait()
			d.log.Info().Err(err).Int("pid", d.pid).Msg("target exited")
			d.markDone()
		}()
		d.log.Info().Int("pid", d.pid).Str("command", strings.Join(d.cfg.Command, " ")).Msg("target launched")

	case d.cfg.PID > 0:
		if !processAlive(d.cfg.PID) {
			return fmt.Errorf("no process with pid %d", d.cfg.PID)
		}
		d.pid = d.cfg.PID
		d.log.Info().Int("pid", d.pid).Msg("attached to target")

	default:
		d.pid = os.Getpid()
	}

	d.started = true
	d.scan()
	d.poll = d.cfg.Loop.Every(d.cfg.PollInterval, d.scan)
	return nil
}

// Stop halts window tracking. A launched target is left running.
func (d *Desktop) Stop() {
	d.poll.Stop()
	d.markDone()
}

func (d *Desktop) markDone() {
	d.doneMu.Do(func() { close(d.done) })
}

func (d *Desktop) Done() <-chan struct{} {
	return d.done
}

func (d *Desktop) OwnerPID() int {
	return d.pid
}

// NativeHandle returns the first tracked window, which the desktop host
// treats as the main window.
func (d *Desktop) NativeHandle() (string, error) {
	if len(d.windows) == 0 {
		return "", ErrNoMainWindow
	}
	return d.windows[0].handle.String(), nil
}

func (d *Desktop) MainWindows() []string {
	ids := make([]string, 0, len(d.windows))
	for _, w := range d.windows {
		ids = append(ids, w.id)
	}
	return ids
}

func (d *Desktop) OnWindowOpen(fn func(string)) func() {
	return d.opened.add(fn)
}

func (d *Desktop) OnWindowClose(fn func(string)) func() {
	return d.closed.add(fn)
}

func (d *Desktop) OnMinimize(windowID string, fn func()) func() {
	cb, ok := d.minHook[windowID]
	if !ok {
		cb = &callbacks{}
		d.minHook[windowID] = cb
	}
	cancel := cb.add(func(string) { fn() })
	return func() {
		cancel()
		if cb.len() == 0 {
			delete(d.minHook, windowID)
		}
	}
}

func (d *Desktop) Dispatch(fn func()) bool {
	return d.cfg.Loop.Post(fn)
}

func (d *Desktop) isTracked(h window.Handle) bool {
	for _, w := range d.windows {
		if w.handle == h {
			return true
		}
	}
	return false
}

// scan picks up new target windows, drops destroyed ones and reports
// minimize transitions. Windows we hid drop out of some window lists, so a
// tracked window only closes once the handle is gone.
func (d *Desktop) scan() {
	svc := d.cfg.Service

	kept := d.windows[:0]
	var gone []string
	for _, w := range d.windows {
		if svc.Exists(w.handle) {
			kept = append(kept, w)
		} else {
			gone = append(gone, w.id)
		}
	}
	d.windows = kept
	for _, id := range gone {
		d.log.Debug().Str("window", id).Msg("window closed")
		delete(d.minHook, id)
		d.closed.emit(id)
	}

	infos, err := svc.ListWindows()
	if err != nil {
		d.log.Debug().Err(err).Msg("window scan failed")
		return
	}
	for _, info := range infos {
		if info.PID != d.pid || !info.Visible || d.isTracked(info.Handle) {
			continue
		}
		if d.cfg.Class != "" && !strings.EqualFold(info.Class, d.cfg.Class) {
			continue
		}
		w := &tracked{id: info.Handle.String(), handle: info.Handle, minimized: info.Minimized}
		d.windows = append(d.windows, w)
		d.log.Debug().Str("window", w.id).Str("title", info.Title).Msg("window opened")
		d.opened.emit(w.id)
	}

	for _, w := range d.windows {
		minimized, err := svc.IsMinimized(w.handle)
		if err != nil {
			continue
		}
		was := w.minimized
		w.minimized = minimized
		if minimized && !was {
			if cb, ok := d.minHook[w.id]; ok {
				d.log.Debug().Str("window", w.id).Msg("window minimized")
				cb.emit(w.id)
			}
		}
	}
}
