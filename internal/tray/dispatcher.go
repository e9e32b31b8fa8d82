// Package tray turns tray clicks and startup into window actions.
package tray

import (
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/TrayMinder/internal/logger"
	"github.com/bryanchriswhite/TrayMinder/internal/window"
)

// Action is the outcome of a tray click.
type Action int

const (
	ActionNone Action = iota
	ActionRestore
	ActionShow
	ActionHide
	ActionFocus
)

func (a Action) String() string {
	switch a {
	case ActionRestore:
		return "restore"
	case ActionShow:
		return "show"
	case ActionHide:
		return "hide"
	case ActionFocus:
		return "focus"
	default:
		return "none"
	}
}

// Window is what the dispatcher needs from the main window controller.
type Window interface {
	Resolve() bool
	Probe() window.State
	Hide()
	Show(forceRestore bool)
	BringToFront()
}

// Decide maps a window state to an action. Checks run in a fixed order, so a
// minimized window is always restored whatever else is true.
func Decide(s window.State) Action {
	switch {
	case s.Minimized:
		return ActionRestore
	case !s.Visible:
		return ActionShow
	case s.Foreground:
		return ActionHide
	default:
		return ActionFocus
	}
}

// Dispatcher handles tray clicks. It must run on the event loop.
type Dispatcher struct {
	win Window
	log *zerolog.Logger

	// OnAction, when set, observes every applied action.
	OnAction func(Action)
}

func NewDispatcher(win Window) *Dispatcher {
	return &Dispatcher{
		win: win,
		log: logger.WithComponent("tray"),
	}
}

// Click handles one tray click and returns what it did.
func (d *Dispatcher) Click() Action {
	if !d.win.Resolve() {
		d.log.Info().Msg("tray click ignored: main window not found")
		return ActionNone
	}

	state := d.win.Probe()
	action := Decide(state)

	switch action {
	case ActionRestore:
		d.win.Show(true)
	case ActionShow:
		d.win.Show(false)
	case ActionHide:
		d.win.Hide()
	case ActionFocus:
		d.win.BringToFront()
	}

	d.log.Debug().
		Bool("minimized", state.Minimized).
		Bool("visible", state.Visible).
		Bool("foreground", state.Foreground).
		Stringer("action", action).
		Msg("tray click")

	if d.OnAction != nil {
		d.OnAction(action)
	}
	return action
}
