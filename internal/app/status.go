package app

import (
	"github.com/bryanchriswhite/TrayMinder/internal/helper"
	"github.com/bryanchriswhite/TrayMinder/internal/window"
)

// Status is what the preferences pane shows.
type Status struct {
	WindowService string         `json:"window_service"`
	OwnerPID      int            `json:"owner_pid"`
	Window        WindowStatus   `json:"window"`
	Helper        helper.Status  `json:"helper"`
	Listener      ListenerStatus `json:"listener"`
	LockedWindows int            `json:"locked_windows"`
	AutoHide      string         `json:"auto_hide"`
	LastAction    string         `json:"last_action"`
	ShuttingDown  bool           `json:"shutting_down"`
}

type WindowStatus struct {
	Handle     string            `json:"handle,omitempty"`
	State      window.State      `json:"state"`
	Visibility window.Visibility `json:"visibility"`
}

type ListenerStatus struct {
	Port      int   `json:"port"`
	Connected bool  `json:"connected"`
	Clicks    int64 `json:"clicks"`
}

// Status snapshots every component. Run on the event loop.
func (a *App) Status() Status {
	st := Status{
		WindowService: a.svc.Name(),
		OwnerPID:      a.host.OwnerPID(),
		Helper:        a.supervisor.Status(),
		Listener: ListenerStatus{
			Port:      a.listener.Port(),
			Connected: a.listener.Connected(),
			Clicks:    a.listener.Clicks(),
		},
		LockedWindows: a.locks.Len(),
		AutoHide:      a.autoHide.State().String(),
		LastAction:    a.lastAction.String(),
		ShuttingDown:  a.shuttingDown,
	}
	if h := a.controller.Handle(); h.Valid() {
		st.Window = WindowStatus{
			Handle:     h.String(),
			State:      a.controller.Probe(),
			Visibility: a.controller.Visibility(),
		}
	}
	return st
}
