package app

import (
	"context"

	"github.com/bryanchriswhite/TrayMinder/internal/tray"
)

// Remote exposes the App to other goroutines by marshalling every call onto
// the event loop.
type Remote struct {
	a *App
}

func (a *App) Remote() *Remote {
	return &Remote{a: a}
}

func (r *Remote) Status(ctx context.Context) (Status, error) {
	var st Status
	err := r.a.loop.Call(ctx, func() { st = r.a.Status() })
	return st, err
}

// TrayClick performs a tray click as if the helper had sent one.
func (r *Remote) TrayClick(ctx context.Context) (string, error) {
	action := tray.ActionNone
	err := r.a.loop.Call(ctx, func() {
		if r.a.shuttingDown {
			return
		}
		action = r.a.dispatcher.Click()
	})
	return action.String(), err
}

func (r *Remote) Subscribe() (<-chan Event, func()) {
	return r.a.Subscribe()
}
