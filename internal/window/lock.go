package window

import (
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

// MinimizeHooker installs a minimize handler on a host window. The returned
// func removes it.
type MinimizeHooker interface {
	OnMinimize(windowID string, fn func()) (cancel func())
}

// LockRegistry tracks windows whose minimize is redirected to the tray.
type LockRegistry struct {
	hooker  MinimizeHooker
	handler func(windowID string)
	log     *zerolog.Logger

	locked map[string]func()
}

// NewLockRegistry creates a registry that calls handler when a locked window
// is minimized.
func NewLockRegistry(hooker MinimizeHooker, handler func(windowID string)) *LockRegistry {
	return &LockRegistry{
		hooker:  hooker,
		handler: handler,
		log:     logger.WithComponent("locks"),
		locked:  make(map[string]func()),
	}
}

// Lock installs the minimize handler. Locking a locked window does nothing.
func (r *LockRegistry) Lock(windowID string) {
	if _, ok := r.locked[windowID]; ok {
		return
	}
	cancel := r.hooker.OnMinimize(windowID, func() { r.handler(windowID) })
	if cancel == nil {
		cancel = func() {}
	}
	r.locked[windowID] = cancel
	r.log.Debug().Str("window", windowID).Msg("locked")
}

// Unlock removes the handler. Unknown windows are ignored.
func (r *LockRegistry) Unlock(windowID string) {
	cancel, ok := r.locked[windowID]
	if !ok {
		return
	}
	delete(r.locked, windowID)
	cancel()
	r.log.Debug().Str("window", windowID).Msg("unlocked")
}

// UnlockAll removes every handler.
func (r *LockRegistry) UnlockAll() {
	for id := range r.locked {
		r.Unlock(id)
	}
}

func (r *LockRegistry) IsLocked(windowID string) bool {
	_, ok := r.locked[windowID]
	return ok
}

// Len returns the number of locked windows.
func (r *LockRegistry) Len() int {
	return len(r.locked)
}
