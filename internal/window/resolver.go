package window

import (
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

// HandleSource is the host side of handle resolution.
type HandleSource interface {
	// NativeHandle returns the native handle string of the tracked main
	// window, or an error when the host has none yet.
	NativeHandle() (string, error)

	// OwnerPID is the process that must own any window found by the OS
	// fallbacks.
	OwnerPID() int
}

// Resolver locates and caches the host's main window handle.
type Resolver struct {
	svc    Service
	source HandleSource
	class  string
	log    *zerolog.Logger

	handle Handle
}

// NewResolver creates a resolver. class is the window class used by the
// last fallback; empty disables it.
func NewResolver(svc Service, source HandleSource, class string) *Resolver {
	return &Resolver{
		svc:    svc,
		source: source,
		class:  class,
		log:    logger.WithComponent("resolver"),
	}
}

// Handle returns the cached handle, zero if none.
func (r *Resolver) Handle() Handle {
	return r.handle
}

// Reset forgets the cached handle, e.g. after the main window closed.
func (r *Resolver) Reset() {
	r.handle = 0
}

// Resolve makes sure a usable handle is cached. On failure the previous
// handle, if any, is left untouched.
func (r *Resolver) Resolve() bool {
	if r.handle.Valid() && r.svc.Exists(r.handle) {
		return true
	}

	if h, ok := r.fromHost(); ok {
		r.handle = h
		r.log.Debug().Stringer("handle", h).Msg("resolved from host")
		return true
	}
	if h, ok := r.fromForeground(); ok {
		r.handle = h
		r.log.Debug().Stringer("handle", h).Msg("resolved from foreground window")
		return true
	}
	if h, ok := r.fromClass(); ok {
		r.handle = h
		r.log.Debug().Stringer("handle", h).Str("class", r.class).Msg("resolved from window class")
		return true
	}

	r.log.Debug().Msg("main window handle not found")
	return false
}

func (r *Resolver) fromHost() (Handle, bool) {
	if r.source == nil {
		return 0, false
	}
	raw, err := r.source.NativeHandle()
	if err != nil {
		r.log.Trace().Err(err).Msg("host has no native handle")
		return 0, false
	}
	h, err := ParseHandle(raw)
	if err != nil {
		r.log.Debug().Err(err).Msg("host returned unusable handle")
		return 0, false
	}
	return h, true
}

func (r *Resolver) ownedByHost(h Handle) bool {
	if !h.Valid() || r.source == nil {
		return false
	}
	owner := r.source.OwnerPID()
	if owner <= 0 {
		return false
	}
	pid, err := r.svc.WindowPID(h)
	return err == nil && pid == owner
}

func (r *Resolver) fromForeground() (Handle, bool) {
	h, err := r.svc.ForegroundWindow()
	if err != nil {
		r.log.Debug().Err(err).Msg("failed to query foreground window")
		return 0, false
	}
	return h, r.ownedByHost(h)
}

func (r *Resolver) fromClass() (Handle, bool) {
	if r.class == "" {
		return 0, false
	}
	handles, err := r.svc.FindWindowsByClass(r.class)
	if err != nil {
		r.log.Debug().Err(err).Str("class", r.class).Msg("class lookup failed")
		return 0, false
	}
	for _, h := range handles {
		if r.ownedByHost(h) {
			return h, true
		}
	}
	return 0, false
}
