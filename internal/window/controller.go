package window

import (
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

// Visibility is what we remember about a window we hid.
type Visibility struct {
	HiddenByPlugin bool `json:"hidden_by_plugin"`
	WasMaximized   bool `json:"was_maximized"`
}

// State is a probe snapshot of the main window.
type State struct {
	Minimized  bool `json:"minimized"`
	Visible    bool `json:"visible"`
	Foreground bool `json:"foreground"`
}

// Controller hides, shows and foregrounds the resolved main window. Like the
// Service it wraps, it is owned by the event loop.
type Controller struct {
	svc      Service
	resolver *Resolver
	log      *zerolog.Logger

	vis Visibility
}

func NewController(svc Service, resolver *Resolver) *Controller {
	return &Controller{
		svc:      svc,
		resolver: resolver,
		log:      logger.WithComponent("controller"),
	}
}

// Resolve resolves the main window handle.
func (c *Controller) Resolve() bool {
	return c.resolver.Resolve()
}

// Handle returns the current cached handle.
func (c *Controller) Handle() Handle {
	return c.resolver.Handle()
}

// Visibility returns the current visibility record.
func (c *Controller) Visibility() Visibility {
	return c.vis
}

// Reset drops the cached handle and the visibility record. Called when the
// main window is torn down.
func (c *Controller) Reset() {
	c.resolver.Reset()
	c.vis = Visibility{}
}

func (c *Controller) isVisible(h Handle) bool {
	ok, err := c.svc.IsVisible(h)
	if err != nil {
		c.log.Warn().Err(err).Stringer("handle", h).Msg("visibility query failed")
		return false
	}
	return ok
}

func (c *Controller) isMinimized(h Handle) bool {
	ok, err := c.svc.IsMinimized(h)
	if err != nil {
		c.log.Warn().Err(err).Stringer("handle", h).Msg("minimized query failed")
		return false
	}
	return ok
}

func (c *Controller) isMaximized(h Handle) bool {
	ok, err := c.svc.IsMaximized(h)
	if err != nil {
		c.log.Warn().Err(err).Stringer("handle", h).Msg("maximized query failed")
		return false
	}
	return ok
}

func (c *Controller) foreground() Handle {
	h, err := c.svc.ForegroundWindow()
	if err != nil {
		c.log.Warn().Err(err).Msg("foreground query failed")
		return 0
	}
	return h
}

// Probe reads the current state of the resolved window. Query failures read
// as false.
func (c *Controller) Probe() State {
	h := c.resolver.Handle()
	if !h.Valid() {
		return State{}
	}
	return State{
		Minimized:  c.isMinimized(h),
		Visible:    c.isVisible(h),
		Foreground: c.foreground() == h,
	}
}

// Hide records the maximize state and then hides the window. The order
// matters: a hidden window no longer reports as maximized on every platform.
func (c *Controller) Hide() {
	h := c.resolver.Handle()
	if !h.Valid() {
		c.log.Debug().Msg("hide skipped: no handle")
		return
	}

	c.vis.WasMaximized = c.isMaximized(h)
	if err := c.svc.Hide(h); err != nil {
		c.log.Warn().Err(err).Stringer("handle", h).Msg("hide failed")
	}
	c.vis.HiddenByPlugin = true
	c.log.Info().Stringer("handle", h).Bool("was_maximized", c.vis.WasMaximized).Msg("window hidden")
}

// Show shows the window again, maximized if it was maximized when hidden
// unless forceRestore is set, and brings it to the foreground.
func (c *Controller) Show(forceRestore bool) {
	h := c.resolver.Handle()
	if !h.Valid() {
		c.log.Debug().Msg("show skipped: no handle")
		return
	}

	state := ShowMaximize
	if forceRestore || !c.vis.WasMaximized {
		state = ShowRestore
	}

	c.withInput(func() {
		if err := c.svc.ShowState(h, state); err != nil {
			c.log.Warn().Err(err).Stringer("handle", h).Stringer("state", state).Msg("show failed")
		}
		if err := c.svc.SetForeground(h); err != nil {
			c.log.Warn().Err(err).Stringer("handle", h).Msg("set foreground failed")
		}
	})

	c.vis = Visibility{}
	c.log.Info().Stringer("handle", h).Stringer("state", state).Msg("window shown")
}

// BringToFront foregrounds the window without touching its show state.
func (c *Controller) BringToFront() {
	h := c.resolver.Handle()
	if !h.Valid() {
		c.log.Debug().Msg("bring to front skipped: no handle")
		return
	}

	c.withInput(func() {
		if err := c.svc.SetForeground(h); err != nil {
			c.log.Warn().Err(err).Stringer("handle", h).Msg("set foreground failed")
		}
	})
}

// withInput runs fn with the input queue attached to the foreground thread.
func (c *Controller) withInput(fn func()) {
	detach, err := c.svc.AttachInput(c.foreground())
	if err != nil {
		c.log.Debug().Err(err).Msg("attach thread input failed")
	}
	if detach != nil {
		defer detach()
	}
	fn()
}
