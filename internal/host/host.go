// Package host defines what TrayMinder needs from the application it is
// attached to, and provides a desktop implementation that drives a target
// process through the OS window service.
package host

import (
	"github.com/bryanchriswhite/TrayMinder/internal/window"
)

// Host is the application side of the integration. Every method is called on
// the event loop, and every callback is delivered there.
type Host interface {
	window.HandleSource
	window.MinimizeHooker

	// MainWindows returns the ids of the currently open main windows.
	MainWindows() []string

	OnWindowOpen(fn func(windowID string)) (cancel func())
	OnWindowClose(fn func(windowID string)) (cancel func())

	// Dispatch runs fn on the main thread. It reports false once the host
	// has stopped accepting work.
	Dispatch(fn func()) bool

	// Done is closed when the host application has gone away.
	Done() <-chan struct{}
}

// callbacks is a small id-keyed listener list.
type callbacks struct {
	next int
	fns  map[int]func(string)
	ids  []int
}

func (c *callbacks) add(fn func(string)) func() {
	if c.fns == nil {
		c.fns = make(map[int]func(string))
	}
	c.next++
	id := c.next
	c.fns[id] = fn
	c.ids = append(c.ids, id)
	return func() {
		delete(c.fns, id)
		for i, v := range c.ids {
			if v == id {
				c.ids = append(c.ids[:i], c.ids[i+1:]...)
				break
			}
		}
	}
}

func (c *callbacks) emit(windowID string) {
	for _, id := range append([]int(nil), c.ids...) {
		if fn, ok := c.fns[id]; ok {
			fn(windowID)
		}
	}
}

func (c *callbacks) len() int {
	return len(c.fns)
}
