package window

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Handle is an opaque native reference to a top-level window. Zero means
// "no window".
type Handle uintptr

func (h Handle) String() string {
	return fmt.Sprintf("0x%x", uintptr(h))
}

// Valid reports whether h is non-null. A valid handle can still be stale.
func (h Handle) Valid() bool {
	return h != 0
}

// ParseHandle parses a native handle string as reported by a host. Decimal
// and 0x-prefixed hex are accepted; values may be 64-bit.
func ParseHandle(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty handle")
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid handle %q: %w", s, err)
	}
	if v == 0 {
		return 0, fmt.Errorf("null handle %q", s)
	}
	return Handle(uintptr(v)), nil
}

// ShowState is the placement applied when a window is shown again.
type ShowState int

const (
	ShowRestore ShowState = iota
	ShowMaximize
)

func (s ShowState) String() string {
	if s == ShowMaximize {
		return "maximize"
	}
	return "restore"
}

// Info describes one top-level window.
type Info struct {
	Handle    Handle `json:"handle" yaml:"handle"`
	Title     string `json:"title" yaml:"title"`
	Class     string `json:"class" yaml:"class"`
	PID       int    `json:"pid" yaml:"pid"`
	Visible   bool   `json:"visible" yaml:"visible"`
	Minimized bool   `json:"minimized" yaml:"minimized"`
	Maximized bool   `json:"maximized" yaml:"maximized"`
}

// Service is the OS window service: read-only probes plus the few mutations
// needed to hide, show and foreground a window. Every method must be called
// from the event loop thread.
type Service interface {
	// Name returns the backend name (e.g., "x11", "win32")
	Name() string

	IsVisible(h Handle) (bool, error)
	IsMinimized(h Handle) (bool, error)
	IsMaximized(h Handle) (bool, error)
	ForegroundWindow() (Handle, error)
	WindowPID(h Handle) (int, error)

	// Exists reports whether h still refers to a live window.
	Exists(h Handle) bool

	// FindWindowsByClass returns top-level windows with the given class.
	FindWindowsByClass(class string) ([]Handle, error)

	// ListWindows returns all top-level application windows.
	ListWindows() ([]Info, error)

	Hide(h Handle) error
	ShowState(h Handle, s ShowState) error
	SetForeground(h Handle) error

	// AttachInput attaches the calling thread's input queue to the thread
	// owning foreground so that a later SetForeground is honored. The
	// returned detach func must always be called.
	AttachInput(foreground Handle) (detach func(), err error)

	// Close releases native resources (library handles, display connection).
	Close() error
}

// ErrUnsupported is returned on platforms without a window service.
var ErrUnsupported = fmt.Errorf("window control is not supported on %s/%s", runtime.GOOS, runtime.GOARCH)

// NewService returns the window service for the current OS. Failing to load
// the native library or connect to the display is fatal for the caller.
func NewService() (Service, error) {
	return newPlatformService()
}
