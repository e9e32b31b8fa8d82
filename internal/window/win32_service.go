//go:build windows

package window

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

const (
	swHide     = 0
	swMaximize = 3
	swRestore  = 9

	maxClassName = 256
	maxTitle     = 512
)

// win32Service implements Service on top of user32.
type win32Service struct {
	user32 *windows.DLL

	isWindow                 *windows.Proc
	isWindowVisible          *windows.Proc
	isIconic                 *windows.Proc
	isZoomed                 *windows.Proc
	getForegroundWindow      *windows.Proc
	getWindowThreadProcessID *windows.Proc
	findWindowEx             *windows.Proc
	getClassName             *windows.Proc
	getWindowText            *windows.Proc
	showWindow               *windows.Proc
	setForegroundWindow      *windows.Proc
	bringWindowToTop         *windows.Proc
	attachThreadInput        *windows.Proc
}

func newPlatformService() (Service, error) {
	return newWin32Service()
}

func newWin32Service() (*win32Service, error) {
	dll, err := windows.LoadDLL("user32.dll")
	if err != nil {
		return nil, fmt.Errorf("failed to load user32.dll: %w", err)
	}

	s := &win32Service{user32: dll}
	procs := []struct {
		name string
		dst  **windows.Proc
	}{
		{"IsWindow", &s.isWindow},
		{"IsWindowVisible", &s.isWindowVisible},
		{"IsIconic", &s.isIconic},
		{"IsZoomed", &s.isZoomed},
		{"GetForegroundWindow", &s.getForegroundWindow},
		{"GetWindowThreadProcessId", &s.getWindowThreadProcessID},
		{"FindWindowExW", &s.findWindowEx},
		{"GetClassNameW", &s.getClassName},
		{"GetWindowTextW", &s.getWindowText},
		{"ShowWindow", &s.showWindow},
		{"SetForegroundWindow", &s.setForegroundWindow},
		{"BringWindowToTop", &s.bringWindowToTop},
		{"AttachThreadInput", &s.attachThreadInput},
	}
	for _, p := range procs {
		proc, err := dll.FindProc(p.name)
		if err != nil {
			dll.Release()
			return nil, fmt.Errorf("failed to bind user32!%s: %w", p.name, err)
		}
		*p.dst = proc
	}

	logger.WithComponent("win32").Debug().Msg("user32 bound")
	return s, nil
}

func (s *win32Service) Name() string {
	return "win32"
}

func (s *win32Service) Close() error {
	if s.user32 == nil {
		return nil
	}
	err := s.user32.Release()
	s.user32 = nil
	return err
}

// boolCall wraps the BOOL-returning predicates; they set no last-error.
func (s *win32Service) boolCall(p *windows.Proc, h Handle) (bool, error) {
	if !h.Valid() {
		return false, fmt.Errorf("%s: null handle", p.Name)
	}
	r, _, _ := p.Call(uintptr(h))
	return r != 0, nil
}

func (s *win32Service) Exists(h Handle) bool {
	ok, err := s.boolCall(s.isWindow, h)
	return err == nil && ok
}

func (s *win32Service) IsVisible(h Handle) (bool, error) {
	return s.boolCall(s.isWindowVisible, h)
}

func (s *win32Service) IsMinimized(h Handle) (bool, error) {
	return s.boolCall(s.isIconic, h)
}

func (s *win32Service) IsMaximized(h Handle) (bool, error) {
	return s.boolCall(s.isZoomed, h)
}

func (s *win32Service) ForegroundWindow() (Handle, error) {
	r, _, _ := s.getForegroundWindow.Call()
	return Handle(r), nil
}

func (s *win32Service) threadAndPID(h Handle) (uint32, uint32, error) {
	var pid uint32
	r, _, err := s.getWindowThreadProcessID.Call(uintptr(h), uintptr(unsafe.Pointer(&pid)))
	if r == 0 {
		return 0, 0, fmt.Errorf("GetWindowThreadProcessId(%s): %w", h, err)
	}
	return uint32(r), pid, nil
}

func (s *win32Service) WindowPID(h Handle) (int, error) {
	_, pid, err := s.threadAndPID(h)
	if err != nil {
		return 0, err
	}
	return int(pid), nil
}

// nextTopLevel walks the top-level window list. class may be nil.
func (s *win32Service) nextTopLevel(after Handle, class *uint16) Handle {
	r, _, _ := s.findWindowEx.Call(0, uintptr(after), uintptr(unsafe.Pointer(class)), 0)
	return Handle(r)
}

func (s *win32Service) FindWindowsByClass(class string) ([]Handle, error) {
	cls, err := windows.UTF16PtrFromString(class)
	if err != nil {
		return nil, fmt.Errorf("invalid class %q: %w", class, err)
	}

	var found []Handle
	for h := s.nextTopLevel(0, cls); h.Valid(); h = s.nextTopLevel(h, cls) {
		found = append(found, h)
	}
	return found, nil
}

func (s *win32Service) className(h Handle) string {
	var buf [maxClassName]uint16
	n, _, _ := s.getClassName.Call(uintptr(h), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf[:n])
}

func (s *win32Service) title(h Handle) string {
	var buf [maxTitle]uint16
	n, _, _ := s.getWindowText.Call(uintptr(h), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf[:n])
}

func (s *win32Service) ListWindows() ([]Info, error) {
	var out []Info
	for h := s.nextTopLevel(0, nil); h.Valid(); h = s.nextTopLevel(h, nil) {
		title := s.title(h)
		if title == "" {
			continue
		}
		info := Info{Handle: h, Title: title, Class: s.className(h)}
		info.PID, _ = s.WindowPID(h)
		info.Visible, _ = s.IsVisible(h)
		info.Minimized, _ = s.IsMinimized(h)
		info.Maximized, _ = s.IsMaximized(h)
		out = append(out, info)
	}
	return out, nil
}

func (s *win32Service) Hide(h Handle) error {
	if !h.Valid() {
		return fmt.Errorf("ShowWindow: null handle")
	}
	// ShowWindow returns the previous visibility, not success.
	s.showWindow.Call(uintptr(h), swHide)
	return nil
}

func (s *win32Service) ShowState(h Handle, state ShowState) error {
	if !h.Valid() {
		return fmt.Errorf("ShowWindow: null handle")
	}
	cmd := uintptr(swRestore)
	if state == ShowMaximize {
		cmd = swMaximize
	}
	s.showWindow.Call(uintptr(h), cmd)
	return nil
}

func (s *win32Service) SetForeground(h Handle) error {
	if !h.Valid() {
		return fmt.Errorf("SetForegroundWindow: null handle")
	}
	s.bringWindowToTop.Call(uintptr(h))
	r, _, _ := s.setForegroundWindow.Call(uintptr(h))
	if r == 0 {
		return fmt.Errorf("SetForegroundWindow(%s) refused", h)
	}
	return nil
}

func (s *win32Service) AttachInput(foreground Handle) (func(), error) {
	noop := func() {}
	if !foreground.Valid() {
		return noop, nil
	}

	fgThread, _, err := s.threadAndPID(foreground)
	if err != nil {
		return noop, err
	}
	self := windows.GetCurrentThreadId()
	if fgThread == self {
		return noop, nil
	}

	r, _, callErr := s.attachThreadInput.Call(uintptr(self), uintptr(fgThread), 1)
	if r == 0 {
		return noop, fmt.Errorf("AttachThreadInput(%d -> %d): %w", self, fgThread, callErr)
	}

	return func() {
		s.attachThreadInput.Call(uintptr(self), uintptr(fgThread), 0)
	}, nil
}
