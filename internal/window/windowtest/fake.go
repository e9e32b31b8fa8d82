// Package windowtest provides an in-memory window.Service for tests.
package windowtest

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bryanchriswhite/TrayMinder/internal/window"
)

// Window is the simulated state of one top-level window.
type Window struct {
	Title     string
	Class     string
	PID       int
	Visible   bool
	Minimized bool
	Maximized bool
}

// Service is a fake window.Service. A hidden window stops reporting as
// maximized, like a withdrawn X11 client.
type Service struct {
	mu sync.Mutex

	windows    map[window.Handle]*Window
	order      []window.Handle
	foreground window.Handle

	// FailQueries makes every probe return an error.
	FailQueries bool

	calls    []string
	attached int
	detached int
	closed   bool
}

var _ window.Service = (*Service)(nil)

func New() *Service {
	return &Service{windows: make(map[window.Handle]*Window)}
}

// Add registers a window.
func (s *Service) Add(h window.Handle, w Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.windows[h]; !ok {
		s.order = append(s.order, h)
	}
	cp := w
	s.windows[h] = &cp
}

// Remove destroys a window.
func (s *Service) Remove(h window.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, h)
	for i, o := range s.order {
		if o == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.foreground == h {
		s.foreground = 0
	}
}

// Get returns a copy of the window state.
func (s *Service) Get(h window.Handle) (Window, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[h]
	if !ok {
		return Window{}, false
	}
	return *w, true
}

// Update mutates a window in place.
func (s *Service) Update(h window.Handle, fn func(w *Window)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.windows[h]; ok {
		fn(w)
	}
}

func (s *Service) SetForegroundHandle(h window.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foreground = h
}

// Calls returns the mutations performed so far, e.g. "hide 0x10".
func (s *Service) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Service) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// AttachCounts returns how many times input was attached and detached.
func (s *Service) AttachCounts() (attached, detached int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached, s.detached
}

func (s *Service) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var errQuery = errors.New("query failed")

func (s *Service) lookup(h window.Handle) (*Window, error) {
	if s.FailQueries {
		return nil, errQuery
	}
	w, ok := s.windows[h]
	if !ok {
		return nil, fmt.Errorf("no window %s", h)
	}
	return w, nil
}

func (s *Service) Name() string { return "fake" }

func (s *Service) IsVisible(h window.Handle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.lookup(h)
	if err != nil {
		return false, err
	}
	return w.Visible, nil
}

func (s *Service) IsMinimized(h window.Handle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.lookup(h)
	if err != nil {
		return false, err
	}
	return w.Minimized, nil
}

func (s *Service) IsMaximized(h window.Handle) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.lookup(h)
	if err != nil {
		return false, err
	}
	return w.Visible && w.Maximized, nil
}

func (s *Service) ForegroundWindow() (window.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailQueries {
		return 0, errQuery
	}
	return s.foreground, nil
}

func (s *Service) WindowPID(h window.Handle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, err := s.lookup(h)
	if err != nil {
		return 0, err
	}
	return w.PID, nil
}

func (s *Service) Exists(h window.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.windows[h]
	return ok
}

func (s *Service) FindWindowsByClass(class string) ([]window.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []window.Handle
	for _, h := range s.order {
		if strings.EqualFold(s.windows[h].Class, class) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Service) ListWindows() ([]window.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]window.Info, 0, len(s.order))
	for _, h := range s.order {
		w := s.windows[h]
		out = append(out, window.Info{
			Handle:    h,
			Title:     w.Title,
			Class:     w.Class,
			PID:       w.PID,
			Visible:   w.Visible,
			Minimized: w.Minimized,
			Maximized: w.Visible && w.Maximized,
		})
	}
	return out, nil
}

func (s *Service) Hide(h window.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "hide "+h.String())
	w, ok := s.windows[h]
	if !ok {
		return fmt.Errorf("no window %s", h)
	}
	w.Visible = false
	if s.foreground == h {
		s.foreground = 0
	}
	return nil
}

func (s *Service) ShowState(h window.Handle, state window.ShowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, state.String()+" "+h.String())
	w, ok := s.windows[h]
	if !ok {
		return fmt.Errorf("no window %s", h)
	}
	w.Visible = true
	w.Minimized = false
	w.Maximized = state == window.ShowMaximize
	return nil
}

func (s *Service) SetForeground(h window.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "foreground "+h.String())
	if _, ok := s.windows[h]; !ok {
		return fmt.Errorf("no window %s", h)
	}
	s.foreground = h
	return nil
}

func (s *Service) AttachInput(window.Handle) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attached++
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.detached++
	}, nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
