//go:build !windows && !darwin

package window

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

// EWMH _NET_WM_STATE client message actions
const (
	netWMStateRemove = 0
	netWMStateAdd    = 1

	// source indication for _NET_ACTIVE_WINDOW: pager, which window managers
	// honor without focus-stealing checks
	sourcePager = 2

	iconicState = 3
)

// x11Service implements Service against an EWMH window manager.
type x11Service struct {
	conn *xgb.Conn
	root xproto.Window

	mu    sync.Mutex
	atoms map[string]xproto.Atom
}

func newPlatformService() (Service, error) {
	return newX11Service()
}

func newX11Service() (*x11Service, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	return &x11Service{
		conn:  conn,
		root:  setup.DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom),
	}, nil
}

func (s *x11Service) Name() string {
	return "x11"
}

func (s *x11Service) Close() error {
	s.conn.Close()
	return nil
}

// atom interns and caches an atom by name
func (s *x11Service) atom(name string) (xproto.Atom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.atoms[name]; ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(s.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to intern %s: %w", name, err)
	}
	s.atoms[name] = reply.Atom
	return reply.Atom, nil
}

// property32 reads a format-32 property as a list of values.
func (s *x11Service) property32(win xproto.Window, name string) ([]uint32, error) {
	a, err := s.atom(name)
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(s.conn, false, win, a, xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if reply.Format != 32 {
		return nil, nil
	}

	values := make([]uint32, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		values = append(values, xgb.Get32(reply.Value[i:]))
	}
	return values, nil
}

// propertyString reads a string property as raw bytes.
func (s *x11Service) propertyString(win xproto.Window, name string) (string, error) {
	a, err := s.atom(name)
	if err != nil {
		return "", err
	}
	reply, err := xproto.GetProperty(s.conn, false, win, a, xproto.GetPropertyTypeAny, 0, (1<<32)-1).Reply()
	if err != nil {
		return "", err
	}
	return string(reply.Value), nil
}

// hasStates reports whether every named state is present in _NET_WM_STATE.
func (s *x11Service) hasStates(h Handle, names ...string) (bool, error) {
	states, err := s.property32(xproto.Window(h), "_NET_WM_STATE")
	if err != nil {
		return false, err
	}
	for _, name := range names {
		want, err := s.atom(name)
		if err != nil {
			return false, err
		}
		found := false
		for _, st := range states {
			if xproto.Atom(st) == want {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}

func (s *x11Service) Exists(h Handle) bool {
	if !h.Valid() {
		return false
	}
	_, err := xproto.GetWindowAttributes(s.conn, xproto.Window(h)).Reply()
	return err == nil
}

func (s *x11Service) IsVisible(h Handle) (bool, error) {
	attrs, err := xproto.GetWindowAttributes(s.conn, xproto.Window(h)).Reply()
	if err != nil {
		return false, fmt.Errorf("failed to get attributes of %s: %w", h, err)
	}
	return attrs.MapState == xproto.MapStateViewable, nil
}

func (s *x11Service) IsMinimized(h Handle) (bool, error) {
	hidden, err := s.hasStates(h, "_NET_WM_STATE_HIDDEN")
	if err == nil && hidden {
		return true, nil
	}
	// ICCCM fallback for window managers without _NET_WM_STATE_HIDDEN
	wmState, err := s.property32(xproto.Window(h), "WM_STATE")
	if err != nil {
		return false, err
	}
	return len(wmState) > 0 && wmState[0] == iconicState, nil
}

func (s *x11Service) IsMaximized(h Handle) (bool, error) {
	return s.hasStates(h, "_NET_WM_STATE_MAXIMIZED_VERT", "_NET_WM_STATE_MAXIMIZED_HORZ")
}

func (s *x11Service) ForegroundWindow() (Handle, error) {
	active, err := s.property32(s.root, "_NET_ACTIVE_WINDOW")
	if err != nil {
		return 0, err
	}
	if len(active) == 0 {
		return 0, nil
	}
	return Handle(active[0]), nil
}

func (s *x11Service) WindowPID(h Handle) (int, error) {
	pid, err := s.property32(xproto.Window(h), "_NET_WM_PID")
	if err != nil {
		return 0, err
	}
	if len(pid) == 0 {
		return 0, fmt.Errorf("window %s has no _NET_WM_PID", h)
	}
	return int(pid[0]), nil
}

// clientList returns managed windows from _NET_CLIENT_LIST
func (s *x11Service) clientList() ([]Handle, error) {
	ids, err := s.property32(s.root, "_NET_CLIENT_LIST")
	if err != nil {
		return nil, err
	}
	handles := make([]Handle, 0, len(ids))
	for _, id := range ids {
		handles = append(handles, Handle(id))
	}
	return handles, nil
}

// windowClass returns the class part of WM_CLASS ("instance\0class\0").
func (s *x11Service) windowClass(h Handle) (instance, class string) {
	raw, err := s.propertyString(xproto.Window(h), "WM_CLASS")
	if err != nil {
		return "", ""
	}
	parts := strings.Split(strings.TrimRight(raw, "\x00"), "\x00")
	if len(parts) > 0 {
		instance = parts[0]
	}
	if len(parts) > 1 {
		class = parts[1]
	}
	return instance, class
}

func (s *x11Service) title(h Handle) string {
	if t, err := s.propertyString(xproto.Window(h), "_NET_WM_NAME"); err == nil && t != "" {
		return t
	}
	t, _ := s.propertyString(xproto.Window(h), "WM_NAME")
	return t
}

func (s *x11Service) FindWindowsByClass(class string) ([]Handle, error) {
	clients, err := s.clientList()
	if err != nil {
		return nil, err
	}
	var found []Handle
	for _, h := range clients {
		instance, cls := s.windowClass(h)
		if strings.EqualFold(cls, class) || strings.EqualFold(instance, class) {
			found = append(found, h)
		}
	}
	return found, nil
}

func (s *x11Service) ListWindows() ([]Info, error) {
	log := logger.WithComponent("x11")

	clients, err := s.clientList()
	if err != nil {
		return nil, err
	}

	out := make([]Info, 0, len(clients))
	for _, h := range clients {
		_, class := s.windowClass(h)
		info := Info{Handle: h, Title: s.title(h), Class: class}
		if info.Title == "" && info.Class == "" {
			log.Debug().Stringer("handle", h).Msg("skipping window without title or class")
			continue
		}
		info.PID, _ = s.WindowPID(h)
		info.Visible, _ = s.IsVisible(h)
		info.Minimized, _ = s.IsMinimized(h)
		info.Maximized, _ = s.IsMaximized(h)
		out = append(out, info)
	}
	return out, nil
}

// sendRootMessage delivers an EWMH client message to the window manager.
func (s *x11Service) sendRootMessage(win xproto.Window, msgType string, data ...uint32) error {
	typ, err := s.atom(msgType)
	if err != nil {
		return err
	}
	var d [5]uint32
	copy(d[:], data)

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   typ,
		Data:   xproto.ClientMessageDataUnionData32New(d[:]),
	}
	mask := uint32(xproto.EventMaskSubstructureNotify | xproto.EventMaskSubstructureRedirect)
	return xproto.SendEventChecked(s.conn, false, s.root, mask, string(ev.Bytes())).Check()
}

// Hide withdraws the window: unmap plus the synthetic UnmapNotify ICCCM
// requires for reparented clients.
func (s *x11Service) Hide(h Handle) error {
	win := xproto.Window(h)
	if err := xproto.UnmapWindowChecked(s.conn, win).Check(); err != nil {
		return fmt.Errorf("failed to unmap %s: %w", h, err)
	}

	ev := xproto.UnmapNotifyEvent{Event: s.root, Window: win}
	mask := uint32(xproto.EventMaskSubstructureNotify | xproto.EventMaskSubstructureRedirect)
	if err := xproto.SendEventChecked(s.conn, false, s.root, mask, string(ev.Bytes())).Check(); err != nil {
		return fmt.Errorf("failed to withdraw %s: %w", h, err)
	}
	return nil
}

func (s *x11Service) ShowState(h Handle, state ShowState) error {
	win := xproto.Window(h)
	vert, err := s.atom("_NET_WM_STATE_MAXIMIZED_VERT")
	if err != nil {
		return err
	}
	horz, err := s.atom("_NET_WM_STATE_MAXIMIZED_HORZ")
	if err != nil {
		return err
	}

	mapped, err := s.IsVisible(h)
	if err != nil {
		return err
	}

	if !mapped {
		// Withdrawn windows carry their own initial state (EWMH).
		wmState, err := s.atom("_NET_WM_STATE")
		if err != nil {
			return err
		}
		var values []byte
		if state == ShowMaximize {
			values = make([]byte, 8)
			xgb.Put32(values, uint32(vert))
			xgb.Put32(values[4:], uint32(horz))
		}
		if err := xproto.ChangePropertyChecked(s.conn, xproto.PropModeReplace, win, wmState,
			xproto.AtomAtom, 32, uint32(len(values)/4), values).Check(); err != nil {
			return fmt.Errorf("failed to set _NET_WM_STATE on %s: %w", h, err)
		}
		if err := xproto.MapWindowChecked(s.conn, win).Check(); err != nil {
			return fmt.Errorf("failed to map %s: %w", h, err)
		}
		return nil
	}

	action := uint32(netWMStateRemove)
	if state == ShowMaximize {
		action = netWMStateAdd
	}
	if err := s.sendRootMessage(win, "_NET_WM_STATE", action, uint32(vert), uint32(horz), sourcePager); err != nil {
		return fmt.Errorf("failed to change state of %s: %w", h, err)
	}
	// Activation de-iconifies a minimized window.
	return s.sendRootMessage(win, "_NET_ACTIVE_WINDOW", sourcePager, xproto.TimeCurrentTime)
}

func (s *x11Service) SetForeground(h Handle) error {
	if err := s.sendRootMessage(xproto.Window(h), "_NET_ACTIVE_WINDOW", sourcePager, xproto.TimeCurrentTime); err != nil {
		return fmt.Errorf("failed to activate %s: %w", h, err)
	}
	return nil
}

// AttachInput is a no-op: X11 has no per-thread input queues.
func (s *x11Service) AttachInput(Handle) (func(), error) {
	return func() {}, nil
}
