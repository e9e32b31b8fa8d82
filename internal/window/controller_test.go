package window_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/TrayMinder/internal/window"
	"github.com/bryanchriswhite/TrayMinder/internal/window/windowtest"
)

const (
	ownPID   = 4242
	mainWin  = window.Handle(0x10)
	otherWin = window.Handle(0x20)
)

type fakeSource struct {
	handle string
	err    error
	pid    int
}

func (f *fakeSource) NativeHandle() (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.handle, nil
}

func (f *fakeSource) OwnerPID() int { return f.pid }

func newController(t *testing.T, main windowtest.Window) (*window.Controller, *windowtest.Service) {
	t.Helper()
	svc := windowtest.New()
	main.PID = ownPID
	svc.Add(mainWin, main)
	src := &fakeSource{handle: mainWin.String(), pid: ownPID}
	c := window.NewController(svc, window.NewResolver(svc, src, "HostWindow"))
	require.True(t, c.Resolve())
	return c, svc
}

func TestHideShowPreservesMaximizeState(t *testing.T) {
	for _, maximized := range []bool{false, true} {
		for _, force := range []bool{false, true} {
			c, svc := newController(t, windowtest.Window{Visible: true, Maximized: maximized})

			c.Hide()
			w, _ := svc.Get(mainWin)
			assert.False(t, w.Visible)
			assert.True(t, c.Visibility().HiddenByPlugin)
			assert.Equal(t, maximized, c.Visibility().WasMaximized)

			c.Show(force)
			w, _ = svc.Get(mainWin)
			assert.True(t, w.Visible)
			wantMax := maximized && !force
			assert.Equal(t, wantMax, w.Maximized, "maximized=%v force=%v", maximized, force)
			assert.Equal(t, window.Visibility{}, c.Visibility())
		}
	}
}

func TestShowConsumesSavedMaximizeOnce(t *testing.T) {
	c, svc := newController(t, windowtest.Window{Visible: true, Maximized: true})

	c.Hide()
	c.Show(false)
	svc.Update(mainWin, func(w *windowtest.Window) { w.Visible = false })

	c.Show(false)
	w, _ := svc.Get(mainWin)
	assert.False(t, w.Maximized)
}

func TestShowAlwaysDetaches(t *testing.T) {
	c, svc := newController(t, windowtest.Window{Visible: false})
	svc.Remove(mainWin)

	// Every call on the stale handle fails; detach must still happen.
	c.Show(false)
	c.BringToFront()

	attached, detached := svc.AttachCounts()
	assert.Equal(t, 2, attached)
	assert.Equal(t, attached, detached)
}

func TestBringToFrontKeepsShowState(t *testing.T) {
	c, svc := newController(t, windowtest.Window{Visible: true, Maximized: true})
	svc.SetForegroundHandle(otherWin)

	c.BringToFront()

	assert.Equal(t, []string{"foreground " + mainWin.String()}, svc.Calls())
	w, _ := svc.Get(mainWin)
	assert.True(t, w.Maximized)
}

func TestProbe(t *testing.T) {
	c, svc := newController(t, windowtest.Window{Visible: true, Minimized: true})
	svc.SetForegroundHandle(mainWin)

	assert.Equal(t, window.State{Minimized: true, Visible: true, Foreground: true}, c.Probe())

	svc.FailQueries = true
	assert.Equal(t, window.State{}, c.Probe())
}

func TestResolverOrder(t *testing.T) {
	t.Run("host handle", func(t *testing.T) {
		svc := windowtest.New()
		svc.Add(mainWin, windowtest.Window{PID: ownPID})
		r := window.NewResolver(svc, &fakeSource{handle: "0x10", pid: ownPID}, "")
		require.True(t, r.Resolve())
		assert.Equal(t, mainWin, r.Handle())
	})

	t.Run("foreground owned by host", func(t *testing.T) {
		svc := windowtest.New()
		svc.Add(otherWin, windowtest.Window{PID: ownPID})
		svc.SetForegroundHandle(otherWin)
		r := window.NewResolver(svc, &fakeSource{err: errors.New("not ready"), pid: ownPID}, "")
		require.True(t, r.Resolve())
		assert.Equal(t, otherWin, r.Handle())
	})

	t.Run("foreground of another process is rejected", func(t *testing.T) {
		svc := windowtest.New()
		svc.Add(otherWin, windowtest.Window{PID: 1})
		svc.SetForegroundHandle(otherWin)
		r := window.NewResolver(svc, &fakeSource{err: errors.New("not ready"), pid: ownPID}, "")
		assert.False(t, r.Resolve())
		assert.False(t, r.Handle().Valid())
	})

	t.Run("class filtered by pid", func(t *testing.T) {
		svc := windowtest.New()
		svc.Add(otherWin, windowtest.Window{Class: "HostWindow", PID: 1})
		svc.Add(mainWin, windowtest.Window{Class: "HostWindow", PID: ownPID})
		r := window.NewResolver(svc, &fakeSource{err: errors.New("not ready"), pid: ownPID}, "HostWindow")
		require.True(t, r.Resolve())
		assert.Equal(t, mainWin, r.Handle())
	})

	t.Run("bad host handle string", func(t *testing.T) {
		svc := windowtest.New()
		r := window.NewResolver(svc, &fakeSource{handle: "not-a-handle", pid: ownPID}, "")
		assert.False(t, r.Resolve())
	})
}

func TestResolverKeepsCachedHandleOnFailure(t *testing.T) {
	svc := windowtest.New()
	svc.Add(mainWin, windowtest.Window{PID: ownPID})
	src := &fakeSource{handle: "16", pid: ownPID}
	r := window.NewResolver(svc, src, "")
	require.True(t, r.Resolve())

	svc.Remove(mainWin)
	src.err = errors.New("gone")
	assert.False(t, r.Resolve())
	assert.Equal(t, mainWin, r.Handle())

	r.Reset()
	assert.False(t, r.Handle().Valid())
}

func TestParseHandle(t *testing.T) {
	tests := []struct {
		in      string
		want    window.Handle
		wantErr bool
	}{
		{"16", 0x10, false},
		{"0x10", 0x10, false},
		{" 0x7fffffff ", 0x7fffffff, false},
		{"", 0, true},
		{"0", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := window.ParseHandle(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
