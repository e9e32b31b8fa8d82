package helper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/TrayMinder/internal/eventloop"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name     string
		prefs    Prefs
		want     []string
		warnings int
	}{
		{
			name:  "documented example",
			prefs: Prefs{Ctrl: true, Shift: true, Key: "b", Port: "5901"},
			want:  []string{"--ctrl", "--shift", "--key=B", "--port=5901"},
		},
		{
			name:  "all modifiers",
			prefs: Prefs{Ctrl: true, Alt: true, Shift: true, Key: "7", Port: "1"},
			want:  []string{"--ctrl", "--alt", "--shift", "--key=7", "--port=1"},
		},
		{
			name:     "non ascii key dropped",
			prefs:    Prefs{Alt: true, Key: "é", Port: "5901"},
			want:     []string{"--alt", "--port=5901"},
			warnings: 1,
		},
		{
			name:     "multi char key dropped",
			prefs:    Prefs{Key: "ab"},
			want:     nil,
			warnings: 1,
		},
		{
			name:     "non numeric port dropped",
			prefs:    Prefs{Key: "z", Port: "abc"},
			want:     []string{"--key=Z"},
			warnings: 1,
		},
		{
			name:  "empty values omitted silently",
			prefs: Prefs{},
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warnings := BuildArgs(tt.prefs)
			assert.Equal(t, tt.want, got)
			assert.Len(t, warnings, tt.warnings)
		})
	}
}

func TestParsePort(t *testing.T) {
	for in, want := range map[string]bool{
		"5901":  true,
		" 80 ":  true,
		"":      false,
		"abc":   false,
		"0":     false,
		"-1":    false,
		"70000": false,
	} {
		_, ok := ParsePort(in)
		assert.Equal(t, want, ok, in)
	}
}

func TestKillScript(t *testing.T) {
	win := killScript{goos: "windows", exe: "trayhelper.exe"}
	assert.True(t, strings.HasSuffix(win.fileName(), ".vbs"))
	assert.Contains(t, win.content(), `taskkill /F /IM ""trayhelper.exe""`)
	name, args := win.run(`C:\tmp\kill.vbs`)
	assert.Equal(t, "wscript", name)
	assert.Equal(t, []string{"//B", "//Nologo", `C:\tmp\kill.vbs`}, args)
	name, args = win.direct()
	assert.Equal(t, "taskkill", name)
	assert.Equal(t, []string{"/F", "/IM", "trayhelper.exe"}, args)

	unix := killScript{goos: "linux", exe: "trayhelper"}
	assert.Contains(t, unix.content(), "pkill -KILL -x 'trayhelper'")
	name, _ = unix.run("/tmp/kill.sh")
	assert.Equal(t, "sh", name)

	dir := t.TempDir()
	p, err := unix.write(dir)
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, unix.content(), string(data))
}

// fakes

type fakeProcess struct {
	pid  int
	exit chan struct{}
	once sync.Once
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait() error {
	<-p.exit
	return errors.New("exit status 1")
}

func (p *fakeProcess) Kill() error {
	p.Exit()
	return nil
}

func (p *fakeProcess) Exit() {
	p.once.Do(func() { close(p.exit) })
}

type fakeLauncher struct {
	mu    sync.Mutex
	procs []*fakeProcess
	args  [][]string
	fail  bool
}

func (l *fakeLauncher) Start(path string, args []string) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return nil, errors.New("exec format error")
	}
	p := &fakeProcess{pid: 100 + len(l.procs), exit: make(chan struct{})}
	l.procs = append(l.procs, p)
	l.args = append(l.args, args)
	return p, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

func (l *fakeLauncher) last() *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.procs[len(l.procs)-1]
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *fakeRunner) Run(name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	return r.err
}

type fakeExtractor struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (e *fakeExtractor) ExtractHelper(dir string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail {
		return "", errors.New("bundle entry not found")
	}
	p := filepath.Join(dir, "trayhelper")
	return p, os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755)
}

func (e *fakeExtractor) setFail(fail bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = fail
}

func (e *fakeExtractor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type harness struct {
	loop      *eventloop.Loop
	sup       *Supervisor
	launcher  *fakeLauncher
	runner    *fakeRunner
	extractor *fakeExtractor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	loop := eventloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})

	h := &harness{loop: loop, launcher: &fakeLauncher{}, runner: &fakeRunner{}, extractor: &fakeExtractor{}}
	h.sup = NewSupervisor(Config{
		Loop:          loop,
		Extractor:     h.extractor,
		Prefs:         func() Prefs { return Prefs{Ctrl: true, Key: "t", Port: "5901"} },
		Dir:           t.TempDir(),
		Launcher:      h.launcher,
		Runner:        h.runner,
		RelaunchDelay: 20 * time.Millisecond,
		GOOS:          "linux",
	})
	return h
}

func (h *harness) do(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, h.loop.Call(context.Background(), fn))
}

func TestLaunchBuildsArgs(t *testing.T) {
	h := newHarness(t)
	h.do(t, func() { require.NoError(t, h.sup.Launch()) })

	require.Equal(t, 1, h.launcher.count())
	assert.Equal(t, []string{"--ctrl", "--key=T", "--port=5901"}, h.launcher.args[0])

	var st Status
	h.do(t, func() { st = h.sup.Status() })
	assert.Equal(t, "running", st.State)
	assert.Equal(t, 100, st.PID)

	// A second launch while live is a no-op.
	h.do(t, func() { require.NoError(t, h.sup.Launch()) })
	assert.Equal(t, 1, h.launcher.count())
}

func TestRelaunchOncePerExit(t *testing.T) {
	h := newHarness(t)
	h.do(t, func() { require.NoError(t, h.sup.Launch()) })

	h.launcher.last().Exit()
	assert.Eventually(t, func() bool { return h.launcher.count() == 2 }, time.Second, 5*time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 2, h.launcher.count())

	h.launcher.last().Exit()
	assert.Eventually(t, func() bool { return h.launcher.count() == 3 }, time.Second, 5*time.Millisecond)

	var st Status
	h.do(t, func() { st = h.sup.Status() })
	assert.Equal(t, 2, st.Relaunches)
}

func TestNoRelaunchAfterTerminate(t *testing.T) {
	h := newHarness(t)
	h.do(t, func() { require.NoError(t, h.sup.Launch()) })
	proc := h.launcher.last()

	h.do(t, func() {
		h.sup.Terminate()
		assert.False(t, h.sup.Running())
	})
	proc.Exit()

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, h.launcher.count())
}

func TestExitRacingTerminate(t *testing.T) {
	h := newHarness(t)
	h.do(t, func() { require.NoError(t, h.sup.Launch()) })
	proc := h.launcher.last()

	// The exit is processed first and arms the relaunch timer; Terminate
	// must disarm it.
	proc.Exit()
	assert.Eventually(t, func() bool {
		var running bool
		_ = h.loop.Call(context.Background(), func() { running = h.sup.Running() })
		return !running
	}, time.Second, time.Millisecond)
	h.do(t, h.sup.Terminate)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, h.launcher.count())
}

func TestTerminateRunsOnce(t *testing.T) {
	h := newHarness(t)
	h.do(t, func() { require.NoError(t, h.sup.Launch()) })

	h.do(t, func() {
		h.sup.Terminate()
		h.sup.Terminate()
	})

	h.runner.mu.Lock()
	defer h.runner.mu.Unlock()
	require.Len(t, h.runner.calls, 1)
	assert.True(t, strings.HasPrefix(h.runner.calls[0], "sh "))
	assert.True(t, strings.HasSuffix(h.runner.calls[0], "kill-trayhelper.sh"))
}

func TestTerminateWithoutScriptKillsDirectly(t *testing.T) {
	h := newHarness(t)
	h.do(t, h.sup.Terminate)

	h.runner.mu.Lock()
	defer h.runner.mu.Unlock()
	assert.Equal(t, []string{"pkill -KILL -x trayhelper"}, h.runner.calls)
}

func TestTerminateFallsBackToProcessKill(t *testing.T) {
	h := newHarness(t)
	h.runner.err = errors.New("pkill: not found")
	h.do(t, func() { require.NoError(t, h.sup.Launch()) })
	proc := h.launcher.last()

	h.do(t, h.sup.Terminate)

	select {
	case <-proc.exit:
	default:
		t.Fatal("helper was not killed")
	}
}

func TestRestart(t *testing.T) {
	h := newHarness(t)

	// Nothing live: launch directly.
	h.do(t, h.sup.Restart)
	require.Equal(t, 1, h.launcher.count())

	// Live: kill, and the exit path relaunches.
	h.do(t, h.sup.Restart)
	assert.Eventually(t, func() bool { return h.launcher.count() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 2, h.launcher.count())

	h.do(t, func() {
		h.sup.Terminate()
		h.sup.Restart()
	})
	assert.Equal(t, 2, h.launcher.count())
}

func TestStartFailureRetries(t *testing.T) {
	h := newHarness(t)
	h.launcher.mu.Lock()
	h.launcher.fail = true
	h.launcher.mu.Unlock()

	h.do(t, func() { assert.Error(t, h.sup.Launch()) })

	h.launcher.mu.Lock()
	h.launcher.fail = false
	h.launcher.mu.Unlock()

	assert.Eventually(t, func() bool { return h.launcher.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestExtractFailureRetries(t *testing.T) {
	h := newHarness(t)
	h.do(t, func() { require.NoError(t, h.sup.Launch()) })
	require.Equal(t, 1, h.launcher.count())

	// The relaunch after this exit cannot extract the helper.
	h.extractor.setFail(true)
	h.launcher.last().Exit()
	assert.Eventually(t, func() bool { return h.extractor.count() >= 3 }, time.Second, 5*time.Millisecond)

	var st Status
	h.do(t, func() { st = h.sup.Status() })
	assert.Equal(t, "not running", st.State)
	assert.Equal(t, 1, h.launcher.count())

	h.extractor.setFail(false)
	assert.Eventually(t, func() bool { return h.launcher.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestStopTimersCancelsPendingRelaunch(t *testing.T) {
	h := newHarness(t)
	h.do(t, func() { require.NoError(t, h.sup.Launch()) })

	h.do(t, func() {
		h.sup.scheduleRelaunch()
		h.sup.StopTimers()
	})
	time.Sleep(60 * time.Millisecond)

	var st Status
	h.do(t, func() { st = h.sup.Status() })
	assert.Equal(t, 0, st.Relaunches)
	assert.Equal(t, 1, h.launcher.count())
}
