package helper

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/TrayMinder/internal/bundle"
	"github.com/bryanchriswhite/TrayMinder/internal/eventloop"
	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

// RelaunchDelay is how long to wait before restarting a helper that exited.
const RelaunchDelay = 2000 * time.Millisecond

// State of the helper process.
type State int

const (
	StateNotRunning State = iota
	StateLaunching
	StateRunning
	StateTerminated
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	case StateKilled:
		return "killed"
	default:
		return "not running"
	}
}

// Extractor copies the helper out of the package into dir.
type Extractor interface {
	ExtractHelper(dir string) (exePath string, err error)
}

// Config wires a Supervisor.
type Config struct {
	Loop      *eventloop.Loop
	Extractor Extractor
	// Prefs returns a fresh preference snapshot on every call.
	Prefs func() Prefs

	// Dir is where the helper is extracted; defaults to <tmp>/trayminder.
	Dir           string
	Launcher      Launcher
	Runner        Runner
	RelaunchDelay time.Duration
	GOOS          string
}

// Status is a point-in-time view of the supervisor.
type Status struct {
	State      string   `json:"state"`
	PID        int      `json:"pid,omitempty"`
	Args       []string `json:"args"`
	Launches   int      `json:"launches"`
	Relaunches int      `json:"relaunches"`
}

// Supervisor keeps at most one helper process alive. All methods must be
// called on the event loop.
type Supervisor struct {
	cfg Config
	log *zerolog.Logger

	state        State
	proc         Process
	args         []string
	exeName      string
	script       string
	relaunch     *eventloop.Timer
	shuttingDown bool
	terminated   bool

	launches   int
	relaunches int
}

func NewSupervisor(cfg Config) *Supervisor {
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(os.TempDir(), "trayminder")
	}
	if cfg.Launcher == nil {
		cfg.Launcher = ExecLauncher{}
	}
	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{}
	}
	if cfg.RelaunchDelay <= 0 {
		cfg.RelaunchDelay = RelaunchDelay
	}
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	return &Supervisor{
		cfg: cfg,
		log: logger.WithComponent("helper"),
	}
}

// Running reports whether a helper process is live.
func (s *Supervisor) Running() bool {
	return s.proc != nil
}

func (s *Supervisor) Status() Status {
	st := Status{
		State:      s.state.String(),
		Args:       append([]string{}, s.args...),
		Launches:   s.launches,
		Relaunches: s.relaunches,
	}
	if s.proc != nil {
		st.PID = s.proc.Pid()
	}
	return st
}

// Launch extracts and starts the helper. It does nothing while shutting down
// or when a helper is already live.
func (s *Supervisor) Launch() error {
	if s.shuttingDown {
		s.log.Debug().Msg("launch skipped: shutting down")
		return nil
	}
	if s.proc != nil {
		return nil
	}
	// A direct launch supersedes a pending relaunch.
	s.relaunch.Stop()

	s.state = StateLaunching

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return s.launchFailed(err, "helper directory unavailable", s.cfg.Dir)
	}
	exe, err := s.cfg.Extractor.ExtractHelper(s.cfg.Dir)
	if err != nil {
		return s.launchFailed(err, "helper extraction failed", s.cfg.Dir)
	}

	s.exeName = filepath.Base(exe)
	ks := killScript{goos: s.cfg.GOOS, exe: s.exeName}
	if p, err := ks.write(s.cfg.Dir); err != nil {
		s.log.Warn().Err(err).Msg("kill script unavailable; will kill directly")
		s.script = ""
	} else {
		s.script = p
	}

	var prefs Prefs
	if s.cfg.Prefs != nil {
		prefs = s.cfg.Prefs()
	}
	args, warnings := BuildArgs(prefs)
	for _, w := range warnings {
		s.log.Warn().Msg(w)
	}
	s.args = args

	proc, err := s.cfg.Launcher.Start(exe, args)
	if err != nil {
		return s.launchFailed(err, "helper failed to start", exe)
	}

	s.proc = proc
	s.state = StateRunning
	s.launches++
	s.log.Info().Int("pid", proc.Pid()).Strs("args", args).Msg("helper started")

	go func() {
		err := proc.Wait()
		s.cfg.Loop.Post(func() { s.onExit(proc, err) })
	}()
	return nil
}

// launchFailed schedules a retry for every failed launch.
func (s *Supervisor) launchFailed(err error, msg, path string) error {
	s.state = StateNotRunning
	s.log.Error().Err(err).Str("path", path).Msg(msg)
	s.scheduleRelaunch()
	return err
}

func (s *Supervisor) onExit(proc Process, err error) {
	if s.proc != proc {
		// Already replaced or cleared by Terminate.
		return
	}
	s.proc = nil

	if s.shuttingDown {
		return
	}
	s.state = StateNotRunning
	s.log.Warn().Err(err).Int("pid", proc.Pid()).Dur("delay", s.cfg.RelaunchDelay).Msg("helper exited; relaunching")
	s.scheduleRelaunch()
}

func (s *Supervisor) scheduleRelaunch() {
	s.relaunch.Stop()
	s.relaunch = s.cfg.Loop.AfterFunc(s.cfg.RelaunchDelay, func() {
		if s.shuttingDown {
			return
		}
		s.relaunches++
		if err := s.Launch(); err != nil {
			s.log.Error().Err(err).Msg("helper relaunch failed")
		}
	})
}

// StopTimers cancels a pending relaunch. Shutdown calls it before the
// helper is killed.
func (s *Supervisor) StopTimers() {
	s.relaunch.Stop()
}

// Restart applies new preferences: a live helper is killed and the exit path
// relaunches it with fresh arguments; otherwise it is launched directly.
func (s *Supervisor) Restart() {
	if s.shuttingDown {
		return
	}
	if s.proc != nil {
		s.log.Info().Msg("preferences changed; restarting helper")
		if err := s.proc.Kill(); err != nil {
			s.log.Warn().Err(err).Msg("failed to kill helper")
		}
		return
	}
	if err := s.Launch(); err != nil {
		s.log.Error().Err(err).Msg("helper launch failed")
	}
}

// Terminate stops the helper for good. Only the first call has any effect.
func (s *Supervisor) Terminate() {
	if s.terminated {
		return
	}
	s.terminated = true
	s.shuttingDown = true
	s.relaunch.Stop()

	exe := s.exeName
	if exe == "" {
		exe = bundle.HelperExeName(s.cfg.GOOS)
	}
	ks := killScript{goos: s.cfg.GOOS, exe: exe}
	var name string
	var args []string
	if s.script != "" {
		name, args = ks.run(s.script)
	} else {
		name, args = ks.direct()
	}

	err := s.cfg.Runner.Run(name, args...)
	if err != nil {
		s.log.Debug().Err(err).Str("cmd", name).Msg("kill command failed")
		if s.proc != nil {
			err = s.proc.Kill()
		}
	}

	if s.proc != nil || s.state == StateRunning {
		s.state = StateKilled
	} else {
		s.state = StateTerminated
	}
	s.proc = nil
	s.log.Info().Err(err).Msg("helper terminated")
}
