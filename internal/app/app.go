// Package app owns every TrayMinder component and drives them through the
// host lifecycle: startup, window load/unload and shutdown.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/TrayMinder/internal/config"
	"github.com/bryanchriswhite/TrayMinder/internal/eventloop"
	"github.com/bryanchriswhite/TrayMinder/internal/helper"
	"github.com/bryanchriswhite/TrayMinder/internal/host"
	"github.com/bryanchriswhite/TrayMinder/internal/listener"
	"github.com/bryanchriswhite/TrayMinder/internal/logger"
	"github.com/bryanchriswhite/TrayMinder/internal/tray"
	"github.com/bryanchriswhite/TrayMinder/internal/window"
)

// Options wires an App. Config, Host, Service, Loop and Extractor are
// required.
type Options struct {
	Config    *config.Manager
	Host      host.Host
	Service   window.Service
	Loop      *eventloop.Loop
	Extractor helper.Extractor

	// Optional overrides, mostly for tests.
	HelperDir     string
	Launcher      helper.Launcher
	Runner        helper.Runner
	RelaunchDelay time.Duration
}

// App is the plugin context: the single owner of all mutable state. Unless
// noted, methods must run on the event loop.
type App struct {
	opts Options
	cfg  *config.Manager
	host host.Host
	svc  window.Service
	loop *eventloop.Loop
	log  *zerolog.Logger

	controller *window.Controller
	dispatcher *tray.Dispatcher
	autoHide   *tray.AutoHide
	locks      *window.LockRegistry
	supervisor *helper.Supervisor
	listener   *listener.Listener
	events     *broker

	cancels      []func()
	configSub    int
	started      bool
	shuttingDown bool
	shutdownDone bool
	lastAction   tray.Action
}

// New builds the component graph. Nothing is started.
func New(opts Options) (*App, error) {
	if opts.Config == nil || opts.Host == nil || opts.Service == nil || opts.Loop == nil || opts.Extractor == nil {
		return nil, fmt.Errorf("app: incomplete options")
	}

	a := &App{
		opts:   opts,
		cfg:    opts.Config,
		host:   opts.Host,
		svc:    opts.Service,
		loop:   opts.Loop,
		log:    logger.WithComponent("app"),
		events: newBroker(),
	}

	resolver := window.NewResolver(opts.Service, opts.Host, opts.Config.GetString(config.KeyTargetClass))
	a.controller = window.NewController(opts.Service, resolver)
	a.dispatcher = tray.NewDispatcher(a.controller)
	a.dispatcher.OnAction = a.onAction
	a.autoHide = tray.NewAutoHide(opts.Loop, a.controller)
	a.locks = window.NewLockRegistry(opts.Host, a.onMinimize)
	a.supervisor = helper.NewSupervisor(helper.Config{
		Loop:          opts.Loop,
		Extractor:     opts.Extractor,
		Prefs:         a.helperPrefs,
		Dir:           opts.HelperDir,
		Launcher:      opts.Launcher,
		Runner:        opts.Runner,
		RelaunchDelay: opts.RelaunchDelay,
	})
	a.listener = listener.New(opts.Loop, a.Click)

	return a, nil
}

// Install prepares a fresh installation: the preferences file with defaults
// and a test extraction of the helper. Safe to run repeatedly.
func Install(configPath string, extractor helper.Extractor) (*config.Manager, error) {
	cfg, err := config.NewManager(configPath)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "trayminder-install-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	exe, err := extractor.ExtractHelper(dir)
	if err != nil {
		return nil, fmt.Errorf("helper bundle is unusable: %w", err)
	}
	logger.WithComponent("app").Info().
		Str("config", cfg.GetConfigPath()).
		Str("helper", filepath.Base(exe)).
		Msg("install complete")
	return cfg, nil
}

// helperPrefs takes a fresh snapshot every time the helper is launched.
func (a *App) helperPrefs() helper.Prefs {
	return helper.Prefs{
		Ctrl:  a.cfg.GetBool(config.KeyHotkeyCtrl),
		Alt:   a.cfg.GetBool(config.KeyHotkeyAlt),
		Shift: a.cfg.GetBool(config.KeyHotkeyShift),
		Key:   a.cfg.GetString(config.KeyHotkeyKey),
		Port:  a.cfg.GetString(config.KeyHelperPort),
	}
}

// Startup hooks into the host and starts the listener, helper and
// auto-hide poller.
func (a *App) Startup() {
	if a.started || a.shuttingDown {
		return
	}
	a.started = true

	a.cancels = append(a.cancels,
		a.host.OnWindowOpen(a.OnWindowLoad),
		a.host.OnWindowClose(a.OnWindowUnload),
	)
	for _, id := range a.host.MainWindows() {
		a.OnWindowLoad(id)
	}

	a.configSub = a.cfg.Subscribe(func(changed []string) {
		// Called from the file watcher goroutine.
		a.host.Dispatch(func() { a.onPreferencesChanged(changed) })
	})

	if err := a.listener.Start(a.cfg.GetString(config.KeyHelperPort)); err != nil {
		a.log.Error().Err(err).Msg("tray listener not started")
	}

	if err := a.supervisor.Launch(); err != nil {
		a.log.Error().Err(err).Msg("helper launch failed")
	}

	if a.cfg.GetBool(config.KeyStartupHide) {
		a.autoHide.Start()
	}

	a.log.Info().Str("window_service", a.svc.Name()).Int("owner_pid", a.host.OwnerPID()).Msg("started")
}

// OnWindowLoad locks a newly opened main window.
func (a *App) OnWindowLoad(windowID string) {
	if a.shuttingDown {
		return
	}
	a.locks.Lock(windowID)
}

// OnWindowUnload unlocks a closing window and forgets the cached handle if
// it was the tracked main window.
func (a *App) OnWindowUnload(windowID string) {
	a.locks.Unlock(windowID)
	if h := a.controller.Handle(); h.Valid() && h.String() == windowID {
		a.controller.Reset()
		a.log.Debug().Str("window", windowID).Msg("main window closed")
	}
}

// onMinimize redirects a locked window's minimize to the tray.
func (a *App) onMinimize(windowID string) {
	if a.shuttingDown || !a.controller.Resolve() {
		return
	}
	if a.controller.Handle().String() != windowID {
		return
	}
	a.controller.Hide()
	a.onAction(tray.ActionHide)
}

// Click handles a tray click on the event loop.
func (a *App) Click() {
	if a.shuttingDown {
		return
	}
	a.dispatcher.Click()
}

func (a *App) onAction(action tray.Action) {
	a.lastAction = action
	a.events.publish(Event{Type: EventTrayClick, Action: action.String()})
}

func (a *App) onPreferencesChanged(changed []string) {
	if a.shuttingDown {
		return
	}
	a.events.publish(Event{Type: EventPreferences, Keys: changed})

	if config.Changed(changed, config.KeyLogLevel) {
		logger.SetLevel(a.cfg.GetString(config.KeyLogLevel))
	}
	if config.Changed(changed, config.KeyHelperPort) {
		if err := a.listener.Restart(a.cfg.GetString(config.KeyHelperPort)); err != nil {
			a.log.Error().Err(err).Msg("tray listener not restarted")
		}
	}
	if config.Changed(changed, config.HelperKeys...) {
		a.supervisor.Restart()
	}
}

// Subscribe streams events. Safe from any goroutine.
func (a *App) Subscribe() (<-chan Event, func()) {
	return a.events.subscribe()
}

// Shutdown tears everything down in a fixed order. Each step is guarded so
// a failure never skips the ones after it. Only the first call does work.
func (a *App) Shutdown() {
	if a.shutdownDone {
		return
	}
	a.shutdownDone = true
	a.shuttingDown = true
	a.log.Info().Msg("shutting down")

	a.step("stop timers", func() {
		a.autoHide.Stop()
		a.supervisor.StopTimers()
	})
	a.step("unregister observers", func() {
		a.cfg.Unsubscribe(a.configSub)
		for _, cancel := range a.cancels {
			cancel()
		}
		a.cancels = nil
	})
	a.step("close listener", func() {
		if err := a.listener.Close(); err != nil {
			a.log.Warn().Err(err).Msg("listener close failed")
		}
	})
	a.step("kill helper", a.supervisor.Terminate)
	a.step("unlock windows", func() {
		a.locks.UnlockAll()
		// Never leave the window hidden with no tray icon to bring it back.
		if a.controller.Visibility().HiddenByPlugin {
			a.controller.Show(false)
		}
	})
	a.step("release window service", func() {
		if err := a.svc.Close(); err != nil {
			a.log.Warn().Err(err).Msg("window service close failed")
		}
	})

	a.events.publish(Event{Type: EventShutdown})
}

func (a *App) step(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Str("step", name).Msg("shutdown step failed")
		}
	}()
	fn()
}

// ShuttingDown reports whether Shutdown has begun.
func (a *App) ShuttingDown() bool {
	return a.shuttingDown
}
