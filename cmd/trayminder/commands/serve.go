package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bryanchriswhite/TrayMinder/internal/api"
	"github.com/bryanchriswhite/TrayMinder/internal/app"
	"github.com/bryanchriswhite/TrayMinder/internal/bundle"
	"github.com/bryanchriswhite/TrayMinder/internal/eventloop"
	"github.com/bryanchriswhite/TrayMinder/internal/host"
	"github.com/bryanchriswhite/TrayMinder/internal/logger"
	"github.com/bryanchriswhite/TrayMinder/internal/window"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve [-- COMMAND [ARGS...]]",
	Short: "Manage a target application from the tray",
	Long: `Start TrayMinder: launch (or attach to) the target application, start the
tray helper and keep the target's main window under tray control until the
target exits or TrayMinder is interrupted.

The target is, in order of preference: the command after "--", target.command
from the config file, the running process target.pid, or TrayMinder itself.`,
	Example: `  # Manage a freshly launched application
  trayminder serve -- thunderbird

  # Attach to a running process
  trayminder config set target.pid 4242
  trayminder serve

  # Start with debug logging
  trayminder serve --log-level debug -- thunderbird`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// defaultBundlePath is the directory holding the trayminder executable.
func defaultBundlePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()
	if _, ok := logLevelFlag(); !ok {
		logger.SetLevel(cfg.LogLevel)
	}

	// No window service means nothing can work.
	svc, err := window.NewService()
	if err != nil {
		return fmt.Errorf("failed to initialize window service: %w", err)
	}

	bundlePath := cfg.Helper.Bundle
	if bundlePath == "" {
		if bundlePath, err = defaultBundlePath(); err != nil {
			svc.Close()
			return fmt.Errorf("failed to locate helper bundle: %w", err)
		}
	}
	pkg, err := bundle.Open(bundlePath)
	if err != nil {
		svc.Close()
		return err
	}

	command := cfg.Target.Command
	if len(args) > 0 {
		command = args
	}

	loop := eventloop.New()
	desktop := host.NewDesktop(host.DesktopConfig{
		Service: svc,
		Loop:    loop,
		Command: command,
		PID:     cfg.Target.PID,
		Class:   cfg.Target.Class,
	})
	a, err := app.New(app.Options{
		Config:    configMgr,
		Host:      desktop,
		Service:   svc,
		Loop:      loop,
		Extractor: pkg,
	})
	if err != nil {
		svc.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(context.Background())
	})

	var startErr error
	if err := loop.Call(ctx, func() {
		if startErr = desktop.Start(); startErr != nil {
			return
		}
		a.Startup()
	}); err != nil {
		startErr = err
	}
	if startErr != nil {
		loop.Call(context.Background(), func() { svc.Close() })
		loop.Stop()
		g.Wait()
		return startErr
	}
	if err := configMgr.Watch(); err != nil {
		log.Warn().Err(err).Msg("Preferences will not reload on external edits")
	}
	defer configMgr.Close()

	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(a.Remote(), configMgr, Version)
		g.Go(func() error {
			return server.Start(cfg.API.Port)
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-desktop.Done():
			log.Info().Msg("Target is gone")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := loop.Call(shutdownCtx, func() {
			desktop.Stop()
			a.Shutdown()
		}); err != nil {
			log.Error().Err(err).Msg("Shutdown did not complete")
		}
		if server != nil {
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Preferences pane shutdown failed")
			}
		}
		loop.Stop()
		return nil
	})

	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("bundle", pkg.Path()).
		Bool("api", cfg.API.Enabled).
		Msg("TrayMinder is running")

	return g.Wait()
}
