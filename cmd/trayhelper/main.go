//go:build windows || linux || darwin

// Command trayhelper owns the tray icon and the global hotkey for
// TrayMinder. Every tray click or hotkey press is sent to TrayMinder's
// loopback listener as CLICKED.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/getlantern/systray"
	"github.com/spf13/cobra"
	"golang.design/x/hotkey"

	"github.com/bryanchriswhite/TrayMinder/internal/bundle"
	"github.com/bryanchriswhite/TrayMinder/internal/listener"
	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

type options struct {
	ctrl, alt, shift bool
	key              string
	port             int
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:   "trayhelper",
		Short: "TrayMinder tray icon and global hotkey",
		Long: `trayhelper shows the TrayMinder tray icon and registers the global hotkey.
It is started and restarted by TrayMinder; running it by hand is only useful
for debugging.`,
		Example:      `  trayhelper --ctrl --shift --key=B --port=47831`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.Flags().BoolVar(&opts.ctrl, "ctrl", false, "hotkey uses Ctrl")
	cmd.Flags().BoolVar(&opts.alt, "alt", false, "hotkey uses Alt (Option on macOS)")
	cmd.Flags().BoolVar(&opts.shift, "shift", false, "hotkey uses Shift")
	cmd.Flags().StringVar(&opts.key, "key", "", "hotkey key (A-Z, 0-9)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "TrayMinder listener port")
	cmd.MarkFlagRequired("port")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	logger.Init(os.Getenv("TRAYHELPER_LOG_LEVEL"), false)
	log := logger.WithComponent("trayhelper")

	client := listener.NewClient(opts.port)
	defer client.Close()

	click := func(source string) {
		if err := client.Click(); err != nil {
			log.Warn().Err(err).Str("source", source).Msg("click not delivered")
			return
		}
		log.Debug().Str("source", source).Msg("click sent")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		systray.Quit()
	}()

	var hk *hotkey.Hotkey
	onReady := func() {
		setIcon()
		systray.SetTooltip("TrayMinder")

		toggle := systray.AddMenuItem("Show / Hide", "Show or hide the window")
		go func() {
			for range toggle.ClickedCh {
				click("tray")
			}
		}()

		hk = registerHotkey(opts)
		if hk == nil {
			return
		}
		go func() {
			for range hk.Keydown() {
				click("hotkey")
			}
		}()
	}
	onExit := func() {
		if hk != nil {
			hk.Unregister()
		}
		log.Info().Msg("exiting")
	}

	log.Info().Int("port", opts.port).Str("key", opts.key).Msg("starting")
	systray.Run(onReady, onExit)
	return nil
}

// setIcon loads the icon shipped next to the executable.
func setIcon() {
	exe, err := os.Executable()
	if err == nil {
		if data, err := os.ReadFile(filepath.Join(filepath.Dir(exe), bundle.IconName)); err == nil {
			systray.SetIcon(data)
			return
		}
	}
	logger.WithComponent("trayhelper").Warn().Msg("tray icon not found")
	systray.SetTitle("TM")
}

// registerHotkey returns nil when no usable hotkey is configured or the
// combination is taken. The tray icon keeps working either way.
func registerHotkey(opts options) *hotkey.Hotkey {
	log := logger.WithComponent("trayhelper")

	key, ok := keyFor(opts.key)
	if !ok {
		if opts.key != "" {
			log.Warn().Str("key", opts.key).Msg("unsupported hotkey key")
		}
		return nil
	}

	mods := modifiers(opts)
	if len(mods) == 0 {
		log.Warn().Msg("hotkey has no modifiers, not registering")
		return nil
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		log.Error().Err(err).Str("key", opts.key).Msg("hotkey registration failed")
		return nil
	}
	log.Info().Str("key", opts.key).Msg("hotkey registered")
	return hk
}

func modifiers(opts options) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if opts.ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if opts.alt {
		mods = append(mods, altModifier)
	}
	if opts.shift {
		mods = append(mods, hotkey.ModShift)
	}
	return mods
}
