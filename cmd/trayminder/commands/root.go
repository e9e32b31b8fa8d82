package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/TrayMinder/internal/config"
	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

// Version is reported by the preferences pane.
var Version = "0.1.0"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "trayminder",
		Short: "TrayMinder - minimize an application's main window to the tray",
		Long: `TrayMinder manages one application's main window from the system tray.

Features:
  • Tray icon click toggles the window (restore, show, hide or focus)
  • Minimizing the window sends it to the tray
  • Global hotkey handled by a small helper process
  • Optional auto-hide at startup
  • Preferences file with live reload
  • Local preferences pane and status API`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := viper.GetString(config.KeyLogLevel)
			if level == "" {
				level = "info"
			}
			logger.Init(level, true)
		},
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/trayminder/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

func loadConfig() (*config.Manager, error) {
	mgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return mgr, nil
}

// logLevelFlag reports the --log-level override, if any.
func logLevelFlag() (string, bool) {
	level := viper.GetString(config.KeyLogLevel)
	return level, level != ""
}
