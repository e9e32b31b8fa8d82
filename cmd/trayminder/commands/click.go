package commands

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/TrayMinder/internal/config"
	"github.com/bryanchriswhite/TrayMinder/internal/helper"
	"github.com/bryanchriswhite/TrayMinder/internal/listener"
)

var clickPort string

var clickCmd = &cobra.Command{
	Use:   "click",
	Short: "Send a tray click to a running TrayMinder",
	Long: `Connect to the tray listener of a running TrayMinder and send one click,
exactly as the tray helper does.`,
	Example: `  # Toggle the managed window
  trayminder click

  # Use an explicit port
  trayminder click --port 47831`,
	RunE: runClick,
}

func init() {
	rootCmd.AddCommand(clickCmd)

	clickCmd.Flags().StringVarP(&clickPort, "port", "p", "", "listener port (default is helper.port from the config)")
}

func runClick(cmd *cobra.Command, args []string) error {
	port := clickPort
	if port == "" {
		configMgr, err := loadConfig()
		if err != nil {
			return err
		}
		port = configMgr.GetString(config.KeyHelperPort)
	}
	if _, ok := helper.ParsePort(port); !ok {
		return fmt.Errorf("%w: %q", listener.ErrInvalidPort, port)
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", port), 2*time.Second)
	if err != nil {
		return fmt.Errorf("TrayMinder is not listening on port %s: %w", port, err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(listener.Command + "\n")); err != nil {
		return fmt.Errorf("failed to send click: %w", err)
	}
	return nil
}
