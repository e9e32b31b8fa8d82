package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/TrayMinder/internal/window"
)

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List top-level windows",
	Long: `List the top-level windows the window service can see. Useful for
picking a target.class or target.pid.`,
	Example: `  # List windows in table format (default)
  trayminder windows

  # Only windows of one process
  trayminder windows --pid 4242

  # List windows in JSON format
  trayminder windows --format json`,
	RunE: runWindows,
}

var (
	windowsFormat string
	windowsPID    int
	windowsClass  string
)

func init() {
	rootCmd.AddCommand(windowsCmd)

	windowsCmd.Flags().StringVarP(&windowsFormat, "format", "f", "table", "output format (table or json)")
	windowsCmd.Flags().IntVar(&windowsPID, "pid", 0, "show only windows of this process")
	windowsCmd.Flags().StringVar(&windowsClass, "class", "", "show only windows of this class")
}

func runWindows(cmd *cobra.Command, args []string) error {
	svc, err := window.NewService()
	if err != nil {
		return fmt.Errorf("failed to initialize window service: %w", err)
	}
	defer svc.Close()

	all, err := svc.ListWindows()
	if err != nil {
		return fmt.Errorf("failed to list windows: %w", err)
	}

	windows := make([]window.Info, 0, len(all))
	for _, w := range all {
		if windowsPID > 0 && w.PID != windowsPID {
			continue
		}
		if windowsClass != "" && !strings.EqualFold(w.Class, windowsClass) {
			continue
		}
		windows = append(windows, w)
	}

	switch windowsFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(windows)
	case "table":
		return printWindowsTable(windows)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", windowsFormat)
	}
}

func printWindowsTable(windows []window.Info) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "HANDLE\tCLASS\tPID\tSTATE\tTITLE")
	fmt.Fprintln(w, "------\t-----\t---\t-----\t-----")

	for _, info := range windows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", info.Handle, info.Class, info.PID, windowState(info), info.Title)
	}

	return nil
}

func windowState(info window.Info) string {
	switch {
	case info.Minimized:
		return "minimized"
	case !info.Visible:
		return "hidden"
	case info.Maximized:
		return "maximized"
	default:
		return "normal"
	}
}
