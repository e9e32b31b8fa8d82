package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/TrayMinder/internal/config"
	"github.com/bryanchriswhite/TrayMinder/internal/helper"
)

var helperArgsFormat string

var helperArgsCmd = &cobra.Command{
	Use:   "helper-args",
	Short: "Show the command line the helper would be launched with",
	Example: `  trayminder helper-args
  trayminder helper-args --format json`,
	RunE: runHelperArgs,
}

func init() {
	rootCmd.AddCommand(helperArgsCmd)

	helperArgsCmd.Flags().StringVarP(&helperArgsFormat, "format", "f", "text", "output format (text or json)")
}

func runHelperArgs(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	helperArgs, warnings := helper.BuildArgs(helper.Prefs{
		Ctrl:  configMgr.GetBool(config.KeyHotkeyCtrl),
		Alt:   configMgr.GetBool(config.KeyHotkeyAlt),
		Shift: configMgr.GetBool(config.KeyHotkeyShift),
		Key:   configMgr.GetString(config.KeyHotkeyKey),
		Port:  configMgr.GetString(config.KeyHelperPort),
	})

	switch helperArgsFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string][]string{
			"args":     helperArgs,
			"warnings": warnings,
		})
	case "text":
		fmt.Println(strings.Join(helperArgs, " "))
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use 'text' or 'json')", helperArgsFormat)
	}
}
