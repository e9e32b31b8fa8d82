package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/TrayMinder/internal/app"
	"github.com/bryanchriswhite/TrayMinder/internal/bundle"
	"github.com/bryanchriswhite/TrayMinder/internal/config"
)

var installBundle string

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Write default preferences and check the helper bundle",
	Long: `Create the preferences file with defaults (an existing file is kept) and
make sure the helper can be extracted from the bundle. Safe to run again.`,
	Example: `  # Check the bundle next to the executable
  trayminder install

  # Check a packaged bundle
  trayminder install --bundle ./trayminder.zip`,
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().StringVarP(&installBundle, "bundle", "b", "", "helper bundle (directory or zip, default is the executable's directory)")
}

func runInstall(cmd *cobra.Command, args []string) error {
	path := installBundle
	if path == "" {
		p, err := defaultBundlePath()
		if err != nil {
			return fmt.Errorf("failed to locate helper bundle: %w", err)
		}
		path = p
	}

	pkg, err := bundle.Open(path)
	if err != nil {
		return err
	}

	configMgr, err := app.Install(GetConfigFile(), pkg)
	if err != nil {
		return err
	}

	if installBundle != "" {
		if err := configMgr.Set(config.KeyHelperBundle, pkg.Path()); err != nil {
			return err
		}
	}

	fmt.Printf("✅ Installed\n")
	fmt.Printf("   - Config: %s\n", configMgr.GetConfigPath())
	fmt.Printf("   - Bundle: %s\n", pkg.Path())
	return nil
}
