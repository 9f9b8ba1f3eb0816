package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fc-troll-detector/internal/config"

	"github.com/spf13/cobra"
)

var settingsFormat string

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Export, import or reset the detector settings",
}

var settingsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export settings as JSON or YAML (stdout by default)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := GetConfig().Settings
		if len(args) == 0 {
			return s.Export(cmd.OutOrStdout(), settingsFormat, time.Now())
		}
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		if err := s.Export(f, formatFor(args[0]), time.Now()); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	},
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import settings exported by this tool or the browser extension",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		s, err := config.Import(f, formatFor(args[0]), GetConfig().Settings)
		if err != nil {
			return err
		}
		if err := persister().SaveSettings(s); err != nil {
			return err
		}
		appCfg.Settings = s
		fmt.Fprintf(cmd.OutOrStdout(), "imported settings: %d trusted, %d blacklisted\n", len(s.TrustedUsers), len(s.BlacklistUsers))
		return nil
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := config.DefaultSettings()
		if err := persister().SaveSettings(s); err != nil {
			return err
		}
		appCfg.Settings = s
		fmt.Fprintln(cmd.OutOrStdout(), "settings reset to defaults")
		return nil
	},
}

// formatFor picks the format from the file extension, falling back to
// the --format flag.
func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	}
	return settingsFormat
}

func init() {
	settingsCmd.PersistentFlags().StringVar(&settingsFormat, "format", "json", "json or yaml")
	settingsCmd.AddCommand(settingsExportCmd, settingsImportCmd, settingsResetCmd)
	rootCmd.AddCommand(settingsCmd)
}
