// Package commands implements CLI command handlers for locfang.
package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/locfang/pkg/version"
)

const envFile = ".env"

// Globals holds the persistent root flags shared by every subcommand.
type Globals struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

// NewRootCommand creates the locfang root command with all subcommands.
func NewRootCommand() *cobra.Command {
	globals := &Globals{}

	rootCmd := &cobra.Command{
		Use:   "locfang",
		Short: "Diff-aware line counts over Git history",
		Long: `Locfang walks Git history and reports, per kernel subsystem category,
the source lines added, deleted and modified by every commit.

Commands:
  run       Count lines over a commit list or a rev-walk
  render    Re-render a saved JSON report
  classify  Print the category of repository paths
  mcp       Start the MCP server on stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(envFile)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globals.ConfigPath, "config", "c", "", "config file (default: locfang.yaml in ., ./config, /etc/locfang)")
	rootCmd.PersistentFlags().BoolVarP(&globals.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&globals.Quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(NewRunCommand(globals))
	rootCmd.AddCommand(NewRenderCommand())
	rootCmd.AddCommand(NewClassifyCommand())
	rootCmd.AddCommand(NewMCPCommand(globals))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}

	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "locfang %s\n", version.String())
		},
	}
}
