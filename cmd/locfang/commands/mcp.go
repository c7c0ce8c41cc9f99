package commands

import (
	"context"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/locfang/pkg/config"
	"github.com/Sumatoshi-tech/locfang/pkg/mcp"
	"github.com/Sumatoshi-tech/locfang/pkg/observability"
	"github.com/Sumatoshi-tech/locfang/pkg/pipeline"
	"github.com/Sumatoshi-tech/locfang/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(globals *Globals) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes locfang as tools that AI agents can discover and invoke:
  - locfang_history: per-category line counts over a repository's history
  - locfang_classify: subsystem category of repository paths
  - locfang_count: line census or four-way diff of inline source

Analysis settings from the configuration file seed every history call.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(globals.ConfigPath)
			if err != nil {
				return err
			}

			obsGlobals := *globals
			obsGlobals.Verbose = obsGlobals.Verbose || debug

			obsCfg, err := observabilityConfig(cfg, &obsGlobals, observability.ModeMCP)
			if err != nil {
				return err
			}

			providers, err := observability.Init(obsCfg)
			if err != nil {
				return err
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			red, redErr := observability.NewREDMetrics(providers.Meter)
			if redErr != nil {
				return redErr
			}

			defaults, err := pipeline.FromConfig(cfg, afero.NewOsFs())
			if err != nil {
				return err
			}

			if defaults.WorkDir == "" {
				defaults.WorkDir = os.TempDir()
			}

			defaults.Logger = providers.Logger
			defaults.Tracer = providers.Tracer

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:   providers.Logger,
				Metrics:  red,
				Tracer:   providers.Tracer,
				Version:  version.Version,
				Defaults: defaults,
			})

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}
