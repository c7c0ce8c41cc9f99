package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/locfang/pkg/report"
)

const (
	renderCmdUse   = "render <report.json>"
	renderCmdShort = "Re-render a saved JSON report in another format"
	renderArgCount = 1
)

// NewRenderCommand creates the render subcommand.
func NewRenderCommand() *cobra.Command {
	var (
		format  string
		output  string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   renderCmdUse,
		Short: renderCmdShort,
		Long: `Read a report written by "locfang run --format json", validate it against
the embedded JSON schema and render it in the requested format.`,
		Args: cobra.ExactArgs(renderArgCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], format, output, report.Options{NoColor: noColor})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", report.FormatText, "Output format: text, plain, json, yaml, plot")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to this file instead of stdout")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runRender(cmd *cobra.Command, inputPath, format, output string, opts report.Options) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	rep, err := report.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", inputPath, err)
	}

	return writeReport(cmd.OutOrStdout(), output, format, rep, opts)
}
