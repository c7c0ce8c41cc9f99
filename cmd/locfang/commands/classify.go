package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/locfang/pkg/category"
)

// unclassifiedLabel is printed for paths outside every category table.
const unclassifiedLabel = "-"

// NewClassifyCommand creates the classify subcommand.
func NewClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <path>...",
		Short: "Print the subsystem category of repository paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			for _, path := range args {
				label := category.Classify(path).String()
				if label == "" {
					label = unclassifiedLabel
				}

				_, err := fmt.Fprintf(out, "%s\t%s\n", label, path)
				if err != nil {
					return fmt.Errorf("write: %w", err)
				}
			}

			return nil
		},
	}
}
