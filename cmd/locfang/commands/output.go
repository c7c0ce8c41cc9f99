package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Sumatoshi-tech/locfang/pkg/report"
)

// writeReport renders rep to path, or to fallback when path is empty.
func writeReport(fallback io.Writer, path, format string, rep report.Report, opts report.Options) (err error) {
	if path == "" {
		return report.Render(fallback, format, rep, opts)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output %s: %w", path, err)
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil && err == nil {
			err = fmt.Errorf("close output %s: %w", path, closeErr)
		}
	}()

	renderErr := report.Render(file, format, rep, opts)
	if renderErr != nil {
		return errors.Join(renderErr, os.Remove(path))
	}

	return nil
}
