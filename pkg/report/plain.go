package report

import (
	"bufio"
	"fmt"
	"io"
)

// renderPlain writes one block per category: its name, then the added,
// deleted and modified totals.
func renderPlain(w io.Writer, rep Report) error {
	bw := bufio.NewWriter(w)

	for _, e := range rep.Categories {
		fmt.Fprintln(bw, e.Category.String())
		fmt.Fprintf(bw, "added %d\n", e.Added)
		fmt.Fprintf(bw, "deleted %d\n", e.Deleted)
		fmt.Fprintf(bw, "mod %d\n", e.Modified)
	}

	err := bw.Flush()
	if err != nil {
		return fmt.Errorf("write plain report: %w", err)
	}

	return nil
}
