package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func renderText(w io.Writer, rep Report, opts Options) error {
	heading := color.New(color.Bold)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)

	if opts.NoColor {
		heading.DisableColor()
		warn.DisableColor()
		bad.DisableColor()
	}

	var sb strings.Builder

	heading.Fprintf(&sb, "%s %s\n", rep.Tool, rep.Repository)
	fmt.Fprintf(&sb, "%s files, %s backend, %s commits in %s\n",
		rep.Extension, rep.Backend, humanize.Comma(rep.Run.Commits),
		(time.Duration(rep.Run.DurationSeconds * float64(time.Second))).Round(time.Millisecond))

	fmt.Fprintf(&sb, "changes: %s counted, %s skipped, ",
		humanize.Comma(rep.Run.Counted), humanize.Comma(rep.Run.Skipped))

	if rep.Run.Failed > 0 {
		bad.Fprintf(&sb, "%s failed", humanize.Comma(rep.Run.Failed))
	} else {
		fmt.Fprint(&sb, "0 failed")
	}

	sb.WriteString("\n")

	if rep.Run.Interrupted {
		warn.Fprintln(&sb, "run interrupted: totals are partial")
	}

	sb.WriteString("\n")
	sb.WriteString(totalsTable(rep))
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("write text report: %w", err)
	}

	return nil
}

func totalsTable(rep Report) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	tbl.AppendHeader(table.Row{"Category", "Added", "Deleted", "Modified", "Same", "Net"})

	for _, e := range rep.Categories {
		tbl.AppendRow(table.Row{
			e.Category.String(),
			humanize.Comma(e.Added),
			humanize.Comma(e.Deleted),
			humanize.Comma(e.Modified),
			humanize.Comma(e.Same),
			signed(e.Added - e.Deleted),
		})
	}

	total := rep.Categories.Total()

	tbl.AppendFooter(table.Row{
		"Total",
		humanize.Comma(total.Added),
		humanize.Comma(total.Deleted),
		humanize.Comma(total.Modified),
		humanize.Comma(total.Same),
		signed(total.Added - total.Deleted),
	})

	numeric := table.ColumnConfig{Align: text.AlignRight, AlignFooter: text.AlignRight}
	configs := make([]table.ColumnConfig, 0, 5)

	for _, name := range []string{"Added", "Deleted", "Modified", "Same", "Net"} {
		cfg := numeric
		cfg.Name = name
		configs = append(configs, cfg)
	}

	tbl.SetColumnConfigs(configs)

	return tbl.Render()
}

func signed(n int64) string {
	if n > 0 {
		return "+" + humanize.Comma(n)
	}

	return humanize.Comma(n)
}
