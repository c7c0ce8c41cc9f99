package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/locfang/pkg/aggregate"
)

const (
	chartWidth  = "100%"
	chartHeight = "500px"
)

// Series colors.
const (
	colorAdded    = "#3fb950"
	colorDeleted  = "#f85149"
	colorModified = "#d29922"
	colorSame     = "#8b949e"
)

func renderPlot(w io.Writer, rep Report) error {
	err := buildChart(rep).Render(w)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}

func buildChart(rep Report) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: rep.Tool + " report",
			Width:     chartWidth,
			Height:    chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Lines changed per category",
			Subtitle: fmt.Sprintf("%s: %d commits, %s files", rep.Repository, rep.Run.Commits, rep.Extension),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "10%"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "lines"}),
	)

	labels := make([]string, 0, len(rep.Categories))
	for _, e := range rep.Categories {
		labels = append(labels, e.Category.String())
	}

	bar.SetXAxis(labels)

	series := []struct {
		name  string
		color string
		value func(aggregate.Totals) int64
	}{
		{"added", colorAdded, func(t aggregate.Totals) int64 { return t.Added }},
		{"deleted", colorDeleted, func(t aggregate.Totals) int64 { return t.Deleted }},
		{"modified", colorModified, func(t aggregate.Totals) int64 { return t.Modified }},
		{"same", colorSame, func(t aggregate.Totals) int64 { return t.Same }},
	}

	for _, s := range series {
		data := make([]opts.BarData, len(rep.Categories))
		for i, e := range rep.Categories {
			data[i] = opts.BarData{Value: s.value(e.Totals)}
		}

		bar.AddSeries(s.name, data, charts.WithItemStyleOpts(opts.ItemStyle{Color: s.color}))
	}

	return bar
}
