// Package report renders run totals as text, plain, JSON, YAML or an HTML
// chart, and decodes saved JSON reports.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/locfang/pkg/aggregate"
	"github.com/Sumatoshi-tech/locfang/pkg/framework"
)

// Output formats.
const (
	FormatText  = "text"
	FormatPlain = "plain"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatPlot  = "plot"
)

// ToolName identifies reports produced by this module.
const ToolName = "locfang"

// ErrUnknownFormat is returned by Render for unsupported formats.
var ErrUnknownFormat = errors.New("unknown report format")

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatText, FormatPlain, FormatJSON, FormatYAML, FormatPlot}
}

// Meta describes where a report came from.
type Meta struct {
	Version     string
	Repository  string
	Extension   string
	Backend     string
	GeneratedAt time.Time
}

// Run is the per-run bookkeeping carried in a report.
type Run struct {
	Commits         int64   `json:"commits"          yaml:"commits"`
	Parents         int64   `json:"parents"          yaml:"parents"`
	Counted         int64   `json:"counted"          yaml:"counted"`
	Skipped         int64   `json:"skipped"          yaml:"skipped"`
	Failed          int64   `json:"failed"           yaml:"failed"`
	CacheHits       int64   `json:"cache_hits"       yaml:"cache_hits"`
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
	Interrupted     bool    `json:"interrupted"      yaml:"interrupted"`
}

// Report is the serializable result of a run.
type Report struct {
	Tool        string             `json:"tool"         yaml:"tool"`
	Version     string             `json:"version"      yaml:"version"`
	Repository  string             `json:"repository"   yaml:"repository"`
	Extension   string             `json:"extension"    yaml:"extension"`
	Backend     string             `json:"backend"      yaml:"backend"`
	GeneratedAt time.Time          `json:"generated_at" yaml:"generated_at"`
	Run         Run                `json:"run"          yaml:"run"`
	Categories  aggregate.Snapshot `json:"categories"   yaml:"categories"`
}

// New builds a Report from a run summary.
func New(meta Meta, summary framework.Summary) Report {
	return Report{
		Tool:        ToolName,
		Version:     meta.Version,
		Repository:  meta.Repository,
		Extension:   meta.Extension,
		Backend:     meta.Backend,
		GeneratedAt: meta.GeneratedAt.UTC(),
		Run: Run{
			Commits:         summary.Commits,
			Parents:         summary.Parents,
			Counted:         summary.Counted,
			Skipped:         summary.Skipped,
			Failed:          summary.Failed,
			CacheHits:       summary.CacheHits,
			DurationSeconds: summary.Duration.Seconds(),
			Interrupted:     summary.Interrupted,
		},
		Categories: summary.Totals,
	}
}

// Options tweak human-oriented output.
type Options struct {
	NoColor bool
}

// Render writes rep to w in the given format.
func Render(w io.Writer, format string, rep Report, opts Options) error {
	switch format {
	case FormatText, "":
		return renderText(w, rep, opts)
	case FormatPlain:
		return renderPlain(w, rep)
	case FormatJSON:
		return renderJSON(w, rep)
	case FormatYAML:
		return renderYAML(w, rep)
	case FormatPlot:
		return renderPlot(w, rep)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderJSON(w io.Writer, rep Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(rep)
	if err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}

	return nil
}

func renderYAML(w io.Writer, rep Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(rep)
	if err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}

	return enc.Close()
}
