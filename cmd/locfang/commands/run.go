package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Sumatoshi-tech/locfang/pkg/config"
	"github.com/Sumatoshi-tech/locfang/pkg/framework"
	"github.com/Sumatoshi-tech/locfang/pkg/observability"
	"github.com/Sumatoshi-tech/locfang/pkg/pipeline"
	"github.com/Sumatoshi-tech/locfang/pkg/report"
	"github.com/Sumatoshi-tech/locfang/pkg/version"
)

// ErrRunInterrupted is returned after the partial report of a cancelled run
// has been written.
var ErrRunInterrupted = errors.New("run interrupted")

// RunCommand holds the flag values of the run command. Only flags the user
// set override the loaded configuration.
type RunCommand struct {
	globals *Globals

	path        string
	commitsFile string
	since       string
	limit       int
	firstParent bool

	extension    string
	language     string
	backend      string
	clocBinary   string
	workDir      string
	maxBlobSize  string
	diffTimeout  time.Duration
	workers      int
	cacheSize    int
	noRenames    bool
	renameThresh int

	format  string
	output  string
	noColor bool

	metricsAddr string

	cpuprofile  string
	heapprofile string
}

// NewRunCommand creates the run command.
func NewRunCommand(globals *Globals) *cobra.Command {
	rc := &RunCommand{globals: globals}

	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "Count lines changed per category over Git history",
		Long: `Walk the history of a repository and count, per subsystem category, the
code lines added, deleted and modified in tracked files.

Commits come from --commits (one identifier per line) or, when omitted, from
a walk starting at HEAD bounded by --limit, --since and --first-parent.
Interrupting the run (Ctrl-C) prints the partial totals.`,
		Args: cobra.MaximumNArgs(1),
		RunE: rc.run,
	}

	flags := cmd.Flags()

	flags.StringVarP(&rc.path, "path", "p", config.DefaultRepositoryPath, "Repository path")
	flags.StringVar(&rc.commitsFile, "commits", "", "File listing commits to process, one per line")
	flags.StringVar(&rc.since, "since", "", "Only walk commits after this time (e.g., '24h', '2024-01-01', RFC3339)")
	flags.IntVar(&rc.limit, "limit", config.DefaultRepositoryLimit, "Limit number of commits to walk (0 = no limit)")
	flags.BoolVar(&rc.firstParent, "first-parent", config.DefaultRepositoryFirstParent, "Follow only first parent of merge commits")

	flags.StringVar(&rc.extension, "extension", config.DefaultExtension, "Tracked file extension")
	flags.StringVar(&rc.language, "language", config.DefaultLanguage, "Tracked language name")
	flags.StringVar(&rc.backend, "backend", config.DefaultBackend, "Line counting backend: auto, cloc, native")
	flags.StringVar(&rc.clocBinary, "cloc-binary", config.DefaultClocBinary, "cloc executable used by the cloc backend")
	flags.StringVar(&rc.workDir, "work-dir", "", "Directory for materialized blobs (default: current directory)")
	flags.StringVar(&rc.maxBlobSize, "max-blob-size", config.DefaultMaxBlobSize, "Fail changes whose blobs exceed this size (e.g., '4MB')")
	flags.DurationVar(&rc.diffTimeout, "diff-timeout", config.DefaultDiffTimeout, "Per-file diff timeout")
	flags.IntVar(&rc.workers, "workers", config.DefaultWorkers, "Changes of one commit processed concurrently")
	flags.IntVar(&rc.cacheSize, "cache-size", config.DefaultCacheSize, "Census cache entries (0 = disabled)")
	flags.BoolVar(&rc.noRenames, "no-renames", false, "Disable rename detection")
	flags.IntVar(&rc.renameThresh, "rename-threshold", config.DefaultRenameThreshold, "Rename similarity threshold 0..100 (0 = libgit2 default)")

	flags.StringVarP(&rc.format, "format", "f", config.DefaultReportFormat, "Output format: text, plain, json, yaml, plot")
	flags.StringVarP(&rc.output, "output", "o", "", "Write the report to this file instead of stdout")
	flags.BoolVar(&rc.noColor, "no-color", false, "Disable colored output")

	flags.StringVar(&rc.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")

	flags.StringVar(&rc.cpuprofile, "cpuprofile", "", "Write CPU profile to file")
	flags.StringVar(&rc.heapprofile, "heapprofile", "", "Write heap profile to file")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(rc.globals.ConfigPath)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		cfg.Repository.Path = args[0]
	}

	rc.applyFlags(cmd.Flags(), cfg)

	validateErr := cfg.Validate()
	if validateErr != nil {
		return fmt.Errorf("invalid configuration: %w", validateErr)
	}

	obsCfg, err := observabilityConfig(cfg, rc.globals, observability.ModeCLI)
	if err != nil {
		return err
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		shutdownErr := providers.Shutdown(context.Background())
		if shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	if cfg.Observability.MetricsAddr != "" {
		metricsSrv, serveErr := observability.ServeMetrics(
			cfg.Observability.MetricsAddr, providers.MetricsHandler, providers.Tracer, providers.Logger)
		if serveErr != nil {
			return serveErr
		}

		defer func() {
			closeErr := metricsSrv.Close(context.Background())
			if closeErr != nil {
				providers.Logger.Warn("metrics server shutdown failed", "error", closeErr)
			}
		}()
	}

	profiles, err := framework.StartProfiles(rc.cpuprofile, rc.heapprofile, providers.Logger)
	if err != nil {
		return err
	}

	defer func() { _ = profiles.Stop() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rc.execute(ctx, cmd, cfg, providers)
}

func (rc *RunCommand) execute(ctx context.Context, cmd *cobra.Command, cfg *config.Config, providers observability.Providers) error {
	opts, err := pipeline.FromConfig(cfg, afero.NewOsFs())
	if err != nil {
		return err
	}

	opts.Logger = providers.Logger
	opts.Tracer = providers.Tracer
	opts.Meter = providers.Meter

	p, err := pipeline.Open(opts)
	if err != nil {
		return err
	}
	defer p.Close()

	summary, runErr := p.Run(ctx)
	if runErr != nil && !pipeline.IsInterrupted(runErr) {
		return runErr
	}

	rep := report.New(report.Meta{
		Version:     version.Version,
		Repository:  cfg.Repository.Path,
		Extension:   cfg.Analysis.Extension,
		Backend:     p.Backend(),
		GeneratedAt: time.Now(),
	}, summary)

	writeErr := writeReport(cmd.OutOrStdout(), cfg.Report.Output, cfg.Report.Format, rep,
		report.Options{NoColor: cfg.Report.NoColor})
	if writeErr != nil {
		return writeErr
	}

	if runErr != nil {
		return fmt.Errorf("%w: %w", ErrRunInterrupted, runErr)
	}

	return nil
}

// applyFlags copies explicitly set flags onto cfg.
func (rc *RunCommand) applyFlags(flags *pflag.FlagSet, cfg *config.Config) {
	overrides := []struct {
		name  string
		apply func()
	}{
		{"path", func() { cfg.Repository.Path = rc.path }},
		{"commits", func() { cfg.Repository.CommitsFile = rc.commitsFile }},
		{"since", func() { cfg.Repository.Since = rc.since }},
		{"limit", func() { cfg.Repository.Limit = rc.limit }},
		{"first-parent", func() { cfg.Repository.FirstParent = rc.firstParent }},
		{"extension", func() { cfg.Analysis.Extension = rc.extension }},
		{"language", func() { cfg.Analysis.Language = rc.language }},
		{"backend", func() { cfg.Analysis.Backend = rc.backend }},
		{"cloc-binary", func() { cfg.Analysis.ClocBinary = rc.clocBinary }},
		{"work-dir", func() { cfg.Analysis.WorkDir = rc.workDir }},
		{"max-blob-size", func() { cfg.Analysis.MaxBlobSize = rc.maxBlobSize }},
		{"diff-timeout", func() { cfg.Analysis.DiffTimeout = rc.diffTimeout }},
		{"workers", func() { cfg.Analysis.Workers = rc.workers }},
		{"cache-size", func() { cfg.Analysis.CacheSize = rc.cacheSize }},
		{"no-renames", func() { cfg.Analysis.DetectRenames = !rc.noRenames }},
		{"rename-threshold", func() { cfg.Analysis.RenameThreshold = rc.renameThresh }},
		{"format", func() { cfg.Report.Format = rc.format }},
		{"output", func() { cfg.Report.Output = rc.output }},
		{"no-color", func() { cfg.Report.NoColor = rc.noColor }},
		{"metrics-addr", func() { cfg.Observability.MetricsAddr = rc.metricsAddr }},
	}

	for _, o := range overrides {
		if flags.Changed(o.name) {
			o.apply()
		}
	}
}
