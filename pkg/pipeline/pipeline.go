// Package pipeline assembles a runnable history count from options: it opens
// the repository, picks the line classifier backend and wires the
// materializer, dispatcher, aggregator and runner together.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/locfang/pkg/aggregate"
	"github.com/Sumatoshi-tech/locfang/pkg/config"
	"github.com/Sumatoshi-tech/locfang/pkg/dispatch"
	"github.com/Sumatoshi-tech/locfang/pkg/framework"
	"github.com/Sumatoshi-tech/locfang/pkg/gitlib"
	"github.com/Sumatoshi-tech/locfang/pkg/history"
	"github.com/Sumatoshi-tech/locfang/pkg/linecount"
	"github.com/Sumatoshi-tech/locfang/pkg/materialize"
	"github.com/Sumatoshi-tech/locfang/pkg/observability"
)

// Options configures a Pipeline.
type Options struct {
	RepoPath string

	// Commits lists revisions to process in order. Empty walks from HEAD.
	Commits []string
	Log     history.LogOptions
	Diff    gitlib.DiffOptions

	Extension   string
	Language    string
	Backend     string
	ClocBinary  string
	DiffTimeout time.Duration
	WorkDir     string
	MaxBlobSize uint64
	CacheSize   int
	Workers     int

	// Fs holds materialized blobs and is read by the native backend.
	// Defaults to the OS filesystem.
	Fs afero.Fs

	Logger *slog.Logger
	Tracer trace.Tracer
	// Meter enables line and run metrics when set.
	Meter metric.Meter
}

// FromConfig maps a loaded configuration onto Options. The commit list file,
// when configured, is read from fs.
func FromConfig(cfg *config.Config, fs afero.Fs) (Options, error) {
	since, err := cfg.Repository.SinceTime()
	if err != nil {
		return Options{}, err
	}

	maxBlob, err := cfg.Analysis.MaxBlobBytes()
	if err != nil {
		return Options{}, err
	}

	var commits []string

	if cfg.Repository.CommitsFile != "" {
		commits, err = history.LoadCommitFile(fs, cfg.Repository.CommitsFile)
		if err != nil {
			return Options{}, err
		}
	}

	return Options{
		RepoPath: cfg.Repository.Path,
		Commits:  commits,
		Log: history.LogOptions{
			Limit:       cfg.Repository.Limit,
			Since:       since,
			FirstParent: cfg.Repository.FirstParent,
		},
		Diff: gitlib.DiffOptions{
			DetectRenames:   cfg.Analysis.DetectRenames,
			RenameThreshold: cfg.Analysis.RenameThreshold,
		},
		Extension:   cfg.Analysis.Extension,
		Language:    cfg.Analysis.Language,
		Backend:     cfg.Analysis.Backend,
		ClocBinary:  cfg.Analysis.ClocBinary,
		DiffTimeout: cfg.Analysis.DiffTimeout,
		WorkDir:     cfg.Analysis.WorkDir,
		MaxBlobSize: maxBlob,
		CacheSize:   cfg.Analysis.CacheSize,
		Workers:     cfg.Analysis.Workers,
		Fs:          fs,
	}, nil
}

// Pipeline is an assembled run over one repository.
type Pipeline struct {
	repo    *gitlib.Repository
	source  history.Source
	runner  *framework.Runner
	backend string
}

// Open assembles a Pipeline. Callers must Close it.
func Open(opts Options) (*Pipeline, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	if opts.Logger == nil {
		opts.Logger = observability.Discard()
	}

	repo, err := gitlib.OpenRepository(opts.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", opts.RepoPath, err)
	}

	p, err := assemble(repo, opts)
	if err != nil {
		repo.Free()

		return nil, err
	}

	return p, nil
}

func assemble(repo *gitlib.Repository, opts Options) (*Pipeline, error) {
	classifier, backend, err := linecount.New(linecount.Options{
		Backend:     opts.Backend,
		Language:    opts.Language,
		ClocBinary:  opts.ClocBinary,
		DiffTimeout: opts.DiffTimeout,
		Fs:          opts.Fs,
	})
	if err != nil {
		return nil, err
	}

	matchErr := linecount.CheckExtension(opts.Extension, opts.Language)
	if matchErr != nil {
		if backend == linecount.BackendNative {
			return nil, matchErr
		}

		opts.Logger.Warn("extension may never match language", "backend", backend, "error", matchErr)
	}

	var matOpts []materialize.Option

	matOpts = append(matOpts, materialize.WithFs(opts.Fs))
	if opts.MaxBlobSize > 0 {
		matOpts = append(matOpts, materialize.WithMaxSize(opts.MaxBlobSize))
	}

	m, err := materialize.New(repo, opts.WorkDir, opts.Extension, matOpts...)
	if err != nil {
		return nil, err
	}

	d, err := dispatch.New(m, classifier, opts.Extension, dispatch.WithCache(opts.CacheSize))
	if err != nil {
		return nil, err
	}

	var (
		aggOpts    []aggregate.Option
		runMetrics *observability.RunMetrics
	)

	if opts.Meter != nil {
		aggOpts = append(aggOpts, aggregate.WithMeter(opts.Meter))

		runMetrics, err = observability.NewRunMetrics(opts.Meter)
		if err != nil {
			return nil, err
		}
	}

	agg, err := aggregate.New(aggOpts...)
	if err != nil {
		return nil, err
	}

	source, err := openSource(repo, opts)
	if err != nil {
		return nil, err
	}

	runner := framework.NewRunner(history.NewDiffer(repo, opts.Diff), d, agg, framework.Config{
		Workers: opts.Workers,
		Logger:  opts.Logger,
		Tracer:  opts.Tracer,
		Metrics: runMetrics,
	})

	opts.Logger.Debug("pipeline assembled",
		"repository", repo.Path(), "backend", backend, "work_dir", m.Dir(), "workers", opts.Workers)

	return &Pipeline{repo: repo, source: source, runner: runner, backend: backend}, nil
}

func openSource(repo *gitlib.Repository, opts Options) (history.Source, error) {
	if len(opts.Commits) > 0 {
		return history.NewListSource(repo, opts.Commits), nil
	}

	return history.NewLogSource(repo, opts.Log)
}

// Backend returns the line classifier backend that was selected.
func (p *Pipeline) Backend() string {
	return p.backend
}

// RepoPath returns the repository working directory.
func (p *Pipeline) RepoPath() string {
	return p.repo.Path()
}

// Run processes every commit of the source. See framework.Runner.Run.
func (p *Pipeline) Run(ctx context.Context) (framework.Summary, error) {
	return p.runner.Run(ctx, p.source)
}

// Close releases the history source and the repository.
func (p *Pipeline) Close() {
	p.source.Close()
	p.repo.Free()
}

// IsInterrupted reports whether err ended a run early through cancellation.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
