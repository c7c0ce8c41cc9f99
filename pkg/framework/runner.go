// Package framework provides the runner that walks commit history, dispatches
// every file change and folds the outcomes into per-category totals.
package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/locfang/pkg/aggregate"
	"github.com/Sumatoshi-tech/locfang/pkg/dispatch"
	"github.com/Sumatoshi-tech/locfang/pkg/gitlib"
	"github.com/Sumatoshi-tech/locfang/pkg/history"
	"github.com/Sumatoshi-tech/locfang/pkg/observability"
)

const tracerName = "locfang"

// Dispatcher computes the outcome of one file change.
type Dispatcher interface {
	Dispatch(ctx context.Context, change dispatch.FileChange) dispatch.Outcome
}

// Differ lists the file changes of a commit against each of its parents.
type Differ interface {
	Diff(commit *gitlib.Commit) ([]history.ParentDiff, error)
}

type cacheCounter interface {
	CacheHits() int64
}

// Config holds optional runner settings.
type Config struct {
	// Workers bounds how many changes of one commit are dispatched
	// concurrently. Values below 2 mean sequential.
	Workers int

	// Logger receives per-change diagnostics. When nil, a discard logger is used.
	Logger *slog.Logger

	// Tracer creates run, commit and dispatch spans. When nil, the global
	// tracer is used.
	Tracer trace.Tracer

	// Metrics records the run summary. Nil-safe.
	Metrics *observability.RunMetrics
}

// Summary describes a finished or interrupted run.
type Summary struct {
	Totals      aggregate.Snapshot `json:"totals"`
	Commits     int64              `json:"commits"`
	Parents     int64              `json:"parents"`
	Counted     int64              `json:"counted"`
	Skipped     int64              `json:"skipped"`
	Failed      int64              `json:"failed"`
	CacheHits   int64              `json:"cache_hits"`
	Duration    time.Duration      `json:"duration"`
	Interrupted bool               `json:"interrupted"`
}

// Runner drives a history source through the dispatcher into an aggregator.
type Runner struct {
	differ     Differ
	dispatcher Dispatcher
	aggregator *aggregate.Aggregator
	config     Config

	commits atomic.Int64
	parents atomic.Int64
	counted atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

// NewRunner creates a Runner that accumulates into agg.
func NewRunner(differ Differ, dispatcher Dispatcher, agg *aggregate.Aggregator, config Config) *Runner {
	return &Runner{differ: differ, dispatcher: dispatcher, aggregator: agg, config: config}
}

func (r *Runner) logger() *slog.Logger {
	if r.config.Logger != nil {
		return r.config.Logger
	}

	return observability.Discard()
}

func (r *Runner) tracer() trace.Tracer {
	if r.config.Tracer != nil {
		return r.config.Tracer
	}

	return otel.Tracer(tracerName)
}

// Run consumes src until it is exhausted. Per-change failures are recorded
// and never stop the run; source and diff failures are fatal. On context
// cancellation the partial summary is returned together with the context
// error.
func (r *Runner) Run(ctx context.Context, src history.Source) (Summary, error) {
	start := time.Now()

	ctx, span := r.tracer().Start(ctx, observability.SpanRun)
	defer span.End()

	runErr := r.consume(ctx, src)

	summary := r.summary(time.Since(start))
	summary.Interrupted = runErr != nil && ctx.Err() != nil

	span.SetAttributes(
		attribute.Int64("run.commits", summary.Commits),
		attribute.Int64("run.counted", summary.Counted),
		attribute.Int64("run.skipped", summary.Skipped),
		attribute.Int64("run.failed", summary.Failed),
		attribute.Bool("run.interrupted", summary.Interrupted),
	)

	r.config.Metrics.RecordRun(ctx, observability.RunStats{
		Commits:   summary.Commits,
		Counted:   summary.Counted,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
		CacheHits: summary.CacheHits,
		Duration:  summary.Duration,
	})

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())

		return summary, runErr
	}

	r.logger().InfoContext(ctx, "run complete",
		"commits", summary.Commits, "counted", summary.Counted,
		"skipped", summary.Skipped, "failed", summary.Failed,
		"duration", summary.Duration)

	return summary, nil
}

func (r *Runner) consume(ctx context.Context, src history.Source) error {
	for {
		commit, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("next commit: %w", err)
		}

		commitErr := r.processCommit(ctx, commit)

		commit.Free()

		if commitErr != nil {
			return commitErr
		}
	}
}

func (r *Runner) processCommit(ctx context.Context, commit *gitlib.Commit) error {
	ctx, span := r.tracer().Start(ctx, observability.SpanCommit,
		trace.WithAttributes(
			attribute.String("commit.hash", commit.Hash().String()),
			attribute.Int("commit.parents", commit.NumParents()),
		))
	defer span.End()

	diffs, err := r.differ.Diff(commit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	for _, pd := range diffs {
		dispatchErr := r.dispatchAll(ctx, pd.Changes)
		if dispatchErr != nil {
			return dispatchErr
		}

		r.parents.Add(1)
	}

	r.commits.Add(1)

	r.logger().DebugContext(ctx, "commit processed",
		"commit", commit.Hash().Short(), "parents", len(diffs))

	return nil
}

func (r *Runner) dispatchAll(ctx context.Context, changes []dispatch.FileChange) error {
	if r.config.Workers < 2 {
		for _, change := range changes {
			ctxErr := ctx.Err()
			if ctxErr != nil {
				return ctxErr
			}

			r.dispatchOne(ctx, change)
		}

		return nil
	}

	var group errgroup.Group

	group.SetLimit(r.config.Workers)

	for _, change := range changes {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			break
		}

		group.Go(func() error {
			r.dispatchOne(ctx, change)

			return nil
		})
	}

	waitErr := group.Wait()
	if waitErr != nil {
		return waitErr
	}

	return ctx.Err()
}

func (r *Runner) dispatchOne(ctx context.Context, change dispatch.FileChange) {
	ctx, span := r.tracer().Start(ctx, observability.SpanDispatch,
		trace.WithAttributes(
			attribute.String("change.path", change.Path()),
			attribute.String("kind", change.Kind.String()),
		))
	defer span.End()

	out := r.dispatcher.Dispatch(ctx, change)

	span.SetAttributes(
		attribute.String("status", out.Status.String()),
		attribute.String("category", out.Category.String()),
	)

	switch out.Status {
	case dispatch.StatusCounted:
		r.counted.Add(1)
		r.aggregator.AccumulateOutcome(ctx, out)
	case dispatch.StatusSkipped:
		r.skipped.Add(1)
		r.logger().DebugContext(ctx, "change skipped",
			"path", change.Path(), "kind", change.Kind.String(), "reason", out.Reason)
	case dispatch.StatusFailed:
		r.failed.Add(1)
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
		r.logger().WarnContext(ctx, "change failed",
			"path", change.Path(), "kind", change.Kind.String(), "error", out.Err)
	}
}

func (r *Runner) summary(elapsed time.Duration) Summary {
	summary := Summary{
		Totals:   r.aggregator.Snapshot(),
		Commits:  r.commits.Load(),
		Parents:  r.parents.Load(),
		Counted:  r.counted.Load(),
		Skipped:  r.skipped.Load(),
		Failed:   r.failed.Load(),
		Duration: elapsed,
	}

	if cc, ok := r.dispatcher.(cacheCounter); ok {
		summary.CacheHits = cc.CacheHits()
	}

	return summary
}
