package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCommitsTotal  = "locfang.run.commits.total"
	metricChangesTotal  = "locfang.run.changes.total"
	metricRunDuration   = "locfang.run.duration.seconds"
	metricCacheHitTotal = "locfang.run.cache.hits.total"
)

// RunMetrics holds instruments for history runs.
type RunMetrics struct {
	commits   metric.Int64Counter
	changes   metric.Int64Counter
	duration  metric.Float64Histogram
	cacheHits metric.Int64Counter
}

// RunStats summarizes one completed run, decoupled from pipeline types.
type RunStats struct {
	Commits   int64
	Counted   int64
	Skipped   int64
	Failed    int64
	CacheHits int64
	Duration  time.Duration
}

// NewRunMetrics creates run instruments from mt.
func NewRunMetrics(mt metric.Meter) (*RunMetrics, error) {
	commits, err := mt.Int64Counter(metricCommitsTotal,
		metric.WithDescription("Commits processed"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommitsTotal, err)
	}

	changes, err := mt.Int64Counter(metricChangesTotal,
		metric.WithDescription("File changes dispatched, by status"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricChangesTotal, err)
	}

	duration, err := mt.Float64Histogram(metricRunDuration,
		metric.WithDescription("Wall time of a history run in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunDuration, err)
	}

	hits, err := mt.Int64Counter(metricCacheHitTotal,
		metric.WithDescription("Line classifier results served from cache"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHitTotal, err)
	}

	return &RunMetrics{commits: commits, changes: changes, duration: duration, cacheHits: hits}, nil
}

// RecordRun records the statistics of a completed run. Safe on a nil receiver.
func (rm *RunMetrics) RecordRun(ctx context.Context, stats RunStats) {
	if rm == nil {
		return
	}

	rm.commits.Add(ctx, stats.Commits)
	rm.cacheHits.Add(ctx, stats.CacheHits)
	rm.duration.Record(ctx, stats.Duration.Seconds())

	byStatus := map[string]int64{"counted": stats.Counted, "skipped": stats.Skipped, "failed": stats.Failed}

	for status, n := range byStatus {
		rm.changes.Add(ctx, n, metric.WithAttributes(attribute.String(attrStatus, status)))
	}
}
