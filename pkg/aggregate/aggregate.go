// Package aggregate keeps running per-category line totals for a run.
package aggregate

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/locfang/pkg/category"
	"github.com/Sumatoshi-tech/locfang/pkg/dispatch"
)

const (
	metricLinesTotal = "locfang.lines.total"

	attrCategory = "category"
	attrKind     = "kind"
)

// Totals are cumulative line counts for one category.
type Totals struct {
	Added    int64 `json:"added"    yaml:"added"`
	Deleted  int64 `json:"deleted"  yaml:"deleted"`
	Modified int64 `json:"modified" yaml:"modified"`
	Same     int64 `json:"same"     yaml:"same"`
}

// Plus returns the field-wise sum.
func (t Totals) Plus(other Totals) Totals {
	return Totals{
		Added:    t.Added + other.Added,
		Deleted:  t.Deleted + other.Deleted,
		Modified: t.Modified + other.Modified,
		Same:     t.Same + other.Same,
	}
}

// Changed is the number of lines touched: added, deleted and modified.
func (t Totals) Changed() int64 {
	return t.Added + t.Deleted + t.Modified
}

// Aggregator accumulates totals for every tracked category. It is safe for
// concurrent use.
type Aggregator struct {
	mu     sync.Mutex
	totals map[category.Category]Totals
	lines  metric.Int64Counter
}

// Option configures an Aggregator.
type Option func(*Aggregator) error

// WithMeter mirrors every accumulation into an OpenTelemetry counter.
func WithMeter(mt metric.Meter) Option {
	return func(a *Aggregator) error {
		counter, err := mt.Int64Counter(metricLinesTotal,
			metric.WithDescription("Source lines accumulated by category and kind"),
			metric.WithUnit("{line}"),
		)
		if err != nil {
			return fmt.Errorf("create %s: %w", metricLinesTotal, err)
		}

		a.lines = counter

		return nil
	}
}

// New creates an Aggregator with every tracked category at zero.
func New(opts ...Option) (*Aggregator, error) {
	a := &Aggregator{totals: make(map[category.Category]Totals, len(category.All()))}

	for _, cat := range category.All() {
		a.totals[cat] = Totals{}
	}

	for _, opt := range opts {
		err := opt(a)
		if err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Accumulate adds the deltas to cat. Untracked categories are dropped.
func (a *Aggregator) Accumulate(cat category.Category, added, deleted, modified int) {
	a.add(context.Background(), cat, Totals{Added: int64(added), Deleted: int64(deleted), Modified: int64(modified)})
}

// AccumulateOutcome adds a counted dispatch outcome, including its same-line
// count. Skipped and failed outcomes are ignored.
func (a *Aggregator) AccumulateOutcome(ctx context.Context, out dispatch.Outcome) {
	if out.Status != dispatch.StatusCounted {
		return
	}

	a.add(ctx, out.Category, Totals{
		Added:    int64(out.Added),
		Deleted:  int64(out.Deleted),
		Modified: int64(out.Modified),
		Same:     int64(out.Same),
	})
}

// Merge folds a partial snapshot into the running totals.
func (a *Aggregator) Merge(other Snapshot) {
	for _, entry := range other {
		a.add(context.Background(), entry.Category, entry.Totals)
	}
}

// Snapshot returns a copy of the current totals in report order. It does not
// reset state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := make(Snapshot, 0, len(a.totals))

	for _, cat := range category.All() {
		snap = append(snap, Entry{Category: cat, Totals: a.totals[cat]})
	}

	return snap
}

func (a *Aggregator) add(ctx context.Context, cat category.Category, delta Totals) {
	if !cat.Tracked() {
		return
	}

	a.mu.Lock()
	a.totals[cat] = a.totals[cat].Plus(delta)
	a.mu.Unlock()

	if a.lines != nil {
		a.record(ctx, cat, delta)
	}
}

func (a *Aggregator) record(ctx context.Context, cat category.Category, delta Totals) {
	kinds := []struct {
		name  string
		value int64
	}{
		{"added", delta.Added},
		{"deleted", delta.Deleted},
		{"modified", delta.Modified},
		{"same", delta.Same},
	}

	for _, k := range kinds {
		if k.value == 0 {
			continue
		}

		a.lines.Add(ctx, k.value, metric.WithAttributes(
			attribute.String(attrCategory, cat.String()),
			attribute.String(attrKind, k.name),
		))
	}
}
