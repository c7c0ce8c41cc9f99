// Package dispatch turns file-level commit changes into per-category line
// deltas. Each change is handled in isolation: a failure yields a failed
// outcome and never aborts the caller.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Sumatoshi-tech/locfang/pkg/category"
	"github.com/Sumatoshi-tech/locfang/pkg/gitlib"
	"github.com/Sumatoshi-tech/locfang/pkg/linecount"
)

// ErrPanic marks a change whose processing panicked.
var ErrPanic = errors.New("panic while processing change")

// Materializer provides scoped temporary files for blob revisions.
type Materializer interface {
	With(ctx context.Context, hash gitlib.Hash, fn func(path string) error) error
	WithPair(ctx context.Context, oldHash, newHash gitlib.Hash, fn func(oldPath, newPath string) error) error
}

type hashPair struct {
	from gitlib.Hash
	to   gitlib.Hash
}

// Dispatcher classifies file changes and counts their lines.
type Dispatcher struct {
	materializer Materializer
	classifier   linecount.Classifier
	ext          string
	censusCache  *lru.Cache[gitlib.Hash, linecount.LineCount]
	diffCache    *lru.Cache[hashPair, linecount.DiffLineCount]
	hits         atomic.Int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithCache memoizes classifier results by blob hash, holding up to size
// entries per operation. Hits skip materialization entirely.
func WithCache(size int) Option {
	return func(d *Dispatcher) error {
		if size <= 0 {
			return nil
		}

		census, err := lru.New[gitlib.Hash, linecount.LineCount](size)
		if err != nil {
			return fmt.Errorf("census cache: %w", err)
		}

		diff, err := lru.New[hashPair, linecount.DiffLineCount](size)
		if err != nil {
			return fmt.Errorf("diff cache: %w", err)
		}

		d.censusCache = census
		d.diffCache = diff

		return nil
	}
}

// New creates a Dispatcher for files with extension ext.
func New(m Materializer, classifier linecount.Classifier, ext string, opts ...Option) (*Dispatcher, error) {
	if ext != "" && ext[0] != '.' {
		ext = "." + ext
	}

	d := &Dispatcher{materializer: m, classifier: classifier, ext: ext}

	for _, opt := range opts {
		err := opt(d)
		if err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Eligible reports whether path has the tracked extension.
func (d *Dispatcher) Eligible(path string) bool {
	return path != "" && filepath.Ext(path) == d.ext
}

// CacheHits returns the number of classifier results served from cache.
func (d *Dispatcher) CacheHits() int64 {
	return d.hits.Load()
}

// Dispatch computes the outcome of a single change. A panic raised while
// counting is recovered and reported as a failed outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, change FileChange) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed(change, category.Classify(change.Path()), fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	return d.dispatch(ctx, change)
}

func (d *Dispatcher) dispatch(ctx context.Context, change FileChange) Outcome {
	switch change.Kind {
	case KindAdded:
		if !d.Eligible(change.NewPath) {
			return skipped(change, ReasonIneligible)
		}

		cat := category.Classify(change.NewPath)

		count, err := d.census(ctx, change.NewHash)
		if err != nil {
			return failed(change, cat, err)
		}

		return Outcome{Change: change, Category: cat, Added: count.Code, Status: StatusCounted}
	case KindDeleted:
		if !d.Eligible(change.OldPath) {
			return skipped(change, ReasonIneligible)
		}

		cat := category.Classify(change.OldPath)

		count, err := d.census(ctx, change.OldHash)
		if err != nil {
			return failed(change, cat, err)
		}

		return Outcome{Change: change, Category: cat, Deleted: count.Code, Status: StatusCounted}
	case KindRenamed:
		if change.OldHash == change.NewHash {
			return skipped(change, ReasonUnchangedRename)
		}

		return d.dispatchDiff(ctx, change)
	case KindModified:
		return d.dispatchDiff(ctx, change)
	case KindOther:
		return skipped(change, ReasonUnsupportedKind)
	default:
		return skipped(change, ReasonUnsupportedKind)
	}
}

func (d *Dispatcher) dispatchDiff(ctx context.Context, change FileChange) Outcome {
	if !d.Eligible(change.OldPath) || !d.Eligible(change.NewPath) {
		return skipped(change, ReasonIneligible)
	}

	cat := category.Classify(change.NewPath)

	diff, err := d.diffCensus(ctx, change.OldHash, change.NewHash)
	if err != nil {
		return failed(change, cat, err)
	}

	return Outcome{
		Change:   change,
		Category: cat,
		Added:    diff.Added.Code,
		Deleted:  diff.Removed.Code,
		Modified: diff.Modified.Code,
		Same:     diff.Same.Code,
		Status:   StatusCounted,
	}
}

func (d *Dispatcher) census(ctx context.Context, hash gitlib.Hash) (linecount.LineCount, error) {
	if d.censusCache != nil {
		if cached, ok := d.censusCache.Get(hash); ok {
			d.hits.Add(1)

			return cached, nil
		}
	}

	var count linecount.LineCount

	err := d.materializer.With(ctx, hash, func(path string) error {
		var censusErr error

		count, censusErr = d.classifier.Census(ctx, path)

		return censusErr
	})
	if err != nil {
		return linecount.LineCount{}, fmt.Errorf("census %s: %w", hash.Short(), err)
	}

	if d.censusCache != nil {
		d.censusCache.Add(hash, count)
	}

	return count, nil
}

func (d *Dispatcher) diffCensus(ctx context.Context, oldHash, newHash gitlib.Hash) (linecount.DiffLineCount, error) {
	key := hashPair{from: oldHash, to: newHash}

	if d.diffCache != nil {
		if cached, ok := d.diffCache.Get(key); ok {
			d.hits.Add(1)

			return cached, nil
		}
	}

	var diff linecount.DiffLineCount

	err := d.materializer.WithPair(ctx, oldHash, newHash, func(oldPath, newPath string) error {
		var diffErr error

		diff, diffErr = d.classifier.DiffCensus(ctx, oldPath, newPath)

		return diffErr
	})
	if err != nil {
		return linecount.DiffLineCount{}, fmt.Errorf("diff %s..%s: %w", oldHash.Short(), newHash.Short(), err)
	}

	if d.diffCache != nil {
		d.diffCache.Add(key, diff)
	}

	return diff, nil
}
