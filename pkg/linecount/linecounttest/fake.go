// Package linecounttest provides a scripted line classifier for tests.
package linecounttest

import (
	"context"
	"sync"

	"github.com/spf13/afero"

	"github.com/Sumatoshi-tech/locfang/pkg/linecount"
)

// Pair keys a diff result by old and new file content.
type Pair struct {
	Old string
	New string
}

// Call records one classifier invocation.
type Call struct {
	Paths []string
}

// Fake answers from tables keyed by the content of the files it is given.
// Unknown content yields zero counts.
type Fake struct {
	Fs         afero.Fs
	Counts     map[string]linecount.LineCount
	DiffCounts map[Pair]linecount.DiffLineCount
	// Err, when set, is returned by every call.
	Err error
	// Panic, when set, makes every call panic with it.
	Panic any

	mu    sync.Mutex
	calls []Call
}

var _ linecount.Classifier = (*Fake)(nil)

// Census implements linecount.Classifier.
func (f *Fake) Census(_ context.Context, path string) (linecount.LineCount, error) {
	f.record(path)

	if f.Panic != nil {
		panic(f.Panic)
	}

	if f.Err != nil {
		return linecount.LineCount{}, f.Err
	}

	content, err := afero.ReadFile(f.Fs, path)
	if err != nil {
		return linecount.LineCount{}, err
	}

	return f.Counts[string(content)], nil
}

// DiffCensus implements linecount.Classifier.
func (f *Fake) DiffCensus(_ context.Context, oldPath, newPath string) (linecount.DiffLineCount, error) {
	f.record(oldPath, newPath)

	if f.Panic != nil {
		panic(f.Panic)
	}

	if f.Err != nil {
		return linecount.DiffLineCount{}, f.Err
	}

	oldContent, err := afero.ReadFile(f.Fs, oldPath)
	if err != nil {
		return linecount.DiffLineCount{}, err
	}

	newContent, err := afero.ReadFile(f.Fs, newPath)
	if err != nil {
		return linecount.DiffLineCount{}, err
	}

	return f.DiffCounts[Pair{Old: string(oldContent), New: string(newContent)}], nil
}

// Calls returns a copy of the recorded invocations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]Call(nil), f.calls...)
}

func (f *Fake) record(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Paths: paths})
}
