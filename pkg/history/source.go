// Package history yields the commits of a run and their file-level changes
// against every parent.
package history

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/Sumatoshi-tech/locfang/pkg/gitlib"
)

// ErrEmptyCommitList is returned when a commit list names no commits.
var ErrEmptyCommitList = errors.New("commit list is empty")

// Source yields commits in run order. Next returns io.EOF when exhausted.
// Callers own the returned commits and must Free them.
type Source interface {
	Next(ctx context.Context) (*gitlib.Commit, error)
	Close()
}

// ReadCommitList parses one commit identifier per line. Blank lines and
// lines starting with '#' are ignored.
func ReadCommitList(r io.Reader) ([]string, error) {
	var ids []string

	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		id, _, _ := strings.Cut(line, " ")
		ids = append(ids, id)
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read commit list: %w", err)
	}

	return ids, nil
}

// LoadCommitFile reads a commit list from path on fs.
func LoadCommitFile(fs afero.Fs, path string) ([]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("open commit list: %w", err)
	}

	ids, err := ReadCommitList(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCommitList, path)
	}

	return ids, nil
}

// ListSource resolves an explicit list of revisions in order. A revision that
// does not resolve is a fatal error.
type ListSource struct {
	repo *gitlib.Repository
	ids  []string
	pos  int
}

// NewListSource creates a Source over ids.
func NewListSource(repo *gitlib.Repository, ids []string) *ListSource {
	return &ListSource{repo: repo, ids: ids}
}

// Next implements Source.
func (s *ListSource) Next(ctx context.Context) (*gitlib.Commit, error) {
	if s.pos >= len(s.ids) {
		return nil, io.EOF
	}

	ctxErr := ctx.Err()
	if ctxErr != nil {
		return nil, ctxErr
	}

	id := s.ids[s.pos]
	s.pos++

	commit, err := s.repo.ResolveCommit(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("commit %d of %d: %w", s.pos, len(s.ids), err)
	}

	return commit, nil
}

// Close implements Source.
func (s *ListSource) Close() {}

// Len returns the number of listed revisions.
func (s *ListSource) Len() int {
	return len(s.ids)
}

// LogOptions selects commits for a rev-walk from HEAD.
type LogOptions struct {
	// Limit caps the number of commits; zero means no limit.
	Limit       int
	Since       *time.Time
	FirstParent bool
}

// LogSource walks history from HEAD, newest first.
type LogSource struct {
	iter  *gitlib.CommitIter
	limit int
	seen  int
}

// NewLogSource starts a rev-walk.
func NewLogSource(repo *gitlib.Repository, opts LogOptions) (*LogSource, error) {
	iter, err := repo.Log(&gitlib.LogOptions{Since: opts.Since, FirstParent: opts.FirstParent})
	if err != nil {
		return nil, fmt.Errorf("walk history: %w", err)
	}

	return &LogSource{iter: iter, limit: opts.Limit}, nil
}

// Next implements Source.
func (s *LogSource) Next(ctx context.Context) (*gitlib.Commit, error) {
	if s.limit > 0 && s.seen >= s.limit {
		return nil, io.EOF
	}

	ctxErr := ctx.Err()
	if ctxErr != nil {
		return nil, ctxErr
	}

	commit, err := s.iter.Next()
	if err != nil {
		return nil, err
	}

	s.seen++

	return commit, nil
}

// Close implements Source.
func (s *LogSource) Close() {
	s.iter.Close()
}
