package gitlib

import (
	"fmt"
	"io"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// LogOptions configures a rev-walk from HEAD.
type LogOptions struct {
	// Since stops the walk at the first commit authored before it.
	Since *time.Time
	// FirstParent follows only the first parent of merges.
	FirstParent bool
}

// CommitIter yields commits newest first.
type CommitIter struct {
	walk  *git2go.RevWalk
	repo  *Repository
	since *time.Time
}

// Log starts a rev-walk at HEAD in time and topological order.
func (r *Repository) Log(opts *LogOptions) (*CommitIter, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	err = walk.PushHead()
	if err != nil {
		walk.Free()

		return nil, fmt.Errorf("push HEAD to revwalk: %w", err)
	}

	walk.Sorting(git2go.SortTime | git2go.SortTopological)

	iter := &CommitIter{walk: walk, repo: r}

	if opts != nil {
		if opts.FirstParent {
			walk.SimplifyFirstParent()
		}

		iter.since = opts.Since
	}

	return iter, nil
}

// Next returns the next commit, or io.EOF once the walk is exhausted or has
// passed Since.
func (ci *CommitIter) Next() (*Commit, error) {
	if ci.walk == nil {
		return nil, io.EOF
	}

	oid := new(git2go.Oid)

	err := ci.walk.Next(oid)
	if git2go.IsErrorCode(err, git2go.ErrorCodeIterOver) {
		ci.Close()

		return nil, io.EOF
	}

	if err != nil {
		ci.Close()

		return nil, fmt.Errorf("revwalk: %w", err)
	}

	commit, err := ci.repo.lookupCommit(oid)
	if err != nil {
		ci.Close()

		return nil, err
	}

	if ci.since != nil && commit.When().Before(*ci.since) {
		commit.Free()
		ci.Close()

		return nil, io.EOF
	}

	return commit, nil
}

// Close releases the walk. Safe to call twice.
func (ci *CommitIter) Close() {
	if ci.walk != nil {
		ci.walk.Free()
		ci.walk = nil
	}
}
