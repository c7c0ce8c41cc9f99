package gitlib

import (
	"errors"
	"fmt"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrParentNotFound is returned when the requested parent commit is not found.
var ErrParentNotFound = errors.New("parent commit not found")

// Commit is a libgit2 commit handle. Callers own it and must Free it.
type Commit struct {
	commit *git2go.Commit
	repo   *Repository
}

// Hash returns the commit id.
func (c *Commit) Hash() Hash {
	return HashFromOid(c.commit.Id())
}

// Summary returns the first line of the commit message.
func (c *Commit) Summary() string {
	return c.commit.Summary()
}

// When returns the author timestamp.
func (c *Commit) When() time.Time {
	return c.commit.Author().When
}

// NumParents returns the number of parents. Root commits have none.
func (c *Commit) NumParents() int {
	return int(c.commit.ParentCount())
}

// Parent returns the nth parent, zero-based.
func (c *Commit) Parent(n int) (*Commit, error) {
	if n < 0 || n >= c.NumParents() {
		return nil, fmt.Errorf("%w: %s^%d", ErrParentNotFound, c.Hash().Short(), n+1)
	}

	parent := c.commit.Parent(uint(n))
	if parent == nil {
		return nil, fmt.Errorf("%w: %s^%d", ErrParentNotFound, c.Hash().Short(), n+1)
	}

	return &Commit{commit: parent, repo: c.repo}, nil
}

// Tree returns the root tree of the commit.
func (c *Commit) Tree() (*Tree, error) {
	tree, err := c.commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree of %s: %w", c.Hash().Short(), err)
	}

	return &Tree{tree: tree}, nil
}

// Free releases the libgit2 commit. Safe to call twice.
func (c *Commit) Free() {
	if c.commit != nil {
		c.commit.Free()
		c.commit = nil
	}
}
