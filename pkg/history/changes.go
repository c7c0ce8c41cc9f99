package history

import (
	"fmt"

	"github.com/Sumatoshi-tech/locfang/pkg/dispatch"
	"github.com/Sumatoshi-tech/locfang/pkg/gitlib"
)

// ParentDiff is the set of file changes between one parent and the commit.
type ParentDiff struct {
	Parent  gitlib.Hash
	Changes []dispatch.FileChange
}

// Differ computes per-parent file changes.
type Differ struct {
	repo *gitlib.Repository
	opts gitlib.DiffOptions
}

// NewDiffer creates a Differ with rename detection configured by opts.
func NewDiffer(repo *gitlib.Repository, opts gitlib.DiffOptions) *Differ {
	return &Differ{repo: repo, opts: opts}
}

// Diff returns one ParentDiff per parent of commit, in parent order. Root
// commits have no parents and yield nothing. Failures are fatal to the run.
func (d *Differ) Diff(commit *gitlib.Commit) ([]ParentDiff, error) {
	parents := commit.NumParents()
	if parents == 0 {
		return nil, nil
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", commit.Hash().Short(), err)
	}
	defer tree.Free()

	out := make([]ParentDiff, 0, parents)

	for i := range parents {
		pd, diffErr := d.diffParent(commit, tree, i)
		if diffErr != nil {
			return nil, diffErr
		}

		out = append(out, pd)
	}

	return out, nil
}

func (d *Differ) diffParent(commit *gitlib.Commit, tree *gitlib.Tree, n int) (ParentDiff, error) {
	parent, err := commit.Parent(n)
	if err != nil {
		return ParentDiff{}, fmt.Errorf("commit %s: %w", commit.Hash().Short(), err)
	}
	defer parent.Free()

	parentTree, err := parent.Tree()
	if err != nil {
		return ParentDiff{}, fmt.Errorf("parent %s: %w", parent.Hash().Short(), err)
	}
	defer parentTree.Free()

	changes, err := gitlib.TreeDiff(d.repo, parentTree, tree, d.opts)
	if err != nil {
		return ParentDiff{}, fmt.Errorf("diff %s..%s: %w", parent.Hash().Short(), commit.Hash().Short(), err)
	}

	files := make([]dispatch.FileChange, 0, len(changes))
	for _, c := range changes {
		files = append(files, dispatch.FromChange(c))
	}

	return ParentDiff{Parent: parent.Hash(), Changes: files}, nil
}
