package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeAction represents the type of change in a diff.
type ChangeAction int

const (
	// Insert indicates a new file was added.
	Insert ChangeAction = iota
	// Delete indicates a file was removed.
	Delete
	// Modify indicates a file was modified in place.
	Modify
	// Rename indicates a file was moved, possibly with content changes.
	Rename
	// Copy indicates a file was copied from another path.
	Copy
	// TypeChange indicates the entry type changed (e.g. file to symlink).
	TypeChange
)

// Code returns the single-letter status used by git diff --name-status.
func (a ChangeAction) Code() string {
	switch a {
	case Insert:
		return "A"
	case Delete:
		return "D"
	case Modify:
		return "M"
	case Rename:
		return "R"
	case Copy:
		return "C"
	case TypeChange:
		return "T"
	default:
		return "X"
	}
}

// Change represents a single file change between two trees.
type Change struct {
	Action ChangeAction
	From   ChangeEntry
	To     ChangeEntry
	// Similarity is the rename/copy similarity score in percent (0-100).
	Similarity int
}

// Status returns the git status code, including the similarity score for
// renames and copies (e.g. "R087").
func (c *Change) Status() string {
	if c.Action == Rename || c.Action == Copy {
		return fmt.Sprintf("%s%03d", c.Action.Code(), c.Similarity)
	}

	return c.Action.Code()
}

// ChangeEntry represents one side of a change (old or new file).
type ChangeEntry struct {
	Name string
	Hash Hash
	Size int64
}

// Changes is a collection of Change objects.
type Changes []*Change

// DiffOptions configures TreeDiff.
type DiffOptions struct {
	// DetectRenames runs libgit2's similarity detection after the raw diff.
	DetectRenames bool
	// RenameThreshold is the minimum similarity in percent for a rename.
	// Zero keeps the libgit2 default (50).
	RenameThreshold int
}

// DefaultDiffOptions returns rename detection with the libgit2 threshold,
// matching the behavior of "git diff -M".
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{DetectRenames: true}
}

// TreeDiff computes the changes between two trees using libgit2.
// Skips diff when both tree OIDs are equal (e.g. metadata-only commits).
func TreeDiff(repo *Repository, oldTree, newTree *Tree, opts DiffOptions) (Changes, error) {
	if oldTree != nil && newTree != nil && oldTree.Hash() == newTree.Hash() {
		return make(Changes, 0), nil
	}

	diffOpts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	var oldT, newT *git2go.Tree
	if oldTree != nil {
		oldT = oldTree.tree
	}

	if newTree != nil {
		newT = newTree.tree
	}

	diff, err := repo.repo.DiffTreeToTree(oldT, newT, &diffOpts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	defer func() {
		_ = diff.Free()
	}()

	if opts.DetectRenames {
		findErr := findRenames(diff, opts.RenameThreshold)
		if findErr != nil {
			return nil, findErr
		}
	}

	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return nil, fmt.Errorf("get num deltas: %w", err)
	}

	changes := make(Changes, 0, numDeltas)

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			return nil, fmt.Errorf("get delta %d: %w", i, deltaErr)
		}

		change, ok := changeFromDelta(delta)
		if !ok {
			continue
		}

		changes = append(changes, change)
	}

	return changes, nil
}

func findRenames(diff *git2go.Diff, threshold int) error {
	findOpts, err := git2go.DefaultDiffFindOptions()
	if err != nil {
		return fmt.Errorf("get find options: %w", err)
	}

	findOpts.Flags = git2go.DiffFindRenames

	if threshold > 0 {
		findOpts.RenameThreshold = uint16(threshold)
	}

	err = diff.FindSimilar(&findOpts)
	if err != nil {
		return fmt.Errorf("find renames: %w", err)
	}

	return nil
}

func changeFromDelta(delta git2go.DiffDelta) (*Change, bool) {
	from := ChangeEntry{
		Name: delta.OldFile.Path,
		Hash: HashFromOid(delta.OldFile.Oid),
		Size: int64(delta.OldFile.Size),
	}
	to := ChangeEntry{
		Name: delta.NewFile.Path,
		Hash: HashFromOid(delta.NewFile.Oid),
		Size: int64(delta.NewFile.Size),
	}

	switch delta.Status {
	case git2go.DeltaAdded:
		return &Change{Action: Insert, To: to}, true
	case git2go.DeltaDeleted:
		return &Change{Action: Delete, From: from}, true
	case git2go.DeltaModified:
		return &Change{Action: Modify, From: from, To: to}, true
	case git2go.DeltaRenamed:
		return &Change{Action: Rename, From: from, To: to, Similarity: int(delta.Similarity)}, true
	case git2go.DeltaCopied:
		return &Change{Action: Copy, From: from, To: to, Similarity: int(delta.Similarity)}, true
	case git2go.DeltaTypeChange:
		return &Change{Action: TypeChange, From: from, To: to}, true
	case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
		git2go.DeltaUnreadable, git2go.DeltaConflicted:
		return nil, false
	}

	return nil, false
}
