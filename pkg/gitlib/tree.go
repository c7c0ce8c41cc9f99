package gitlib

import (
	git2go "github.com/libgit2/git2go/v34"
)

// Tree is a commit's root tree, the input to TreeDiff.
type Tree struct {
	tree *git2go.Tree
}

// Hash returns the tree id. Commits that only change metadata share it with
// their parent.
func (t *Tree) Hash() Hash {
	return HashFromOid(t.tree.Id())
}

// Free releases the tree. Safe to call twice.
func (t *Tree) Free() {
	if t.tree != nil {
		t.tree.Free()
		t.tree = nil
	}
}
