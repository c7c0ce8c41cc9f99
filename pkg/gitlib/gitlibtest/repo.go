// Package gitlibtest builds throwaway libgit2 repositories for tests.
package gitlibtest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locfang/pkg/gitlib"
)

// Repo is a scratch repository rooted in a test temp dir.
type Repo struct {
	t      *testing.T
	Path   string
	native *git2go.Repository
	clock  time.Time
}

// New initializes an empty repository. It is freed by t.Cleanup.
func New(t *testing.T) *Repo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &Repo{
		t:      t,
		Path:   dir,
		native: repo,
		clock:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Write creates or overwrites a file in the working directory and stages it.
func (r *Repo) Write(name, content string) {
	r.t.Helper()

	path := filepath.Join(r.Path, name)

	err := os.MkdirAll(filepath.Dir(path), 0o755)
	require.NoError(r.t, err)

	err = os.WriteFile(path, []byte(content), 0o644)
	require.NoError(r.t, err)

	r.withIndex(func(index *git2go.Index) error {
		return index.AddByPath(name)
	})
}

// Remove deletes a file from the working directory and the index.
func (r *Repo) Remove(name string) {
	r.t.Helper()

	err := os.Remove(filepath.Join(r.Path, name))
	require.NoError(r.t, err)

	r.withIndex(func(index *git2go.Index) error {
		return index.RemoveByPath(name)
	})
}

// Move renames a file in the working directory and the index.
func (r *Repo) Move(from, to string) {
	r.t.Helper()

	data, err := os.ReadFile(filepath.Join(r.Path, from))
	require.NoError(r.t, err)

	r.Remove(from)
	r.Write(to, string(data))
}

// Commit records the index as a new commit on HEAD.
func (r *Repo) Commit(message string) gitlib.Hash {
	r.t.Helper()

	return r.Merge(message)
}

// Merge records the index as a new commit on HEAD whose parents are HEAD
// followed by extra.
func (r *Repo) Merge(message string, extra ...gitlib.Hash) gitlib.Hash {
	r.t.Helper()

	index, err := r.native.Index()
	require.NoError(r.t, err)

	defer index.Free()

	treeID, err := index.WriteTree()
	require.NoError(r.t, err)

	tree, err := r.native.LookupTree(treeID)
	require.NoError(r.t, err)

	defer tree.Free()

	r.clock = r.clock.Add(time.Hour)

	sig := &git2go.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  r.clock,
	}

	var parents []*git2go.Commit

	head, err := r.native.Head()
	if err == nil {
		headCommit, lookupErr := r.native.LookupCommit(head.Target())
		require.NoError(r.t, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	for _, hash := range extra {
		commit, lookupErr := r.native.LookupCommit(hash.ToOid())
		require.NoError(r.t, lookupErr)

		parents = append(parents, commit)
	}

	oid, err := r.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(r.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}

// Open opens the repository through gitlib. It is freed by t.Cleanup.
func (r *Repo) Open() *gitlib.Repository {
	r.t.Helper()

	repo, err := gitlib.OpenRepository(r.Path)
	require.NoError(r.t, err)

	r.t.Cleanup(repo.Free)

	return repo
}

func (r *Repo) withIndex(fn func(index *git2go.Index) error) {
	r.t.Helper()

	index, err := r.native.Index()
	require.NoError(r.t, err)

	defer index.Free()

	require.NoError(r.t, fn(index))
	require.NoError(r.t, index.Write())
}
