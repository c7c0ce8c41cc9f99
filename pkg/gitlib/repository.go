package gitlib

import (
	"context"
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Sentinel errors for repository lookups.
var (
	// ErrCommitNotFound is returned when a revision does not resolve to a commit.
	ErrCommitNotFound = errors.New("commit not found")
	// ErrBlobNotFound is returned when a blob id is not present in the object database.
	ErrBlobNotFound = errors.New("blob not found")
)

// Repository is an open libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens the repository at path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the path the repository was opened with.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository. Safe to call twice.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the commit id HEAD points at.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// LookupCommit returns the commit with the given id.
func (r *Repository) LookupCommit(_ context.Context, hash Hash) (*Commit, error) {
	return r.lookupCommit(hash.ToOid())
}

func (r *Repository) lookupCommit(oid *git2go.Oid) (*Commit, error) {
	commit, err := r.repo.LookupCommit(oid)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCommitNotFound, HashFromOid(oid), err)
	}

	return &Commit{commit: commit, repo: r}, nil
}

// ResolveCommit resolves a revision expression (full or abbreviated id, ref
// name, "HEAD~3", ...) to a commit.
func (r *Repository) ResolveCommit(_ context.Context, rev string) (*Commit, error) {
	obj, err := r.repo.RevparseSingle(rev)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrCommitNotFound, rev, err)
	}
	defer obj.Free()

	peeled, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a commit: %w", ErrCommitNotFound, rev, err)
	}
	defer peeled.Free()

	return r.lookupCommit(peeled.Id())
}
