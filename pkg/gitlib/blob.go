package gitlib

import (
	"context"
	"fmt"
)

// BlobContents returns a copy of the blob's bytes that outlives the libgit2
// object.
func (r *Repository) BlobContents(_ context.Context, hash Hash) ([]byte, error) {
	blob, err := r.repo.LookupBlob(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBlobNotFound, hash, err)
	}
	defer blob.Free()

	contents := blob.Contents()
	out := make([]byte, len(contents))
	copy(out, contents)

	return out, nil
}

// BlobSize returns the size in bytes of a blob from the object header,
// without loading its content.
func (r *Repository) BlobSize(_ context.Context, hash Hash) (int64, error) {
	odb, err := r.repo.Odb()
	if err != nil {
		return 0, fmt.Errorf("open object database: %w", err)
	}
	defer odb.Free()

	size, _, err := odb.ReadHeader(hash.ToOid())
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrBlobNotFound, hash, err)
	}

	return int64(size), nil
}
