// Package gitlib wraps the libgit2 operations needed to replay a commit range:
// opening a repository, resolving commit identifiers, diffing parent and child
// trees with rename detection, and reading blob contents.
package gitlib

import (
	"encoding/hex"
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// HashSize is the size of a SHA-1 hash in bytes.
const HashSize = 20

// ErrInvalidHash is returned when a string is not a full hex object id.
var ErrInvalidHash = errors.New("invalid object hash")

// Hash represents a git object hash (SHA-1).
type Hash [HashSize]byte

// ZeroHash returns the zero value hash.
func ZeroHash() Hash {
	return Hash{}
}

// ParseHash decodes a full 40-character hex object id.
func ParseHash(s string) (Hash, error) {
	var h Hash

	if len(s) != hex.EncodedLen(HashSize) {
		return h, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}

	_, err := hex.Decode(h[:], []byte(s))
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %q", ErrInvalidHash, s)
	}

	return h, nil
}

// HashFromOid converts a libgit2 Oid to Hash. A nil Oid yields the zero hash.
func HashFromOid(oid *git2go.Oid) Hash {
	var h Hash

	if oid != nil {
		copy(h[:], oid[:])
	}

	return h
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first seven hex characters, the usual abbreviated form.
func (h Hash) Short() string {
	return h.String()[:7]
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ToOid converts Hash back to libgit2 Oid.
func (h Hash) ToOid() *git2go.Oid {
	oid := new(git2go.Oid)
	copy(oid[:], h[:])

	return oid
}
