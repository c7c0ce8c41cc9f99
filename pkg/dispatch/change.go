package dispatch

import (
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/locfang/pkg/gitlib"
)

// Kind is the change kind of a FileChange.
type Kind int

// Change kinds. KindOther covers copies, type changes and unknown codes.
const (
	KindOther Kind = iota
	KindAdded
	KindDeleted
	KindModified
	KindRenamed
)

var kindNames = [...]string{"other", "added", "deleted", "modified", "renamed"}

// String returns the lowercase kind name.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindOther]
	}

	return kindNames[k]
}

// ParseKind decodes a diff status code: A, D, M, or R followed by an optional
// similarity score. Anything else is KindOther. The score is zero when absent.
func ParseKind(code string) (Kind, int) {
	code = strings.TrimSpace(code)
	if code == "" {
		return KindOther, 0
	}

	switch code[0] {
	case 'A':
		return KindAdded, 0
	case 'D':
		return KindDeleted, 0
	case 'M':
		return KindModified, 0
	case 'R':
		score, err := strconv.Atoi(code[1:])
		if err != nil {
			return KindRenamed, 0
		}

		return KindRenamed, score
	default:
		return KindOther, 0
	}
}

// FileChange is one file-level entry of a commit diff. OldPath and OldHash are
// empty for additions; NewPath and NewHash are empty for deletions.
type FileChange struct {
	Kind       Kind
	Status     string
	OldPath    string
	NewPath    string
	OldHash    gitlib.Hash
	NewHash    gitlib.Hash
	Similarity int
}

// Path returns the path most descriptive of the change.
func (c FileChange) Path() string {
	if c.NewPath != "" {
		return c.NewPath
	}

	return c.OldPath
}

// FromChange converts a tree-diff change.
func FromChange(c *gitlib.Change) FileChange {
	status := c.Status()
	kind, _ := ParseKind(status)

	return FileChange{
		Kind:       kind,
		Status:     status,
		OldPath:    c.From.Name,
		NewPath:    c.To.Name,
		OldHash:    c.From.Hash,
		NewHash:    c.To.Hash,
		Similarity: c.Similarity,
	}
}
