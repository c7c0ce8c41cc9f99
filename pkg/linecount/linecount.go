// Package linecount classifies source lines into blank, comment and code, and
// compares two revisions of a file into same, modified, added and removed
// lines. Classification is restricted to a single tracked language; files in
// any other language count as zero rather than failing.
package linecount

import (
	"context"
	"errors"
)

// Sentinel errors returned by classifier backends.
var (
	// ErrUnknownBackend is returned by New for an unrecognized backend name.
	ErrUnknownBackend = errors.New("unknown line classifier backend")
	// ErrUnsupportedLanguage is returned when a backend cannot classify the configured language.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrClocNotFound is returned when the cloc binary is not on PATH.
	ErrClocNotFound = errors.New("cloc binary not found")
	// ErrClocFailed is returned when the cloc process exits with an error.
	ErrClocFailed = errors.New("cloc invocation failed")
	// ErrMalformedOutput is returned when a report cannot be parsed.
	ErrMalformedOutput = errors.New("malformed line count output")
	// ErrLanguageMismatch is returned when the tracked extension never maps to the tracked language.
	ErrLanguageMismatch = errors.New("extension does not map to language")
)

// LineCount is a single-revision census of one or more files.
type LineCount struct {
	Files   int `json:"files"   yaml:"files"`
	Blank   int `json:"blank"   yaml:"blank"`
	Comment int `json:"comment" yaml:"comment"`
	Code    int `json:"code"    yaml:"code"`
}

// IsZero reports whether every field is zero.
func (lc LineCount) IsZero() bool {
	return lc == LineCount{}
}

// Plus returns the field-wise sum of two counts.
func (lc LineCount) Plus(other LineCount) LineCount {
	return LineCount{
		Files:   lc.Files + other.Files,
		Blank:   lc.Blank + other.Blank,
		Comment: lc.Comment + other.Comment,
		Code:    lc.Code + other.Code,
	}
}

// DiffLineCount is a two-revision comparison keyed by line relation.
type DiffLineCount struct {
	Same     LineCount `json:"same"     yaml:"same"`
	Modified LineCount `json:"modified" yaml:"modified"`
	Added    LineCount `json:"added"    yaml:"added"`
	Removed  LineCount `json:"removed"  yaml:"removed"`
}

// IsZero reports whether all four relations are empty.
func (d DiffLineCount) IsZero() bool {
	return d == DiffLineCount{}
}

// Relation names as they appear in cloc diff reports.
const (
	RelationSame     = "same"
	RelationModified = "modified"
	RelationAdded    = "added"
	RelationRemoved  = "removed"
)

// set stores count under the named relation. Unknown names are ignored.
func (d *DiffLineCount) set(relation string, count LineCount) bool {
	switch relation {
	case RelationSame:
		d.Same = count
	case RelationModified:
		d.Modified = count
	case RelationAdded:
		d.Added = count
	case RelationRemoved:
		d.Removed = count
	default:
		return false
	}

	return true
}

// Classifier counts lines of files on disk.
//
// Census counts a single file. DiffCensus compares two revisions of a file and
// must finish within the backend's time budget, degrading to a partial result
// rather than failing when the budget is exceeded. Both return zero values,
// not errors, when the file is not in the tracked language.
type Classifier interface {
	Census(ctx context.Context, path string) (LineCount, error)
	DiffCensus(ctx context.Context, oldPath, newPath string) (DiffLineCount, error)
}
