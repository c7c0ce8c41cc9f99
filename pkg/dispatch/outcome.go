package dispatch

import (
	"github.com/Sumatoshi-tech/locfang/pkg/category"
)

// Status tells whether a change contributed to the totals.
type Status int

// Dispatch statuses.
const (
	// StatusSkipped means the change was deliberately ignored; see Reason.
	StatusSkipped Status = iota
	// StatusCounted means the line counts were computed.
	StatusCounted
	// StatusFailed means processing the change failed; see Err.
	StatusFailed
)

var statusNames = [...]string{"skipped", "counted", "failed"}

// String returns the lowercase status name.
func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}

	return statusNames[s]
}

// Reasons attached to skipped outcomes.
const (
	ReasonIneligible      = "ineligible"
	ReasonUnchangedRename = "unchanged-rename"
	ReasonUnsupportedKind = "unsupported-kind"
)

// Outcome is the result of dispatching one FileChange. Counts are zero unless
// Status is StatusCounted.
type Outcome struct {
	Change   FileChange
	Category category.Category
	Added    int
	Deleted  int
	Modified int
	// Same is the number of code lines unchanged between revisions.
	Same   int
	Status Status
	Reason string
	Err    error
}

// IsZero reports whether the outcome contributes nothing.
func (o Outcome) IsZero() bool {
	return o.Added == 0 && o.Deleted == 0 && o.Modified == 0 && o.Same == 0
}

func skipped(change FileChange, reason string) Outcome {
	return Outcome{Change: change, Status: StatusSkipped, Reason: reason}
}

func failed(change FileChange, cat category.Category, err error) Outcome {
	return Outcome{Change: change, Category: cat, Status: StatusFailed, Err: err}
}
