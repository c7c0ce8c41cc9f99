package aggregate

import "github.com/Sumatoshi-tech/locfang/pkg/category"

// Entry is the totals of one category.
type Entry struct {
	Category category.Category `json:"category" yaml:"category"`
	Totals   `yaml:",inline"`
}

// Snapshot is an ordered copy of all tracked categories' totals.
type Snapshot []Entry

// Get returns the totals for cat, or zero when cat is absent.
func (s Snapshot) Get(cat category.Category) Totals {
	for _, e := range s {
		if e.Category == cat {
			return e.Totals
		}
	}

	return Totals{}
}

// Total sums every category.
func (s Snapshot) Total() Totals {
	var sum Totals

	for _, e := range s {
		sum = sum.Plus(e.Totals)
	}

	return sum
}

// Equal reports whether two snapshots hold identical entries in the same order.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}

	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}

	return true
}
