// Package path compares ORAM access paths observed for the same item across rounds.
package path

import (
	"encoding/json"
	"slices"
)

// Status is the outcome of comparing two access paths.
type Status string

// Comparison outcomes.
const (
	// Identical means equal length and no differing position.
	Identical Status = "identical"
	// Differs means at least one differing position or a length mismatch.
	Differs Status = "differs"
	// Unknown means the second path could not be observed.
	Unknown Status = "unknown"
)

// Comparison is the positional diff of two access paths.
type Comparison struct {
	before      []int
	after       []int
	differences []int
	status      Status
}

// Compare walks both paths up to the longer length. A position present in only
// one path always counts as a difference.
func Compare(before, after []int) Comparison {
	n := max(len(before), len(after))

	diffs := []int{}
	for i := 0; i < n; i++ {
		if i >= len(before) || i >= len(after) || before[i] != after[i] {
			diffs = append(diffs, i)
		}
	}

	status := Identical
	if len(diffs) > 0 || len(before) != len(after) {
		status = Differs
	}

	return Comparison{
		before:      orEmpty(before),
		after:       orEmpty(after),
		differences: diffs,
		status:      status,
	}
}

// NewUnknown builds the comparison for an item whose second observation failed.
// It is never identical and carries no differing positions.
func NewUnknown(before []int) Comparison {
	return Comparison{
		before:      orEmpty(before),
		after:       []int{},
		differences: []int{},
		status:      Unknown,
	}
}

// Before returns the first-round path.
func (c Comparison) Before() []int { return c.before }

// After returns the second-round path.
func (c Comparison) After() []int { return c.after }

// Differences returns the differing index positions in ascending order.
func (c Comparison) Differences() []int { return c.differences }

// Status returns the tagged outcome.
func (c Comparison) Status() Status { return c.status }

// Identical reports whether both paths are the same.
func (c Comparison) Identical() bool { return c.status == Identical }

// Clone returns a copy that shares no memory with c.
func (c Comparison) Clone() Comparison {
	c.before = slices.Clone(c.before)
	c.after = slices.Clone(c.after)
	c.differences = slices.Clone(c.differences)
	return c
}

func orEmpty(p []int) []int {
	if p == nil {
		return []int{}
	}
	return p
}

type comparisonJSON struct {
	Before      []int  `json:"firstRoundPath"`
	After       []int  `json:"secondRoundPath"`
	Differences []int  `json:"differences"`
	Identical   bool   `json:"isIdentical"`
	Status      Status `json:"status"`
}

// MarshalJSON renders the comparison with its derived identical flag.
func (c Comparison) MarshalJSON() ([]byte, error) {
	return json.Marshal(comparisonJSON{
		Before:      orEmpty(c.before),
		After:       orEmpty(c.after),
		Differences: orEmpty(c.differences),
		Identical:   c.Identical(),
		Status:      c.status,
	})
}
