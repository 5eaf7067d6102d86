// Package stats reduces path comparisons and path snapshots into summary counters.
package stats

import (
	"github.com/kailas-cloud/obirdex/internal/domain"
	"github.com/kailas-cloud/obirdex/internal/domain/path"
)

// Summary counts comparison outcomes. Different is Total minus Identical,
// so it includes Unknown outcomes, which are also counted on their own.
type Summary struct {
	Total     int `json:"total"`
	Identical int `json:"identicalPaths"`
	Different int `json:"differentPaths"`
	Unknown   int `json:"unknownPaths"`
}

// Summarize counts identical, different and unknown comparisons.
func Summarize(comparisons []path.Comparison) Summary {
	s := Summary{Total: len(comparisons)}
	for _, c := range comparisons {
		switch c.Status() {
		case path.Identical:
			s.Identical++
		case path.Unknown:
			s.Unknown++
		}
	}
	s.Different = s.Total - s.Identical
	return s
}

// Pair is one item's before and after snapshots.
type Pair struct {
	Before domain.PathSnapshot
	After  domain.PathSnapshot
}

// Rollup aggregates depth changes and backend access counters over pairs.
type Rollup struct {
	DepthDelta  int   `json:"depthDelta"`
	TotalAccess int64 `json:"totalAccessCount"`
}

// RollupPairs sums |depth(after) - depth(before)| and both access counters for every pair.
func RollupPairs(pairs []Pair) Rollup {
	var r Rollup
	for _, p := range pairs {
		d := p.After.Depth() - p.Before.Depth()
		if d < 0 {
			d = -d
		}
		r.DepthDelta += d
		r.TotalAccess += p.Before.AccessCount + p.After.AccessCount
	}
	return r
}

// PairsFromRecords zips round-1 and round-2 records by position.
// Extra records on either side are ignored.
func PairsFromRecords(round1, round2 []domain.MatchRecord) []Pair {
	n := min(len(round1), len(round2))
	pairs := make([]Pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = Pair{Before: round1[i].Snapshot(), After: round2[i].Snapshot()}
	}
	return pairs
}
