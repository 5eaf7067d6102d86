package obirdex

import (
	"github.com/kailas-cloud/obirdex/internal/domain"
	"github.com/kailas-cloud/obirdex/internal/domain/path"
	"github.com/kailas-cloud/obirdex/internal/stats"
	searchuc "github.com/kailas-cloud/obirdex/internal/usecase/search"
)

type (
	// Point is a query or record coordinate.
	Point = domain.Point
	// Record is a normalized search hit.
	Record = domain.MatchRecord
	// PathSnapshot is one observed access path with its access counter.
	PathSnapshot = domain.PathSnapshot
	// PathPair is the before/after pair of a first-stage session.
	PathPair = domain.PathPair
	// Comparison is the positional diff of two access paths.
	Comparison = path.Comparison
	// ComparisonStatus is identical, differs or unknown.
	ComparisonStatus = path.Status
	// Summary counts identical and different paths.
	Summary = stats.Summary
	// Rollup sums depth changes and access counters.
	Rollup = stats.Rollup
	// TwoRoundResult is the outcome of TwoRoundSearch.
	TwoRoundResult = searchuc.Outcome
	// BasicResult is the outcome of BasicSearch.
	BasicResult = searchuc.BroadcastOutcome
	// BasicItem is one BasicSearch result with its applied pair.
	BasicItem = searchuc.BroadcastItem
	// InitInfo describes index initialisation.
	InitInfo = domain.InitInfo
	// OramInfo is the index runtime info.
	OramInfo = domain.OramInfo
)

// Comparison outcomes.
const (
	StatusIdentical = path.Identical
	StatusDiffers   = path.Differs
	StatusUnknown   = path.Unknown
)

// ComparePaths compares two access paths position by position.
func ComparePaths(before, after []int) Comparison {
	return path.Compare(before, after)
}
