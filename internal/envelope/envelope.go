// Package envelope renders search outcomes into the {success, error?, ...}
// JSON envelopes consumed by the presentation layer.
package envelope

import (
	"maps"

	"github.com/kailas-cloud/obirdex/internal/domain"
	"github.com/kailas-cloud/obirdex/internal/domain/path"
	"github.com/kailas-cloud/obirdex/internal/stats"
	searchuc "github.com/kailas-cloud/obirdex/internal/usecase/search"
)

// Failure is the envelope of every failed call.
type Failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// TwoRound is the two-round search envelope.
type TwoRound struct {
	Success            bool                 `json:"success"`
	RunID              string               `json:"runId,omitempty"`
	FirstRoundResults  []domain.MatchRecord `json:"firstRoundResults"`
	SecondRoundResults []domain.MatchRecord `json:"secondRoundResults"`
	PathComparisons    []path.Comparison    `json:"pathComparisons"`
	Summary            stats.Summary        `json:"summary"`
	Stats              stats.Rollup         `json:"stats"`
	SubQueries         int                  `json:"subQueries"`
	ElapsedMS          int64                `json:"elapsedMs"`
}

// PathInfo is a before/after pair with its comparison.
type PathInfo struct {
	PathBefore domain.PathSnapshot `json:"path_before"`
	PathAfter  domain.PathSnapshot `json:"path_after"`
	Comparison path.Comparison     `json:"comparison"`
}

// BasicSummary describes how the broadcast pair was obtained.
type BasicSummary struct {
	Total       int  `json:"total"`
	HasPathInfo bool `json:"hasPathInfo"`
	FromCache   bool `json:"fromCache"`
}

// Basic is the broadcast search envelope.
type Basic struct {
	Success  bool             `json:"success"`
	Results  []map[string]any `json:"results"`
	CacheKey string           `json:"cacheKey"`
	PathInfo *PathInfo        `json:"pathInfo"`
	TimeCost any              `json:"time_cost"`
	Summary  BasicSummary     `json:"summary"`
	Stats    stats.Rollup     `json:"stats"`
}

// PathResult is a normalized record with the session pair applied to it.
type PathResult struct {
	domain.MatchRecord
	PathBefore domain.PathSnapshot `json:"path_before"`
	PathAfter  domain.PathSnapshot `json:"path_after"`
}

// Paths is the path lookup envelope. Results holds the session's records when
// they are known to this gateway, each carrying the same pair.
type Paths struct {
	Success   bool         `json:"success"`
	PathInfo  PathInfo     `json:"pathInfo"`
	Results   []PathResult `json:"results"`
	FromCache bool         `json:"fromCache"`
	Stats     stats.Rollup `json:"stats"`
}

// Oram is the index runtime info envelope.
type Oram struct {
	Success bool             `json:"success"`
	Data    domain.OramStats `json:"data"`
}

// NewFailure builds the failure envelope for err.
func NewFailure(err error) Failure {
	return Failure{Success: false, Error: domain.Message(err)}
}

// NewTwoRound renders a two-round outcome.
func NewTwoRound(o searchuc.Outcome) TwoRound {
	return TwoRound{
		Success:            true,
		RunID:              o.RunID,
		FirstRoundResults:  orEmpty(o.Round1),
		SecondRoundResults: orEmpty(o.Round2),
		PathComparisons:    orEmpty(o.Comparisons),
		Summary:            o.Summary,
		Stats:              o.Rollup,
		SubQueries:         o.SubQueries,
		ElapsedMS:          o.Elapsed.Milliseconds(),
	}
}

// NewBasic renders a broadcast outcome. Each result is the backend payload
// with path_before/path_after overwritten by the pair applied to it.
func NewBasic(o searchuc.BroadcastOutcome) Basic {
	results := make([]map[string]any, len(o.Items))
	for i, it := range o.Items {
		m := maps.Clone(it.Raw)
		if m == nil {
			m = make(map[string]any)
		}
		if it.Paths != nil {
			m["path_before"] = it.Paths.Before
			m["path_after"] = it.Paths.After
		}
		results[i] = m
	}

	var info *PathInfo
	if o.Paths != nil {
		pi := NewPathInfo(*o.Paths)
		info = &pi
	}

	return Basic{
		Success:  true,
		Results:  results,
		CacheKey: o.CacheKey,
		PathInfo: info,
		TimeCost: o.TimeCost,
		Summary: BasicSummary{
			Total:       len(o.Items),
			HasPathInfo: o.HasPathInfo(),
			FromCache:   o.FromCache,
		},
		Stats: o.Rollup,
	}
}

// NewPathInfo compares a pair.
func NewPathInfo(p domain.PathPair) PathInfo {
	return PathInfo{
		PathBefore: withNodes(p.Before),
		PathAfter:  withNodes(p.After),
		Comparison: path.Compare(p.Before.Nodes, p.After.Nodes),
	}
}

// NewPaths renders a path lookup applied to a result list.
func NewPaths(o searchuc.BroadcastOutcome) Paths {
	var pair domain.PathPair
	if o.Paths != nil {
		pair = *o.Paths
	}
	results := make([]PathResult, len(o.Items))
	for i, it := range o.Items {
		results[i] = PathResult{
			MatchRecord: it.Record,
			PathBefore:  withNodes(pair.Before),
			PathAfter:   withNodes(pair.After),
		}
	}
	return Paths{
		Success:   true,
		PathInfo:  NewPathInfo(pair),
		Results:   results,
		FromCache: o.FromCache,
		Stats:     o.Rollup,
	}
}

// NewOram renders index runtime info.
func NewOram(info *domain.OramInfo) Oram {
	if info == nil {
		return Oram{Success: true}
	}
	return Oram{Success: true, Data: info.Info}
}

func withNodes(s domain.PathSnapshot) domain.PathSnapshot {
	if s.Nodes == nil {
		s.Nodes = []int{}
	}
	return s
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
