package domain

// MatchRecord is a normalized search hit. Identity across rounds is ID.
type MatchRecord struct {
	ID           int64   `json:"id"`
	Keyword      string  `json:"keyword"`
	Center       Point   `json:"center"`
	WeightedDist float64 `json:"weighted_dist"`
	RawDist      float64 `json:"original_dist"`
	LexicalDist  float64 `json:"lev_distance"`
	// AccessPath lists the ORAM tree nodes visited to retrieve the item; empty if unavailable.
	AccessPath []int `json:"orampath"`
	// AccessCount is the backend-reported access counter for this retrieval.
	AccessCount int64 `json:"access_count"`
}

// Degraded returns a copy of the record with an empty access path.
// It stands in for a round-2 result whose sub-query failed.
func (r MatchRecord) Degraded() MatchRecord {
	r.AccessPath = []int{}
	return r
}

// PathSnapshot is one observed access path with its backend access counter.
type PathSnapshot struct {
	Nodes       []int `json:"path"`
	AccessCount int64 `json:"access_count"`
}

// Depth returns the number of nodes on the path.
func (s PathSnapshot) Depth() int { return len(s.Nodes) }

// PathPair is the before/after access path pair of one first-stage session.
type PathPair struct {
	Before PathSnapshot `json:"path_before"`
	After  PathSnapshot `json:"path_after"`
}

// Snapshot returns the record's access path as a snapshot.
func (r MatchRecord) Snapshot() PathSnapshot {
	return PathSnapshot{Nodes: r.AccessPath, AccessCount: r.AccessCount}
}
