package domain

import (
	"fmt"
	"strconv"
)

// MaxKeywordLength is the maximum accepted keyword length.
const MaxKeywordLength = 256

// Point is a 2D coordinate in the index's space (x = lng, y = lat for geo data).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SearchQuery is a validated spatial-keyword query.
type SearchQuery struct {
	keyword string
	point   Point
	k       int
}

// NewQuery validates a spatial-keyword query.
func NewQuery(keyword string, x, y float64, k int) (SearchQuery, error) {
	if keyword == "" {
		return SearchQuery{}, fmt.Errorf("keyword is required: %w", ErrInvalidQuery)
	}
	if len(keyword) > MaxKeywordLength {
		return SearchQuery{}, fmt.Errorf("keyword too long (max %d chars): %w", MaxKeywordLength, ErrInvalidQuery)
	}
	if k < 1 {
		return SearchQuery{}, fmt.Errorf("k must be >= 1, got %d: %w", k, ErrInvalidQuery)
	}
	return SearchQuery{keyword: keyword, point: Point{X: x, Y: y}, k: k}, nil
}

// Refine derives the round-2 verification query for a matched record:
// the record's own keyword and center with k = 1.
func (q SearchQuery) Refine(r *MatchRecord) SearchQuery {
	return SearchQuery{keyword: r.Keyword, point: r.Center, k: 1}
}

// Keyword returns the free-text keyword.
func (q SearchQuery) Keyword() string { return q.keyword }

// Point returns the query coordinate.
func (q SearchQuery) Point() Point { return q.point }

// K returns the requested result count.
func (q SearchQuery) K() int { return q.k }

// Key returns a stable identity for the query, used by keyed caches.
func (q SearchQuery) Key() string {
	return q.keyword + "|" +
		strconv.FormatFloat(q.point.X, 'g', -1, 64) + "|" +
		strconv.FormatFloat(q.point.Y, 'g', -1, 64) + "|" +
		strconv.Itoa(q.k)
}
