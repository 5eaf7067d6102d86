// Package normalize converts raw backend result objects into domain.MatchRecord.
//
// Two wire shapes are accepted. The "topk" shape is produced by the round query
// endpoint and is recognised by its rect_id field. The "mapped" shape is produced
// by the first-stage endpoint and is recognised by its id field.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/kailas-cloud/obirdex/internal/domain"
)

// Shape identifies a backend result layout.
type Shape string

// Known result layouts.
const (
	ShapeTopK   Shape = "topk"
	ShapeMapped Shape = "mapped"
)

// Detect reports which layout raw uses. rect_id wins when both identifiers are present.
func Detect(raw map[string]any) (Shape, bool) {
	if _, ok := raw["rect_id"]; ok {
		return ShapeTopK, true
	}
	if _, ok := raw["id"]; ok {
		return ShapeMapped, true
	}
	return "", false
}

// Normalize converts one raw result into a MatchRecord.
// Optional numeric fields default to 0 and an absent or non-array access path
// defaults to empty. A missing identifier or keyword, or an access path holding
// anything but non-negative integers, yields a *domain.NormalizationError.
func Normalize(raw map[string]any) (domain.MatchRecord, error) {
	shape, ok := Detect(raw)
	if !ok {
		return domain.MatchRecord{}, domain.NewNormalizationError("rect_id", "is required")
	}
	if shape == ShapeTopK {
		return fromTopK(raw)
	}
	return fromMapped(raw)
}

// All normalizes raws in order. The first failure aborts with the result index.
func All(raws []map[string]any) ([]domain.MatchRecord, error) {
	out := make([]domain.MatchRecord, len(raws))
	for i, raw := range raws {
		r, err := Normalize(raw)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

func fromTopK(raw map[string]any) (domain.MatchRecord, error) {
	id, err := identifier(raw, "rect_id")
	if err != nil {
		return domain.MatchRecord{}, err
	}
	kw, ok := text(raw["keyword"])
	if !ok {
		return domain.MatchRecord{}, domain.NewNormalizationError("keyword", "is required")
	}
	accessPath, ok := nodes(raw["orampath"])
	if !ok {
		return domain.MatchRecord{}, domain.NewNormalizationError("orampath", errBadNodes)
	}

	return domain.MatchRecord{
		ID:      id,
		Keyword: kw,
		Center: domain.Point{
			X: number(raw["center_x"]),
			Y: number(raw["center_y"]),
		},
		WeightedDist: number(raw["weighted_dist"]),
		RawDist:      number(raw["original_dist"]),
		LexicalDist:  number(raw["lev_distance"]),
		AccessPath:   accessPath,
		AccessCount:  int64(number(raw["access_count"])),
	}, nil
}

func fromMapped(raw map[string]any) (domain.MatchRecord, error) {
	id, err := identifier(raw, "id")
	if err != nil {
		return domain.MatchRecord{}, err
	}
	kw, ok := text(raw["keyword"])
	if !ok {
		if kw, ok = text(raw["title"]); !ok {
			return domain.MatchRecord{}, domain.NewNormalizationError("keyword", "is required")
		}
	}

	before, err := Snapshot(raw["path_before"])
	if err != nil {
		return domain.MatchRecord{}, domain.NewNormalizationError("path_before", errBadNodes)
	}
	return domain.MatchRecord{
		ID:      id,
		Keyword: kw,
		Center: domain.Point{
			X: number(raw["lng"]),
			Y: number(raw["lat"]),
		},
		WeightedDist: firstNumber(raw, "weighted_distance", "distance"),
		RawDist:      firstNumber(raw, "geo_distance_km", "spatial_distance"),
		LexicalDist:  number(raw["text_distance"]),
		AccessPath:   before.Nodes,
		AccessCount:  before.AccessCount,
	}, nil
}

// Snapshot decodes a path_before / path_after value. Both a bare node array and
// an object with path and access_count are accepted; anything else is empty.
// A node array with an invalid element is a *domain.NormalizationError on "path".
func Snapshot(v any) (domain.PathSnapshot, error) {
	src, count := v, 0.0
	if t, ok := v.(map[string]any); ok {
		src, count = t["path"], number(t["access_count"])
	}
	n, ok := nodes(src)
	if !ok {
		return domain.PathSnapshot{}, domain.NewNormalizationError("path", errBadNodes)
	}
	return domain.PathSnapshot{Nodes: n, AccessCount: int64(count)}, nil
}

// EmbeddedPaths returns the path pair carried inline by a mapped result, if
// both sides are present and decode cleanly.
func EmbeddedPaths(raw map[string]any) (domain.PathPair, bool) {
	before, okB := raw["path_before"]
	after, okA := raw["path_after"]
	if !okB || !okA || before == nil || after == nil {
		return domain.PathPair{}, false
	}
	b, errB := Snapshot(before)
	a, errA := Snapshot(after)
	if errB != nil || errA != nil {
		return domain.PathPair{}, false
	}
	return domain.PathPair{Before: b, After: a}, true
}

func identifier(raw map[string]any, field string) (int64, error) {
	v, ok := raw[field]
	if !ok || v == nil {
		return 0, domain.NewNormalizationError(field, "is required")
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, domain.NewNormalizationError(field, "must be numeric")
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, domain.NewNormalizationError(field, "must be an integer")
	}
	return int64(f), nil
}

func text(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}

func firstNumber(raw map[string]any, fields ...string) float64 {
	for _, f := range fields {
		if n, ok := toFloat(raw[f]); ok && n != 0 {
			return n
		}
	}
	return 0
}

func number(v any) float64 {
	f, _ := toFloat(v)
	return f
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

const errBadNodes = "must hold only non-negative integer node ids"

// nodes decodes an access path. A value that is not an array is an empty path.
// An array is accepted only whole: one bad element rejects it, since dropping
// it would shift every later position.
func nodes(v any) ([]int, bool) {
	switch arr := v.(type) {
	case []any:
		out := make([]int, 0, len(arr))
		for _, e := range arr {
			f, ok := toFloat(e)
			if !ok || f < 0 || f != math.Trunc(f) || math.IsInf(f, 0) {
				return nil, false
			}
			out = append(out, int(f))
		}
		return out, true
	case []int:
		for _, n := range arr {
			if n < 0 {
				return nil, false
			}
		}
		return append([]int{}, arr...), true
	default:
		return []int{}, true
	}
}
