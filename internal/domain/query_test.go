package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewQuery(t *testing.T) {
	q, err := NewQuery("cafe", 10, 20, 2)
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}
	if q.Keyword() != "cafe" {
		t.Errorf("Keyword() = %q", q.Keyword())
	}
	if q.Point() != (Point{X: 10, Y: 20}) {
		t.Errorf("Point() = %+v", q.Point())
	}
	if q.K() != 2 {
		t.Errorf("K() = %d", q.K())
	}
}

func TestNewQuery_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
		k       int
	}{
		{"empty keyword", "", 1},
		{"zero k", "cafe", 0},
		{"negative k", "cafe", -3},
		{"long keyword", strings.Repeat("a", MaxKeywordLength+1), 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewQuery(tc.keyword, 0, 0, tc.k)
			if !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("err = %v, want ErrInvalidQuery", err)
			}
		})
	}
}

func TestSearchQuery_Refine(t *testing.T) {
	q, _ := NewQuery("cafe", 10, 20, 5)
	r := &MatchRecord{ID: 7, Keyword: "espresso bar", Center: Point{X: 1.5, Y: -2}}

	sub := q.Refine(r)
	if sub.Keyword() != "espresso bar" {
		t.Errorf("Keyword() = %q", sub.Keyword())
	}
	if sub.Point() != r.Center {
		t.Errorf("Point() = %+v", sub.Point())
	}
	if sub.K() != 1 {
		t.Errorf("K() = %d, want 1", sub.K())
	}
	if q.K() != 5 || q.Keyword() != "cafe" {
		t.Error("Refine mutated the original query")
	}
}

func TestSearchQuery_Key(t *testing.T) {
	a, _ := NewQuery("cafe", 10, 20.5, 2)
	b, _ := NewQuery("cafe", 10, 20.5, 2)
	c, _ := NewQuery("cafe", 10, 20.5, 3)

	if a.Key() != b.Key() {
		t.Errorf("equal queries have different keys: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() == c.Key() {
		t.Errorf("different k share key %q", a.Key())
	}
	if a.Key() != "cafe|10|20.5|2" {
		t.Errorf("Key() = %q", a.Key())
	}
}
