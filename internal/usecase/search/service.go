package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/obirdex/internal/domain"
	"github.com/kailas-cloud/obirdex/internal/domain/path"
	"github.com/kailas-cloud/obirdex/internal/metrics"
	"github.com/kailas-cloud/obirdex/internal/normalize"
	"github.com/kailas-cloud/obirdex/internal/stats"
)

var errNoResult = errors.New("sub-query returned no results")

// Outcome is the result of a two-round search. Round2 and Comparisons are
// parallel to Round1: entry i always describes round-1 record i.
type Outcome struct {
	RunID       string
	Round1      []domain.MatchRecord
	Round2      []domain.MatchRecord
	Comparisons []path.Comparison
	Summary     stats.Summary
	// Rollup covers the records whose second path was observed.
	Rollup stats.Rollup
	// SubQueries is the number of round-2 calls issued.
	SubQueries int
	// Degraded counts round-2 calls that failed and were replaced by degraded records.
	Degraded int
	Elapsed  time.Duration
}

// Service orchestrates two-round and broadcast searches against the index.
type Service struct {
	backend       Backend
	slot          SessionCache
	outcomes      OutcomeStore
	maxConcurrent int
	logger        *zap.Logger
	flight        singleflight.Group
}

// New creates a search service. slot can be nil, which disables session reuse in BasicSearch.
func New(backend Backend, slot SessionCache) *Service {
	return &Service{backend: backend, slot: slot, logger: zap.NewNop()}
}

// WithOutcomeCache enables memoisation of fully successful two-round outcomes.
func (s *Service) WithOutcomeCache(store OutcomeStore) *Service {
	s.outcomes = store
	return s
}

// WithMaxConcurrentSubQueries bounds in-flight round-2 calls. 0 means unbounded.
func (s *Service) WithMaxConcurrentSubQueries(n int) *Service {
	if n >= 0 {
		s.maxConcurrent = n
	}
	return s
}

// WithLogger sets the service logger.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// TwoRoundSearch runs the round-1 query, then one k=1 verification query per
// round-1 record, and compares the access paths of both rounds.
// Only a round-1 failure fails the call; round-2 failures degrade single entries.
func (s *Service) TwoRoundSearch(ctx context.Context, q domain.SearchQuery) (Outcome, error) {
	start := time.Now()

	if s.outcomes != nil {
		if o, ok := s.outcomes.Get(q.Key()); ok {
			return o.clone(), nil
		}
	}

	runID := uuid.NewString()
	log := s.logger.With(zap.String("run_id", runID), zap.String("keyword", q.Keyword()))

	page, err := s.backend.TopK(ctx, q)
	if err != nil {
		return Outcome{}, fmt.Errorf("round 1: %w", err)
	}
	round1, err := normalize.All(page.Results)
	if err != nil {
		return Outcome{}, fmt.Errorf("round 1: %w", err)
	}

	round2 := make([]domain.MatchRecord, len(round1))
	comparisons := make([]path.Comparison, len(round1))
	var degraded atomic.Int32

	var g errgroup.Group
	if s.maxConcurrent > 0 {
		g.SetLimit(s.maxConcurrent)
	}
	for i := range round1 {
		i := i
		g.Go(func() error {
			rec, cmp, err := s.verify(ctx, q, &round1[i])
			if err != nil {
				degraded.Add(1)
				metrics.SubQueriesTotal.WithLabelValues("degraded").Inc()
				log.Warn("Round-2 sub-query degraded",
					zap.Int("index", i),
					zap.Int64("record_id", round1[i].ID),
					zap.Error(err),
				)
			} else {
				metrics.SubQueriesTotal.WithLabelValues("ok").Inc()
			}
			metrics.PathComparisonsTotal.WithLabelValues(string(cmp.Status())).Inc()
			round2[i] = rec
			comparisons[i] = cmp
			return nil
		})
	}
	_ = g.Wait() // sub-queries never return errors

	o := Outcome{
		RunID:       runID,
		Round1:      round1,
		Round2:      round2,
		Comparisons: comparisons,
		Summary:     stats.Summarize(comparisons),
		Rollup:      observedRollup(round1, round2, comparisons),
		SubQueries:  len(round1),
		Degraded:    int(degraded.Load()),
		Elapsed:     time.Since(start),
	}

	log.Info("Two-round search completed",
		zap.Int("results", len(round1)),
		zap.Int("identical", o.Summary.Identical),
		zap.Int("different", o.Summary.Different),
		zap.Int("degraded", o.Degraded),
		zap.Duration("elapsed", o.Elapsed),
	)

	if s.outcomes != nil && o.Degraded == 0 {
		s.outcomes.Put(q.Key(), o.clone())
	}
	return o, nil
}

// clone copies the record and comparison slices so a cached outcome never
// shares memory with one handed to a caller.
func (o Outcome) clone() Outcome {
	o.Round1 = cloneRecords(o.Round1)
	o.Round2 = cloneRecords(o.Round2)
	if o.Comparisons != nil {
		cmps := make([]path.Comparison, len(o.Comparisons))
		for i, c := range o.Comparisons {
			cmps[i] = c.Clone()
		}
		o.Comparisons = cmps
	}
	return o
}

func cloneRecords(rs []domain.MatchRecord) []domain.MatchRecord {
	if rs == nil {
		return nil
	}
	out := slices.Clone(rs)
	for i := range out {
		out[i].AccessPath = slices.Clone(out[i].AccessPath)
	}
	return out
}

func observedRollup(round1, round2 []domain.MatchRecord, comparisons []path.Comparison) stats.Rollup {
	pairs := stats.PairsFromRecords(round1, round2)
	observed := pairs[:0]
	for i, p := range pairs {
		if comparisons[i].Status() != path.Unknown {
			observed = append(observed, p)
		}
	}
	return stats.RollupPairs(observed)
}

// verify runs the round-2 query for one round-1 record. On any failure it
// returns the degraded record, an Unknown comparison and the cause.
func (s *Service) verify(
	ctx context.Context, q domain.SearchQuery, r *domain.MatchRecord,
) (domain.MatchRecord, path.Comparison, error) {
	page, err := s.backend.TopK(ctx, q.Refine(r))
	if err != nil {
		return r.Degraded(), path.NewUnknown(r.AccessPath), err
	}
	if len(page.Results) == 0 {
		return r.Degraded(), path.NewUnknown(r.AccessPath), errNoResult
	}
	rec, err := normalize.Normalize(page.Results[0])
	if err != nil {
		return r.Degraded(), path.NewUnknown(r.AccessPath), err
	}
	return rec, path.Compare(r.AccessPath, rec.AccessPath), nil
}
