package clustering

import (
	"errors"
	"fmt"

	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/logging"
)

// Default search range for K.
const (
	DefaultMinK = 2
	DefaultMaxK = 10
)

// Candidate is a fit recorded by the selector together with its score.
type Candidate struct {
	K     int
	Fit   *Fit
	Score float64
}

// Selection is the outcome of a K search.
type Selection struct {
	Best       Candidate
	Candidates []Candidate // recorded fits in ascending K order
	Skipped    []int       // K values whose fit was degenerate
}

// Selector runs K-Means for every K in [MinK, MaxK] and keeps the fit with
// the highest average silhouette.
type Selector struct {
	kmeans    *KMeans
	evaluator *Evaluator
	minK      int
	maxK      int
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithKRange sets the inclusive K search range.
func WithKRange(minK, maxK int) SelectorOption {
	return func(s *Selector) {
		s.minK = minK
		s.maxK = maxK
	}
}

// NewSelector creates a selector using km for fitting. Fits are scored
// with the same catalog and distance metric as km.
func NewSelector(km *KMeans, opts ...SelectorOption) *Selector {
	s := &Selector{
		kmeans:    km,
		evaluator: NewEvaluator(km.Catalog(), km.Distance()),
		minK:      DefaultMinK,
		maxK:      DefaultMaxK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KRange returns the inclusive K search range.
func (s *Selector) KRange() (int, int) {
	return s.minK, s.maxK
}

// Select fits every K in range in ascending order. A fit is recorded only
// if no earlier fit produced exactly the same score, so a larger K that
// collapses onto a smaller one never replaces it. The best candidate is the
// first one with the strictly highest score. Degenerate fits are skipped;
// if every K degenerates the result is ErrDegenerateClustering.
func (s *Selector) Select(songs []Song, chosen []features.Feature) (*Selection, error) {
	if s.minK < 1 || s.maxK < s.minK {
		return nil, fmt.Errorf("%w: range [%d,%d]", ErrInvalidK, s.minK, s.maxK)
	}

	sel := &Selection{}
	for k := s.minK; k <= s.maxK; k++ {
		fit, err := s.kmeans.Fit(songs, chosen, k)
		if err != nil {
			return nil, fmt.Errorf("fitting k=%d: %w", k, err)
		}

		score, err := s.evaluator.Score(fit)
		if errors.Is(err, ErrDegenerateClustering) {
			logging.Debug().Int("k", k).Int("clusters", fit.Size()).Msg("skipping degenerate fit")
			sel.Skipped = append(sel.Skipped, k)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scoring k=%d: %w", k, err)
		}

		logging.Debug().
			Int("k", k).
			Int("clusters", fit.Size()).
			Int("iterations", fit.Iterations).
			Float64("silhouette", score).
			Msg("scored fit")

		if sel.recorded(score) {
			continue
		}
		sel.Candidates = append(sel.Candidates, Candidate{K: k, Fit: fit, Score: score})
	}

	if len(sel.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no K in [%d,%d] produced 2 or more clusters", ErrDegenerateClustering, s.minK, s.maxK)
	}

	sel.Best = sel.Candidates[0]
	for _, c := range sel.Candidates[1:] {
		if c.Score > sel.Best.Score {
			sel.Best = c
		}
	}
	return sel, nil
}

func (sel *Selection) recorded(score float64) bool {
	for _, c := range sel.Candidates {
		if c.Score == score {
			return true
		}
	}
	return false
}
