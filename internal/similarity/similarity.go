// Package similarity scores songs against each other, against cluster
// centroids and against raw feature vectors using cosine similarity.
package similarity

import (
	"cmp"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/justestif/melophile/internal/clustering"
	"github.com/justestif/melophile/internal/features"
)

// Incomparable is returned when two vectors cannot be compared: one side
// is missing or the lengths differ. It is never a selectable score.
const Incomparable = -1.0

// Selectable reports whether score may be ranked. Incomparable and NaN
// (a zero-magnitude vector) are not.
func Selectable(score float64) bool {
	return !math.IsNaN(score) && score != Incomparable
}

// Cosine returns dot(v1,v2) / (|v1| * |v2|). Mismatched or empty vectors
// are Incomparable; a zero-magnitude vector yields NaN.
func Cosine(v1, v2 []float64) float64 {
	if len(v1) == 0 || len(v1) != len(v2) {
		return Incomparable
	}
	return floats.Dot(v1, v2) / (floats.Norm(v1, 2) * floats.Norm(v2, 2))
}

// Scorer computes similarities over normalized feature values.
type Scorer struct {
	catalog *features.Catalog
}

// NewScorer creates a scorer that normalizes with cat.
func NewScorer(cat *features.Catalog) *Scorer {
	return &Scorer{catalog: cat}
}

// Catalog returns the catalog the scorer normalizes with.
func (s *Scorer) Catalog() *features.Catalog {
	return s.catalog
}

// Songs returns the cosine similarity of two songs over every cataloged
// feature. Two songs with the same non-empty ID score exactly 1.
func (s *Scorer) Songs(a, b clustering.Song) float64 {
	if a.SameID(b) {
		return 1
	}
	return Cosine(s.catalog.Vector(a.Features), s.catalog.Vector(b.Features))
}

// Centroid returns the cosine similarity between a cluster centroid and a
// song over the chosen features. Centroid coordinates are already
// normalized; song values are normalized unless flagged pre-normalized.
func (s *Scorer) Centroid(c clustering.Centroid, song clustering.Song, chosen []features.Feature) float64 {
	if !song.HasFeatures() || len(chosen) == 0 {
		return Incomparable
	}

	cv := make([]float64, len(chosen))
	sv := make([]float64, len(chosen))
	for i, f := range chosen {
		v, ok := c.Value(f)
		if !ok || !s.catalog.Has(f) {
			return Incomparable
		}
		cv[i] = v
		sv[i] = s.catalog.Normalize(f, song.Features.Get(f))
	}
	return Cosine(cv, sv)
}

// Ranked is a song with its similarity score.
type Ranked struct {
	Song  clustering.Song
	Score float64
}

// Rank scores every candidate and returns the selectable ones by
// descending score. Equal scores keep candidate order.
func Rank(candidates []clustering.Song, score func(clustering.Song) float64) []Ranked {
	ranked := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		if sc := score(c); Selectable(sc) {
			ranked = append(ranked, Ranked{Song: c, Score: sc})
		}
	}
	slices.SortStableFunc(ranked, func(a, b Ranked) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return ranked
}

// Top returns at most n leading entries of ranked.
func Top(ranked []Ranked, n int) []Ranked {
	return ranked[:min(max(n, 0), len(ranked))]
}
