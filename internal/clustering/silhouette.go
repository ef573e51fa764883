package clustering

import (
	"fmt"
	"math"

	"github.com/justestif/melophile/internal/features"
)

// Evaluator scores completed fits with the silhouette method, measuring
// each song against its own centroid and the closest foreign centroid.
type Evaluator struct {
	catalog  *features.Catalog
	distance Distance
}

// NewEvaluator creates an evaluator. A nil distance means Euclidean.
func NewEvaluator(cat *features.Catalog, distance Distance) *Evaluator {
	if distance == nil {
		distance = Euclidean
	}
	return &Evaluator{catalog: cat, distance: distance}
}

// Score returns the average silhouette of fit.
//
// For every song, a is the distance to its own centroid and b the distance
// to the closest other centroid; the song scores (b-a)/max(a,b), and 0 when
// a and b are both zero. Fits with fewer than two non-empty clusters return
// ErrDegenerateClustering.
func (e *Evaluator) Score(fit *Fit) (float64, error) {
	if fit == nil || fit.Size() < 2 {
		size := 0
		if fit != nil {
			size = fit.Size()
		}
		return 0, fmt.Errorf("%w: got %d", ErrDegenerateClustering, size)
	}

	var sum float64
	var n int
	for own, cluster := range fit.Clusters {
		for _, song := range cluster.Songs {
			p := Point(e.catalog, song, fit.Features)
			a := e.distance(cluster.Centroid.coords, p)
			b := e.nearestForeign(fit, own, p)
			sum += Coefficient(a, b)
			n++
		}
	}
	return sum / float64(n), nil
}

// nearestForeign returns the distance from p to the closest centroid other
// than the one at index own.
func (e *Evaluator) nearestForeign(fit *Fit, own int, p FeatureMap) float64 {
	best := math.Inf(1)
	for i, c := range fit.Clusters {
		if i == own {
			continue
		}
		if d := e.distance(c.Centroid.coords, p); d < best {
			best = d
		}
	}
	return best
}

// Coefficient returns (b-a)/max(a,b), defined as 0 when a == b == 0.
func Coefficient(a, b float64) float64 {
	m := math.Max(a, b)
	if m == 0 {
		return 0
	}
	return (b - a) / m
}
