package clustering

import (
	"gonum.org/v1/gonum/floats"

	"github.com/justestif/melophile/internal/features"
)

// Distance computes the dissimilarity between two feature maps.
type Distance func(p, q FeatureMap) float64

// Euclidean returns sqrt(Σ (p[f]-q[f])²) over the features present in both
// maps. Features missing from either side are skipped.
func Euclidean(p, q FeatureMap) float64 {
	a, b := aligned(p, q)
	if len(a) == 0 {
		return 0
	}
	return floats.Distance(a, b, 2)
}

// aligned returns the values of the shared keys of p and q as two slices
// in canonical feature order.
func aligned(p, q FeatureMap) ([]float64, []float64) {
	a := make([]float64, 0, len(p))
	b := make([]float64, 0, len(p))
	for f := range features.Count {
		pv, ok := p[features.Feature(f)]
		if !ok {
			continue
		}
		qv, ok := q[features.Feature(f)]
		if !ok {
			continue
		}
		a = append(a, pv)
		b = append(b, qv)
	}
	return a, b
}
