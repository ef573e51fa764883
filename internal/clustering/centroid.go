package clustering

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/justestif/melophile/internal/features"
)

// Centroid is an immutable point in feature space representing a cluster center.
// The zero value has no coordinates.
type Centroid struct {
	coords FeatureMap
}

// NewCentroid returns a centroid at coords. The map is copied.
func NewCentroid(coords FeatureMap) Centroid {
	return Centroid{coords: coords.Clone()}
}

// Coordinates returns a copy of the centroid's coordinates.
func (c Centroid) Coordinates() FeatureMap {
	return c.coords.Clone()
}

// Value returns the coordinate for f.
func (c Centroid) Value(f features.Feature) (float64, bool) {
	v, ok := c.coords[f]
	return v, ok
}

// Len returns the number of coordinates.
func (c Centroid) Len() int {
	return len(c.coords)
}

// Sum returns the sum of all coordinate values.
func (c Centroid) Sum() float64 {
	var sum float64
	for _, f := range c.coords.Keys() {
		sum += c.coords[f]
	}
	return sum
}

// Equal reports whether both centroids have the same key set and
// pairwise-equal values.
func (c Centroid) Equal(other Centroid) bool {
	if len(c.coords) != len(other.coords) {
		return false
	}
	for f, v := range c.coords {
		ov, ok := other.coords[f]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Compare orders centroids by descending coordinate sum.
// It only serves deterministic iteration and says nothing about equality.
func (c Centroid) Compare(other Centroid) int {
	return cmp.Compare(other.Sum(), c.Sum())
}

// String formats the coordinates in canonical feature order.
func (c Centroid) String() string {
	parts := make([]string, 0, len(c.coords))
	for _, f := range c.coords.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%.4f", f, c.coords[f]))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
