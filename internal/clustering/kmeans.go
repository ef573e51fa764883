package clustering

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/logging"
)

// DefaultMaxIterations is the default hard cap on K-Means iterations.
const DefaultMaxIterations = 100

// RandomSource supplies uniform values in [0,1) for centroid initialization.
// *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	Float64() float64
}

// NewRandomSource returns a PCG-backed source seeded with seed.
func NewRandomSource(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Cluster is one non-empty cluster of a fit.
type Cluster struct {
	Centroid Centroid
	Songs    []Song
}

// Fit is the result of one K-Means run for a requested K.
type Fit struct {
	K          int                // requested cluster count
	Features   []features.Feature // features the songs were clustered on
	Clusters   []Cluster          // non-empty clusters in centroid order; len(Clusters) <= K
	Iterations int
	Converged  bool // false when the iteration cap was reached
}

// Size returns the number of non-empty clusters.
func (f *Fit) Size() int {
	return len(f.Clusters)
}

// SongCount returns the number of clustered songs.
func (f *Fit) SongCount() int {
	n := 0
	for _, c := range f.Clusters {
		n += len(c.Songs)
	}
	return n
}

// KMeans runs the assign/reposition loop for a fixed K.
type KMeans struct {
	catalog       *features.Catalog
	distance      Distance
	random        RandomSource
	maxIterations int
}

// Option configures a KMeans engine.
type Option func(*KMeans)

// WithRandomSource sets the source used to place initial centroids.
func WithRandomSource(r RandomSource) Option {
	return func(k *KMeans) {
		k.random = r
	}
}

// WithDistance sets the distance metric. Defaults to Euclidean.
func WithDistance(d Distance) Option {
	return func(k *KMeans) {
		k.distance = d
	}
}

// WithMaxIterations sets the iteration cap. Values below 1 are ignored.
func WithMaxIterations(n int) Option {
	return func(k *KMeans) {
		if n > 0 {
			k.maxIterations = n
		}
	}
}

// NewKMeans creates an engine over the given catalog.
// Without WithRandomSource the engine seeds its own source from the clock.
func NewKMeans(cat *features.Catalog, opts ...Option) *KMeans {
	k := &KMeans{
		catalog:       cat,
		distance:      Euclidean,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.random == nil {
		k.random = NewRandomSource(uint64(time.Now().UnixNano()))
	}
	return k
}

// Catalog returns the feature catalog the engine normalizes with.
func (km *KMeans) Catalog() *features.Catalog {
	return km.catalog
}

// Distance returns the engine's distance metric.
func (km *KMeans) Distance() Distance {
	return km.distance
}

// Fit clusters songs into at most k clusters over the chosen features.
//
// Centroids start at uniform random positions inside the observed range of
// each chosen feature. Each iteration assigns every song to its closest
// centroid (ties go to the earlier centroid), compares the resulting
// snapshot with the previous one and stops when they are equal. Otherwise
// non-empty clusters move to the mean of their songs; empty ones stay put.
// The last snapshot is returned whether or not the loop converged.
func (km *KMeans) Fit(songs []Song, chosen []features.Feature, k int) (*Fit, error) {
	if len(songs) == 0 {
		return nil, ErrNoSongs
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if err := km.catalog.ValidateSelection(chosen); err != nil {
		return nil, err
	}
	for _, s := range songs {
		if !s.HasFeatures() {
			return nil, fmt.Errorf("%w: %s", ErrMissingFeatures, s.ID)
		}
	}

	chosen = append([]features.Feature(nil), chosen...)
	points := make([]FeatureMap, len(songs))
	for i, s := range songs {
		points[i] = Point(km.catalog, s, chosen)
	}

	centroids := km.initialCentroids(points, chosen, k)

	var prev *iteration
	for iter := 1; iter <= km.maxIterations; iter++ {
		cur := &iteration{centroids: centroids, members: km.assign(points, centroids)}

		if prev != nil && prev.equal(cur) {
			logging.Debug().Int("k", k).Int("iterations", iter).Int("clusters", cur.size()).Msg("k-means converged")
			return &Fit{K: k, Features: chosen, Clusters: cur.clusters(songs), Iterations: iter, Converged: true}, nil
		}
		prev = cur

		centroids = reposition(centroids, cur.members, points, chosen)
	}

	logging.Debug().Int("k", k).Int("iterations", km.maxIterations).Msg("k-means reached iteration limit")
	return &Fit{K: k, Features: chosen, Clusters: prev.clusters(songs), Iterations: km.maxIterations}, nil
}

// initialCentroids places k centroids uniformly inside the observed
// [min,max] of every chosen feature.
func (km *KMeans) initialCentroids(points []FeatureMap, chosen []features.Feature, k int) []Centroid {
	lo := make([]float64, len(chosen))
	hi := make([]float64, len(chosen))
	for j, f := range chosen {
		lo[j], hi[j] = points[0][f], points[0][f]
		for _, p := range points[1:] {
			lo[j] = min(lo[j], p[f])
			hi[j] = max(hi[j], p[f])
		}
	}

	centroids := make([]Centroid, k)
	for i := range centroids {
		coords := make(FeatureMap, len(chosen))
		for j, f := range chosen {
			coords[f] = km.random.Float64()*(hi[j]-lo[j]) + lo[j]
		}
		centroids[i] = Centroid{coords: coords}
	}
	return centroids
}

// assign returns, for each centroid, the indices of the points closest to it.
func (km *KMeans) assign(points []FeatureMap, centroids []Centroid) [][]int {
	members := make([][]int, len(centroids))
	for i, p := range points {
		closest := 0
		best := km.distance(p, centroids[0].coords)
		for c := 1; c < len(centroids); c++ {
			if d := km.distance(p, centroids[c].coords); d < best {
				best = d
				closest = c
			}
		}
		members[closest] = append(members[closest], i)
	}
	return members
}

// iteration is the immutable assignment produced by one pass: the centroids
// used and, per centroid, the indices of the songs assigned to it.
type iteration struct {
	centroids []Centroid
	members   [][]int
}

func (it *iteration) size() int {
	n := 0
	for _, m := range it.members {
		if len(m) > 0 {
			n++
		}
	}
	return n
}

// nonEmpty returns the positions of centroids with assigned songs.
func (it *iteration) nonEmpty() []int {
	out := make([]int, 0, len(it.members))
	for c, m := range it.members {
		if len(m) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// equal compares the non-empty clusters of both iterations pairwise in
// order: same centroid values and the same songs in the same order.
func (it *iteration) equal(other *iteration) bool {
	a, b := it.nonEmpty(), other.nonEmpty()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !it.centroids[a[i]].Equal(other.centroids[b[i]]) {
			return false
		}
		if !slices.Equal(it.members[a[i]], other.members[b[i]]) {
			return false
		}
	}
	return true
}

// clusters materializes the non-empty clusters in centroid order.
func (it *iteration) clusters(songs []Song) []Cluster {
	var out []Cluster
	for _, c := range it.nonEmpty() {
		cs := make([]Song, len(it.members[c]))
		for j, i := range it.members[c] {
			cs[j] = songs[i]
		}
		out = append(out, Cluster{Centroid: it.centroids[c], Songs: cs})
	}
	return out
}

// reposition moves every non-empty cluster's centroid to the mean of its
// points. Empty clusters keep their previous centroid.
func reposition(centroids []Centroid, members [][]int, points []FeatureMap, chosen []features.Feature) []Centroid {
	next := make([]Centroid, len(centroids))
	sum := make([]float64, len(chosen))
	row := make([]float64, len(chosen))
	for c, idx := range members {
		if len(idx) == 0 {
			next[c] = centroids[c]
			continue
		}
		clear(sum)
		for _, i := range idx {
			for j, f := range chosen {
				row[j] = points[i][f]
			}
			floats.Add(sum, row)
		}
		floats.Scale(1/float64(len(idx)), sum)

		coords := make(FeatureMap, len(chosen))
		for j, f := range chosen {
			coords[f] = sum[j]
		}
		next[c] = Centroid{coords: coords}
	}
	return next
}
