// Package clustering implements K-Means clustering of songs over a chosen
// subset of audio features, silhouette scoring and automatic selection of K.
package clustering

import (
	"errors"
	"slices"

	"github.com/justestif/melophile/internal/features"
)

// Common errors.
var (
	// ErrNoSongs is returned when clustering is asked to run on an empty song set.
	ErrNoSongs = errors.New("no songs to cluster")

	// ErrInvalidK is returned for a requested cluster count below 1.
	ErrInvalidK = errors.New("cluster count must be at least 1")

	// ErrMissingFeatures is returned when a song has no feature values.
	ErrMissingFeatures = errors.New("song has no audio features")

	// ErrDegenerateClustering is returned when a fit has fewer than two
	// non-empty clusters and therefore no foreign centroid to score against.
	ErrDegenerateClustering = errors.New("degenerate clustering: fewer than 2 non-empty clusters")
)

// Song represents a track with its metadata and raw audio feature values.
type Song struct {
	ID          string // Spotify track ID
	Name        string
	Artist      string
	ExternalURL string
	// Raw feature values (nil if not fetched or unavailable)
	Features *features.Values
}

// HasFeatures reports whether the song carries feature values.
func (s Song) HasFeatures() bool {
	return s.Features != nil
}

// SameID reports whether both songs carry the same non-empty ID.
func (s Song) SameID(other Song) bool {
	return s.ID != "" && s.ID == other.ID
}

// FeatureMap maps features to values. Depending on context the values are
// raw or normalized; centroids always hold normalized coordinates.
type FeatureMap map[features.Feature]float64

// Clone returns a copy of m.
func (m FeatureMap) Clone() FeatureMap {
	out := make(FeatureMap, len(m))
	for f, v := range m {
		out[f] = v
	}
	return out
}

// Keys returns the features of m in canonical order.
func (m FeatureMap) Keys() []features.Feature {
	keys := make([]features.Feature, 0, len(m))
	for f := range m {
		keys = append(keys, f)
	}
	slices.Sort(keys)
	return keys
}

// Point returns the song's normalized values for the chosen features.
// The song must carry features and every chosen feature must be cataloged.
func Point(cat *features.Catalog, s Song, chosen []features.Feature) FeatureMap {
	m := make(FeatureMap, len(chosen))
	for _, f := range chosen {
		m[f] = cat.Normalize(f, s.Features.Get(f))
	}
	return m
}

// WithFeatures splits songs into those carrying feature values and the rest.
func WithFeatures(songs []Song) (usable, missing []Song) {
	for _, s := range songs {
		if s.HasFeatures() {
			usable = append(usable, s)
		} else {
			missing = append(missing, s)
		}
	}
	return usable, missing
}
