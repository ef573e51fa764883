// Package recommend builds playlists from the clustering and similarity
// engines: enhancing an existing playlist cluster by cluster, and
// generating a playlist around a single target.
//
// Both operations are pure and synchronous. They either return a complete
// result or an error, never a partial playlist.
package recommend

import (
	"errors"
	"fmt"

	"github.com/justestif/melophile/internal/clustering"
	"github.com/justestif/melophile/internal/features"
)

// Common errors.
var (
	// ErrInvalidFeatureSelection is returned when the two enhancement
	// features are equal or not cataloged.
	ErrInvalidFeatureSelection = errors.New("invalid feature selection")

	// ErrInvalidSize is returned for a generated playlist size outside
	// [MinPlaylistSize, MaxPlaylistSize].
	ErrInvalidSize = errors.New("invalid playlist size")

	// ErrNoCandidates is returned when no candidate song can be ranked.
	ErrNoCandidates = errors.New("no candidate songs")

	// ErrTargetOutOfRange is returned when a custom target value lies
	// outside its feature's declared range.
	ErrTargetOutOfRange = errors.New("target value out of range")
)

// Generated playlist size bounds.
const (
	MinPlaylistSize = 20
	MaxPlaylistSize = 100
)

// ValidateSize checks a requested playlist size.
func ValidateSize(size int) error {
	if size < MinPlaylistSize || size > MaxPlaylistSize {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidSize, size, MinPlaylistSize, MaxPlaylistSize)
	}
	return nil
}

// candidates returns the songs of pool that carry features and are not in
// exclude, deduplicated by ID in pool order. Songs without an ID are never
// deduplicated.
func candidates(pool, exclude []clustering.Song) []clustering.Song {
	seen := make(map[string]bool, len(exclude)+len(pool))
	for _, s := range exclude {
		if s.ID != "" {
			seen[s.ID] = true
		}
	}

	var out []clustering.Song
	for _, s := range pool {
		if !s.HasFeatures() || seen[s.ID] {
			continue
		}
		if s.ID != "" {
			seen[s.ID] = true
		}
		out = append(out, s)
	}
	return out
}

// selection returns the two enhancement features after validating them
// against cat.
func selection(cat *features.Catalog, a, b features.Feature) ([]features.Feature, error) {
	chosen := []features.Feature{a, b}
	if err := cat.ValidateSelection(chosen); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFeatureSelection, err)
	}
	return chosen, nil
}
