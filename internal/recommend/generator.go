package recommend

import (
	"fmt"

	"github.com/justestif/melophile/internal/clustering"
	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/logging"
	"github.com/justestif/melophile/internal/similarity"
)

// Custom targets are presented under this name and artist.
const (
	CustomTargetName   = "Custom Features"
	CustomTargetArtist = "User"
)

// Generation is the result of generating a playlist.
type Generation struct {
	Target clustering.Song
	Songs  []similarity.Ranked
}

// Generator ranks a song pool by similarity to one target.
type Generator struct {
	scorer *similarity.Scorer
}

// NewGenerator creates a generator.
func NewGenerator(scorer *similarity.Scorer) *Generator {
	return &Generator{scorer: scorer}
}

// Generate returns the size pool songs most similar to target, by
// descending cosine similarity over every cataloged feature. Equal scores
// keep pool order, so identical inputs give identical results. A target
// that is itself in the pool ranks first. When fewer than size songs can
// be ranked, all of them are returned.
func (g *Generator) Generate(target clustering.Song, pool []clustering.Song, size int) (*Generation, error) {
	if err := ValidateSize(size); err != nil {
		return nil, err
	}
	if !target.HasFeatures() {
		return nil, fmt.Errorf("target %q: %w", target.ID, clustering.ErrMissingFeatures)
	}

	ranked := similarity.Rank(candidates(pool, nil), func(s clustering.Song) float64 {
		return g.scorer.Songs(target, s)
	})
	if len(ranked) == 0 {
		return nil, ErrNoCandidates
	}
	if len(ranked) < size {
		logging.Debug().Int("requested", size).Int("available", len(ranked)).Msg("pool smaller than requested size")
	}

	return &Generation{Target: target, Songs: similarity.Top(ranked, size)}, nil
}

// GenerateFromValues generates a playlist around user-entered feature
// values. Given values must lie inside their declared ranges; features
// left out take their range minimum.
func (g *Generator) GenerateFromValues(named features.Named, pool []clustering.Song, size int) (*Generation, error) {
	target, err := CustomTarget(g.scorer.Catalog(), named)
	if err != nil {
		return nil, err
	}
	return g.Generate(target, pool, size)
}

// CustomTarget wraps user-entered values in a song with no ID. Features
// missing from named are filled with their range minimum.
func CustomTarget(cat *features.Catalog, named features.Named) (clustering.Song, error) {
	values := cat.Fill(named)
	if err := cat.ValidateValues(&values); err != nil {
		return clustering.Song{}, fmt.Errorf("%w: %w", ErrTargetOutOfRange, err)
	}
	return clustering.Song{
		Name:     CustomTargetName,
		Artist:   CustomTargetArtist,
		Features: &values,
	}, nil
}
