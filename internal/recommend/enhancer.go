package recommend

import (
	"fmt"

	"github.com/justestif/melophile/internal/clustering"
	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/logging"
	"github.com/justestif/melophile/internal/similarity"
)

// DefaultRatio is the default number of original songs per new song.
const DefaultRatio = 3

// ClusterPicks holds the songs chosen for one cluster of the original playlist.
type ClusterPicks struct {
	Cluster clustering.Cluster
	Quota   int
	Picks   []similarity.Ranked
}

// Enhancement is the result of enhancing a playlist.
type Enhancement struct {
	Features  []features.Feature
	Selection *clustering.Selection
	Clusters  []ClusterPicks
	// Songs holds the new songs in cluster order then rank, each once.
	Songs []similarity.Ranked
	// Excluded counts original songs left out of clustering for lack of features.
	Excluded int
}

// Enhancer clusters a playlist on two features and picks, for each
// cluster, the candidate songs most similar to its centroid.
type Enhancer struct {
	selector *clustering.Selector
	scorer   *similarity.Scorer
	ratio    int
}

// EnhancerOption configures an Enhancer.
type EnhancerOption func(*Enhancer)

// WithRatio sets the old-to-new song ratio. Values below 1 are ignored.
func WithRatio(ratio int) EnhancerOption {
	return func(e *Enhancer) {
		if ratio >= 1 {
			e.ratio = ratio
		}
	}
}

// NewEnhancer creates an enhancer.
func NewEnhancer(selector *clustering.Selector, scorer *similarity.Scorer, opts ...EnhancerOption) *Enhancer {
	e := &Enhancer{
		selector: selector,
		scorer:   scorer,
		ratio:    DefaultRatio,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ratio returns the configured old-to-new song ratio.
func (e *Enhancer) Ratio() int {
	return e.ratio
}

// Quota returns how many new songs a cluster of size songs receives.
func (e *Enhancer) Quota(size int) int {
	return size/e.ratio + 1
}

// Enhance clusters the original songs on features a and b, choosing K by
// silhouette. Each cluster then ranks every pool song absent from the
// original playlist by cosine similarity to its centroid and takes the top
// Quota(len(cluster)). A song picked by several clusters appears once.
func (e *Enhancer) Enhance(original, pool []clustering.Song, a, b features.Feature) (*Enhancement, error) {
	chosen, err := selection(e.scorer.Catalog(), a, b)
	if err != nil {
		return nil, err
	}

	usable, missing := clustering.WithFeatures(original)
	if len(usable) == 0 {
		return nil, clustering.ErrNoSongs
	}

	cands := candidates(pool, original)
	if len(cands) == 0 {
		return nil, ErrNoCandidates
	}

	sel, err := e.selector.Select(usable, chosen)
	if err != nil {
		return nil, fmt.Errorf("selecting clusters: %w", err)
	}

	result := &Enhancement{
		Features:  chosen,
		Selection: sel,
		Excluded:  len(missing),
	}
	picked := make(map[string]bool)

	for _, cluster := range sel.Best.Fit.Clusters {
		quota := e.Quota(len(cluster.Songs))
		ranked := similarity.Rank(cands, func(s clustering.Song) float64 {
			return e.scorer.Centroid(cluster.Centroid, s, chosen)
		})
		picks := similarity.Top(ranked, quota)

		result.Clusters = append(result.Clusters, ClusterPicks{
			Cluster: cluster,
			Quota:   quota,
			Picks:   picks,
		})
		for _, p := range picks {
			if p.Song.ID != "" {
				if picked[p.Song.ID] {
					continue
				}
				picked[p.Song.ID] = true
			}
			result.Songs = append(result.Songs, p)
		}
	}

	if len(result.Songs) == 0 {
		return nil, ErrNoCandidates
	}

	logging.Debug().
		Int("k", sel.Best.K).
		Int("clusters", sel.Best.Fit.Size()).
		Float64("silhouette", sel.Best.Score).
		Int("songs", len(result.Songs)).
		Msg("playlist enhanced")

	return result, nil
}
