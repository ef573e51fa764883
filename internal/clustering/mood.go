package clustering

import (
	"cmp"
	"slices"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/logging"
)

// MoodConfig holds mood-detection parameters.
type MoodConfig struct {
	NumClusters    int // Number of clusters to create (default: 3)
	MinClusterSize int // Minimum songs per mood (smaller clusters become outliers)
}

// DefaultMoodConfig returns the recommended default configuration.
func DefaultMoodConfig() MoodConfig {
	return MoodConfig{
		NumClusters:    3,
		MinClusterSize: 3,
	}
}

// Mood is a group of songs with a similar vibe.
type Mood struct {
	Name     string   // Descriptive name: "Upbeat Party (Acoustic)"
	Songs    []Song   // Songs in this mood
	Centroid Centroid // Average mood feature values
}

// moodFeatures are the already-normalized features moods are detected on.
var moodFeatures = []features.Feature{
	features.Energy,
	features.Valence,
	features.Danceability,
	features.Acousticness,
}

// songObservation wraps a Song to implement clusters.Observation.
type songObservation struct {
	song   *Song
	coords clusters.Coordinates
}

func (o songObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o songObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// DetectMoods groups songs by energy, valence, danceability and acousticness.
// Returns the moods, largest first, and the outlier songs that don't fit any.
// Songs missing audio features are treated as outliers.
func DetectMoods(songs []Song, cfg MoodConfig) ([]Mood, []Song) {
	if len(songs) == 0 {
		return nil, nil
	}
	if cfg.NumClusters <= 0 {
		cfg.NumClusters = DefaultMoodConfig().NumClusters
	}

	valid, outliers := WithFeatures(songs)
	if len(valid) < cfg.NumClusters {
		return nil, append(valid, outliers...)
	}

	var obs clusters.Observations
	for i := range valid {
		obs = append(obs, songObservation{song: &valid[i], coords: moodCoordinates(valid[i])})
	}

	result, err := kmeans.New().Partition(obs, cfg.NumClusters)
	if err != nil {
		logging.Warn().Err(err).Msg("mood clustering failed")
		return nil, append(valid, outliers...)
	}

	var moods []Mood
	for _, cluster := range result {
		var members []Song
		for _, o := range cluster.Observations {
			if so, ok := o.(songObservation); ok {
				members = append(members, *so.song)
			}
		}

		if len(members) < cfg.MinClusterSize {
			outliers = append(outliers, members...)
			continue
		}

		coords := make(FeatureMap, len(moodFeatures))
		for i, f := range moodFeatures {
			coords[f] = cluster.Center[i]
		}
		centroid := NewCentroid(coords)
		name, _ := MoodName(centroid)

		moods = append(moods, Mood{
			Name:     name,
			Songs:    members,
			Centroid: centroid,
		})
	}

	slices.SortStableFunc(moods, func(a, b Mood) int {
		return cmp.Compare(len(b.Songs), len(a.Songs))
	})

	return moods, outliers
}

// moodCoordinates extracts the mood features of a song as a coordinate vector.
func moodCoordinates(s Song) clusters.Coordinates {
	coords := make(clusters.Coordinates, len(moodFeatures))
	for i, f := range moodFeatures {
		coords[i] = s.Features.Get(f)
	}
	return coords
}
