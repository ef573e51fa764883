package spotify

import (
	"context"
	"errors"
	"fmt"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/logging"
)

// maxTracksPerRequest is the Spotify limit for audio features and
// playlist additions.
const maxTracksPerRequest = 100

// Common errors.
var (
	ErrNotFound        = errors.New("not found on Spotify")
	ErrNoAudioFeatures = errors.New("no audio features")
)

// FetchAudioFeatures retrieves audio features for the given tracks.
// Updates tracks in-place with their audio features.
// Batches requests to max 100 tracks per request per Spotify API limits.
// Tracks without available audio features keep nil Features.
func (c *Client) FetchAudioFeatures(ctx context.Context, tracks []Track) error {
	if len(tracks) == 0 {
		return nil
	}

	// Build ID slice and index map for fast lookup
	ids := make([]spotify.ID, len(tracks))
	indexByID := make(map[string]int, len(tracks))
	for i, t := range tracks {
		ids[i] = spotify.ID(t.ID)
		indexByID[t.ID] = i
	}

	missing := 0
	for _, r := range chunks(len(ids), maxTracksPerRequest) {
		batch := ids[r[0]:r[1]]

		af, err := execute(c, "get_audio_features", func() ([]*spotify.AudioFeatures, error) {
			return c.api.GetAudioFeatures(ctx, batch...)
		})
		if err != nil {
			return fmt.Errorf("fetching audio features (batch %d-%d): %w", r[0]+1, r[1], err)
		}

		// Map features back to tracks
		for _, f := range af {
			if f == nil {
				continue // Track has no audio features
			}
			idx, ok := indexByID[f.ID.String()]
			if !ok {
				continue
			}
			tracks[idx].Features = audioFeatureValues(f, tracks[idx].Popularity)
		}
	}

	for _, t := range tracks {
		if t.Features == nil {
			missing++
		}
	}
	if missing > 0 {
		logging.Info().Int("missing", missing).Int("total", len(tracks)).Msg("some tracks have no audio features")
	}
	return nil
}

// audioFeatureValues converts Spotify audio features plus the track's
// popularity to raw feature values.
func audioFeatureValues(f *spotify.AudioFeatures, popularity int) *features.Values {
	var v features.Values
	v.Set(features.Popularity, float64(popularity))
	v.Set(features.Acousticness, float64(f.Acousticness))
	v.Set(features.Danceability, float64(f.Danceability))
	v.Set(features.Energy, float64(f.Energy))
	v.Set(features.Instrumentalness, float64(f.Instrumentalness))
	v.Set(features.Key, float64(f.Key))
	v.Set(features.Liveness, float64(f.Liveness))
	v.Set(features.Loudness, float64(f.Loudness))
	v.Set(features.Mode, float64(f.Mode))
	v.Set(features.Speechiness, float64(f.Speechiness))
	v.Set(features.Tempo, float64(f.Tempo))
	v.Set(features.TimeSignature, float64(f.TimeSignature))
	v.Set(features.Valence, float64(f.Valence))
	return &v
}
