package spotify

import (
	"context"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/logging"
)

// maxTracksPerLookup is the Spotify limit for GET /tracks.
const maxTracksPerLookup = 50

// Track is a Spotify track with its audio features.
type Track struct {
	ID          string
	Name        string
	Artist      string // first listed artist
	ExternalURL string
	Popularity  int
	// Raw feature values (nil if Spotify has no audio features for the track)
	Features *features.Values
}

// Track retrieves a single track with its audio features.
func (c *Client) Track(ctx context.Context, id string) (*Track, error) {
	tracks, err := c.Tracks(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("track %s: %w", id, ErrNotFound)
	}
	return &tracks[0], nil
}

// Tracks retrieves tracks in batches of 50 and fills in their audio
// features. Unknown IDs are skipped.
func (c *Client) Tracks(ctx context.Context, ids []string) ([]Track, error) {
	var tracks []Track

	for _, r := range chunks(len(ids), maxTracksPerLookup) {
		batch := make([]spotify.ID, 0, r[1]-r[0])
		for _, id := range ids[r[0]:r[1]] {
			batch = append(batch, spotify.ID(id))
		}

		full, err := execute(c, "get_tracks", func() ([]*spotify.FullTrack, error) {
			return c.api.GetTracks(ctx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("fetching tracks (batch %d-%d): %w", r[0]+1, r[1], err)
		}

		for _, ft := range full {
			if ft == nil {
				continue
			}
			tracks = append(tracks, convertTrack(ft))
		}
		logging.Debug().Int("fetched", len(tracks)).Int("total", len(ids)).Msg("fetched tracks")
	}

	if err := c.FetchAudioFeatures(ctx, tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// convertTrack converts a Spotify FullTrack to a Track without features.
func convertTrack(ft *spotify.FullTrack) Track {
	artist := ""
	if len(ft.Artists) > 0 {
		artist = ft.Artists[0].Name
	}

	return Track{
		ID:          ft.ID.String(),
		Name:        ft.Name,
		Artist:      strings.TrimSpace(artist),
		ExternalURL: ft.ExternalURLs["spotify"],
		Popularity:  int(ft.Popularity),
	}
}
