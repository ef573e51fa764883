package spotify

import (
	"context"
	"errors"
	"fmt"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/melophile/internal/logging"
)

// Playlist is a Spotify playlist with the IDs of its tracks in order.
// Episodes and local files are left out.
type Playlist struct {
	ID       string
	Name     string
	TrackIDs []string
}

// Playlist retrieves a playlist and pages through all of its items.
func (c *Client) Playlist(ctx context.Context, id string) (*Playlist, error) {
	full, err := execute(c, "get_playlist", func() (*spotify.FullPlaylist, error) {
		return c.api.GetPlaylist(ctx, spotify.ID(id))
	})
	if err != nil {
		return nil, fmt.Errorf("fetching playlist: %w", err)
	}

	page, err := execute(c, "get_playlist_items", func() (*spotify.PlaylistItemPage, error) {
		return c.api.GetPlaylistItems(ctx, spotify.ID(id), spotify.Limit(maxTracksPerRequest))
	})
	if err != nil {
		return nil, fmt.Errorf("fetching playlist items: %w", err)
	}

	p := &Playlist{ID: full.ID.String(), Name: full.Name}
	for {
		for _, item := range page.Items {
			if item.Track.Track == nil || item.IsLocal || item.Track.Track.ID == "" {
				continue
			}
			p.TrackIDs = append(p.TrackIDs, item.Track.Track.ID.String())
		}

		logging.Debug().Str("playlist", id).Int("fetched", len(p.TrackIDs)).Msg("fetched playlist items")

		_, err = execute(c, "next_page", func() (struct{}, error) {
			return struct{}{}, c.api.NextPage(ctx, page)
		})
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fetching next page: %w", err)
		}
	}

	return p, nil
}

// CreatePlaylist creates a new playlist for the current user.
// Returns the playlist ID.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string, public bool) (string, error) {
	userID, err := c.UserID(ctx)
	if err != nil {
		return "", err
	}

	playlist, err := execute(c, "create_playlist", func() (*spotify.FullPlaylist, error) {
		return c.api.CreatePlaylistForUser(ctx, userID, name, description, public, false)
	})
	if err != nil {
		return "", fmt.Errorf("creating playlist: %w", err)
	}

	return playlist.ID.String(), nil
}

// AddTracksToPlaylist adds tracks to a playlist, handling batching for large sets.
// Spotify allows max 100 tracks per request.
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	// Convert to spotify.ID
	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	for _, r := range chunks(len(ids), maxTracksPerRequest) {
		batch := ids[r[0]:r[1]]

		_, err := execute(c, "add_tracks", func() (string, error) {
			return c.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), batch...)
		})
		if err != nil {
			return fmt.Errorf("adding tracks (batch %d-%d): %w", r[0]+1, r[1], err)
		}
	}

	return nil
}
