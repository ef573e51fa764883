// Package importer brings tracks and playlists from Spotify into storage.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/melophile/internal/db"
	"github.com/justestif/melophile/internal/logging"
	"github.com/justestif/melophile/internal/spotify"
)

// Catalog is the subset of the Spotify client used for imports.
type Catalog interface {
	Track(ctx context.Context, id string) (*spotify.Track, error)
	Tracks(ctx context.Context, ids []string) ([]spotify.Track, error)
	Playlist(ctx context.Context, id string) (*spotify.Playlist, error)
}

// SongStore persists songs.
type SongStore interface {
	UpsertBatch(ctx context.Context, songs []db.Song) error
}

// PlaylistStore persists imported playlists.
type PlaylistStore interface {
	GetImported(ctx context.Context, spotifyID string) (*db.Playlist, error)
	Create(ctx context.Context, playlist *db.Playlist, entries []db.PlaylistEntry) error
	ReplaceSongs(ctx context.Context, id uuid.UUID, entries []db.PlaylistEntry) error
}

// Service imports Spotify content into storage.
type Service struct {
	catalog   Catalog
	songs     SongStore
	playlists PlaylistStore
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source used to stamp results.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a new import service.
func New(catalog Catalog, songs SongStore, playlists PlaylistStore, opts ...Option) *Service {
	s := &Service{
		catalog:   catalog,
		songs:     songs,
		playlists: playlists,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result describes a finished import.
type Result struct {
	Kind            string       // spotify.TypeTrack or spotify.TypePlaylist
	Songs           []db.Song    // stored songs, in playlist order
	MissingFeatures int          // songs stored without a feature vector
	Playlist        *db.Playlist // nil for track imports
	Updated         bool         // an earlier import of the playlist was refreshed
	ImportedAt      time.Time
}

// Import resolves a Spotify URL or URI and imports what it points to.
func (s *Service) Import(ctx context.Context, raw string) (*Result, error) {
	kind, id, err := spotify.ExtractID(raw)
	if err != nil {
		return nil, err
	}

	switch kind {
	case spotify.TypeTrack:
		return s.ImportTrack(ctx, id)
	case spotify.TypePlaylist:
		return s.ImportPlaylist(ctx, id)
	default:
		return nil, fmt.Errorf("%w: cannot import %s", spotify.ErrInvalidURL, kind)
	}
}

// ImportTrack fetches a single track with its audio features and stores it.
func (s *Service) ImportTrack(ctx context.Context, id string) (*Result, error) {
	track, err := s.catalog.Track(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching track: %w", err)
	}

	songs := []db.Song{toSong(*track)}
	if err := s.songs.UpsertBatch(ctx, songs); err != nil {
		return nil, fmt.Errorf("storing track: %w", err)
	}

	result := &Result{
		Kind:            spotify.TypeTrack,
		Songs:           songs,
		MissingFeatures: countMissing(songs),
		ImportedAt:      s.now(),
	}
	logging.Info().Str("track", id).Str("name", track.Name).Bool("features", track.Features != nil).Msg("imported track")
	return result, nil
}

// ImportPlaylist fetches a playlist with all of its tracks, stores the songs
// and records the playlist. Importing the same playlist again replaces its
// songs.
func (s *Service) ImportPlaylist(ctx context.Context, id string) (*Result, error) {
	remote, err := s.catalog.Playlist(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching playlist: %w", err)
	}

	tracks, err := s.catalog.Tracks(ctx, remote.TrackIDs)
	if err != nil {
		return nil, fmt.Errorf("fetching playlist tracks: %w", err)
	}

	songs := orderedSongs(remote.TrackIDs, tracks)
	if err := s.songs.UpsertBatch(ctx, songs); err != nil {
		return nil, fmt.Errorf("storing songs: %w", err)
	}

	entries := make([]db.PlaylistEntry, len(songs))
	for i, song := range songs {
		entries[i] = db.PlaylistEntry{SongID: song.ID}
	}

	playlist, updated, err := s.storePlaylist(ctx, remote, entries)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Kind:            spotify.TypePlaylist,
		Songs:           songs,
		MissingFeatures: countMissing(songs),
		Playlist:        playlist,
		Updated:         updated,
		ImportedAt:      s.now(),
	}

	logging.Info().
		Str("playlist", id).
		Str("name", remote.Name).
		Int("songs", len(songs)).
		Int("missing_features", result.MissingFeatures).
		Bool("updated", updated).
		Msg("imported playlist")

	return result, nil
}

func (s *Service) storePlaylist(ctx context.Context, remote *spotify.Playlist, entries []db.PlaylistEntry) (*db.Playlist, bool, error) {
	existing, err := s.playlists.GetImported(ctx, remote.ID)
	switch {
	case err == nil:
		if err := s.playlists.ReplaceSongs(ctx, existing.ID, entries); err != nil {
			return nil, false, fmt.Errorf("updating playlist: %w", err)
		}
		existing.SongCount = len(entries)
		return existing, true, nil
	case !errors.Is(err, db.ErrNotFound):
		return nil, false, fmt.Errorf("looking up playlist: %w", err)
	}

	spotifyID := remote.ID
	playlist := &db.Playlist{
		Name:      remote.Name,
		Source:    db.SourceImported,
		SpotifyID: &spotifyID,
	}
	if err := s.playlists.Create(ctx, playlist, entries); err != nil {
		return nil, false, fmt.Errorf("creating playlist: %w", err)
	}
	return playlist, false, nil
}

// orderedSongs converts fetched tracks to songs following the playlist
// order. Repeated tracks are kept once and unknown IDs are dropped.
func orderedSongs(order []string, tracks []spotify.Track) []db.Song {
	byID := make(map[string]spotify.Track, len(tracks))
	for _, t := range tracks {
		byID[t.ID] = t
	}

	songs := make([]db.Song, 0, len(tracks))
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		t, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		songs = append(songs, toSong(t))
	}
	return songs
}

func toSong(t spotify.Track) db.Song {
	song := db.Song{
		ID:       t.ID,
		Name:     t.Name,
		Artist:   t.Artist,
		Features: t.Features,
	}
	if t.ExternalURL != "" {
		url := t.ExternalURL
		song.ExternalURL = &url
	}
	return song
}

func countMissing(songs []db.Song) int {
	n := 0
	for _, s := range songs {
		if s.Features == nil {
			n++
		}
	}
	return n
}
