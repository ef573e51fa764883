package importer

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/melophile/internal/db"
	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/spotify"
)

type fakeCatalog struct {
	tracks    map[string]spotify.Track
	playlists map[string]*spotify.Playlist
	err       error
}

func (f *fakeCatalog) Track(_ context.Context, id string) (*spotify.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tracks[id]
	if !ok {
		return nil, spotify.ErrNotFound
	}
	return &t, nil
}

func (f *fakeCatalog) Tracks(_ context.Context, ids []string) ([]spotify.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []spotify.Track
	for _, id := range ids {
		if t, ok := f.tracks[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeCatalog) Playlist(_ context.Context, id string) (*spotify.Playlist, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.playlists[id]
	if !ok {
		return nil, spotify.ErrNotFound
	}
	return p, nil
}

type fakeSongs struct {
	stored map[string]db.Song
}

func (f *fakeSongs) UpsertBatch(_ context.Context, songs []db.Song) error {
	if f.stored == nil {
		f.stored = make(map[string]db.Song)
	}
	for _, s := range songs {
		f.stored[s.ID] = s
	}
	return nil
}

type fakePlaylists struct {
	byID    map[uuid.UUID]*db.Playlist
	entries map[uuid.UUID][]db.PlaylistEntry
	created int
}

func newFakePlaylists() *fakePlaylists {
	return &fakePlaylists{
		byID:    make(map[uuid.UUID]*db.Playlist),
		entries: make(map[uuid.UUID][]db.PlaylistEntry),
	}
}

func (f *fakePlaylists) GetImported(_ context.Context, spotifyID string) (*db.Playlist, error) {
	for _, p := range f.byID {
		if p.Source == db.SourceImported && p.SpotifyID != nil && *p.SpotifyID == spotifyID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakePlaylists) Create(_ context.Context, p *db.Playlist, entries []db.PlaylistEntry) error {
	p.ID = uuid.New()
	p.SongCount = len(entries)
	cp := *p
	f.byID[p.ID] = &cp
	f.entries[p.ID] = entries
	f.created++
	return nil
}

func (f *fakePlaylists) ReplaceSongs(_ context.Context, id uuid.UUID, entries []db.PlaylistEntry) error {
	if _, ok := f.byID[id]; !ok {
		return db.ErrNotFound
	}
	f.entries[id] = entries
	return nil
}

func track(id string, withFeatures bool) spotify.Track {
	t := spotify.Track{
		ID:          id,
		Name:        "Song " + id,
		Artist:      "Artist",
		ExternalURL: "https://open.spotify.com/track/" + id,
	}
	if withFeatures {
		var v features.Values
		v.Set(features.Energy, 0.5)
		t.Features = &v
	}
	return t
}

func newService(catalog Catalog) (*Service, *fakeSongs, *fakePlaylists) {
	songs := &fakeSongs{}
	playlists := newFakePlaylists()
	clock := func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return New(catalog, songs, playlists, WithClock(clock)), songs, playlists
}

func entryIDs(entries []db.PlaylistEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.SongID
	}
	return ids
}

func TestImportTrack(t *testing.T) {
	catalog := &fakeCatalog{tracks: map[string]spotify.Track{
		"4uLU6hMCjMI75M1A2tKUQC": track("4uLU6hMCjMI75M1A2tKUQC", true),
	}}
	svc, songs, _ := newService(catalog)

	res, err := svc.Import(context.Background(), "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if res.Kind != spotify.TypeTrack {
		t.Errorf("Kind = %q, want %q", res.Kind, spotify.TypeTrack)
	}
	if res.Playlist != nil {
		t.Error("Playlist should be nil for a track import")
	}
	if res.MissingFeatures != 0 {
		t.Errorf("MissingFeatures = %d, want 0", res.MissingFeatures)
	}
	if !res.ImportedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("ImportedAt = %v", res.ImportedAt)
	}

	stored, ok := songs.stored["4uLU6hMCjMI75M1A2tKUQC"]
	if !ok {
		t.Fatal("song not stored")
	}
	if stored.ExternalURL == nil || *stored.ExternalURL != "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC" {
		t.Errorf("ExternalURL = %v", stored.ExternalURL)
	}
	if stored.Features == nil {
		t.Error("Features = nil, want values")
	}
}

func TestImportPlaylist(t *testing.T) {
	catalog := &fakeCatalog{
		tracks: map[string]spotify.Track{
			"a": track("a", true),
			"b": track("b", false),
			"c": track("c", true),
		},
		playlists: map[string]*spotify.Playlist{
			"37i9dQZF1DXcBWIGoYBM5M": {
				ID:       "37i9dQZF1DXcBWIGoYBM5M",
				Name:     "Today's Top Hits",
				TrackIDs: []string{"c", "a", "gone", "b", "a"},
			},
		},
	}
	svc, songs, playlists := newService(catalog)

	res, err := svc.Import(context.Background(), "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if res.Kind != spotify.TypePlaylist {
		t.Errorf("Kind = %q, want %q", res.Kind, spotify.TypePlaylist)
	}
	if res.Updated {
		t.Error("Updated = true on first import")
	}
	if res.MissingFeatures != 1 {
		t.Errorf("MissingFeatures = %d, want 1", res.MissingFeatures)
	}
	if len(songs.stored) != 3 {
		t.Errorf("stored %d songs, want 3", len(songs.stored))
	}

	p := res.Playlist
	if p == nil || p.Source != db.SourceImported || p.Name != "Today's Top Hits" {
		t.Fatalf("Playlist = %+v", p)
	}
	if p.SpotifyID == nil || *p.SpotifyID != "37i9dQZF1DXcBWIGoYBM5M" {
		t.Errorf("SpotifyID = %v", p.SpotifyID)
	}
	if got := entryIDs(playlists.entries[p.ID]); !slices.Equal(got, []string{"c", "a", "b"}) {
		t.Errorf("entries = %v, want [c a b]", got)
	}
}

func TestImportPlaylistTwiceReplacesSongs(t *testing.T) {
	remote := &spotify.Playlist{ID: "p1", Name: "Mix", TrackIDs: []string{"a"}}
	catalog := &fakeCatalog{
		tracks:    map[string]spotify.Track{"a": track("a", true), "b": track("b", true)},
		playlists: map[string]*spotify.Playlist{"p1": remote},
	}
	svc, _, playlists := newService(catalog)
	ctx := context.Background()

	first, err := svc.ImportPlaylist(ctx, "p1")
	if err != nil {
		t.Fatalf("ImportPlaylist() error = %v", err)
	}

	remote.TrackIDs = []string{"b", "a"}
	second, err := svc.ImportPlaylist(ctx, "p1")
	if err != nil {
		t.Fatalf("ImportPlaylist() error = %v", err)
	}

	if !second.Updated {
		t.Error("Updated = false, want true")
	}
	if second.Playlist.ID != first.Playlist.ID {
		t.Errorf("second import created a new playlist %v, want %v", second.Playlist.ID, first.Playlist.ID)
	}
	if playlists.created != 1 {
		t.Errorf("created %d playlists, want 1", playlists.created)
	}
	if got := entryIDs(playlists.entries[first.Playlist.ID]); !slices.Equal(got, []string{"b", "a"}) {
		t.Errorf("entries = %v, want [b a]", got)
	}
	if second.Playlist.SongCount != 2 {
		t.Errorf("SongCount = %d, want 2", second.Playlist.SongCount)
	}
}

func TestImportErrors(t *testing.T) {
	apiErr := errors.New("spotify unavailable")

	tests := []struct {
		name    string
		catalog *fakeCatalog
		url     string
		wantErr error
	}{
		{"invalid url", &fakeCatalog{}, "https://example.com/track/abc", spotify.ErrInvalidURL},
		{"album not importable", &fakeCatalog{}, "spotify:album:abc123", spotify.ErrInvalidURL},
		{"unknown track", &fakeCatalog{}, "spotify:track:abc123", spotify.ErrNotFound},
		{"unknown playlist", &fakeCatalog{}, "spotify:playlist:abc123", spotify.ErrNotFound},
		{"api failure", &fakeCatalog{err: apiErr}, "spotify:playlist:abc123", apiErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newService(tt.catalog)
			if _, err := svc.Import(context.Background(), tt.url); !errors.Is(err, tt.wantErr) {
				t.Errorf("Import() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOrderedSongs(t *testing.T) {
	tracks := []spotify.Track{track("x", true), track("y", false)}

	tests := []struct {
		name  string
		order []string
		want  []string
	}{
		{"follows playlist order", []string{"y", "x"}, []string{"y", "x"}},
		{"drops repeats", []string{"x", "x", "y"}, []string{"x", "y"}},
		{"drops unknown", []string{"z", "x"}, []string{"x"}},
		{"empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			songs := orderedSongs(tt.order, tracks)
			got := make([]string, len(songs))
			for i, s := range songs {
				got[i] = s.ID
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("orderedSongs() = %v, want %v", got, tt.want)
			}
		})
	}
}
