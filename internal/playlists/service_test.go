package playlists

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/melophile/internal/db"
	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/recommend"
)

type fakeSongs struct {
	songs []db.Song
}

func (f *fakeSongs) Get(_ context.Context, id string) (*db.Song, error) {
	for _, s := range f.songs {
		if s.ID == id {
			cp := s
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeSongs) All(_ context.Context) ([]db.Song, error) {
	return slices.Clone(f.songs), nil
}

type fakePlaylists struct {
	byID    map[uuid.UUID]*db.Playlist
	order   []uuid.UUID
	entries map[uuid.UUID][]db.PlaylistEntry
	songs   *fakeSongs
}

func newFakePlaylists(songs *fakeSongs) *fakePlaylists {
	return &fakePlaylists{
		byID:    make(map[uuid.UUID]*db.Playlist),
		entries: make(map[uuid.UUID][]db.PlaylistEntry),
		songs:   songs,
	}
}

func (f *fakePlaylists) Get(_ context.Context, id uuid.UUID) (*db.Playlist, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePlaylists) List(_ context.Context) ([]db.Playlist, error) {
	out := make([]db.Playlist, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.byID[id])
	}
	return out, nil
}

func (f *fakePlaylists) Songs(ctx context.Context, id uuid.UUID) ([]db.PlaylistSong, error) {
	var out []db.PlaylistSong
	for i, e := range f.entries[id] {
		s, err := f.songs.Get(ctx, e.SongID)
		if err != nil {
			return nil, err
		}
		out = append(out, db.PlaylistSong{Song: *s, Position: i, Score: e.Score})
	}
	return out, nil
}

func (f *fakePlaylists) Create(_ context.Context, p *db.Playlist, entries []db.PlaylistEntry) error {
	p.ID = uuid.New()
	p.SongCount = len(entries)
	cp := *p
	f.byID[p.ID] = &cp
	f.order = append(f.order, p.ID)
	f.entries[p.ID] = entries
	return nil
}

type fakeCatalogs struct{}

func (fakeCatalogs) Catalog(context.Context) (*features.Catalog, error) {
	return features.Default(), nil
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func librarySong(id string, energy, valence float64) db.Song {
	var v features.Values
	v.Set(features.Energy, energy)
	v.Set(features.Valence, valence)
	v.Set(features.Danceability, (energy+valence)/2)
	v.Set(features.Acousticness, 1-energy)
	v.Set(features.Tempo, 60+120*energy)
	v.Set(features.TimeSignature, 4)
	v.Set(features.Popularity, 50)
	return db.Song{ID: id, Name: "Song " + id, Artist: "Artist", Features: &v}
}

type fixture struct {
	svc       *Service
	songs     *fakeSongs
	playlists *fakePlaylists
	original  *db.Playlist
}

// newFixture stores a nine-song playlist in three energy/valence groups
// and a library that also holds fifteen songs outside the playlist.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	groups := [][2]float64{{0.1, 0.1}, {0.9, 0.1}, {0.5, 0.9}}
	songs := &fakeSongs{}
	var members []db.PlaylistEntry
	for g, center := range groups {
		for i := range 3 {
			d := float64(i) * 0.02
			s := librarySong(fmt.Sprintf("orig%d%d", g, i), center[0]+d, center[1]+d)
			songs.songs = append(songs.songs, s)
			members = append(members, db.PlaylistEntry{SongID: s.ID})
		}
		for i := range 5 {
			d := float64(i)*0.015 + 0.01
			songs.songs = append(songs.songs, librarySong(fmt.Sprintf("lib%d%d", g, i), center[0]-d/2+0.03, center[1]+d))
		}
	}

	playlists := newFakePlaylists(songs)
	original := &db.Playlist{Name: "Road Trip", Source: db.SourceImported}
	if err := playlists.Create(context.Background(), original, members); err != nil {
		t.Fatal(err)
	}

	svc := New(songs, playlists, fakeCatalogs{},
		WithClock(func() time.Time { return fixedNow }),
		WithEngineConfig(EngineConfig{MinK: 2, MaxK: 10, MaxIterations: 100, Ratio: 3, Seed: 7}),
	)
	return &fixture{svc: svc, songs: songs, playlists: playlists, original: original}
}

func TestEnhance(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.Enhance(context.Background(), fx.original.ID, features.Energy, features.Valence)
	if err != nil {
		t.Fatalf("Enhance() error = %v", err)
	}

	p := res.Playlist
	if p.Source != db.SourceEnhanced {
		t.Errorf("Source = %q, want %q", p.Source, db.SourceEnhanced)
	}
	if p.ParentID == nil || *p.ParentID != fx.original.ID {
		t.Errorf("ParentID = %v, want %v", p.ParentID, fx.original.ID)
	}
	if want := `Enhanced (from "Road Trip") 01/05/2024 12:00:00`; p.Name != want {
		t.Errorf("Name = %q, want %q", p.Name, want)
	}

	stored := fx.playlists.entries[p.ID]
	if len(stored) == 0 {
		t.Fatal("enhanced playlist is empty")
	}
	if len(stored) != len(res.Enhancement.Songs) {
		t.Errorf("stored %d songs, enhancement has %d", len(stored), len(res.Enhancement.Songs))
	}

	seen := make(map[string]bool)
	for _, e := range stored {
		if e.Score == nil {
			t.Errorf("song %s stored without score", e.SongID)
		}
		if seen[e.SongID] {
			t.Errorf("song %s stored twice", e.SongID)
		}
		seen[e.SongID] = true
		if e.SongID[:4] == "orig" {
			t.Errorf("original song %s selected", e.SongID)
		}
	}
}

func TestEnhanceErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(fx *fixture) uuid.UUID
		a, b    features.Feature
		wantErr error
	}{
		{
			name:    "unknown playlist",
			setup:   func(*fixture) uuid.UUID { return uuid.New() },
			a:       features.Energy,
			b:       features.Valence,
			wantErr: db.ErrNotFound,
		},
		{
			name:    "same feature twice",
			setup:   func(fx *fixture) uuid.UUID { return fx.original.ID },
			a:       features.Energy,
			b:       features.Energy,
			wantErr: recommend.ErrInvalidFeatureSelection,
		},
		{
			name: "library holds only the playlist",
			setup: func(fx *fixture) uuid.UUID {
				var kept []db.Song
				for _, s := range fx.songs.songs {
					if s.ID[:4] == "orig" {
						kept = append(kept, s)
					}
				}
				fx.songs.songs = kept
				return fx.original.ID
			},
			a:       features.Energy,
			b:       features.Valence,
			wantErr: recommend.ErrNoCandidates,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			id := tt.setup(fx)
			before := len(fx.playlists.order)

			_, err := fx.svc.Enhance(context.Background(), id, tt.a, tt.b)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Enhance() error = %v, want %v", err, tt.wantErr)
			}
			if len(fx.playlists.order) != before {
				t.Error("failed enhancement stored a playlist")
			}
		})
	}
}

func TestEnhanceCanceled(t *testing.T) {
	fx := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := fx.svc.Enhance(ctx, fx.original.ID, features.Energy, features.Valence); !errors.Is(err, context.Canceled) {
		t.Errorf("Enhance() error = %v, want context.Canceled", err)
	}
}

func TestGenerateFromSong(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.svc.GenerateFromSong(context.Background(), "orig00", 20)
	if err != nil {
		t.Fatalf("GenerateFromSong() error = %v", err)
	}

	p := res.Playlist
	if p.Source != db.SourceGenerated || p.ParentID != nil {
		t.Errorf("Playlist = %+v, want generated without parent", p)
	}
	if want := `Generated (from "Song orig00" - Artist) 01/05/2024 12:00:00`; p.Name != want {
		t.Errorf("Name = %q, want %q", p.Name, want)
	}

	stored := fx.playlists.entries[p.ID]
	if len(stored) != 20 {
		t.Fatalf("stored %d songs, want 20", len(stored))
	}
	if stored[0].SongID != "orig00" || *stored[0].Score != 1 {
		t.Errorf("first entry = %s (%v), want the target with score 1", stored[0].SongID, *stored[0].Score)
	}
	for i := 1; i < len(stored); i++ {
		if *stored[i].Score > *stored[i-1].Score {
			t.Errorf("entry %d score %v above previous %v", i, *stored[i].Score, *stored[i-1].Score)
		}
	}
}

func TestGenerateFromValues(t *testing.T) {
	fx := newFixture(t)

	// Time signature is left out and takes its range minimum.
	v := features.Named{features.Energy: 0.9, features.Valence: 0.1}

	res, err := fx.svc.GenerateFromValues(context.Background(), v, 20)
	if err != nil {
		t.Fatalf("GenerateFromValues() error = %v", err)
	}
	if want := `Generated (from "Custom Features" - User) 01/05/2024 12:00:00`; res.Playlist.Name != want {
		t.Errorf("Name = %q, want %q", res.Playlist.Name, want)
	}
	if got := len(fx.playlists.entries[res.Playlist.ID]); got != 20 {
		t.Errorf("stored %d songs, want 20", got)
	}
}

func TestGenerateErrors(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.GenerateFromSong(ctx, "orig00", 19); !errors.Is(err, recommend.ErrInvalidSize) {
		t.Errorf("size 19: error = %v, want ErrInvalidSize", err)
	}
	if _, err := fx.svc.GenerateFromSong(ctx, "orig00", 101); !errors.Is(err, recommend.ErrInvalidSize) {
		t.Errorf("size 101: error = %v, want ErrInvalidSize", err)
	}
	if _, err := fx.svc.GenerateFromSong(ctx, "missing", 20); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("unknown song: error = %v, want ErrNotFound", err)
	}

	// Time signature 0 is below the declared range of 3-7.
	if _, err := fx.svc.GenerateFromValues(ctx, features.Named{features.TimeSignature: 0}, 20); !errors.Is(err, recommend.ErrTargetOutOfRange) {
		t.Errorf("out of range: error = %v, want ErrTargetOutOfRange", err)
	}
}

func TestMoods(t *testing.T) {
	fx := newFixture(t)

	moods, outliers, err := fx.svc.Moods(context.Background(), fx.original.ID)
	if err != nil {
		t.Fatalf("Moods() error = %v", err)
	}

	total := len(outliers)
	for _, m := range moods {
		total += len(m.Songs)
	}
	if total != 9 {
		t.Errorf("moods + outliers hold %d songs, want 9", total)
	}

	if _, _, err := fx.svc.Moods(context.Background(), uuid.New()); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Moods(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestFeatures(t *testing.T) {
	fx := newFixture(t)

	defs, err := fx.svc.Features(context.Background())
	if err != nil {
		t.Fatalf("Features() error = %v", err)
	}
	if len(defs) != features.Count {
		t.Errorf("got %d definitions, want %d", len(defs), features.Count)
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{context.Canceled, "canceled"},
		{fmt.Errorf("wrapped: %w", db.ErrNotFound), "not_found"},
		{recommend.ErrInvalidSize, "invalid_size"},
		{recommend.ErrNoCandidates, "no_candidates"},
		{errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		if got := failureReason(tt.err); got != tt.want {
			t.Errorf("failureReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
