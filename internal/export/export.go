// Package export writes the song library and stored playlists to CSV files.
package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/justestif/melophile/internal/db"
	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/logging"
)

// SongsFile is the name of the library export.
const SongsFile = "songs.csv"

// featureColumns are the feature columns in header order.
var featureColumns = []features.Feature{
	features.Acousticness,
	features.Danceability,
	features.Energy,
	features.Instrumentalness,
	features.Key,
	features.Liveness,
	features.Loudness,
	features.Mode,
	features.Popularity,
	features.Speechiness,
	features.Tempo,
	features.TimeSignature,
	features.Valence,
}

// SongLister lists stored songs.
type SongLister interface {
	All(ctx context.Context) ([]db.Song, error)
}

// PlaylistLister lists stored playlists and their songs.
type PlaylistLister interface {
	List(ctx context.Context) ([]db.Playlist, error)
	Songs(ctx context.Context, id uuid.UUID) ([]db.PlaylistSong, error)
}

// Exporter writes CSV files into a directory.
type Exporter struct {
	songs     SongLister
	playlists PlaylistLister
	dir       string
}

// New creates an exporter writing into dir.
func New(songs SongLister, playlists PlaylistLister, dir string) *Exporter {
	return &Exporter{songs: songs, playlists: playlists, dir: dir}
}

// Export writes songs.csv and one playlist_<name>.csv per playlist.
// It returns the paths of the written files.
func (e *Exporter) Export(ctx context.Context) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	songs, err := e.songs.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading songs: %w", err)
	}
	path := filepath.Join(e.dir, SongsFile)
	if err := writeFile(path, songs); err != nil {
		return nil, err
	}
	written := []string{path}

	list, err := e.playlists.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing playlists: %w", err)
	}

	used := make(map[string]bool)
	for _, p := range list {
		entries, err := e.playlists.Songs(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("loading songs of %q: %w", p.Name, err)
		}

		members := make([]db.Song, len(entries))
		for i, entry := range entries {
			members[i] = entry.Song
		}

		name := PlaylistFileName(p.Name)
		if used[name] {
			name = PlaylistFileName(p.Name + "_" + p.ID.String()[:8])
		}
		used[name] = true

		path := filepath.Join(e.dir, name)
		if err := writeFile(path, members); err != nil {
			return nil, err
		}
		written = append(written, path)
	}

	logging.Info().Str("dir", e.dir).Int("songs", len(songs)).Int("playlists", len(list)).Msg("exported csv")
	return written, nil
}

// PlaylistFileName returns playlist_<name>.csv with every character other
// than letters, digits, '-' and '_' replaced by '_'.
func PlaylistFileName(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return "playlist_" + safe + ".csv"
}

func writeFile(path string, songs []db.Song) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := WriteSongs(w, songs); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// WriteSongs writes a header and one row per song. Every field is quoted.
// Songs without features get empty feature fields.
func WriteSongs(w io.Writer, songs []db.Song) error {
	header := []string{"name", "artist", "external_url"}
	for _, f := range featureColumns {
		header = append(header, f.String())
	}
	if err := writeRecord(w, header); err != nil {
		return err
	}

	for _, s := range songs {
		record := make([]string, 0, len(header))
		url := ""
		if s.ExternalURL != nil {
			url = *s.ExternalURL
		}
		record = append(record, s.Name, s.Artist, url)
		for _, f := range featureColumns {
			if s.Features == nil {
				record = append(record, "")
				continue
			}
			record = append(record, strconv.FormatFloat(s.Features.Get(f), 'f', -1, 64))
		}
		if err := writeRecord(w, record); err != nil {
			return err
		}
	}
	return nil
}

func writeRecord(w io.Writer, fields []string) error {
	var b strings.Builder
	for i, field := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(field, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteString("\r\n")
	_, err := io.WriteString(w, b.String())
	return err
}
