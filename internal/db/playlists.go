package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlaylistRepository handles playlist database operations.
type PlaylistRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a new playlist with its songs. Entries are stored in order
// and their index becomes the song position.
func (r *PlaylistRepository) Create(ctx context.Context, playlist *Playlist, entries []PlaylistEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO playlists (id, name, source, spotify_id, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	if playlist.ID == uuid.Nil {
		playlist.ID = uuid.New()
	}
	err = tx.QueryRow(ctx, query,
		playlist.ID,
		playlist.Name,
		playlist.Source,
		playlist.SpotifyID,
		playlist.ParentID,
	).Scan(&playlist.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting playlist: %w", err)
	}

	if err := insertEntries(ctx, tx, playlist.ID, entries); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	playlist.SongCount = len(entries)
	return nil
}

// ReplaceSongs swaps the songs of an existing playlist.
func (r *PlaylistRepository) ReplaceSongs(ctx context.Context, id uuid.UUID, entries []PlaylistEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM playlist_songs WHERE playlist_id = $1`, id); err != nil {
		return fmt.Errorf("clearing playlist songs: %w", err)
	}
	if err := insertEntries(ctx, tx, id, entries); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertEntries(ctx context.Context, tx pgx.Tx, playlistID uuid.UUID, entries []PlaylistEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO playlist_songs (playlist_id, song_id, position, score)
		SELECT $1, * FROM unnest($2::text[], $3::int[], $4::float8[])
		ON CONFLICT (playlist_id, song_id) DO NOTHING
	`

	songIDs := make([]string, len(entries))
	positions := make([]int32, len(entries))
	scores := make([]*float64, len(entries))
	for i, e := range entries {
		songIDs[i] = e.SongID
		positions[i] = int32(i)
		scores[i] = e.Score
	}

	if _, err := tx.Exec(ctx, query, playlistID, songIDs, positions, scores); err != nil {
		return fmt.Errorf("inserting playlist songs: %w", err)
	}
	return nil
}

// Get retrieves a playlist by ID.
func (r *PlaylistRepository) Get(ctx context.Context, id uuid.UUID) (*Playlist, error) {
	query := `
		SELECT p.id, p.name, p.source, p.spotify_id, p.parent_id, p.created_at,
			(SELECT COUNT(*) FROM playlist_songs ps WHERE ps.playlist_id = p.id)
		FROM playlists p
		WHERE p.id = $1
	`
	playlist, err := scanPlaylist(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying playlist: %w", err)
	}
	return playlist, nil
}

// GetImported retrieves the imported playlist with the given Spotify ID.
func (r *PlaylistRepository) GetImported(ctx context.Context, spotifyID string) (*Playlist, error) {
	query := `
		SELECT p.id, p.name, p.source, p.spotify_id, p.parent_id, p.created_at,
			(SELECT COUNT(*) FROM playlist_songs ps WHERE ps.playlist_id = p.id)
		FROM playlists p
		WHERE p.spotify_id = $1 AND p.source = 'imported'
	`
	playlist, err := scanPlaylist(r.pool.QueryRow(ctx, query, spotifyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying imported playlist: %w", err)
	}
	return playlist, nil
}

// List retrieves all playlists, newest first.
func (r *PlaylistRepository) List(ctx context.Context) ([]Playlist, error) {
	query := `
		SELECT p.id, p.name, p.source, p.spotify_id, p.parent_id, p.created_at, COUNT(ps.song_id)
		FROM playlists p
		LEFT JOIN playlist_songs ps ON ps.playlist_id = p.id
		GROUP BY p.id
		ORDER BY p.created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying playlists: %w", err)
	}
	defer rows.Close()

	var playlists []Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning playlist: %w", err)
		}
		playlists = append(playlists, *playlist)
	}
	return playlists, rows.Err()
}

// Songs retrieves the songs of a playlist in position order.
func (r *PlaylistRepository) Songs(ctx context.Context, id uuid.UUID) ([]PlaylistSong, error) {
	query := `
		SELECT s.id, s.name, s.artist, s.external_url, s.features, s.created_at, s.updated_at,
			ps.position, ps.score
		FROM songs s
		JOIN playlist_songs ps ON s.id = ps.song_id
		WHERE ps.playlist_id = $1
		ORDER BY ps.position
	`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("querying playlist songs: %w", err)
	}
	defer rows.Close()

	var songs []PlaylistSong
	for rows.Next() {
		var (
			ps  PlaylistSong
			col []float64
		)
		if err := rows.Scan(
			&ps.ID,
			&ps.Name,
			&ps.Artist,
			&ps.ExternalURL,
			&col,
			&ps.CreatedAt,
			&ps.UpdatedAt,
			&ps.Position,
			&ps.Score,
		); err != nil {
			return nil, fmt.Errorf("scanning playlist song: %w", err)
		}
		if ps.Features, err = valuesFromColumn(col); err != nil {
			return nil, fmt.Errorf("song %s: %w", ps.ID, err)
		}
		songs = append(songs, ps)
	}
	return songs, rows.Err()
}

// Delete removes a playlist by ID.
func (r *PlaylistRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM playlists WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting playlist: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPlaylist(row pgx.Row) (*Playlist, error) {
	var playlist Playlist
	if err := row.Scan(
		&playlist.ID,
		&playlist.Name,
		&playlist.Source,
		&playlist.SpotifyID,
		&playlist.ParentID,
		&playlist.CreatedAt,
		&playlist.SongCount,
	); err != nil {
		return nil, err
	}
	return &playlist, nil
}
