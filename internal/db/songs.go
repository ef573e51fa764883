package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/melophile/internal/features"
)

// SongRepository handles song database operations.
type SongRepository struct {
	pool *pgxpool.Pool
}

const upsertSongQuery = `
	INSERT INTO songs (id, name, artist, external_url, features, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		artist = EXCLUDED.artist,
		external_url = EXCLUDED.external_url,
		features = COALESCE(EXCLUDED.features, songs.features),
		updated_at = NOW()
	RETURNING created_at, updated_at
`

// Upsert creates or updates a song. Existing feature values are kept when
// song.Features is nil.
func (r *SongRepository) Upsert(ctx context.Context, song *Song) error {
	err := r.pool.QueryRow(ctx, upsertSongQuery,
		song.ID,
		song.Name,
		song.Artist,
		song.ExternalURL,
		featureColumn(song.Features),
	).Scan(&song.CreatedAt, &song.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting song: %w", err)
	}
	return nil
}

// UpsertBatch inserts or updates multiple songs in one round trip.
// Feature vectors are two-dimensional, so rows are queued individually
// instead of unnested.
func (r *SongRepository) UpsertBatch(ctx context.Context, songs []Song) error {
	if len(songs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range songs {
		s := &songs[i]
		batch.Queue(upsertSongQuery, s.ID, s.Name, s.Artist, s.ExternalURL, featureColumn(s.Features)).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&s.CreatedAt, &s.UpdatedAt)
			})
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("batch upserting songs: %w", err)
	}
	return nil
}

// Get retrieves a song by ID.
func (r *SongRepository) Get(ctx context.Context, id string) (*Song, error) {
	query := `
		SELECT id, name, artist, external_url, features, created_at, updated_at
		FROM songs
		WHERE id = $1
	`
	song, err := scanSong(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying song: %w", err)
	}
	return song, nil
}

// All retrieves every song ordered by ID.
func (r *SongRepository) All(ctx context.Context) ([]Song, error) {
	query := `
		SELECT id, name, artist, external_url, features, created_at, updated_at
		FROM songs
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying songs: %w", err)
	}
	defer rows.Close()

	var songs []Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning song: %w", err)
		}
		songs = append(songs, *song)
	}
	return songs, rows.Err()
}

// Count returns the number of stored songs and how many carry features.
func (r *SongRepository) Count(ctx context.Context) (total, withFeatures int, err error) {
	query := `SELECT COUNT(*), COUNT(features) FROM songs`
	if err := r.pool.QueryRow(ctx, query).Scan(&total, &withFeatures); err != nil {
		return 0, 0, fmt.Errorf("counting songs: %w", err)
	}
	return total, withFeatures, nil
}

func scanSong(row pgx.Row) (*Song, error) {
	var (
		song Song
		col  []float64
	)
	if err := row.Scan(
		&song.ID,
		&song.Name,
		&song.Artist,
		&song.ExternalURL,
		&col,
		&song.CreatedAt,
		&song.UpdatedAt,
	); err != nil {
		return nil, err
	}

	values, err := valuesFromColumn(col)
	if err != nil {
		return nil, fmt.Errorf("song %s: %w", song.ID, err)
	}
	song.Features = values
	return &song, nil
}

// featureColumn converts feature values to the canonical-order array
// stored in songs.features.
func featureColumn(v *features.Values) []float64 {
	if v == nil {
		return nil
	}
	return v.Slice()
}

// valuesFromColumn is the inverse of featureColumn. NULL maps to nil.
func valuesFromColumn(col []float64) (*features.Values, error) {
	if col == nil {
		return nil, nil
	}
	return features.ValuesFromSlice(col)
}
