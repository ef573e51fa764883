package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/justestif/melophile/internal/features"
)

// Playlist sources.
const (
	SourceImported  = "imported"
	SourceEnhanced  = "enhanced"
	SourceGenerated = "generated"
)

// Song represents a stored track with its raw audio feature values.
type Song struct {
	ID          string
	Name        string
	Artist      string
	ExternalURL *string          // nullable
	Features    *features.Values // nullable - nil when Spotify had no audio features
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Playlist represents an imported or computed playlist.
type Playlist struct {
	ID        uuid.UUID
	Name      string
	Source    string
	SpotifyID *string    // nullable - set for imported playlists
	ParentID  *uuid.UUID // nullable - original playlist of an enhanced one
	CreatedAt time.Time
	SongCount int // filled by List
}

// PlaylistEntry is a song reference to store in a playlist.
type PlaylistEntry struct {
	SongID string
	Score  *float64 // nullable - similarity score for computed playlists
}

// PlaylistSong is a song as stored in a playlist.
type PlaylistSong struct {
	Song
	Position int
	Score    *float64
}

// FeatureDefinition is a stored feature catalog row.
type FeatureDefinition struct {
	Name       string
	Position   int
	DataType   string
	Min        float64
	Max        float64
	Normalized bool
}
