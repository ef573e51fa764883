package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/justestif/melophile/internal/clustering"
	"github.com/justestif/melophile/internal/db"
	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/importer"
	"github.com/justestif/melophile/internal/playlists"
	"github.com/justestif/melophile/internal/similarity"
	"github.com/justestif/melophile/internal/spotify"
)

// PlaylistService is the playlist orchestration the API exposes.
type PlaylistService interface {
	Features(ctx context.Context) ([]features.Definition, error)
	List(ctx context.Context) ([]db.Playlist, error)
	Playlist(ctx context.Context, id uuid.UUID) (*db.Playlist, []db.PlaylistSong, error)
	Moods(ctx context.Context, id uuid.UUID) ([]clustering.Mood, []clustering.Song, error)
	Enhance(ctx context.Context, id uuid.UUID, a, b features.Feature) (*playlists.EnhanceResult, error)
	GenerateFromSong(ctx context.Context, songID string, size int) (*playlists.GenerateResult, error)
	GenerateFromValues(ctx context.Context, named features.Named, size int) (*playlists.GenerateResult, error)
}

// Importer brings Spotify content into storage.
type Importer interface {
	Import(ctx context.Context, raw string) (*importer.Result, error)
	ImportTrack(ctx context.Context, id string) (*importer.Result, error)
}

// Handlers contains the HTTP handlers of the JSON API.
type Handlers struct {
	playlists PlaylistService
	importer  Importer // nil when Spotify is not configured
}

// NewHandlers creates a new Handlers instance. imp may be nil.
func NewHandlers(svc PlaylistService, imp Importer) *Handlers {
	return &Handlers{playlists: svc, importer: imp}
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Features handles GET /api/features.
func (h *Handlers) Features(w http.ResponseWriter, r *http.Request) {
	defs, err := h.playlists.Features(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]featureJSON, len(defs))
	for i, d := range defs {
		out[i] = featureJSON{
			Name:       d.Name(),
			DataType:   string(d.DataType),
			Min:        d.Min,
			Max:        d.Max,
			Normalized: d.Normalized,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ListPlaylists handles GET /api/playlists.
func (h *Handlers) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	list, err := h.playlists.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]playlistJSON, len(list))
	for i := range list {
		out[i] = toPlaylistJSON(&list[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPlaylist handles GET /api/playlists/{id}.
func (h *Handlers) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := playlistID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, songs, err := h.playlists.Playlist(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := playlistDetailJSON{playlistJSON: toPlaylistJSON(p), Songs: make([]songJSON, len(songs))}
	resp.SongCount = len(songs)
	for i, s := range songs {
		resp.Songs[i] = toSongJSON(s.Song)
		resp.Songs[i].Position = s.Position
		resp.Songs[i].Score = s.Score
	}
	writeJSON(w, http.StatusOK, resp)
}

// Moods handles GET /api/playlists/{id}/moods.
func (h *Handlers) Moods(w http.ResponseWriter, r *http.Request) {
	id, err := playlistID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	moods, outliers, err := h.playlists.Moods(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := moodsJSON{Moods: make([]moodJSON, len(moods)), Outliers: songRefs(outliers)}
	for i, m := range moods {
		resp.Moods[i] = moodJSON{
			Name:     m.Name,
			Centroid: centroidJSON(m.Centroid),
			Songs:    songRefs(m.Songs),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type enhanceRequest struct {
	Features []string `json:"features" validate:"required,len=2,dive,required"`
}

// Enhance handles POST /api/playlists/{id}/enhance.
func (h *Handlers) Enhance(w http.ResponseWriter, r *http.Request) {
	id, err := playlistID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req enhanceRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := features.Parse(req.Features[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := features.Parse(req.Features[1])
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.playlists.Enhance(r.Context(), id, a, b)
	if err != nil {
		writeError(w, r, err)
		return
	}

	enh := res.Enhancement
	sel := enh.Selection
	resp := enhanceJSON{
		Playlist: toPlaylistJSON(res.Playlist),
		Songs:    rankedSongs(enh.Songs),
		Selection: selectionJSON{
			K:          sel.Best.K,
			Clusters:   sel.Best.Fit.Size(),
			Silhouette: sel.Best.Score,
			Iterations: sel.Best.Fit.Iterations,
			Converged:  sel.Best.Fit.Converged,
			Skipped:    sel.Skipped,
		},
		Excluded: enh.Excluded,
	}
	for _, c := range sel.Candidates {
		resp.Selection.Candidates = append(resp.Selection.Candidates, candidateJSON{K: c.K, Score: c.Score})
	}
	for _, c := range enh.Clusters {
		mood, _ := clustering.MoodName(c.Cluster.Centroid)
		resp.Clusters = append(resp.Clusters, clusterJSON{
			Mood:     mood,
			Size:     len(c.Cluster.Songs),
			Quota:    c.Quota,
			Picked:   len(c.Picks),
			Centroid: centroidJSON(c.Cluster.Centroid),
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

type generateRequest struct {
	Size       int                `json:"size" validate:"required"`
	SongID     string             `json:"song_id" validate:"omitempty,alphanum"`
	SpotifyURL string             `json:"spotify_url" validate:"omitempty,max=512"`
	Features   map[string]float64 `json:"features"`
}

// Generate handles POST /api/playlists/generate. Exactly one of song_id,
// spotify_url and features names the target.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	targets := 0
	for _, set := range []bool{req.SongID != "", req.SpotifyURL != "", req.Features != nil} {
		if set {
			targets++
		}
	}
	if targets != 1 {
		writeError(w, r, fmt.Errorf("%w: exactly one of song_id, spotify_url and features is required", errBadRequest))
		return
	}

	var (
		res *playlists.GenerateResult
		err error
	)
	switch {
	case req.Features != nil:
		var values features.Named
		values, err = parseValues(req.Features)
		if err == nil {
			res, err = h.playlists.GenerateFromValues(r.Context(), values, req.Size)
		}
	case req.SpotifyURL != "":
		var songID string
		songID, err = h.importTarget(r.Context(), req.SpotifyURL)
		if err == nil {
			res, err = h.playlists.GenerateFromSong(r.Context(), songID, req.Size)
		}
	default:
		res, err = h.playlists.GenerateFromSong(r.Context(), req.SongID, req.Size)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, generateJSON{
		Playlist: toPlaylistJSON(res.Playlist),
		Target:   songRef{ID: res.Generation.Target.ID, Name: res.Generation.Target.Name, Artist: res.Generation.Target.Artist},
		Songs:    rankedSongs(res.Generation.Songs),
	})
}

// importTarget stores the track behind a Spotify URL so it can be used as
// a generation target.
func (h *Handlers) importTarget(ctx context.Context, raw string) (string, error) {
	id, err := spotify.ExtractTypedID(raw, spotify.TypeTrack)
	if err != nil {
		return "", err
	}
	if h.importer == nil {
		return "", errUnavailable
	}
	if _, err := h.importer.ImportTrack(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

type importRequest struct {
	URL string `json:"url" validate:"required,max=512"`
}

// Import handles POST /api/import.
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeError(w, r, errUnavailable)
		return
	}

	var req importRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.importer.Import(r.Context(), req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := importJSON{
		Kind:            res.Kind,
		Songs:           len(res.Songs),
		MissingFeatures: res.MissingFeatures,
		Updated:         res.Updated,
		ImportedAt:      res.ImportedAt,
	}
	if res.Playlist != nil {
		p := toPlaylistJSON(res.Playlist)
		resp.Playlist = &p
	}
	writeJSON(w, http.StatusOK, resp)
}

func playlistID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid playlist id", errBadRequest)
	}
	return id, nil
}

// parseValues resolves the feature names of user-entered values. Features
// left out are filled with their range minimum when the target is built.
func parseValues(named map[string]float64) (features.Named, error) {
	values := make(features.Named, len(named))
	for name, v := range named {
		f, err := features.Parse(name)
		if err != nil {
			return nil, err
		}
		values[f] = v
	}
	return values, nil
}

type featureJSON struct {
	Name       string  `json:"name"`
	DataType   string  `json:"data_type"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Normalized bool    `json:"normalized"`
}

type playlistJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	SpotifyID *string   `json:"spotify_id,omitempty"`
	ParentID  *string   `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	SongCount int       `json:"song_count"`
}

type playlistDetailJSON struct {
	playlistJSON
	Songs []songJSON `json:"songs"`
}

type songJSON struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Artist      string             `json:"artist"`
	ExternalURL string             `json:"external_url,omitempty"`
	Position    int                `json:"position"`
	Score       *float64           `json:"score,omitempty"`
	Features    map[string]float64 `json:"features,omitempty"`
}

type songRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

type rankedJSON struct {
	songRef
	Score float64 `json:"score"`
}

type moodJSON struct {
	Name     string             `json:"name"`
	Centroid map[string]float64 `json:"centroid"`
	Songs    []songRef          `json:"songs"`
}

type moodsJSON struct {
	Moods    []moodJSON `json:"moods"`
	Outliers []songRef  `json:"outliers"`
}

type candidateJSON struct {
	K     int     `json:"k"`
	Score float64 `json:"score"`
}

type selectionJSON struct {
	K          int             `json:"k"`
	Clusters   int             `json:"clusters"`
	Silhouette float64         `json:"silhouette"`
	Iterations int             `json:"iterations"`
	Converged  bool            `json:"converged"`
	Candidates []candidateJSON `json:"candidates"`
	Skipped    []int           `json:"skipped,omitempty"`
}

type clusterJSON struct {
	Mood     string             `json:"mood,omitempty"`
	Size     int                `json:"size"`
	Quota    int                `json:"quota"`
	Picked   int                `json:"picked"`
	Centroid map[string]float64 `json:"centroid"`
}

type enhanceJSON struct {
	Playlist  playlistJSON  `json:"playlist"`
	Selection selectionJSON `json:"selection"`
	Clusters  []clusterJSON `json:"clusters"`
	Songs     []rankedJSON  `json:"songs"`
	Excluded  int           `json:"excluded"`
}

type generateJSON struct {
	Playlist playlistJSON `json:"playlist"`
	Target   songRef      `json:"target"`
	Songs    []rankedJSON `json:"songs"`
}

type importJSON struct {
	Kind            string        `json:"kind"`
	Songs           int           `json:"songs"`
	MissingFeatures int           `json:"missing_features"`
	Updated         bool          `json:"updated"`
	Playlist        *playlistJSON `json:"playlist,omitempty"`
	ImportedAt      time.Time     `json:"imported_at"`
}

func toPlaylistJSON(p *db.Playlist) playlistJSON {
	out := playlistJSON{
		ID:        p.ID.String(),
		Name:      p.Name,
		Source:    p.Source,
		SpotifyID: p.SpotifyID,
		CreatedAt: p.CreatedAt,
		SongCount: p.SongCount,
	}
	if p.ParentID != nil {
		parent := p.ParentID.String()
		out.ParentID = &parent
	}
	return out
}

func toSongJSON(s db.Song) songJSON {
	out := songJSON{ID: s.ID, Name: s.Name, Artist: s.Artist}
	if s.ExternalURL != nil {
		out.ExternalURL = *s.ExternalURL
	}
	if s.Features != nil {
		out.Features = make(map[string]float64, features.Count)
		for _, f := range features.All() {
			out.Features[f.String()] = s.Features.Get(f)
		}
	}
	return out
}

func songRefs(songs []clustering.Song) []songRef {
	out := make([]songRef, len(songs))
	for i, s := range songs {
		out[i] = songRef{ID: s.ID, Name: s.Name, Artist: s.Artist}
	}
	return out
}

func rankedSongs(ranked []similarity.Ranked) []rankedJSON {
	out := make([]rankedJSON, len(ranked))
	for i, r := range ranked {
		out[i] = rankedJSON{
			songRef: songRef{ID: r.Song.ID, Name: r.Song.Name, Artist: r.Song.Artist},
			Score:   r.Score,
		}
	}
	return out
}

func centroidJSON(c clustering.Centroid) map[string]float64 {
	coords := c.Coordinates()
	out := make(map[string]float64, len(coords))
	for f, v := range coords {
		out[f.String()] = v
	}
	return out
}
