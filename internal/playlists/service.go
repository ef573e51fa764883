// Package playlists orchestrates playlist enhancement and generation:
// songs are loaded from storage, the engine runs in the background and the
// result is stored as a new playlist.
package playlists

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/melophile/internal/clustering"
	"github.com/justestif/melophile/internal/db"
	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/logging"
	"github.com/justestif/melophile/internal/metrics"
	"github.com/justestif/melophile/internal/recommend"
	"github.com/justestif/melophile/internal/similarity"
)

// nameTimeLayout renders dd/MM/yyyy HH:mm:ss.
const nameTimeLayout = "02/01/2006 15:04:05"

// SongStore reads stored songs.
type SongStore interface {
	Get(ctx context.Context, id string) (*db.Song, error)
	All(ctx context.Context) ([]db.Song, error)
}

// PlaylistStore reads and creates playlists.
type PlaylistStore interface {
	Get(ctx context.Context, id uuid.UUID) (*db.Playlist, error)
	List(ctx context.Context) ([]db.Playlist, error)
	Songs(ctx context.Context, id uuid.UUID) ([]db.PlaylistSong, error)
	Create(ctx context.Context, playlist *db.Playlist, entries []db.PlaylistEntry) error
}

// CatalogStore loads the feature catalog.
type CatalogStore interface {
	Catalog(ctx context.Context) (*features.Catalog, error)
}

// EngineConfig holds clustering and enhancement parameters.
type EngineConfig struct {
	MinK          int
	MaxK          int
	MaxIterations int
	Ratio         int
	Seed          uint64 // 0 seeds from the clock
}

// DefaultEngineConfig returns the recommended engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinK:          clustering.DefaultMinK,
		MaxK:          clustering.DefaultMaxK,
		MaxIterations: clustering.DefaultMaxIterations,
		Ratio:         recommend.DefaultRatio,
	}
}

// Service runs the engine against stored songs and playlists.
type Service struct {
	songs     SongStore
	playlists PlaylistStore
	catalogs  CatalogStore
	engine    EngineConfig
	moods     clustering.MoodConfig
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithEngineConfig sets the engine parameters.
func WithEngineConfig(cfg EngineConfig) Option {
	return func(s *Service) {
		s.engine = cfg
	}
}

// WithMoodConfig sets the mood detection parameters.
func WithMoodConfig(cfg clustering.MoodConfig) Option {
	return func(s *Service) {
		s.moods = cfg
	}
}

// WithClock sets the time source used in playlist names.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a new playlist service.
func New(songs SongStore, playlists PlaylistStore, catalogs CatalogStore, opts ...Option) *Service {
	s := &Service{
		songs:     songs,
		playlists: playlists,
		catalogs:  catalogs,
		engine:    DefaultEngineConfig(),
		moods:     clustering.DefaultMoodConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnhanceResult is a stored enhanced playlist.
type EnhanceResult struct {
	Playlist    *db.Playlist
	Original    *db.Playlist
	Enhancement *recommend.Enhancement
}

// GenerateResult is a stored generated playlist.
type GenerateResult struct {
	Playlist   *db.Playlist
	Generation *recommend.Generation
}

// Features returns the feature definitions of the stored catalog.
func (s *Service) Features(ctx context.Context) ([]features.Definition, error) {
	cat, err := s.catalogs.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading feature catalog: %w", err)
	}
	return cat.Definitions(), nil
}

// List returns every stored playlist.
func (s *Service) List(ctx context.Context) ([]db.Playlist, error) {
	list, err := s.playlists.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing playlists: %w", err)
	}
	return list, nil
}

// Playlist returns a playlist with its songs in position order.
func (s *Service) Playlist(ctx context.Context, id uuid.UUID) (*db.Playlist, []db.PlaylistSong, error) {
	p, err := s.playlists.Get(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting playlist: %w", err)
	}
	songs, err := s.playlists.Songs(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting playlist songs: %w", err)
	}
	return p, songs, nil
}

// Enhance clusters the songs of a stored playlist over two features and
// stores a new playlist with the most similar songs from the library.
func (s *Service) Enhance(ctx context.Context, id uuid.UUID, a, b features.Feature) (res *EnhanceResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordRecommendation("enhance", start, failureReason(err)) }()

	cat, err := s.catalogs.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading feature catalog: %w", err)
	}

	original, members, err := s.Playlist(ctx, id)
	if err != nil {
		return nil, err
	}

	pool, err := s.pool(ctx)
	if err != nil {
		return nil, err
	}

	originalSongs := make([]clustering.Song, len(members))
	for i, m := range members {
		originalSongs[i] = toClusteringSong(m.Song)
	}

	enhancer := s.newEnhancer(cat)
	enh, err := compute(ctx, func() (*recommend.Enhancement, error) {
		return enhancer.Enhance(originalSongs, pool, a, b)
	})
	if err != nil {
		return nil, fmt.Errorf("enhancing %q: %w", original.Name, err)
	}
	recordSelection(enh.Selection)

	parentID := original.ID
	playlist := &db.Playlist{
		Name:     fmt.Sprintf("Enhanced (from \"%s\") %s", original.Name, s.now().Format(nameTimeLayout)),
		Source:   db.SourceEnhanced,
		ParentID: &parentID,
	}
	if err := s.playlists.Create(ctx, playlist, entries(enh.Songs)); err != nil {
		return nil, fmt.Errorf("storing enhanced playlist: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("original", original.Name).
		Str("playlist", playlist.ID.String()).
		Int("k", enh.Selection.Best.K).
		Float64("silhouette", enh.Selection.Best.Score).
		Int("songs", len(enh.Songs)).
		Msg("stored enhanced playlist")

	return &EnhanceResult{Playlist: playlist, Original: original, Enhancement: enh}, nil
}

// GenerateFromSong stores a playlist of the size library songs most
// similar to a stored song.
func (s *Service) GenerateFromSong(ctx context.Context, songID string, size int) (*GenerateResult, error) {
	if err := recommend.ValidateSize(size); err != nil {
		metrics.RecordRecommendation("generate", time.Now(), failureReason(err))
		return nil, err
	}

	stored, err := s.songs.Get(ctx, songID)
	if err != nil {
		return nil, fmt.Errorf("getting target song: %w", err)
	}
	return s.generate(ctx, size, func(g *recommend.Generator, pool []clustering.Song) (*recommend.Generation, error) {
		return g.Generate(toClusteringSong(*stored), pool, size)
	})
}

// GenerateFromValues stores a playlist of the size library songs most
// similar to user-entered feature values.
func (s *Service) GenerateFromValues(ctx context.Context, named features.Named, size int) (*GenerateResult, error) {
	return s.generate(ctx, size, func(g *recommend.Generator, pool []clustering.Song) (*recommend.Generation, error) {
		return g.GenerateFromValues(named, pool, size)
	})
}

func (s *Service) generate(ctx context.Context, size int, run func(*recommend.Generator, []clustering.Song) (*recommend.Generation, error)) (res *GenerateResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordRecommendation("generate", start, failureReason(err)) }()

	cat, err := s.catalogs.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading feature catalog: %w", err)
	}
	pool, err := s.pool(ctx)
	if err != nil {
		return nil, err
	}

	generator := recommend.NewGenerator(similarity.NewScorer(cat))
	gen, err := compute(ctx, func() (*recommend.Generation, error) {
		return run(generator, pool)
	})
	if err != nil {
		return nil, fmt.Errorf("generating playlist: %w", err)
	}

	playlist := &db.Playlist{
		Name: fmt.Sprintf("Generated (from \"%s\" - %s) %s",
			gen.Target.Name, gen.Target.Artist, s.now().Format(nameTimeLayout)),
		Source: db.SourceGenerated,
	}
	if err := s.playlists.Create(ctx, playlist, entries(gen.Songs)); err != nil {
		return nil, fmt.Errorf("storing generated playlist: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("target", gen.Target.Name).
		Str("playlist", playlist.ID.String()).
		Int("size", size).
		Int("songs", len(gen.Songs)).
		Msg("stored generated playlist")

	return &GenerateResult{Playlist: playlist, Generation: gen}, nil
}

// Moods groups the songs of a stored playlist by mood.
func (s *Service) Moods(ctx context.Context, id uuid.UUID) ([]clustering.Mood, []clustering.Song, error) {
	_, members, err := s.Playlist(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	songs := make([]clustering.Song, len(members))
	for i, m := range members {
		songs[i] = toClusteringSong(m.Song)
	}

	type detected struct {
		moods    []clustering.Mood
		outliers []clustering.Song
	}
	d, err := compute(ctx, func() (detected, error) {
		moods, outliers := clustering.DetectMoods(songs, s.moods)
		return detected{moods, outliers}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return d.moods, d.outliers, nil
}

func (s *Service) newEnhancer(cat *features.Catalog) *recommend.Enhancer {
	opts := []clustering.Option{clustering.WithMaxIterations(s.engine.MaxIterations)}
	if s.engine.Seed != 0 {
		opts = append(opts, clustering.WithRandomSource(clustering.NewRandomSource(s.engine.Seed)))
	}
	km := clustering.NewKMeans(cat, opts...)
	selector := clustering.NewSelector(km, clustering.WithKRange(s.engine.MinK, s.engine.MaxK))
	return recommend.NewEnhancer(selector, similarity.NewScorer(cat), recommend.WithRatio(s.engine.Ratio))
}

// pool loads every stored song as a candidate.
func (s *Service) pool(ctx context.Context) ([]clustering.Song, error) {
	stored, err := s.songs.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading songs: %w", err)
	}
	pool := make([]clustering.Song, len(stored))
	for i, song := range stored {
		pool[i] = toClusteringSong(song)
	}
	return pool, nil
}

// compute runs fn on its own goroutine. A done context stops the wait, not
// the computation.
func compute[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func recordSelection(sel *clustering.Selection) {
	for _, c := range sel.Candidates {
		metrics.RecordFit(c.Fit.Iterations, c.Fit.Converged)
		metrics.SilhouetteScore.Observe(c.Score)
	}
	metrics.SelectedK.Observe(float64(sel.Best.K))
}

func entries(ranked []similarity.Ranked) []db.PlaylistEntry {
	out := make([]db.PlaylistEntry, len(ranked))
	for i, r := range ranked {
		score := r.Score
		out[i] = db.PlaylistEntry{SongID: r.Song.ID, Score: &score}
	}
	return out
}

func toClusteringSong(s db.Song) clustering.Song {
	song := clustering.Song{
		ID:       s.ID,
		Name:     s.Name,
		Artist:   s.Artist,
		Features: s.Features,
	}
	if s.ExternalURL != nil {
		song.ExternalURL = *s.ExternalURL
	}
	return song
}

// failureReason labels an error for the failure counter.
func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, db.ErrNotFound):
		return "not_found"
	case errors.Is(err, recommend.ErrInvalidFeatureSelection):
		return "invalid_features"
	case errors.Is(err, recommend.ErrInvalidSize):
		return "invalid_size"
	case errors.Is(err, recommend.ErrTargetOutOfRange):
		return "target_out_of_range"
	case errors.Is(err, recommend.ErrNoCandidates):
		return "no_candidates"
	case errors.Is(err, clustering.ErrDegenerateClustering):
		return "degenerate"
	case errors.Is(err, clustering.ErrNoSongs), errors.Is(err, clustering.ErrMissingFeatures):
		return "no_songs"
	default:
		return "error"
	}
}
