package similarity

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/justestif/melophile/internal/clustering"
	"github.com/justestif/melophile/internal/features"
)

func testCatalog(t *testing.T) *features.Catalog {
	t.Helper()
	c, err := features.NewCatalog([]features.Definition{
		{Feature: features.Energy, DataType: features.Real, Min: 0, Max: 1, Normalized: true},
		{Feature: features.Tempo, DataType: features.Real, Min: 0, Max: 200},
		{Feature: features.Valence, DataType: features.Real, Min: 0, Max: 1, Normalized: true},
	})
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	return c
}

func song(id string, energy, tempo, valence float64) clustering.Song {
	var v features.Values
	v.Set(features.Energy, energy)
	v.Set(features.Tempo, tempo)
	v.Set(features.Valence, valence)
	return clustering.Song{ID: id, Name: "Song " + id, Features: &v}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		v1   []float64
		v2   []float64
		want float64
	}{
		{"parallel", []float64{1, 2}, []float64{2, 4}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"length mismatch", []float64{1, 0}, []float64{1, 0, 0}, Incomparable},
		{"nil", nil, []float64{1}, Incomparable},
		{"empty", []float64{}, []float64{}, Incomparable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.v1, tt.v2); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineZeroMagnitude(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 8))

	for range 100 {
		n := 1 + r.IntN(12)
		v := make([]float64, n)
		for i := range v {
			v[i] = 0.01 + r.Float64()
			if r.IntN(2) == 0 {
				v[i] = -v[i]
			}
		}
		zero := make([]float64, n)

		for _, got := range []float64{Cosine(zero, v), Cosine(v, zero), Cosine(zero, zero)} {
			if !math.IsNaN(got) {
				t.Fatalf("Cosine() with zero vector of length %d = %v, want NaN", n, got)
			}
			if Selectable(got) {
				t.Fatalf("NaN score for length %d is selectable", n)
			}
		}
	}
}

func TestRankSkipsZeroMagnitudeSongs(t *testing.T) {
	s := NewScorer(testCatalog(t))
	r := rand.New(rand.NewPCG(13, 21))

	for range 50 {
		target := song("target", r.Float64(), r.Float64()*200, r.Float64())
		pool := make([]clustering.Song, 0, 11)
		for i := range 10 {
			pool = append(pool, song(string(rune('a'+i)), 0.01+r.Float64(), r.Float64()*200, r.Float64()))
		}
		// All features at their range minimum normalize to a zero vector.
		zero := song("zero", 0, 0, 0)
		pool = slices.Insert(pool, r.IntN(len(pool)+1), zero)

		if got := s.Songs(target, zero); !math.IsNaN(got) {
			t.Fatalf("Songs(target, zero) = %v, want NaN", got)
		}

		ranked := Rank(pool, func(c clustering.Song) float64 { return s.Songs(target, c) })
		if len(ranked) != len(pool)-1 {
			t.Fatalf("Rank() returned %d songs, want %d", len(ranked), len(pool)-1)
		}
		for _, rs := range ranked {
			if rs.Song.ID == "zero" {
				t.Fatal("Rank() returned the zero-magnitude song")
			}
			if !Selectable(rs.Score) {
				t.Fatalf("Rank() returned unselectable score %v for %s", rs.Score, rs.Song.ID)
			}
		}
	}
}

func TestSelectable(t *testing.T) {
	tests := []struct {
		score float64
		want  bool
	}{
		{1, true},
		{0, true},
		{-0.5, true},
		{Incomparable, false},
		{math.NaN(), false},
	}
	for _, tt := range tests {
		if got := Selectable(tt.score); got != tt.want {
			t.Errorf("Selectable(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestSongsIdentity(t *testing.T) {
	s := NewScorer(testCatalog(t))

	// Zero vector would be NaN without the identity short-circuit.
	zero := song("z", 0, 0, 0)
	if got := s.Songs(zero, zero); got != 1 {
		t.Errorf("Songs(z, z) = %v, want 1", got)
	}

	r := rand.New(rand.NewPCG(1, 1))
	for i := range 50 {
		a := song(string(rune('a'+i%26)), r.Float64(), r.Float64()*200, r.Float64())
		if got := s.Songs(a, a); got != 1 {
			t.Errorf("Songs(%s, %s) = %v, want 1", a.ID, a.ID, got)
		}
	}
}

func TestSongsSymmetric(t *testing.T) {
	s := NewScorer(testCatalog(t))
	r := rand.New(rand.NewPCG(2, 3))

	for range 100 {
		a := song("a", r.Float64(), r.Float64()*200, r.Float64())
		b := song("b", r.Float64(), r.Float64()*200, r.Float64())
		ab, ba := s.Songs(a, b), s.Songs(b, a)
		if ab != ba {
			t.Fatalf("Songs(a,b) = %v, Songs(b,a) = %v", ab, ba)
		}
		if ab < -1-1e-12 || ab > 1+1e-12 {
			t.Errorf("Songs() = %v outside [-1,1]", ab)
		}
	}
}

func TestSongsNormalizesRawValues(t *testing.T) {
	s := NewScorer(testCatalog(t))

	// Tempo 200 normalizes to 1, so both songs point the same way.
	a := song("a", 0.5, 100, 0.5)
	b := song("b", 1, 200, 1)
	if got := s.Songs(a, b); math.Abs(got-1) > 1e-12 {
		t.Errorf("Songs() = %v, want 1", got)
	}
}

func TestSongsIncomparable(t *testing.T) {
	s := NewScorer(testCatalog(t))
	a := song("a", 0.5, 100, 0.5)

	if got := s.Songs(a, clustering.Song{ID: "b"}); got != Incomparable {
		t.Errorf("Songs() with missing features = %v, want Incomparable", got)
	}
	if got := s.Songs(clustering.Song{}, clustering.Song{}); got != Incomparable {
		t.Errorf("Songs() of two empty songs = %v, want Incomparable", got)
	}
}

func TestCentroid(t *testing.T) {
	s := NewScorer(testCatalog(t))
	chosen := []features.Feature{features.Energy, features.Tempo}
	c := clustering.NewCentroid(clustering.FeatureMap{features.Energy: 0.5, features.Tempo: 0.5})

	tests := []struct {
		name   string
		song   clustering.Song
		chosen []features.Feature
		want   float64
		nan    bool
	}{
		{"same direction", song("a", 1, 200, 0), chosen, 1, false},
		{"centroid lacks feature", song("b", 0, 0, 0.9), []features.Feature{features.Valence}, Incomparable, false},
		{"energy only", song("c", 1, 0, 0), chosen, math.Sqrt(0.5), false},
		{"zero song vector", song("d", 0, 0, 1), chosen, 0, true},
		{"no features", clustering.Song{ID: "e"}, chosen, Incomparable, false},
		{"empty selection", song("f", 1, 1, 1), nil, Incomparable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Centroid(c, tt.song, tt.chosen)
			if tt.nan {
				if !math.IsNaN(got) {
					t.Errorf("Centroid() = %v, want NaN", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Centroid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCentroidNoIdentityShortCircuit(t *testing.T) {
	s := NewScorer(testCatalog(t))
	c := clustering.NewCentroid(clustering.FeatureMap{features.Energy: 0, features.Valence: 0})

	if got := s.Centroid(c, song("a", 0.5, 0, 0.5), []features.Feature{features.Energy, features.Valence}); !math.IsNaN(got) {
		t.Errorf("Centroid() at origin = %v, want NaN", got)
	}
}

func TestRank(t *testing.T) {
	candidates := []clustering.Song{{ID: "low"}, {ID: "nan"}, {ID: "tieA"}, {ID: "bad"}, {ID: "high"}, {ID: "tieB"}}
	scores := map[string]float64{
		"low":  0.1,
		"nan":  math.NaN(),
		"tieA": 0.5,
		"bad":  Incomparable,
		"high": 0.9,
		"tieB": 0.5,
	}

	ranked := Rank(candidates, func(s clustering.Song) float64 { return scores[s.ID] })

	var ids []string
	for _, r := range ranked {
		ids = append(ids, r.Song.ID)
	}
	want := []string{"high", "tieA", "tieB", "low"}
	if !slices.Equal(ids, want) {
		t.Errorf("Rank() = %v, want %v", ids, want)
	}
}

func TestTop(t *testing.T) {
	ranked := []Ranked{{Score: 3}, {Score: 2}, {Score: 1}}

	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{2, 2},
		{3, 3},
		{10, 3},
		{-1, 0},
	}
	for _, tt := range tests {
		if got := len(Top(ranked, tt.n)); got != tt.want {
			t.Errorf("len(Top(%d)) = %d, want %d", tt.n, got, tt.want)
		}
	}
}
