package clustering

import (
	"strings"
	"testing"

	"github.com/justestif/melophile/internal/features"
)

func TestFormatGroup(t *testing.T) {
	centroid := NewCentroid(FeatureMap{features.Energy: 0.5})

	tests := []struct {
		name        string
		songs       []Song
		contains    []string
		notContains []string
	}{
		{
			name:     "single song",
			songs:    []Song{{Name: "Only", Artist: "One"}},
			contains: []string{"Title (1 song)", `"Only" - One`},
		},
		{
			name: "exactly three songs",
			songs: []Song{
				{Name: "A", Artist: "X"}, {Name: "B", Artist: "X"}, {Name: "C", Artist: "X"},
			},
			contains:    []string{"(3 songs)", `"A" - X`, `"C" - X`},
			notContains: []string{"more"},
		},
		{
			name: "more than three songs",
			songs: []Song{
				{Name: "A", Artist: "X"}, {Name: "B", Artist: "X"}, {Name: "C", Artist: "X"},
				{Name: "D", Artist: "X"}, {Name: "E", Artist: "X"},
			},
			contains:    []string{"(5 songs)", "... and 2 more"},
			notContains: []string{`"D" - X`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatGroup("Title", centroid, tt.songs)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("formatGroup() missing %q in:\n%s", want, got)
				}
			}
			for _, unwanted := range tt.notContains {
				if strings.Contains(got, unwanted) {
					t.Errorf("formatGroup() should not contain %q in:\n%s", unwanted, got)
				}
			}
		})
	}
}

func TestFormatMoodSummary(t *testing.T) {
	moods := []Mood{
		{
			Name:     "Upbeat Party",
			Songs:    []Song{{Name: "A", Artist: "X"}, {Name: "B", Artist: "Y"}, {Name: "C", Artist: "Z"}},
			Centroid: moodCentroid(0.8, 0.7, 0.6, 0.2),
		},
	}
	outliers := []Song{{Name: "Lonely"}}

	got := FormatMoodSummary(moods, outliers)
	for _, want := range []string{"Found 1 mood from 4 songs", "(1 outliers skipped)", "Mood 1: Upbeat Party"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatMoodSummary() missing %q in:\n%s", want, got)
		}
	}

	if got := FormatMoodSummary(nil, outliers); !strings.Contains(got, "No moods found from 1 songs") {
		t.Errorf("FormatMoodSummary(nil) = %q", got)
	}
}

func TestFormatSelection(t *testing.T) {
	fit := &Fit{
		K:        3,
		Features: energyValence,
		Clusters: []Cluster{
			{Centroid: NewCentroid(FeatureMap{features.Energy: 0.9, features.Valence: 0.9}), Songs: []Song{makeSong("a", 0.9, 0.9)}},
			{Centroid: NewCentroid(FeatureMap{features.Energy: 0.1, features.Valence: 0.1}), Songs: []Song{makeSong("b", 0.1, 0.1)}},
		},
		Iterations: 2,
		Converged:  true,
	}
	best := Candidate{K: 3, Fit: fit, Score: 0.75}
	sel := &Selection{Best: best, Candidates: []Candidate{best}, Skipped: []int{2}}

	got := FormatSelection(sel)
	for _, want := range []string{
		"Selected K = 3 (2 non-empty clusters)",
		"* K=3",
		"skipped degenerate K: [2]",
		"Cluster 1: Upbeat Party",
		"Cluster 2: Reflective & Melancholy",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatSelection() missing %q in:\n%s", want, got)
		}
	}
}
