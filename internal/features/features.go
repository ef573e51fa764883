// Package features defines the song audio features known to melophile and
// the catalog of their declared ranges used for normalization.
package features

import (
	"fmt"
	"strings"
)

// Feature identifies one known song feature.
// The declaration order is the canonical order used for dense vectors.
type Feature int

const (
	Popularity Feature = iota
	Acousticness
	Danceability
	Energy
	Instrumentalness
	Key
	Liveness
	Loudness
	Mode
	Speechiness
	Tempo
	TimeSignature
	Valence

	numFeatures
)

// Count is the number of known features.
const Count = int(numFeatures)

// names is the lookup table from Feature to its canonical name.
var names = [numFeatures]string{
	Popularity:       "popularity",
	Acousticness:     "acousticness",
	Danceability:     "danceability",
	Energy:           "energy",
	Instrumentalness: "instrumentalness",
	Key:              "key",
	Liveness:         "liveness",
	Loudness:         "loudness",
	Mode:             "mode",
	Speechiness:      "speechiness",
	Tempo:            "tempo",
	TimeSignature:    "time_signature",
	Valence:          "valence",
}

// All returns every known feature in canonical order.
func All() []Feature {
	all := make([]Feature, numFeatures)
	for i := range all {
		all[i] = Feature(i)
	}
	return all
}

// Valid reports whether f is a known feature.
func (f Feature) Valid() bool {
	return f >= 0 && f < numFeatures
}

// String returns the canonical feature name.
func (f Feature) String() string {
	if !f.Valid() {
		return fmt.Sprintf("feature(%d)", int(f))
	}
	return names[f]
}

// Parse resolves a feature name. Matching ignores case and treats
// spaces and hyphens as underscores, so "time signature" parses.
func Parse(name string) (Feature, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	for i, n := range names {
		if n == key {
			return Feature(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
}

// ParseList parses a comma-separated list of feature names.
func ParseList(list string) ([]Feature, error) {
	var out []Feature
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Values holds one raw value per known feature, indexed by Feature.
type Values [numFeatures]float64

// Get returns the raw value of f.
func (v *Values) Get(f Feature) float64 {
	return v[f]
}

// Set stores the raw value of f.
func (v *Values) Set(f Feature, value float64) {
	v[f] = value
}

// Slice returns the raw values in canonical order.
func (v *Values) Slice() []float64 {
	out := make([]float64, numFeatures)
	copy(out, v[:])
	return out
}

// Named holds user-entered values for some of the features.
type Named map[Feature]float64

// ValuesFromSlice builds Values from a canonical-order slice.
// It fails when the slice length does not match Count.
func ValuesFromSlice(s []float64) (*Values, error) {
	if len(s) != Count {
		return nil, fmt.Errorf("expected %d feature values, got %d", Count, len(s))
	}
	var v Values
	copy(v[:], s)
	return &v, nil
}
