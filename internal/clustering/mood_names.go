package clustering

import "github.com/justestif/melophile/internal/features"

// MoodName creates a descriptive name from a centroid's energy and valence.
// The second result is false when the centroid lacks either coordinate.
//
// Quadrants:
//   - High Energy + High Valence = "Upbeat Party"
//   - High Energy + Low Valence  = "Intense & Dark"
//   - Low Energy  + High Valence = "Chill & Happy"
//   - Low Energy  + Low Valence  = "Reflective & Melancholy"
//
// Acousticness modifier: if present and > 0.6, appends "(Acoustic)".
func MoodName(c Centroid) (string, bool) {
	energy, okEnergy := c.Value(features.Energy)
	valence, okValence := c.Value(features.Valence)
	if !okEnergy || !okValence {
		return "", false
	}

	category := categorize(energy, valence)
	if acousticness, ok := c.Value(features.Acousticness); ok && acousticness > 0.6 {
		return category.Name + " (Acoustic)", true
	}
	return category.Name, true
}

// MoodCategory represents a mood classification for display purposes.
type MoodCategory struct {
	Name        string  // Display name
	Energy      float64 // Energy level of the centroid
	Valence     float64 // Positivity of the centroid
	Description string  // Brief description of the mood
}

// GetMoodCategory returns a detailed mood category for a centroid.
// Missing energy or valence coordinates count as 0.
func GetMoodCategory(c Centroid) MoodCategory {
	energy, _ := c.Value(features.Energy)
	valence, _ := c.Value(features.Valence)
	category := categorize(energy, valence)
	if name, ok := MoodName(c); ok {
		category.Name = name
	}
	return category
}

// categorize applies the energy > 0.6 / valence > 0.5 thresholds.
func categorize(energy, valence float64) MoodCategory {
	highEnergy := energy > 0.6
	highValence := valence > 0.5

	c := MoodCategory{Energy: energy, Valence: valence}
	switch {
	case highEnergy && highValence:
		c.Name = "Upbeat Party"
		c.Description = "High-energy, positive vibes - perfect for dancing and celebrations"
	case highEnergy:
		c.Name = "Intense & Dark"
		c.Description = "Intense, driving energy with darker emotional tones"
	case highValence:
		c.Name = "Chill & Happy"
		c.Description = "Relaxed and uplifting - great for unwinding"
	default:
		c.Name = "Reflective & Melancholy"
		c.Description = "Contemplative and introspective - ideal for quiet moments"
	}
	return c
}
