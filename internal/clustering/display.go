package clustering

import (
	"fmt"
	"strings"
)

const sampleSongCount = 3

// FormatSelection returns a human-readable summary of a K search: one line
// per recorded candidate, then the clusters of the selected fit with their
// first 3 songs.
func FormatSelection(sel *Selection) string {
	var sb strings.Builder

	best := sel.Best
	fmt.Fprintf(&sb, "Selected K = %d (%d non-empty %s), average silhouette %.4f\n",
		best.K, best.Fit.Size(), plural(best.Fit.Size(), "cluster", "clusters"), best.Score)

	for _, c := range sel.Candidates {
		marker := " "
		if c.K == best.K {
			marker = "*"
		}
		fmt.Fprintf(&sb, " %s K=%-2d %d clusters, silhouette %.4f, %d iterations\n",
			marker, c.K, c.Fit.Size(), c.Score, c.Fit.Iterations)
	}
	if len(sel.Skipped) > 0 {
		fmt.Fprintf(&sb, "   skipped degenerate K: %v\n", sel.Skipped)
	}

	for i, cluster := range best.Fit.Clusters {
		sb.WriteString("\n")
		title := fmt.Sprintf("Cluster %d", i+1)
		if name, ok := MoodName(cluster.Centroid); ok {
			title += ": " + name
		}
		sb.WriteString(formatGroup(title, cluster.Centroid, cluster.Songs))
	}

	return sb.String()
}

// FormatMoodSummary returns a human-readable summary of detected moods.
// Outliers are summarized by count only.
func FormatMoodSummary(moods []Mood, outliers []Song) string {
	var sb strings.Builder

	total := len(outliers)
	for _, m := range moods {
		total += len(m.Songs)
	}

	if len(moods) == 0 {
		fmt.Fprintf(&sb, "No moods found from %d songs", total)
	} else {
		fmt.Fprintf(&sb, "Found %d %s from %d songs", len(moods), plural(len(moods), "mood", "moods"), total)
	}
	if len(outliers) > 0 {
		fmt.Fprintf(&sb, " (%d outliers skipped)", len(outliers))
	}
	sb.WriteString("\n")

	for i, m := range moods {
		sb.WriteString("\n")
		sb.WriteString(formatGroup(fmt.Sprintf("Mood %d: %s", i+1, m.Name), m.Centroid, m.Songs))
	}

	return sb.String()
}

// formatGroup formats a titled group of songs with its centroid.
func formatGroup(title string, centroid Centroid, songs []Song) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s (%d %s) at %s\n", title, len(songs), plural(len(songs), "song", "songs"), centroid)

	for _, s := range songs[:min(sampleSongCount, len(songs))] {
		fmt.Fprintf(&sb, "  • \"%s\" - %s\n", s.Name, s.Artist)
	}

	if remaining := len(songs) - sampleSongCount; remaining > 0 {
		fmt.Fprintf(&sb, "  ... and %d more\n", remaining)
	}

	return sb.String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
