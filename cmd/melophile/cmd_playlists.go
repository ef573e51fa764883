package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/justestif/melophile/internal/clustering"
	"github.com/justestif/melophile/internal/db"
	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/playlists"
	"github.com/justestif/melophile/internal/similarity"
	"github.com/justestif/melophile/internal/spotify"
)

// rankedSong is the JSON form of a ranked song.
type rankedSong struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Artist string  `json:"artist"`
	Score  float64 `json:"score"`
}

type playlistOutput struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Songs []rankedSong `json:"songs"`
}

func newFeaturesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "List the audio features songs can be clustered on",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			database, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			defs, err := c.playlistService(database).Features(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if c.jsonOut {
				out := make([]map[string]any, len(defs))
				for i, d := range defs {
					out[i] = map[string]any{
						"name":       d.Name(),
						"data_type":  d.DataType,
						"min":        d.Min,
						"max":        d.Max,
						"normalized": d.Normalized,
					}
				}
				return c.printJSON(w, out)
			}

			fmt.Fprintf(w, "%-18s %-8s %8s %8s\n", "NAME", "TYPE", "MIN", "MAX")
			for _, d := range defs {
				name := d.Name()
				if d.Normalized {
					name += "*"
				}
				fmt.Fprintf(w, "%-18s %-8s %8g %8g\n", name, d.DataType, d.Min, d.Max)
			}
			fmt.Fprintln(w, "\n* already normalized to [0,1]")
			return nil
		},
	}
}

func newEnhanceCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enhance <playlist-id>",
		Short: "Extend a playlist with similar songs from the library",
		Long: `Cluster a stored playlist on two features, choosing the number of
clusters by silhouette score, then add the library songs most similar to
each cluster. The result is stored as a new playlist.

Examples:
  melophile enhance 6f1c... --features energy,valence
  melophile enhance 6f1c... --features "time signature,tempo"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid playlist id %q", args[0])
			}
			list, _ := cmd.Flags().GetString("features")
			chosen, err := features.ParseList(list)
			if err != nil {
				return err
			}
			if len(chosen) != 2 {
				return fmt.Errorf("%w: --features needs exactly two names", features.ErrInvalidSelection)
			}

			database, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			res, err := c.playlistService(database).Enhance(ctx, id, chosen[0], chosen[1])
			if err != nil {
				return fmt.Errorf("enhance failed: %w", err)
			}

			w := cmd.OutOrStdout()
			sel := res.Enhancement.Selection
			if c.jsonOut {
				return c.printJSON(w, map[string]any{
					"playlist":   newPlaylistOutput(res.Playlist, res.Enhancement.Songs),
					"k":          sel.Best.K,
					"silhouette": sel.Best.Score,
					"excluded":   res.Enhancement.Excluded,
				})
			}

			fmt.Fprint(w, clustering.FormatSelection(sel))
			fmt.Fprintln(w)
			printPlaylist(w, res.Playlist, res.Enhancement.Songs)
			return nil
		},
	}

	cmd.Flags().String("features", "", "Two comma-separated feature names (required)")
	_ = cmd.MarkFlagRequired("features")
	return cmd
}

func newGenerateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build a playlist around a song or a set of feature values",
		Long: `Rank the library by cosine similarity to a target and store the top
songs as a new playlist. The target is a stored song (--song), a Spotify
track that is imported first (--url) or custom feature values (--values).

Examples:
  melophile generate --song 4uLU6hMCjMI75M1A2tKUQC --size 30
  melophile generate --url https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC
  melophile generate --values energy=0.8,valence=0.6,tempo=120`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			size, _ := cmd.Flags().GetInt("size")
			songID, _ := cmd.Flags().GetString("song")
			rawURL, _ := cmd.Flags().GetString("url")
			rawValues, _ := cmd.Flags().GetString("values")

			database, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			svc := c.playlistService(database)

			var res *playlists.GenerateResult
			switch {
			case rawValues != "":
				values, err := parseValues(rawValues)
				if err != nil {
					return err
				}
				res, err = svc.GenerateFromValues(ctx, values, size)
				if err != nil {
					return fmt.Errorf("generate failed: %w", err)
				}
			case rawURL != "":
				id, err := spotify.ExtractTypedID(rawURL, spotify.TypeTrack)
				if err != nil {
					return err
				}
				imp, err := c.importer(ctx, database)
				if err != nil {
					return err
				}
				if _, err := imp.ImportTrack(ctx, id); err != nil {
					return fmt.Errorf("importing target: %w", err)
				}
				songID = id
				fallthrough
			default:
				res, err = svc.GenerateFromSong(ctx, songID, size)
				if err != nil {
					return fmt.Errorf("generate failed: %w", err)
				}
			}

			w := cmd.OutOrStdout()
			if c.jsonOut {
				return c.printJSON(w, newPlaylistOutput(res.Playlist, res.Generation.Songs))
			}
			printPlaylist(w, res.Playlist, res.Generation.Songs)
			return nil
		},
	}

	cmd.Flags().Int("size", 20, "Number of songs, 20 to 100")
	cmd.Flags().String("song", "", "ID of a stored song to use as the target")
	cmd.Flags().String("url", "", "Spotify track URL to import and use as the target")
	cmd.Flags().String("values", "", "Comma-separated feature=value pairs to use as the target")
	cmd.MarkFlagsOneRequired("song", "url", "values")
	cmd.MarkFlagsMutuallyExclusive("song", "url", "values")
	return cmd
}

func newMoodsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "moods <playlist-id>",
		Short: "Group a playlist's songs into moods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid playlist id %q", args[0])
			}

			database, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			moods, outliers, err := c.playlistService(database).Moods(ctx, id)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if c.jsonOut {
				out := make([]map[string]any, len(moods))
				for i, m := range moods {
					ids := make([]string, len(m.Songs))
					for j, s := range m.Songs {
						ids[j] = s.ID
					}
					out[i] = map[string]any{"name": m.Name, "songs": ids}
				}
				return c.printJSON(w, map[string]any{"moods": out, "outliers": len(outliers)})
			}
			fmt.Fprint(w, clustering.FormatMoodSummary(moods, outliers))
			return nil
		},
	}
}

// parseValues parses "energy=0.8,tempo=120" into named values. Features
// left out are filled with their range minimum when the target is built.
func parseValues(raw string) (features.Named, error) {
	values := features.Named{}
	for _, pair := range strings.Split(raw, ",") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		name, num, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid feature value %q: want name=value", pair)
		}
		f, err := features.Parse(name)
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", f, err)
		}
		values[f] = v
	}
	return values, nil
}

func newPlaylistOutput(p *db.Playlist, ranked []similarity.Ranked) playlistOutput {
	out := playlistOutput{ID: p.ID.String(), Name: p.Name, Songs: make([]rankedSong, len(ranked))}
	for i, r := range ranked {
		out.Songs[i] = rankedSong{ID: r.Song.ID, Name: r.Song.Name, Artist: r.Song.Artist, Score: r.Score}
	}
	return out
}

func printPlaylist(w io.Writer, p *db.Playlist, ranked []similarity.Ranked) {
	fmt.Fprintf(w, "✓ Created %q with %d songs\n", p.Name, len(ranked))
	fmt.Fprintf(w, "  ID: %s\n\n", p.ID)
	for i, r := range ranked {
		fmt.Fprintf(w, "  %3d. %.3f  %s - %s\n", i+1, r.Score, r.Song.Artist, r.Song.Name)
	}
}
