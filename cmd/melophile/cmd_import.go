package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/justestif/melophile/internal/importer"
)

func newImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import <spotify-url>",
		Short: "Import a Spotify track or playlist",
		Long: `Fetch a track or a playlist with its audio features and store it.

Both open.spotify.com links and spotify: URIs are accepted. Importing a
playlist again refreshes its songs.

Examples:
  melophile import https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M
  melophile import spotify:track:4uLU6hMCjMI75M1A2tKUQC`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			database, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			imp, err := c.importer(ctx, database)
			if err != nil {
				return err
			}

			res, err := imp.Import(ctx, args[0])
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			if c.jsonOut {
				return c.printJSON(cmd.OutOrStdout(), importOutput(res))
			}
			printImport(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func importOutput(res *importer.Result) map[string]any {
	out := map[string]any{
		"kind":             res.Kind,
		"songs":            len(res.Songs),
		"missing_features": res.MissingFeatures,
		"imported_at":      res.ImportedAt,
	}
	if res.Playlist != nil {
		out["playlist_id"] = res.Playlist.ID.String()
		out["playlist"] = res.Playlist.Name
		out["updated"] = res.Updated
	}
	return out
}

func printImport(w io.Writer, res *importer.Result) {
	if res.Playlist == nil {
		for _, s := range res.Songs {
			fmt.Fprintf(w, "✓ Imported %q by %s\n", s.Name, s.Artist)
		}
	} else {
		verb := "Imported"
		if res.Updated {
			verb = "Refreshed"
		}
		fmt.Fprintf(w, "✓ %s playlist %q: %d songs\n", verb, res.Playlist.Name, len(res.Songs))
		fmt.Fprintf(w, "  ID: %s\n", res.Playlist.ID)
	}
	if res.MissingFeatures > 0 {
		fmt.Fprintf(w, "  %d song(s) have no audio features and will not be clustered\n", res.MissingFeatures)
	}
}
