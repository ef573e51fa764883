package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justestif/melophile/internal/export"
)

func newExportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the library and every playlist to CSV files",
		Long: `Write songs.csv with every stored song and one playlist_<name>.csv
per playlist. Files in the target directory are overwritten.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = c.cfg.Export.Dir
			}

			database, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			files, err := export.New(database.Songs(), database.Playlists(), dir).Export(ctx)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			if c.jsonOut {
				return c.printJSON(cmd.OutOrStdout(), map[string]any{"dir": dir, "files": files})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d file(s) to %s\n", len(files), dir)
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().String("dir", "", "Output directory (overrides export.dir)")
	return cmd
}
