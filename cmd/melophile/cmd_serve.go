package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justestif/melophile/internal/features"
	"github.com/justestif/melophile/internal/logging"
	"github.com/justestif/melophile/internal/web"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API",
		Long: `Run the HTTP API. The schema is migrated on startup.

Import endpoints need Spotify credentials; without them the API serves
stored playlists only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				c.cfg.Server.Addr = addr
			}

			database, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.Migrate(ctx); err != nil {
				return err
			}

			var imp web.Importer
			if err := c.cfg.RequireSpotify(); err != nil {
				logging.Warn().Err(err).Msg("spotify import disabled")
			} else {
				svc, err := c.importer(ctx, database)
				if err != nil {
					return err
				}
				imp = svc
			}

			s := c.cfg.Server
			server := web.NewServer(web.ServerConfig{
				Addr:            s.Addr,
				ReadTimeout:     s.ReadTimeout,
				WriteTimeout:    s.WriteTimeout,
				IdleTimeout:     s.IdleTimeout,
				ShutdownTimeout: s.ShutdownTimeout,
			}, web.NewHandlers(c.playlistService(database), imp))

			return server.Run(ctx)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and seed feature definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			database, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.Migrate(ctx); err != nil {
				return err
			}
			defs := features.DefaultDefinitions()
			if err := database.Features().Seed(ctx, defs); err != nil {
				return err
			}

			if c.jsonOut {
				return c.printJSON(cmd.OutOrStdout(), map[string]any{"status": "migrated", "features": len(defs)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date, %d feature definitions seeded\n", len(defs))
			return nil
		},
	}
}
