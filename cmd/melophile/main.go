// Command melophile clusters playlists by audio features and builds new
// playlists from them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/justestif/melophile/internal/auth"
	"github.com/justestif/melophile/internal/config"
	"github.com/justestif/melophile/internal/db"
	"github.com/justestif/melophile/internal/importer"
	"github.com/justestif/melophile/internal/logging"
	"github.com/justestif/melophile/internal/playlists"
	"github.com/justestif/melophile/internal/spotify"
)

var version = "0.1.0-dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

// cli carries state shared by every subcommand once the root command has
// loaded the configuration.
type cli struct {
	configPath string
	jsonOut    bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "melophile",
		Short: "Playlist enhancement and generation from audio features",
		Long: `melophile imports Spotify tracks and playlists, clusters them by
audio features and builds new playlists from the clusters.

Enhance a playlist by clustering it on two features and pulling the most
similar songs from the library into every cluster, or generate a playlist
around a single song or a set of feature values.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(c),
		newServeCmd(c),
		newMigrateCmd(c),
		newImportCmd(c),
		newFeaturesCmd(c),
		newEnhanceCmd(c),
		newGenerateCmd(c),
		newMoodsCmd(c),
		newExportCmd(c),
		newPublishCmd(c),
		newLogoutCmd(c),
	)

	return rootCmd
}

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.jsonOut {
				return c.printJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "melophile version %s\n", version)
			return nil
		},
	}
}

// load reads the configuration and initializes logging.
func (c *cli) load() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.Format = cfg.Log.Format
	logCfg.Caller = cfg.Log.Caller
	logging.Init(logCfg)
	return nil
}

// openDB connects to PostgreSQL. The caller closes the returned DB.
func (c *cli) openDB(ctx context.Context) (*db.DB, error) {
	if err := c.cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	database, err := db.New(ctx, c.cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return database, nil
}

func (c *cli) engineConfig() playlists.EngineConfig {
	e := c.cfg.Engine
	return playlists.EngineConfig{
		MinK:          e.MinK,
		MaxK:          e.MaxK,
		MaxIterations: e.MaxIterations,
		Ratio:         e.EnhanceRatio,
		Seed:          e.Seed,
	}
}

func (c *cli) playlistService(database *db.DB) *playlists.Service {
	return playlists.New(database.Songs(), database.Playlists(), database.Features(),
		playlists.WithEngineConfig(c.engineConfig()))
}

func (c *cli) credentials() auth.Credentials {
	return auth.Credentials{
		ClientID:     c.cfg.Spotify.ClientID,
		ClientSecret: c.cfg.Spotify.ClientSecret,
		RedirectURL:  c.cfg.Spotify.RedirectURL,
	}
}

func (c *cli) tokenCache(name string) (*auth.TokenCache, error) {
	if dir := c.cfg.Spotify.TokenCache; dir != "" {
		return auth.NewTokenCache(filepath.Join(dir, name)), nil
	}
	return auth.DefaultTokenCache(name)
}

func (c *cli) breaker() spotify.Option {
	b := c.cfg.Spotify.Breaker
	return spotify.WithBreaker(spotify.BreakerConfig{MaxFailures: b.MaxFailures, Timeout: b.Timeout})
}

// spotifyClient returns a catalog client authorized as the application.
func (c *cli) spotifyClient(ctx context.Context) (*spotify.Client, error) {
	if err := c.cfg.RequireSpotify(); err != nil {
		return nil, err
	}
	cache, err := c.tokenCache(auth.AppTokenFile)
	if err != nil {
		return nil, err
	}
	api, err := auth.ClientCredentials(ctx, c.credentials(), cache)
	if err != nil {
		return nil, fmt.Errorf("authorizing with Spotify: %w", err)
	}
	return spotify.New(api, c.breaker()), nil
}

func (c *cli) importer(ctx context.Context, database *db.DB) (*importer.Service, error) {
	client, err := c.spotifyClient(ctx)
	if err != nil {
		return nil, err
	}
	return importer.New(client, database.Songs(), database.Playlists()), nil
}

func (c *cli) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
