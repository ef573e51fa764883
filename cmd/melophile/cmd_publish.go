package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/justestif/melophile/internal/auth"
	"github.com/justestif/melophile/internal/spotify"
)

const publishDescription = "Created by melophile"

func newPublishCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <playlist-id>",
		Short: "Create a stored playlist in your Spotify account",
		Long: `Create a Spotify playlist with the songs of a stored playlist, in rank
order. The first run opens the Spotify authorization flow; the token is
cached for later runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid playlist id %q", args[0])
			}
			if err := c.cfg.RequireSpotify(); err != nil {
				return err
			}

			database, err := c.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			playlist, songs, err := c.playlistService(database).Playlist(ctx, id)
			if err != nil {
				return err
			}
			if len(songs) == 0 {
				return fmt.Errorf("playlist %q has no songs", playlist.Name)
			}

			authenticator, err := c.userAuthenticator(cmd)
			if err != nil {
				return err
			}
			api, err := authenticator.Authenticate(ctx)
			if err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			client := spotify.New(api, c.breaker())

			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = playlist.Name
			}
			public, _ := cmd.Flags().GetBool("public")

			remoteID, err := client.CreatePlaylist(ctx, name, publishDescription, public)
			if err != nil {
				return err
			}
			trackIDs := make([]string, len(songs))
			for i, s := range songs {
				trackIDs[i] = s.Song.ID
			}
			if err := client.AddTracksToPlaylist(ctx, remoteID, trackIDs); err != nil {
				return err
			}

			url := "https://open.spotify.com/playlist/" + remoteID
			if c.jsonOut {
				return c.printJSON(cmd.OutOrStdout(), map[string]any{
					"spotify_id": remoteID,
					"url":        url,
					"tracks":     len(trackIDs),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Published %q with %d tracks\n", name, len(trackIDs))
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", url)
			return nil
		},
	}

	cmd.Flags().String("name", "", "Spotify playlist name (default: the stored name)")
	cmd.Flags().Bool("public", false, "Make the Spotify playlist public")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached Spotify user token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.RequireSpotify(); err != nil {
				return err
			}
			authenticator, err := c.userAuthenticator(cmd)
			if err != nil {
				return err
			}
			if err := authenticator.Logout(); err != nil {
				return fmt.Errorf("removing cached token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			return nil
		},
	}
}

func (c *cli) userAuthenticator(cmd *cobra.Command) (*auth.Authenticator, error) {
	cache, err := c.tokenCache(auth.UserTokenFile)
	if err != nil {
		return nil, err
	}
	return auth.New(c.credentials(), cache, cmd.ErrOrStderr())
}
