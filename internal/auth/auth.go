package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/justestif/melophile/internal/logging"
)

const callbackTimeout = 2 * time.Minute

// DefaultRedirectURL uses the explicit IPv4 loopback Spotify requires for
// local development.
const DefaultRedirectURL = "http://127.0.0.1:8080/callback"

var (
	// ErrMissingCredentials is returned when the client ID or secret is empty.
	ErrMissingCredentials = errors.New("missing Spotify client ID or client secret")

	// ErrAuthTimeout is returned when the OAuth callback is not received in time.
	ErrAuthTimeout = errors.New("authentication timed out waiting for callback")

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")
)

// Credentials identify the Spotify application.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (c Credentials) validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}

// ClientCredentials returns a Spotify client authorized as the application
// itself. Tokens are cached on disk and renewed when they expire.
// A nil cache disables persistence.
func ClientCredentials(ctx context.Context, creds Credentials, cache *TokenCache) (*spotify.Client, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}

	cfg := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	var source oauth2.TokenSource = cfg.TokenSource(ctx)
	if cache != nil {
		source = &cachingSource{base: source, cache: cache}
	}
	source = oauth2.ReuseTokenSource(nil, source)

	if _, err := source.Token(); err != nil {
		return nil, fmt.Errorf("requesting client credentials token: %w", err)
	}

	return spotify.New(oauth2.NewClient(ctx, source), spotify.WithRetry(true)), nil
}

// Authenticator runs the user authorization code flow, needed to create
// playlists in a user's account.
type Authenticator struct {
	auth     *spotifyauth.Authenticator
	cache    *TokenCache
	redirect *url.URL
	out      io.Writer
}

// New creates an Authenticator for the user flow. Instructions for the
// user are written to out.
func New(creds Credentials, cache *TokenCache, out io.Writer) (*Authenticator, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	if cache == nil {
		return nil, errors.New("token cache is required")
	}

	redirectURL := creds.RedirectURL
	if redirectURL == "" {
		redirectURL = DefaultRedirectURL
	}
	redirect, err := url.Parse(redirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("invalid redirect URL %q", redirectURL)
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(creds.ClientID),
		spotifyauth.WithClientSecret(creds.ClientSecret),
		spotifyauth.WithRedirectURL(redirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
		),
	)

	return &Authenticator{
		auth:     auth,
		cache:    cache,
		redirect: redirect,
		out:      out,
	}, nil
}

// Authenticate returns a client authorized for the user.
// A cached token is reused when it still works; otherwise the full OAuth
// flow runs.
func (a *Authenticator) Authenticate(ctx context.Context) (*spotify.Client, error) {
	token, err := a.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("loading cached token: %w", err)
	}

	if token != nil {
		// oauth2 refreshes the token transparently if needed
		client := spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true))

		if _, err := client.CurrentUser(ctx); err == nil {
			newToken, tokenErr := client.Token()
			if tokenErr == nil && newToken.AccessToken != token.AccessToken {
				if err := a.cache.Save(newToken); err != nil {
					warnCacheFailure(err)
				}
			}
			return client, nil
		}

		logging.Info().Str("cache", a.cache.Path()).Msg("cached token rejected, starting new authentication")
	}

	return a.runOAuthFlow(ctx)
}

// runOAuthFlow performs the full OAuth authorization code flow.
func (a *Authenticator) runOAuthFlow(ctx context.Context) (*spotify.Client, error) {
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	tokenCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(a.callbackPath(), func(w http.ResponseWriter, r *http.Request) {
		a.handleCallback(w, r, state, tokenCh, errCh)
	})

	server := &http.Server{
		Addr:              a.redirect.Host,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("callback server error: %w", err)
		}
	}()

	fmt.Fprintln(a.out, "\nTo authenticate, open this URL in your browser:")
	fmt.Fprintln(a.out, a.auth.AuthURL(state))
	fmt.Fprintln(a.out, "\nWaiting for authentication...")

	var token *oauth2.Token
	select {
	case token = <-tokenCh:
	case err := <-errCh:
		_ = server.Shutdown(ctx)
		return nil, err
	case <-time.After(callbackTimeout):
		_ = server.Shutdown(ctx)
		return nil, ErrAuthTimeout
	case <-ctx.Done():
		_ = server.Shutdown(context.Background())
		return nil, ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	if err := a.cache.Save(token); err != nil {
		warnCacheFailure(err)
	}

	return spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true)), nil
}

func (a *Authenticator) callbackPath() string {
	if a.redirect.Path == "" {
		return "/"
	}
	return a.redirect.Path
}

// handleCallback processes the OAuth callback from Spotify.
func (a *Authenticator) handleCallback(w http.ResponseWriter, r *http.Request, expectedState string, tokenCh chan<- *oauth2.Token, errCh chan<- error) {
	if r.URL.Query().Get("state") != expectedState {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		errCh <- ErrStateMismatch
		return
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, "Authentication failed: "+errMsg, http.StatusBadRequest)
		errCh <- fmt.Errorf("spotify auth error: %s", errMsg)
		return
	}

	token, err := a.auth.Token(r.Context(), expectedState, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		errCh <- fmt.Errorf("exchanging code for token: %w", err)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>melophile</title></head>
<body>
<h1>Authentication Successful!</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)

	tokenCh <- token
}

// generateState creates a random state string for OAuth.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Logout removes the cached user token.
func (a *Authenticator) Logout() error {
	return a.cache.Delete()
}

func warnCacheFailure(err error) {
	logging.Warn().Err(err).Msg("failed to cache token")
}
