// Package spotify provides a wrapper around the Spotify Web API.
//
// Every API call goes through a circuit breaker so that an unavailable or
// rate-limiting Spotify fails fast instead of stalling imports.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/zmb3/spotify/v2"

	"github.com/justestif/melophile/internal/logging"
	"github.com/justestif/melophile/internal/metrics"
)

// BreakerConfig configures the circuit breaker around API calls.
type BreakerConfig struct {
	MaxFailures uint32        // consecutive failures before opening
	Timeout     time.Duration // time spent open before probing again
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
	}
}

// Client wraps the Spotify API client with convenience methods.
type Client struct {
	api     *spotify.Client
	breaker *gobreaker.CircuitBreaker[any]
}

// Option configures a Client.
type Option func(*BreakerConfig)

// WithBreaker sets the circuit breaker configuration.
func WithBreaker(cfg BreakerConfig) Option {
	return func(c *BreakerConfig) {
		if cfg.MaxFailures > 0 {
			c.MaxFailures = cfg.MaxFailures
		}
		if cfg.Timeout > 0 {
			c.Timeout = cfg.Timeout
		}
	}
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client, opts ...Option) *Client {
	cfg := DefaultBreakerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{api: api, breaker: newBreaker(cfg)}
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[any] {
	metrics.SpotifyBreakerState.Set(stateValue(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "spotify-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.SpotifyBreakerState.Set(stateValue(to))
		},
	})
}

// execute runs fn through the breaker and records the outcome.
func execute[T any](c *Client, op string, fn func() (T, error)) (T, error) {
	var zero T

	result, err := c.breaker.Execute(func() (any, error) {
		v, err := fn()
		return v, err
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.SpotifyRequests.WithLabelValues(op, "rejected").Inc()
	case isSuccessful(err):
		metrics.SpotifyRequests.WithLabelValues(op, "success").Inc()
	default:
		metrics.SpotifyRequests.WithLabelValues(op, "failure").Inc()
	}
	if err != nil {
		return zero, err
	}

	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected result type %T", op, result)
	}
	return typed, nil
}

// isSuccessful reports whether err leaves the breaker closed. Running out
// of pages is a normal end of iteration.
func isSuccessful(err error) bool {
	return err == nil || errors.Is(err, spotify.ErrNoMorePages)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// UserID returns the current user's Spotify ID.
func (c *Client) UserID(ctx context.Context) (string, error) {
	user, err := execute(c, "current_user", func() (*spotify.PrivateUser, error) {
		return c.api.CurrentUser(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("getting current user: %w", err)
	}
	return user.ID, nil
}

// chunks splits [0,n) into consecutive [start,end) ranges of at most size.
func chunks(n, size int) [][2]int {
	var out [][2]int
	for i := 0; i < n; i += size {
		out = append(out, [2]int{i, min(i+size, n)})
	}
	return out
}
