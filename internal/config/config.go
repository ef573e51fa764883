// Package config loads melophile configuration from defaults, an optional
// YAML file and the environment, in increasing order of priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every melophile environment variable. Sections are
// separated by a double underscore: MELOPHILE_DATABASE__URL.
const EnvPrefix = "MELOPHILE_"

// PathEnvVar overrides the config file location.
const PathEnvVar = "MELOPHILE_CONFIG"

// DefaultPaths are searched in order when no config file is given.
var DefaultPaths = []string{"melophile.yaml", "melophile.yml"}

// legacyEnv maps unprefixed variables to config keys.
var legacyEnv = map[string]string{
	"database_url":   "database.url",
	"spotify_id":     "spotify.client_id",
	"spotify_secret": "spotify.client_secret",
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Spotify  SpotifyConfig  `koanf:"spotify"`
	Engine   EngineConfig   `koanf:"engine"`
	Log      LogConfig      `koanf:"log"`
	Export   ExportConfig   `koanf:"export"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// SpotifyConfig configures Spotify access.
type SpotifyConfig struct {
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	RedirectURL  string        `koanf:"redirect_url"`
	TokenCache   string        `koanf:"token_cache"` // directory; empty uses the user config dir
	Breaker      BreakerConfig `koanf:"breaker"`
}

// BreakerConfig configures the circuit breaker around Spotify calls.
type BreakerConfig struct {
	MaxFailures uint32        `koanf:"max_failures"`
	Timeout     time.Duration `koanf:"timeout"`
}

// EngineConfig configures clustering and enhancement.
type EngineConfig struct {
	MinK          int    `koanf:"min_k"`
	MaxK          int    `koanf:"max_k"`
	MaxIterations int    `koanf:"max_iterations"`
	EnhanceRatio  int    `koanf:"enhance_ratio"`
	Seed          uint64 `koanf:"seed"` // 0 seeds from the clock
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ExportConfig configures CSV export.
type ExportConfig struct {
	Dir string `koanf:"dir"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    2 * time.Minute,
			IdleTimeout:     time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Spotify: SpotifyConfig{
			RedirectURL: "http://127.0.0.1:8080/callback",
			Breaker: BreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
			},
		},
		Engine: EngineConfig{
			MinK:          2,
			MaxK:          10,
			MaxIterations: 100,
			EnhanceRatio:  3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Export: ExportConfig{
			Dir: "export",
		},
	}
}

// Load builds the configuration. An explicit path must exist; otherwise
// MELOPHILE_CONFIG and DefaultPaths are tried and a missing file is not an
// error. The result is validated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		path = findFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envKey maps an environment variable name to a config key, or to "" to
// ignore the variable.
func envKey(name string) string {
	key := strings.ToLower(name)
	if mapped, ok := legacyEnv[key]; ok {
		return mapped
	}

	rest, ok := strings.CutPrefix(key, strings.ToLower(EnvPrefix))
	if !ok || rest == "config" {
		return ""
	}
	return strings.ReplaceAll(rest, "__", ".")
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	e := c.Engine
	if e.MinK < 2 {
		return fmt.Errorf("%w: engine.min_k must be at least 2, got %d", ErrInvalidConfig, e.MinK)
	}
	if e.MaxK < e.MinK {
		return fmt.Errorf("%w: engine.max_k (%d) is below engine.min_k (%d)", ErrInvalidConfig, e.MaxK, e.MinK)
	}
	if e.MaxIterations < 1 {
		return fmt.Errorf("%w: engine.max_iterations must be at least 1", ErrInvalidConfig)
	}
	if e.EnhanceRatio < 1 {
		return fmt.Errorf("%w: engine.enhance_ratio must be at least 1", ErrInvalidConfig)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: log.format must be json or console, got %q", ErrInvalidConfig, c.Log.Format)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalidConfig)
	}
	return nil
}

// RequireDatabase checks that a database URL is set.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("%w: database.url is not set (MELOPHILE_DATABASE__URL or DATABASE_URL)", ErrInvalidConfig)
	}
	return nil
}

// RequireSpotify checks that Spotify application credentials are set.
func (c *Config) RequireSpotify() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify.client_id and spotify.client_secret are required (SPOTIFY_ID, SPOTIFY_SECRET)", ErrInvalidConfig)
	}
	return nil
}
