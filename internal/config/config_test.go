package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "melophile.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	if cfg.Server != want.Server {
		t.Errorf("Server = %+v, want %+v", cfg.Server, want.Server)
	}
	if cfg.Engine != want.Engine {
		t.Errorf("Engine = %+v, want %+v", cfg.Engine, want.Engine)
	}
	if cfg.Spotify.Breaker != want.Spotify.Breaker {
		t.Errorf("Breaker = %+v, want %+v", cfg.Spotify.Breaker, want.Spotify.Breaker)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9000"
  write_timeout: 45s
engine:
  max_k: 6
  seed: 42
spotify:
  breaker:
    max_failures: 2
log:
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want :9000", cfg.Server.Addr)
	}
	if cfg.Server.WriteTimeout != 45*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want 45s", cfg.Server.WriteTimeout)
	}
	if cfg.Server.ReadTimeout != Default().Server.ReadTimeout {
		t.Errorf("Server.ReadTimeout = %v, want default", cfg.Server.ReadTimeout)
	}
	if cfg.Engine.MaxK != 6 || cfg.Engine.MinK != 2 || cfg.Engine.Seed != 42 {
		t.Errorf("Engine = %+v", cfg.Engine)
	}
	if cfg.Spotify.Breaker.MaxFailures != 2 {
		t.Errorf("Breaker.MaxFailures = %d, want 2", cfg.Spotify.Breaker.MaxFailures)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "engine:\n  max_k: 6\ndatabase:\n  url: postgres://file\n")
	t.Setenv("MELOPHILE_ENGINE__MAX_K", "8")
	t.Setenv("MELOPHILE_SPOTIFY__BREAKER__TIMEOUT", "1m")
	t.Setenv("MELOPHILE_DATABASE__URL", "postgres://env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Engine.MaxK != 8 {
		t.Errorf("Engine.MaxK = %d, want 8", cfg.Engine.MaxK)
	}
	if cfg.Spotify.Breaker.Timeout != time.Minute {
		t.Errorf("Breaker.Timeout = %v, want 1m", cfg.Spotify.Breaker.Timeout)
	}
	if cfg.Database.URL != "postgres://env" {
		t.Errorf("Database.URL = %q, want postgres://env", cfg.Database.URL)
	}
}

func TestLoadLegacyEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://legacy")
	t.Setenv("SPOTIFY_ID", "id")
	t.Setenv("SPOTIFY_SECRET", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.URL != "postgres://legacy" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if err := cfg.RequireSpotify(); err != nil {
		t.Errorf("RequireSpotify() error = %v", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		t.Errorf("RequireDatabase() error = %v", err)
	}
}

func TestLoadConfigPathEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(PathEnvVar, writeFile(t, "export:\n  dir: /tmp/csv\n"))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Export.Dir != "/tmp/csv" {
		t.Errorf("Export.Dir = %q, want /tmp/csv", cfg.Export.Dir)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() error = nil, want error for missing file")
	}
}

func TestLoadInvalid(t *testing.T) {
	path := writeFile(t, "engine:\n  min_k: 1\n")

	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"min k below 2", func(c *Config) { c.Engine.MinK = 1 }, true},
		{"max k below min k", func(c *Config) { c.Engine.MinK, c.Engine.MaxK = 5, 4 }, true},
		{"single k", func(c *Config) { c.Engine.MinK, c.Engine.MaxK = 3, 3 }, false},
		{"zero iterations", func(c *Config) { c.Engine.MaxIterations = 0 }, true},
		{"zero ratio", func(c *Config) { c.Engine.EnhanceRatio = 0 }, true},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, true},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	cfg := Default()
	if err := cfg.RequireDatabase(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("RequireDatabase() error = %v, want ErrInvalidConfig", err)
	}
	if err := cfg.RequireSpotify(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("RequireSpotify() error = %v, want ErrInvalidConfig", err)
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"MELOPHILE_DATABASE__URL", "database.url"},
		{"MELOPHILE_ENGINE__MIN_K", "engine.min_k"},
		{"MELOPHILE_SPOTIFY__BREAKER__MAX_FAILURES", "spotify.breaker.max_failures"},
		{"MELOPHILE_CONFIG", ""},
		{"DATABASE_URL", "database.url"},
		{"SPOTIFY_ID", "spotify.client_id"},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := envKey(tt.name); got != tt.want {
				t.Errorf("envKey(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
