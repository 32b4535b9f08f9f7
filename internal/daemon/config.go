// Package daemon holds the server configuration, loaded from a TOML file
// with sane defaults for a single-node deployment.
package daemon

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the full server configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Metrics MetricsConfig `toml:"metrics"`
	CORS    CORSConfig    `toml:"cors"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig selects and locates the document store backend.
type StorageConfig struct {
	// Backend is "json" (one pretty-printed file per collection) or
	// "sqlite" (a single database file holding the same documents).
	Backend string `toml:"backend"`
	DataDir string `toml:"data_dir"`
	// SeedDir optionally pre-populates first-run documents; files there
	// win over the hardcoded defaults.
	SeedDir string `toml:"seed_dir"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// CORSConfig configures cross-origin access for the SPA frontend.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// DefaultConfig returns the defaults used when no config file exists.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8480,
		},
		Storage: StorageConfig{
			Backend: "json",
			DataDir: "data",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}

// LoadConfig reads path over the defaults. A missing file is not an error;
// the defaults are returned as-is.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	if cfg.Storage.Backend != "json" && cfg.Storage.Backend != "sqlite" {
		return cfg, fmt.Errorf("storage.backend must be \"json\" or \"sqlite\", got %q", cfg.Storage.Backend)
	}
	return cfg, nil
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}
