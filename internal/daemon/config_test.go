package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.API.Host != "127.0.0.1" || cfg.API.Port != 8480 {
		t.Errorf("api defaults = %+v", cfg.API)
	}
	if cfg.Storage.Backend != "json" || cfg.Storage.DataDir != "data" {
		t.Errorf("storage defaults = %+v", cfg.Storage)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics should default to enabled")
	}
	if cfg.Addr() != "127.0.0.1:8480" {
		t.Errorf("addr = %q", cfg.Addr())
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.API.Port != 8480 || cfg.Storage.Backend != "json" {
		t.Errorf("missing file should return defaults, got %+v", cfg)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[api]
host = "0.0.0.0"
port = 9000

[storage]
backend = "sqlite"
data_dir = "/var/lib/ecotree"

[metrics]
enabled = false

[cors]
allowed_origins = ["https://app.example.org"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr() != "0.0.0.0:9000" {
		t.Errorf("addr = %q", cfg.Addr())
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.DataDir != "/var/lib/ecotree" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics should be disabled")
	}
	if len(cfg.CORS.AllowedOrigins) != 1 || cfg.CORS.AllowedOrigins[0] != "https://app.example.org" {
		t.Errorf("cors = %+v", cfg.CORS)
	}
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[storage]\nbackend = \"postgres\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for unknown backend")
	}
}
