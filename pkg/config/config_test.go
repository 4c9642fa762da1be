package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DistURL != "" || cfg.CacheDir != "" {
		t.Errorf("expected zero config, got %+v", cfg)
	}
	if cfg.TTL() != DefaultCacheTTL {
		t.Errorf("TTL() = %v, want %v", cfg.TTL(), DefaultCacheTTL)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
dist_url = "https://example.com/dist/quicklisp.txt"
cache_dir = "/tmp/qlcache"
cache_ttl = "1h30m"

[manifest]
backend = "redis"

[manifest.redis]
addr = "localhost:6379"
db = 2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DistURL != "https://example.com/dist/quicklisp.txt" {
		t.Errorf("DistURL = %q", cfg.DistURL)
	}
	if cfg.TTL() != 90*time.Minute {
		t.Errorf("TTL() = %v, want 1h30m", cfg.TTL())
	}
	if cfg.Manifest.Backend != "redis" || cfg.Manifest.Redis.Addr != "localhost:6379" || cfg.Manifest.Redis.DB != 2 {
		t.Errorf("Manifest = %+v", cfg.Manifest)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad scheme", `dist_url = "ftp://example.com/quicklisp.txt"`},
		{"bad backend", "[manifest]\nbackend = \"memcached\"\n"},
		{"bad duration", `cache_ttl = "soon"`},
		{"not toml", `{"json": true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load() expected error")
			}
		})
	}
}

func TestManifestCacheBackends(t *testing.T) {
	ctx := context.Background()

	cfg := &Config{CacheDir: t.TempDir(), Manifest: ManifestConfig{Backend: "file"}}
	c, err := cfg.ManifestCache(ctx)
	if err != nil {
		t.Fatalf("ManifestCache(file) error = %v", err)
	}
	defer c.Close()
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Errorf("Get() = (%q, %v, %v)", got, ok, err)
	}

	cfg = &Config{Manifest: ManifestConfig{Backend: "none"}}
	n, err := cfg.ManifestCache(ctx)
	if err != nil {
		t.Fatalf("ManifestCache(none) error = %v", err)
	}
	defer n.Close()
	if _, ok, _ := n.Get(ctx, "k"); ok {
		t.Error("null cache reported a hit")
	}
}
