package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/madmax88/quicklisp-client/pkg/config"
)

func TestCacheDir(t *testing.T) {
	// Clear XDG_CACHE_HOME to test default behavior
	oldXdg := os.Getenv("XDG_CACHE_HOME")
	os.Unsetenv("XDG_CACHE_HOME")
	defer func() {
		if oldXdg != "" {
			os.Setenv("XDG_CACHE_HOME", oldXdg)
		}
	}()

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	if dir == "" {
		t.Error("cacheDir() returned empty string")
	}

	home, _ := os.UserHomeDir()
	if !strings.HasPrefix(dir, home) {
		t.Errorf("cacheDir() = %q, should be under home %q", dir, home)
	}

	if !strings.HasSuffix(dir, appName) {
		t.Errorf("cacheDir() = %q, should end with %q", dir, appName)
	}

	if !strings.Contains(dir, ".cache") {
		t.Errorf("cacheDir() = %q, should contain '.cache'", dir)
	}
}

func TestCacheDirXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}

	want := filepath.Join("/tmp/xdg-cache", appName)
	if dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestArchiveDirConfigured(t *testing.T) {
	cfg := &config.Config{CacheDir: "/tmp/mycache"}

	dir, err := archiveDir(cfg)
	if err != nil {
		t.Fatalf("archiveDir() error: %v", err)
	}

	want := filepath.Join("/tmp/mycache", "archives")
	if dir != want {
		t.Errorf("archiveDir() = %q, want %q", dir, want)
	}
}

func TestEffectiveCacheDirConfigured(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("cache_dir = \"/tmp/override\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &CLI{configPath: cfgPath}
	got, err := c.effectiveCacheDir()
	if err != nil {
		t.Fatalf("effectiveCacheDir() error: %v", err)
	}
	if got != "/tmp/override" {
		t.Errorf("effectiveCacheDir() = %q, want the configured override", got)
	}
}

func TestEffectiveCacheDirDefault(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")

	c := &CLI{configPath: filepath.Join(t.TempDir(), "missing.toml")}
	got, err := c.effectiveCacheDir()
	if err != nil {
		t.Fatalf("effectiveCacheDir() error: %v", err)
	}

	want := filepath.Join("/tmp/xdg-cache", appName)
	if got != want {
		t.Errorf("effectiveCacheDir() = %q, want %q", got, want)
	}
}

func TestArchiveDirDefault(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")

	dir, err := archiveDir(&config.Config{})
	if err != nil {
		t.Fatalf("archiveDir() error: %v", err)
	}

	want := filepath.Join("/tmp/xdg-cache", appName, "archives")
	if dir != want {
		t.Errorf("archiveDir() = %q, want %q", dir, want)
	}
}
