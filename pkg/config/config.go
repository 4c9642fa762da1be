// Package config loads client configuration from a TOML file.
//
// The default location is ~/.config/quicklisp/config.toml. A missing file
// is not an error; all fields have working defaults, so a zero-config run
// uses the public distribution and file-based caching.
package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/madmax88/quicklisp-client/pkg/cache"
	"github.com/madmax88/quicklisp-client/pkg/errors"
)

// DefaultCacheTTL is how long fetched distribution metadata stays fresh.
const DefaultCacheTTL = 24 * time.Hour

// Duration wraps time.Duration so TOML values can be written as "24h".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config is the full client configuration.
type Config struct {
	// DistURL is the distinfo subscription location. Empty means the
	// public distribution.
	DistURL string `toml:"dist_url"`

	// CacheDir overrides the metadata and archive cache directory.
	// Empty means ~/.cache/quicklisp.
	CacheDir string `toml:"cache_dir"`

	// CacheTTL bounds how long cached distribution metadata is reused
	// before re-fetching. Zero means DefaultCacheTTL.
	CacheTTL Duration `toml:"cache_ttl"`

	// Manifest configures the bundle-manifest cache backend.
	Manifest ManifestConfig `toml:"manifest"`
}

// ManifestConfig selects where resolved bundle manifests are cached so
// repeat bundles of the same system set skip resolution.
type ManifestConfig struct {
	// Backend is one of "file", "redis", "mongo", or "none".
	// Empty means "file".
	Backend string `toml:"backend"`

	Redis RedisConfig `toml:"redis"`
	Mongo MongoConfig `toml:"mongo"`
}

// RedisConfig mirrors cache.RedisConfig with TOML tags.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// MongoConfig mirrors cache.MongoConfig with TOML tags.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "quicklisp", "config.toml"), nil
}

// Load reads the config file at path. An empty path means the default
// location. A missing file yields the zero config, which is fully usable.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, errors.Wrap(errors.ErrCodeIO, err, "reading config %s", path)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parsing config %s", path)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DistURL != "" {
		if err := errors.ValidateURL(c.DistURL); err != nil {
			return err
		}
	}
	switch c.Manifest.Backend {
	case "", "file", "redis", "mongo", "none":
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown manifest cache backend %q", c.Manifest.Backend)
	}
	return nil
}

// TTL returns the effective metadata cache TTL.
func (c *Config) TTL() time.Duration {
	if c.CacheTTL == 0 {
		return DefaultCacheTTL
	}
	return time.Duration(c.CacheTTL)
}

// ManifestCache builds the configured manifest cache backend. The caller
// owns the returned cache and must Close it.
func (c *Config) ManifestCache(ctx context.Context) (cache.Cache, error) {
	switch c.Manifest.Backend {
	case "", "file":
		dir := c.CacheDir
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			dir = filepath.Join(home, ".cache", "quicklisp")
		}
		return cache.NewFileCache(filepath.Join(dir, "manifests"))
	case "redis":
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.Manifest.Redis.Addr,
			Password: c.Manifest.Redis.Password,
			DB:       c.Manifest.Redis.DB,
		})
	case "mongo":
		return cache.NewMongoCache(ctx, cache.MongoConfig{
			URI:        c.Manifest.Mongo.URI,
			Database:   c.Manifest.Mongo.Database,
			Collection: c.Manifest.Mongo.Collection,
		})
	case "none":
		return cache.NewNullCache(), nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown manifest cache backend %q", c.Manifest.Backend)
	}
}
