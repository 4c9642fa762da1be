// Package cli implements the ql command-line interface.
//
// This package provides commands for bundling system closures into
// self-contained directories, browsing distribution contents, exporting
// dependency graphs, serving bundles over HTTP, and managing the local
// cache. The CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - bundle: Resolve systems and materialize them into a target directory
//   - systems: List or interactively browse the distribution's systems
//   - dist: Show distribution metadata
//   - graph: Export a bundle's dependency graph (DOT, SVG, PNG, JSON)
//   - serve: Serve a materialized bundle over HTTP
//   - cache: Manage the local metadata and archive cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/madmax88/quicklisp-client/pkg/buildinfo"
	"github.com/madmax88/quicklisp-client/pkg/cache"
	"github.com/madmax88/quicklisp-client/pkg/config"
	"github.com/madmax88/quicklisp-client/pkg/dist"
	"github.com/madmax88/quicklisp-client/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "quicklisp"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "ql",
		Short:        "ql bundles Common Lisp systems into self-contained directories",
		Long:         `ql resolves the dependency closure of one or more systems against a package distribution and materializes it as a self-contained bundle directory that loads without network access.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.config/quicklisp/config.toml)")

	// Register all subcommands
	root.AddCommand(c.bundleCommand())
	root.AddCommand(c.systemsCommand())
	root.AddCommand(c.distCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the configured (or default) config file.
func (c *CLI) loadConfig() (*config.Config, error) {
	return config.Load(c.configPath)
}

// newDistClient creates a dist client from the config.
func (c *CLI) newDistClient(cfg *config.Config) (*dist.Client, error) {
	return dist.NewClient(cfg.DistURL, cfg.CacheDir, cfg.TTL())
}

// newRunner creates a pipeline runner for CLI use. With noCache the
// manifest cache is disabled regardless of configuration.
func (c *CLI) newRunner(cmd *cobra.Command, cfg *config.Config, noCache bool) (*pipeline.Runner, error) {
	if noCache {
		return pipeline.NewRunner(cache.NewNullCache(), nil, c.Logger), nil
	}
	backend, err := cfg.ManifestCache(cmd.Context())
	if err != nil {
		c.Logger.Warnf("Manifest cache disabled: %v", err)
		backend = cache.NewNullCache()
	}
	return pipeline.NewRunner(backend, nil, c.Logger), nil
}

// effectiveCacheDir returns the cache directory all artifact classes
// (metadata, manifests, archives) live under, honoring a cache_dir
// override in the config file.
func (c *CLI) effectiveCacheDir() (string, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.CacheDir != "" {
		return cfg.CacheDir, nil
	}
	return cacheDir()
}

// cacheDir returns the cache directory using XDG standard (~/.cache/quicklisp/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// archiveDir returns the directory downloaded release archives live in,
// honoring a configured cache dir override.
func archiveDir(cfg *config.Config) (string, error) {
	base := cfg.CacheDir
	if base == "" {
		var err error
		base, err = cacheDir()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(base, "archives"), nil
}
