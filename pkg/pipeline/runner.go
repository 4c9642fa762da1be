package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/madmax88/quicklisp-client/pkg/bundle"
	"github.com/madmax88/quicklisp-client/pkg/cache"
	"github.com/madmax88/quicklisp-client/pkg/dist"
	"github.com/madmax88/quicklisp-client/pkg/errors"
	"github.com/madmax88/quicklisp-client/pkg/observability"
)

// Runner encapsulates pipeline execution with manifest caching.
//
// The Runner is stateless except for the cache and logger; it doesn't
// store run results. Multiple goroutines can safely share a Runner with
// different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Execute runs the complete resolve → materialize pipeline. The snapshot
// supplies catalog lookups and the unpacker performs archive work; both
// stay injectable so tests and embedders can substitute their own.
func (r *Runner) Execute(ctx context.Context, snap *dist.Snapshot, unpacker bundle.Unpacker, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger

	result := &Result{RunID: uuid.NewString()}
	logger.Debug("starting run", "run_id", result.RunID, "systems", opts.Systems)

	// Stage 1: Resolve. Nothing touches the target until this succeeds.
	resolveStart := time.Now()
	observability.Pipeline().OnResolveStart(ctx, opts.Systems)
	manifest, hit, err := r.ResolveWithCacheInfo(ctx, snap, opts)
	if err != nil {
		observability.Pipeline().OnResolveComplete(ctx, opts.Systems, 0, time.Since(resolveStart), err)
		return nil, err
	}
	observability.Pipeline().OnResolveComplete(ctx, opts.Systems, len(manifest.Releases), time.Since(resolveStart), nil)
	result.Manifest = manifest
	result.Stats.ResolveTime = time.Since(resolveStart)
	result.Stats.SystemCount = len(manifest.Systems)
	result.Stats.ReleaseCount = len(manifest.Releases)
	result.CacheInfo.ManifestHit = hit

	logger.Info("resolved closure",
		"systems", result.Stats.SystemCount,
		"releases", result.Stats.ReleaseCount,
		"cached", hit,
		"duration", result.Stats.ResolveTime)

	// Stage 2: Materialize.
	target, err := filepath.Abs(opts.Target)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolving target %s", opts.Target)
	}
	result.Target = target

	materializeStart := time.Now()
	observability.Pipeline().OnMaterializeStart(ctx, target, len(manifest.Releases))
	m := bundle.NewMaterializer(unpacker)
	m.Logger = func(format string, args ...any) {
		logger.Debugf(format, args...)
	}
	if err := m.Materialize(ctx, manifest.Bundle(), target); err != nil {
		observability.Pipeline().OnMaterializeComplete(ctx, target, time.Since(materializeStart), err)
		return nil, err
	}
	result.Stats.MaterializeTime = time.Since(materializeStart)
	observability.Pipeline().OnMaterializeComplete(ctx, target, result.Stats.MaterializeTime, nil)

	logger.Info("materialized bundle",
		"target", target,
		"duration", result.Stats.MaterializeTime)

	return result, nil
}

// ResolveWithCacheInfo resolves the closure with manifest caching and
// reports whether the manifest came from cache. Refresh runs skip the
// cache read but still store their result for later runs.
func (r *Runner) ResolveWithCacheInfo(ctx context.Context, snap *dist.Snapshot, opts Options) (*Manifest, bool, error) {
	if err := opts.ValidateForResolve(); err != nil {
		return nil, false, err
	}

	version := snap.Info().Version
	systems := opts.CanonicalSystems()
	key := r.Keyer.ManifestKey(version, systems, cache.ManifestKeyOpts{DistName: snap.Info().Name})

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var m Manifest
			if err := json.Unmarshal(data, &m); err == nil && m.DistVersion == version {
				observability.Cache().OnCacheHit(ctx, "manifest")
				return &m, true, nil
			}
			// Undecodable entries are recomputed and overwritten.
		}
		observability.Cache().OnCacheMiss(ctx, "manifest")
	}

	b := bundle.New(snap)
	if err := bundle.Resolve(ctx, opts.Systems, b); err != nil {
		return nil, false, err
	}

	m := &Manifest{
		DistVersion: version,
		Requested:   systems,
		Releases:    b.Releases(),
		Systems:     b.Systems(),
	}
	if data, err := json.Marshal(m); err == nil {
		_ = r.Cache.Set(ctx, key, data, cache.TTLManifest)
		observability.Cache().OnCacheSet(ctx, "manifest", len(data))
	}
	return m, false, nil
}

// Resolve is a convenience wrapper that discards the cache hit info.
func (r *Runner) Resolve(ctx context.Context, snap *dist.Snapshot, opts Options) (*Manifest, error) {
	m, _, err := r.ResolveWithCacheInfo(ctx, snap, opts)
	return m, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
