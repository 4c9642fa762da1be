// Package cache provides pluggable byte-oriented caching for resolved
// bundle manifests and other derived artifacts.
//
// The [Cache] interface abstracts over storage backends:
//   - file: Directory-based storage for CLI usage (default)
//   - redis: Redis-backed storage for shared CI or server deployments
//   - mongo: MongoDB-backed storage where a document store is already present
//   - null: No-op cache for tests or when caching is disabled
//
// Keys are produced by a [Keyer], which hashes the inputs that determine a
// cached value (dist version, requested systems) so that logically equal
// requests share entries regardless of argument order or formatting.
package cache

import (
	"context"
	"time"
)

// Cache is the storage interface for cached artifacts.
//
// All implementations must be safe for sequential use by a single goroutine;
// backends that are inherently concurrent (redis, mongo) are also safe for
// concurrent use.
type Cache interface {
	// Get retrieves a value. The second return value reports whether the
	// key was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A TTL of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources (connections, file handles).
	Close() error
}

// Standard TTLs per artifact class. Manifests are keyed by dist version
// and system set, both of which pin the content exactly, so the TTL only
// bounds disk usage rather than staleness.
const (
	TTLManifest = 7 * 24 * time.Hour
)

// ManifestKeyOpts captures the resolution inputs that affect a cached
// bundle manifest beyond the dist version and system names.
type ManifestKeyOpts struct {
	// DistName separates manifests from distributions whose version
	// stamps could collide.
	DistName string
}

// Keyer generates cache keys for resolved bundle manifests. Manifests are
// the only artifact class cached through the Cache interface: dist
// metadata goes through the httputil response cache, which hashes its own
// keys, and release archives are stored as plain files verified by MD5.
type Keyer interface {
	// ManifestKey generates a key for a resolved bundle manifest.
	ManifestKey(distVersion string, systems []string, opts ManifestKeyOpts) string
}

// DefaultKeyer hashes key components with SHA-256 under a class prefix.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard Keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// ManifestKey generates a key for a resolved bundle manifest.
// The systems slice must already be in a canonical (sorted) order; the
// caller owns that normalization so that key equality matches request
// equality.
func (k *DefaultKeyer) ManifestKey(distVersion string, systems []string, opts ManifestKeyOpts) string {
	return hashKey("manifest", distVersion, systems, opts)
}
