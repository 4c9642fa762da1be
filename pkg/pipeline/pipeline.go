// Package pipeline provides the core bundling pipeline.
//
// This package implements the complete resolve → materialize flow used by
// the CLI and any embedding program. Centralizing it keeps caching and
// validation behavior identical across entry points.
//
// # Architecture
//
// The pipeline consists of two stages:
//
//  1. Resolve: Expand the requested systems to their transitive closure
//     against a consistent distribution snapshot
//  2. Materialize: Unpack every release in the closure into the target
//     directory and write the index and loader files
//
// Resolution must fully succeed before anything is written to the target;
// an unresolvable system leaves the target untouched.
//
// # Usage
//
//	runner := pipeline.NewRunner(manifestCache, nil, logger)
//	result, err := runner.Execute(ctx, snap, unpacker, pipeline.Options{
//		Systems: []string{"alexandria", "cl-ppcre"},
//		Target:  "my-bundle",
//	})
package pipeline

import (
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/madmax88/quicklisp-client/pkg/bundle"
	"github.com/madmax88/quicklisp-client/pkg/errors"
)

// Options contains all configuration for a bundling run.
// This struct supports JSON serialization for embedding in job payloads.
type Options struct {
	// Systems are the requested system names. At least one is required.
	Systems []string `json:"systems"`

	// Target is the bundle output directory. Required for Execute;
	// resolve-only callers may leave it empty.
	Target string `json:"target,omitempty"`

	// Refresh bypasses the manifest cache and forces a fresh resolution.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if len(o.Systems) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "at least one system is required")
	}
	for _, name := range o.Systems {
		if err := errors.ValidateSystemName(name); err != nil {
			return err
		}
	}
	if o.Target == "" {
		return errors.New(errors.ErrCodeInvalidInput, "target directory is required")
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	o.validated = true
	return nil
}

// ValidateForResolve checks the fields resolution needs; Target may be
// empty.
func (o *Options) ValidateForResolve() error {
	if len(o.Systems) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "at least one system is required")
	}
	for _, name := range o.Systems {
		if err := errors.ValidateSystemName(name); err != nil {
			return err
		}
	}
	return nil
}

// CanonicalSystems returns the requested systems lowercased, deduplicated,
// and sorted. Cache keys are derived from this form so logically equal
// requests share manifest entries.
func (o *Options) CanonicalSystems() []string {
	out := make([]string, 0, len(o.Systems))
	for _, s := range o.Systems {
		out = append(out, strings.ToLower(s))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Manifest is the serializable form of a resolved closure. It pins the
// exact release set for a (dist version, system set) pair and is what the
// manifest cache stores.
type Manifest struct {
	DistVersion string            `json:"dist_version"`
	Requested   []string          `json:"requested"`
	Releases    []*bundle.Release `json:"releases"`
	Systems     []*bundle.System  `json:"systems"`
}

// Bundle reconstructs the in-memory bundle the manifest was built from.
func (m *Manifest) Bundle() *bundle.Bundle {
	return bundle.Restore(m.Releases, m.Systems)
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID uniquely identifies this execution in logs.
	RunID string

	// Manifest is the resolved closure.
	Manifest *Manifest

	// Target is the absolute bundle directory written to.
	Target string

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	SystemCount     int
	ReleaseCount    int
	ResolveTime     time.Duration
	MaterializeTime time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	ManifestHit bool // Whether the resolved manifest came from cache
}
