// Package bundle implements the dependency-closure bundle model: an
// accumulator of releases and systems drawn from a dist catalog, a resolver
// that expands a requested set of systems to its transitive closure, and a
// materializer that turns the closure into a self-contained directory tree.
package bundle

import (
	"context"
	"slices"
	"strings"

	"github.com/madmax88/quicklisp-client/pkg/errors"
)

// System is a named, independently loadable unit of source code provided
// by a release. Systems are immutable once obtained from the catalog.
type System struct {
	Name        string   `json:"name"`         // Unique name (case-insensitive comparison)
	SystemFile  string   `json:"system_file"`  // Relative path of the system definition file
	ReleaseName string   `json:"release_name"` // Name of the release providing this system
	Requires    []string `json:"requires"`     // Direct dependency system names, in declared order
}

// Release is a versioned distributable archive providing one or more
// systems. Releases are immutable once obtained from the catalog.
type Release struct {
	Name        string    `json:"name"`         // Unique release name (e.g., "alexandria-20231021-git")
	ArchiveURL  string    `json:"archive_url"`  // Remote archive location
	Size        int64     `json:"size"`         // Archive size in bytes
	MD5         string    `json:"md5"`          // Archive content MD5, used to verify downloads
	ContentSHA1 string    `json:"content_sha1"` // SHA-1 of the extracted contents
	Prefix      string    `json:"prefix"`       // Installation-path prefix used when unpacking
	SystemFiles []string  `json:"system_files"` // System definition files, in declared order
	Systems     []*System `json:"systems"`      // Systems this release provides, in declared order
}

// Catalog looks up systems and releases in a package distribution.
//
// Implementations must return an error with code
// [errors.ErrCodeSystemNotFound] or [errors.ErrCodeReleaseNotFound] when the
// named entity is unknown. Lookups within one resolution must observe a
// single consistent view of the distribution; see dist.Client.WithSnapshot.
type Catalog interface {
	// LookupSystem returns the one system with the given name.
	LookupSystem(ctx context.Context, name string) (*System, error)

	// LookupRelease returns the one release with the given name, with its
	// provided systems fully populated.
	LookupRelease(ctx context.Context, name string) (*Release, error)
}

// Bundle accumulates the minimal set of releases and systems needed to
// satisfy a requested set of systems. It grows monotonically: entities are
// added during resolution and never removed.
//
// The two internal maps are kept mutually consistent behind the mutating
// methods: adding a release registers all systems it provides, and adding a
// system ensures its owning release is present. Keys are compared
// case-insensitively.
//
// A Bundle is owned by a single goroutine for the duration of resolution
// and materialization; no internal locking is performed.
type Bundle struct {
	catalog  Catalog
	releases map[string]*Release
	systems  map[string]*System
}

// New creates an empty Bundle that consults the given catalog on misses.
func New(catalog Catalog) *Bundle {
	return &Bundle{
		catalog:  catalog,
		releases: make(map[string]*Release),
		systems:  make(map[string]*System),
	}
}

func key(name string) string {
	return strings.ToLower(name)
}

// FindSystem returns the registered system with the given name, if present.
// It is a pure lookup with no catalog access.
func (b *Bundle) FindSystem(name string) (*System, bool) {
	s, ok := b.systems[key(name)]
	return s, ok
}

// FindRelease returns the registered release with the given name, if present.
func (b *Bundle) FindRelease(name string) (*Release, bool) {
	r, ok := b.releases[key(name)]
	return r, ok
}

// EnsureSystem returns the system with the given name, fetching it from the
// catalog if it is not yet registered. Fetching a system also registers its
// owning release and, through it, all sibling systems the release provides.
//
// Returns an error with code SYSTEM_NOT_FOUND when the catalog has no
// system of that name.
func (b *Bundle) EnsureSystem(ctx context.Context, name string) (*System, error) {
	if s, ok := b.FindSystem(name); ok {
		return s, nil
	}

	s, err := b.catalog.LookupSystem(ctx, name)
	if err != nil {
		return nil, err
	}
	if _, err := b.EnsureRelease(ctx, s.ReleaseName); err != nil {
		return nil, err
	}

	// Registering the release normally registers this system as a provided
	// sibling. Register directly if the release did not list it.
	if registered, ok := b.FindSystem(name); ok {
		return registered, nil
	}
	b.systems[key(s.Name)] = s
	return s, nil
}

// EnsureRelease returns the release with the given name, fetching it from
// the catalog if it is not yet registered. Adding a release registers every
// system it provides in the same step, maintaining the consistency
// invariant between the two maps.
//
// Returns an error with code RELEASE_NOT_FOUND when the catalog has no
// release of that name.
func (b *Bundle) EnsureRelease(ctx context.Context, name string) (*Release, error) {
	if r, ok := b.FindRelease(name); ok {
		return r, nil
	}

	r, err := b.catalog.LookupRelease(ctx, name)
	if err != nil {
		return nil, err
	}
	b.releases[key(r.Name)] = r
	for _, s := range r.Systems {
		b.systems[key(s.Name)] = s
	}
	return r, nil
}

// Releases returns a snapshot of registered releases sorted
// lexicographically by name. Materialization and index ordering depend on
// this, so the result never reflects insertion order.
func (b *Bundle) Releases() []*Release {
	out := make([]*Release, 0, len(b.releases))
	for _, r := range b.releases {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Release) int {
		return strings.Compare(key(a.Name), key(b.Name))
	})
	return out
}

// Systems returns a snapshot of registered systems sorted lexicographically
// by name.
func (b *Bundle) Systems() []*System {
	out := make([]*System, 0, len(b.systems))
	for _, s := range b.systems {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *System) int {
		return strings.Compare(key(a.Name), key(b.Name))
	})
	return out
}

// Restore reconstructs a Bundle from a previously resolved release and
// system set, as stored in a cached manifest. No catalog is attached; the
// result supports materialization and pure lookups but not further
// resolution.
func Restore(releases []*Release, systems []*System) *Bundle {
	b := New(nil)
	for _, r := range releases {
		b.releases[key(r.Name)] = r
		for _, s := range r.Systems {
			b.systems[key(s.Name)] = s
		}
	}
	for _, s := range systems {
		if _, ok := b.FindSystem(s.Name); !ok {
			b.systems[key(s.Name)] = s
		}
	}
	return b
}

// SystemCount returns the number of registered systems.
func (b *Bundle) SystemCount() int { return len(b.systems) }

// ReleaseCount returns the number of registered releases.
func (b *Bundle) ReleaseCount() int { return len(b.releases) }

// NotFoundSystem builds the canonical error for a system name unknown to
// the catalog. Catalog implementations should use this so callers can rely
// on a single code and message shape.
func NotFoundSystem(name string) error {
	return errors.New(errors.ErrCodeSystemNotFound, "system %q not found", name)
}

// NotFoundRelease builds the canonical error for a release name unknown to
// the catalog.
func NotFoundRelease(name string) error {
	return errors.New(errors.ErrCodeReleaseNotFound, "release %q not found", name)
}
