package dist

import (
	"context"
	"slices"
	"strings"

	"github.com/madmax88/quicklisp-client/pkg/bundle"
)

// Info holds distribution metadata parsed from a distinfo file.
type Info struct {
	Name            string `json:"name"`                      // Distribution name (e.g., "quicklisp")
	Version         string `json:"version"`                   // Version stamp (e.g., "2023-10-21")
	DistinfoURL     string `json:"canonical_distinfo_url"`    // Canonical location of this distinfo file
	SubscriptionURL string `json:"distinfo_subscription_url"` // Location that always names the latest version
	SystemIndexURL  string `json:"system_index_url"`          // Location of the system index
	ReleaseIndexURL string `json:"release_index_url"`         // Location of the release index
}

// infoFromMeta builds an Info from parsed distinfo key/value pairs.
func infoFromMeta(meta map[string]string) Info {
	return Info{
		Name:            meta["name"],
		Version:         meta["version"],
		DistinfoURL:     meta["canonical-distinfo-url"],
		SubscriptionURL: meta["distinfo-subscription-url"],
		SystemIndexURL:  meta["system-index-url"],
		ReleaseIndexURL: meta["release-index-url"],
	}
}

// Snapshot is an immutable view of one distribution version: every release
// and system the distribution provides, joined and indexed by lowercased
// name. It implements bundle.Catalog, so a whole resolution runs against a
// single consistent version even if the distribution updates upstream
// mid-run.
type Snapshot struct {
	info     Info
	releases map[string]*bundle.Release
	systems  map[string]*bundle.System
}

// NewSnapshot builds a Snapshot from already parsed indexes. Most callers
// obtain snapshots from Client; this is exported for embedders with an
// alternative metadata source (mirrors, local files, tests). The maps are
// owned by the snapshot afterwards.
func NewSnapshot(info Info, releases map[string]*bundle.Release, systems map[string]*bundle.System) *Snapshot {
	return &Snapshot{info: info, releases: releases, systems: systems}
}

// Info returns the distribution metadata this snapshot was built from.
func (s *Snapshot) Info() Info { return s.info }

// LookupSystem implements bundle.Catalog.
func (s *Snapshot) LookupSystem(_ context.Context, name string) (*bundle.System, error) {
	sys, ok := s.systems[strings.ToLower(name)]
	if !ok {
		return nil, bundle.NotFoundSystem(name)
	}
	return sys, nil
}

// LookupRelease implements bundle.Catalog.
func (s *Snapshot) LookupRelease(_ context.Context, name string) (*bundle.Release, error) {
	rel, ok := s.releases[strings.ToLower(name)]
	if !ok {
		return nil, bundle.NotFoundRelease(name)
	}
	return rel, nil
}

// SystemNames returns every system name in the snapshot, sorted.
func (s *Snapshot) SystemNames() []string {
	names := make([]string, 0, len(s.systems))
	for _, sys := range s.systems {
		names = append(names, sys.Name)
	}
	slices.Sort(names)
	return names
}

// SystemCount returns the number of systems in the snapshot.
func (s *Snapshot) SystemCount() int { return len(s.systems) }

// ReleaseCount returns the number of releases in the snapshot.
func (s *Snapshot) ReleaseCount() int { return len(s.releases) }

var _ bundle.Catalog = (*Snapshot)(nil)
