package bundle

import (
	"context"
)

// Resolve expands the bundle to the dependency closure of the named
// systems: every requested system, every system it directly requires, and
// so on to a fixed point.
//
// Traversal is depth-first with dependencies expanded before later
// requested names. The bundle's own membership test doubles as the visited
// check, so dependency cycles terminate naturally once both ends are
// registered; no separate visited set is kept. Because registering a
// release also registers its sibling systems (whose dependency lists have
// not been walked yet), a final sweep re-examines every registered system
// until no new system is discovered.
//
// On failure the bundle may hold a partial closure; callers are expected to
// discard it. All catalog lookups in one Resolve call must run under a
// single consistent snapshot of the catalog (see dist.Client.WithSnapshot).
func Resolve(ctx context.Context, names []string, b *Bundle) error {
	for _, name := range names {
		if err := addClosure(ctx, b, name); err != nil {
			return err
		}
	}

	// Sibling systems enter the bundle through release registration without
	// their dependency lists being walked. Sweep until the bundle stops
	// growing; termination follows from monotone growth against a finite
	// catalog.
	for changed := true; changed; {
		changed = false
		for _, s := range b.Systems() {
			for _, dep := range s.Requires {
				if _, ok := b.FindSystem(dep); ok {
					continue
				}
				if err := addClosure(ctx, b, dep); err != nil {
					return err
				}
				changed = true
			}
		}
	}
	return nil
}

// addClosure registers the named system and recurses into its direct
// dependencies. A system already present in the bundle is treated as fully
// processed, which is what makes cycles benign.
func addClosure(ctx context.Context, b *Bundle, name string) error {
	if _, ok := b.FindSystem(name); ok {
		return nil
	}
	s, err := b.EnsureSystem(ctx, name)
	if err != nil {
		return err
	}
	for _, dep := range s.Requires {
		if err := addClosure(ctx, b, dep); err != nil {
			return err
		}
	}
	return nil
}
