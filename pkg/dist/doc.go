// Package dist fetches and parses package distribution metadata.
//
// A distribution is described by three plain-text files: a distinfo file
// with key/value metadata (name, version, index URLs), a release index
// listing every downloadable archive, and a system index mapping system
// names to the releases that provide them and their direct dependencies.
//
// # Client Pattern
//
//	client, err := dist.NewClient(dist.DefaultURL, "", 24*time.Hour)
//	err = client.WithSnapshot(ctx, false, func(snap *dist.Snapshot) error {
//		// snap is an immutable, internally consistent catalog view
//		return bundle.Resolve(ctx, names, bundle.New(snap))
//	})
//
// All lookups inside one WithSnapshot call observe the same distribution
// version. Index files for a given version never change upstream, so they
// are cached without expiry concerns; only the distinfo pointer is subject
// to the TTL and the refresh flag.
package dist
