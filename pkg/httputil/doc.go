// Package httputil provides HTTP helpers shared by the dist catalog client
// and the archive fetcher: a file-based response cache with TTL expiration
// and retry logic with exponential backoff for transient failures.
//
// The cache stores JSON-marshaled values keyed by SHA-256 hashes of
// caller-supplied keys, so arbitrary strings (URLs, dist versions) are safe
// keys. Retry only repeats operations whose errors are wrapped in
// [RetryableError], leaving permanent failures (404s, parse errors) to
// surface immediately.
package httputil
