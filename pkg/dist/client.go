package dist

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/madmax88/quicklisp-client/pkg/errors"
	"github.com/madmax88/quicklisp-client/pkg/httputil"
)

// DefaultURL is the subscription distinfo location of the public
// distribution. Fetching it always yields the latest version's metadata.
const DefaultURL = "https://beta.quicklisp.org/dist/quicklisp.txt"

const httpTimeout = 10 * time.Second

// Client fetches distribution metadata over HTTP with file-based caching
// and retry. The zero value is not usable; use NewClient.
type Client struct {
	http  *http.Client
	cache *httputil.Cache
	url   string
}

// NewClient creates a Client for the distinfo file at distURL. Responses
// are cached under cacheDir (empty means the default cache directory)
// with the given TTL; index files are keyed by distribution version, so a
// version's indexes are fetched at most once per TTL window regardless of
// refreshes.
func NewClient(distURL, cacheDir string, ttl time.Duration) (*Client, error) {
	if distURL == "" {
		distURL = DefaultURL
	}
	if err := errors.ValidateURL(distURL); err != nil {
		return nil, err
	}
	cache, err := httputil.NewCache(cacheDir, ttl)
	if err != nil {
		return nil, err
	}
	return &Client{
		http:  &http.Client{Timeout: httpTimeout},
		cache: cache.Namespace("dist"),
		url:   distURL,
	}, nil
}

// URL returns the distinfo location this client fetches from.
func (c *Client) URL() string { return c.url }

// FetchInfo retrieves and parses the distinfo file. With refresh true the
// cached copy is bypassed and the file is re-fetched, picking up a new
// distribution version if one was published.
func (c *Client) FetchInfo(ctx context.Context, refresh bool) (*Info, error) {
	text, err := c.cachedText(ctx, "distinfo:"+c.url, refresh, c.url)
	if err != nil {
		return nil, err
	}
	meta, err := parseDistinfo(strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	info := infoFromMeta(meta)
	if info.Version == "" || info.SystemIndexURL == "" || info.ReleaseIndexURL == "" {
		return nil, errors.New(errors.ErrCodeInvalidDist, "distinfo at %s is missing required fields", c.url)
	}
	return &info, nil
}

// Snapshot fetches the distinfo and both index files and joins them into
// a consistent catalog view. The refresh flag applies to the distinfo
// fetch only; index files are immutable per version and always cacheable.
func (c *Client) Snapshot(ctx context.Context, refresh bool) (*Snapshot, error) {
	info, err := c.FetchInfo(ctx, refresh)
	if err != nil {
		return nil, err
	}

	releaseText, err := c.cachedText(ctx, "releases:"+info.Version, false, info.ReleaseIndexURL)
	if err != nil {
		return nil, err
	}
	systemText, err := c.cachedText(ctx, "systems:"+info.Version, false, info.SystemIndexURL)
	if err != nil {
		return nil, err
	}

	releases, err := parseReleases(strings.NewReader(releaseText))
	if err != nil {
		return nil, err
	}
	systems, err := parseSystems(strings.NewReader(systemText), releases)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(*info, releases, systems), nil
}

// WithSnapshot runs fn against a freshly built snapshot. Every catalog
// lookup fn performs observes the same distribution version.
func (c *Client) WithSnapshot(ctx context.Context, refresh bool, fn func(*Snapshot) error) error {
	snap, err := c.Snapshot(ctx, refresh)
	if err != nil {
		return err
	}
	return fn(snap)
}

// cachedText returns the cached body for key, or fetches url with retry
// and caches the result.
func (c *Client) cachedText(ctx context.Context, key string, refresh bool, url string) (string, error) {
	var text string
	if !refresh {
		if ok, _ := c.cache.Get(key, &text); ok {
			return text, nil
		}
	}
	err := httputil.RetryWithBackoff(ctx, func() error {
		var err error
		text, err = c.getText(ctx, url)
		return err
	})
	if err != nil {
		return "", err
	}
	_ = c.cache.Set(key, text)
	return text, nil
}

// getText performs one HTTP GET and returns the body as a string.
func (c *Client) getText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "fetching %s", url)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return "", errors.New(errors.ErrCodeDistNotFound, "distribution file %s not found", url)
	case resp.StatusCode >= 500:
		return "", &httputil.RetryableError{Err: errors.New(errors.ErrCodeNetwork, "fetching %s: status %d", url, resp.StatusCode)}
	default:
		return "", errors.New(errors.ErrCodeNetwork, "fetching %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "reading %s", url)}
	}
	return string(data), nil
}
