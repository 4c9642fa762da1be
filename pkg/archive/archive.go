// Package archive retrieves and extracts release archives. It implements
// the bundle.Unpacker interface: fetch-to-local-cache, gzip decompression
// into an intermediate tar file, and tar extraction re-rooted under a
// release's installation prefix.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/madmax88/quicklisp-client/pkg/bundle"
	"github.com/madmax88/quicklisp-client/pkg/errors"
	"github.com/madmax88/quicklisp-client/pkg/httputil"
	"github.com/madmax88/quicklisp-client/pkg/observability"
)

// maxEntryBytes bounds the size of a single extracted file (500 MB).
// Prevents decompression bombs in hostile archives.
const maxEntryBytes = 500 << 20

// fetchTimeout is the per-request timeout for archive downloads. Archives
// are larger than metadata files, so this is more generous than the dist
// client's timeout.
const fetchTimeout = 60 * time.Second

// Store downloads release archives into a local cache directory and
// extracts them. Downloads are cached by release name plus archive MD5, so
// re-bundling reuses previously fetched archives.
type Store struct {
	dir  string
	http *http.Client
}

// NewStore creates a Store caching archives under dir. The directory is
// created if it doesn't exist.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "creating archive cache %s", dir)
	}
	return &Store{
		dir:  dir,
		http: &http.Client{Timeout: fetchTimeout},
	}, nil
}

// Dir returns the archive cache directory.
func (s *Store) Dir() string { return s.dir }

// FetchArchive returns a local path for the release's archive, downloading
// it if the cache has no verified copy. Cached copies are verified against
// the release's MD5 before reuse; mismatches (truncated downloads from
// earlier runs) trigger a fresh download.
func (s *Store) FetchArchive(ctx context.Context, rel *bundle.Release) (string, error) {
	path := filepath.Join(s.dir, rel.Name+".tgz")

	if ok, err := verifyMD5(path, rel.MD5); err == nil && ok {
		return path, nil
	}

	start := time.Now()
	observability.Pipeline().OnFetchStart(ctx, rel.Name)
	err := s.fetch(ctx, rel, path)
	observability.Pipeline().OnFetchComplete(ctx, rel.Name, time.Since(start), err)
	if err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) fetch(ctx context.Context, rel *bundle.Release, path string) error {
	if err := s.download(ctx, rel.ArchiveURL, path); err != nil {
		return err
	}
	if ok, err := verifyMD5(path, rel.MD5); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "verifying %s", path)
	} else if !ok {
		_ = os.Remove(path)
		return errors.New(errors.ErrCodeArchive, "archive checksum mismatch for %s", rel.Name)
	}
	return nil
}

// download fetches url into path via a temp file in the same directory, so
// the final rename is atomic and a crashed download never poses as a
// complete archive. Transient HTTP failures are retried with backoff.
func (s *Store) download(ctx context.Context, url, path string) error {
	return httputil.RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := s.http.Do(req)
		if err != nil {
			return &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "fetching %s", url)}
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusNotFound:
			return errors.New(errors.ErrCodeNotFound, "archive %s not found", url)
		case resp.StatusCode >= 500:
			return &httputil.RetryableError{Err: errors.New(errors.ErrCodeNetwork, "fetching %s: status %d", url, resp.StatusCode)}
		default:
			return errors.New(errors.ErrCodeNetwork, "fetching %s: status %d", url, resp.StatusCode)
		}

		tmp, err := os.CreateTemp(s.dir, "download-*")
		if err != nil {
			return errors.Wrap(errors.ErrCodeIO, err, "creating temp file")
		}
		if _, err := io.Copy(tmp, resp.Body); err != nil {
			tmp.Close()
			_ = os.Remove(tmp.Name())
			return &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "downloading %s", url)}
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmp.Name())
			return errors.Wrap(errors.ErrCodeIO, err, "closing temp file")
		}
		return os.Rename(tmp.Name(), path)
	})
}

// Decompress gunzips the archive into an intermediate tar file next to the
// archive cache and returns its path. The caller is responsible for
// deleting the tar file when extraction completes or fails.
func (s *Store) Decompress(archivePath string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeIO, err, "opening %s", archivePath)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeArchive, err, "reading gzip header of %s", archivePath)
	}
	defer gz.Close()

	tmp, err := os.CreateTemp(s.dir, "untar-*.tar")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeIO, err, "creating intermediate tar")
	}

	if _, err := io.Copy(tmp, gz); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", errors.Wrap(errors.ErrCodeArchive, err, "decompressing %s", archivePath)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", errors.Wrap(errors.ErrCodeIO, err, "closing intermediate tar")
	}
	return tmp.Name(), nil
}

// Extract unpacks the tar file into destDir, replacing each entry's
// top-level directory with prefix. Release tarballs carry their contents
// under a single top directory; re-rooting guarantees the on-disk layout
// matches the release's declared prefix regardless of the tarball's own
// naming. Existing files are overwritten, which makes repeated
// materialization into the same target idempotent.
func (s *Store) Extract(tarPath, destDir, prefix string) error {
	f, err := os.Open(tarPath)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "opening %s", tarPath)
	}
	defer f.Close()

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeArchive, err, "reading tar entry")
		}

		rel, ok := reroot(hdr.Name, prefix)
		if !ok {
			continue // top-level directory entry itself, or empty name
		}
		if err := errors.ValidatePath(rel); err != nil {
			return errors.Wrap(errors.ErrCodeArchive, err, "unsafe tar entry %q", hdr.Name)
		}
		path := filepath.Join(destDir, filepath.FromSlash(rel))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0o755); err != nil {
				return errors.Wrap(errors.ErrCodeIO, err, "creating %s", path)
			}
		case tar.TypeReg:
			if hdr.Size > maxEntryBytes {
				return errors.New(errors.ErrCodeArchive, "tar entry %q is %d bytes, limit is %d", hdr.Name, hdr.Size, int64(maxEntryBytes))
			}
			if err := writeEntry(path, tr); err != nil {
				return err
			}
		default:
			// Symlinks and special files don't occur in dist release
			// tarballs; skip rather than fail.
		}
	}
	return nil
}

// reroot strips the entry's first path component and prepends prefix.
// Returns ok=false for the bare top-level directory entry.
func reroot(name, prefix string) (string, bool) {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	_, rest, found := strings.Cut(name, "/")
	if !found || rest == "" {
		return "", false
	}
	return prefix + "/" + rest, true
}

// writeEntry writes one regular file from the tar stream, creating parent
// directories as needed. The copy is size-bounded per entry.
func writeEntry(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "creating %s", filepath.Dir(path))
	}
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "creating %s", path)
	}
	if _, err := io.Copy(out, io.LimitReader(r, maxEntryBytes)); err != nil {
		out.Close()
		return errors.Wrap(errors.ErrCodeArchive, err, "writing %s", path)
	}
	if err := out.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "closing %s", path)
	}
	return nil
}

// verifyMD5 reports whether the file at path exists and matches the
// expected MD5. An empty expected hash matches any existing file. MD5 is
// what the dist metadata provides; it guards against truncated downloads,
// not adversaries.
func verifyMD5(path, expected string) (bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	if expected == "" {
		return true, nil
	}

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	sum := hex.EncodeToString(h.Sum(nil))
	return strings.EqualFold(sum, expected), nil
}

// Sum returns the MD5 hex digest of data. Exposed for tests that build
// archives on the fly and need matching release records.
func Sum(data []byte) string {
	h := md5.Sum(data)
	return hex.EncodeToString(h[:])
}

var _ bundle.Unpacker = (*Store)(nil)

// String implements fmt.Stringer for debug logging.
func (s *Store) String() string {
	return fmt.Sprintf("archive.Store(%s)", s.dir)
}
