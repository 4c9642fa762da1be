package bundle

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/madmax88/quicklisp-client/pkg/errors"
)

const (
	// SoftwareDir is the subdirectory of the target holding extracted
	// release contents, one directory per release prefix.
	SoftwareDir = "software"

	// SystemIndexFile is the manifest a runtime loader reads: one relative
	// path per bundled system definition file.
	SystemIndexFile = "system-index.txt"

	// LoaderFile is the fixed name of the emitted loader script. Its
	// content is currently a placeholder; downstream tooling depends only
	// on the path being stable.
	LoaderFile = "bundle-loader.lisp"
)

// Unpacker retrieves and extracts release archives. The archive package
// provides the standard implementation; tests substitute fakes.
type Unpacker interface {
	// FetchArchive downloads (or reuses a cached copy of) the release
	// archive and returns its local path.
	FetchArchive(ctx context.Context, rel *Release) (string, error)

	// Decompress gunzips the archive into an intermediate tar file and
	// returns its path. The caller deletes the intermediate file.
	Decompress(archivePath string) (string, error)

	// Extract unpacks the tar file into destDir, re-rooting the archive's
	// top-level directory under prefix.
	Extract(tarPath, destDir, prefix string) error
}

// Materializer turns a resolved Bundle into on-disk artifacts: extracted
// release trees under software/, a flat system index, and a loader script.
//
// Materialization is not transactional. A failure leaves earlier stages'
// output on disk, but re-running into the same target is safe: archives are
// re-extracted and the index and loader files are overwritten, converging
// on the same end state as a fresh run.
type Materializer struct {
	Unpacker Unpacker
	Logger   func(string, ...any) // Progress callback (optional)
}

// NewMaterializer creates a Materializer using the given unpacker.
func NewMaterializer(u Unpacker) *Materializer {
	return &Materializer{Unpacker: u}
}

// Materialize writes the bundle to target: unpacks every release in sorted
// name order, then writes the system index and the loader script.
//
// Extraction failures and index/loader write failures are fatal; no partial
// bundle is considered valid and the error identifies the broken release or
// file.
func (m *Materializer) Materialize(ctx context.Context, b *Bundle, target string) error {
	software := filepath.Join(target, SoftwareDir)
	if err := os.MkdirAll(software, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "creating %s", software)
	}

	for _, rel := range b.Releases() {
		if err := m.unpackRelease(ctx, rel, software); err != nil {
			return err
		}
	}

	if err := m.writeSystemIndex(b, target); err != nil {
		return err
	}
	return m.writeLoader(b, target)
}

// unpackRelease fetches, decompresses, and extracts one release. The
// intermediate tar file is removed on every path so that bundling many
// releases does not accumulate temporary disk usage.
func (m *Materializer) unpackRelease(ctx context.Context, rel *Release, software string) error {
	m.logf("unpacking %s", rel.Name)

	archivePath, err := m.Unpacker.FetchArchive(ctx, rel)
	if err != nil {
		return errors.Wrap(errors.ErrCodeArchive, err, "fetching archive for release %q", rel.Name)
	}

	tarPath, err := m.Unpacker.Decompress(archivePath)
	if err != nil {
		return errors.Wrap(errors.ErrCodeArchive, err, "decompressing archive for release %q", rel.Name)
	}
	defer os.Remove(tarPath)

	if err := m.Unpacker.Extract(tarPath, software, rel.Prefix); err != nil {
		return errors.Wrap(errors.ErrCodeArchive, err, "extracting release %q", rel.Name)
	}
	return nil
}

// writeSystemIndex emits one line per system definition file across all
// releases: software/<prefix>/<system-file>. Releases appear in sorted name
// order and each release's files in declaration order, so the index is
// byte-identical across runs for the same bundle.
func (m *Materializer) writeSystemIndex(b *Bundle, target string) error {
	var buf bytes.Buffer
	for _, rel := range b.Releases() {
		for _, f := range rel.SystemFiles {
			fmt.Fprintf(&buf, "%s/%s/%s\n", SoftwareDir, rel.Prefix, f)
		}
	}

	path := filepath.Join(target, SystemIndexFile)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "writing %s", SystemIndexFile)
	}
	return nil
}

// writeLoader emits the loader script at its fixed path. Real loader
// semantics are not implemented yet; the file documents the bundle layout
// so downstream tooling has a stable target.
func (m *Materializer) writeLoader(b *Bundle, target string) error {
	var buf bytes.Buffer
	buf.WriteString(";;;; " + LoaderFile + "\n")
	buf.WriteString(";;;;\n")
	buf.WriteString(";;;; Placeholder loader for a self-contained bundle of " +
		fmt.Sprintf("%d systems from %d releases.\n", b.SystemCount(), b.ReleaseCount()))
	buf.WriteString(";;;; The file " + SystemIndexFile + " next to this script lists every\n")
	buf.WriteString(";;;; bundled system definition file, relative to this directory.\n")
	buf.WriteString(";;;; Loading support is not finished yet.\n")

	path := filepath.Join(target, LoaderFile)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "writing %s", LoaderFile)
	}
	return nil
}

func (m *Materializer) logf(format string, args ...any) {
	if m.Logger != nil {
		m.Logger(format, args...)
	}
}
