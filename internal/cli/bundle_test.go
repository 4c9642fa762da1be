package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	qlerrors "github.com/madmax88/quicklisp-client/pkg/errors"
)

// writeTestConfig points the CLI at srv for metadata and keeps every cache
// under the test's temp directory.
func writeTestConfig(t *testing.T, dir, distURL string) string {
	t.Helper()
	cfgPath := filepath.Join(dir, "config.toml")
	body := fmt.Sprintf("dist_url = %q\ncache_dir = %q\n", distURL, filepath.Join(dir, "cache"))
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestRunBundleMetadataFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := New(io.Discard, log.InfoLevel)
	c.configPath = writeTestConfig(t, dir, srv.URL+"/quicklisp.txt")

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	target := filepath.Join(dir, "out")
	err := c.runBundle(cmd, []string{"alpha"}, bundleOpts{target: target})
	if err == nil {
		t.Fatal("a failed metadata fetch must surface an error")
	}
	if qlerrors.GetCode(err) != qlerrors.ErrCodeDistNotFound {
		t.Errorf("code = %q, want %q", qlerrors.GetCode(err), qlerrors.ErrCodeDistNotFound)
	}
	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Error("target must not be created when the metadata fetch fails")
	}
}

func TestRunBundleCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := New(io.Discard, log.InfoLevel)
	c.configPath = writeTestConfig(t, dir, srv.URL+"/quicklisp.txt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)

	err := c.runBundle(cmd, []string{"alpha"}, bundleOpts{target: filepath.Join(dir, "out")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
