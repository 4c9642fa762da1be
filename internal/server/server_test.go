package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

// writeBundle lays out a minimal materialized bundle on disk.
func writeBundle(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	sw := filepath.Join(dir, "software", "alpha-1.0")
	if err := os.MkdirAll(sw, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		filepath.Join(sw, "alpha.asd"):            "(defsystem alpha)",
		filepath.Join(dir, "system-index.txt"):    "software/alpha-1.0/alpha.asd\n",
		filepath.Join(dir, "bundle-loader.lisp"):  ";; loader\n",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := New(writeBundle(t), log.New(io.Discard))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, body
}

func TestNewRejectsNonBundleDir(t *testing.T) {
	if _, err := New(t.TempDir(), log.New(io.Discard)); err == nil {
		t.Error("New() accepted a directory without a system index")
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t)
	status, body := get(t, srv.URL+"/healthz")
	if status != http.StatusOK || string(body) != "ok\n" {
		t.Errorf("healthz = (%d, %q)", status, body)
	}
}

func TestServesIndexAndLoader(t *testing.T) {
	srv := testServer(t)

	status, body := get(t, srv.URL+"/system-index.txt")
	if status != http.StatusOK || string(body) != "software/alpha-1.0/alpha.asd\n" {
		t.Errorf("system-index.txt = (%d, %q)", status, body)
	}

	status, _ = get(t, srv.URL+"/bundle-loader.lisp")
	if status != http.StatusOK {
		t.Errorf("bundle-loader.lisp status = %d", status)
	}
}

func TestServesSoftwareTree(t *testing.T) {
	srv := testServer(t)
	status, body := get(t, srv.URL+"/software/alpha-1.0/alpha.asd")
	if status != http.StatusOK || string(body) != "(defsystem alpha)" {
		t.Errorf("software file = (%d, %q)", status, body)
	}

	status, _ = get(t, srv.URL+"/software/alpha-1.0/missing.asd")
	if status != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", status)
	}
}

func TestSystemsAPI(t *testing.T) {
	srv := testServer(t)
	status, body := get(t, srv.URL+"/api/systems")
	if status != http.StatusOK {
		t.Fatalf("api/systems status = %d", status)
	}

	var entries []struct {
		Path    string `json:"path"`
		Release string `json:"release"`
		File    string `json:"file"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Path != "software/alpha-1.0/alpha.asd" || e.Release != "alpha-1.0" || e.File != "alpha.asd" {
		t.Errorf("entry = %+v", e)
	}
}
