// Package server serves a materialized bundle directory over HTTP.
//
// A bundle written by the pipeline is self-contained: extracted source
// trees under software/, a system index, and a loader script. Serving it
// lets other machines consume the bundle without re-resolving, e.g. as a
// lightweight in-house mirror for CI.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/madmax88/quicklisp-client/pkg/bundle"
	"github.com/madmax88/quicklisp-client/pkg/errors"
)

// Server serves one bundle directory.
type Server struct {
	dir    string
	logger *log.Logger
	router chi.Router
}

// New creates a Server for the bundle at dir. The directory must contain a
// system index; anything else is rejected early so a typo'd path fails at
// startup instead of returning 404s forever.
func New(dir string, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolving %s", dir)
	}
	if _, err := os.Stat(filepath.Join(abs, bundle.SystemIndexFile)); err != nil {
		return nil, errors.New(errors.ErrCodeInvalidPath, "%s does not look like a bundle directory (no %s)", abs, bundle.SystemIndexFile)
	}

	s := &Server{dir: abs, logger: logger}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/systems", s.handleSystems)
	r.Get("/"+bundle.SystemIndexFile, s.serveFile(bundle.SystemIndexFile))
	r.Get("/"+bundle.LoaderFile, s.serveFile(bundle.LoaderFile))
	r.Handle("/"+bundle.SoftwareDir+"/*", http.FileServer(http.Dir(s.dir)))
	return r
}

// Handler returns the root HTTP handler, exposed for tests and embedders.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until the context is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving bundle", "dir", s.dir, "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// indexEntry is one system-index line split into its parts.
type indexEntry struct {
	Path    string `json:"path"`    // Relative path within the bundle
	Release string `json:"release"` // Release prefix the file belongs to
	File    string `json:"file"`    // System definition file name
}

// handleSystems returns the system index as JSON. The index format is one
// software/<prefix>/<system-file> path per line.
func (s *Server) handleSystems(w http.ResponseWriter, _ *http.Request) {
	data, err := os.ReadFile(filepath.Join(s.dir, bundle.SystemIndexFile))
	if err != nil {
		http.Error(w, "system index unreadable", http.StatusInternalServerError)
		return
	}

	entries := []indexEntry{}
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "/")
		entry := indexEntry{Path: line}
		if len(parts) == 3 {
			entry.Release = parts[1]
			entry.File = parts[2]
		}
		entries = append(entries, entry)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

func (s *Server) serveFile(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(s.dir, name))
	}
}

// logRequests emits one structured log line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
