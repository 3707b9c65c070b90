package server

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/sjawhar/aura-calm/internal/calm"
)

// Options wires the HTTP surface to the running pipeline.
type Options struct {
	Controls Controls
	State    StateSource
	Catalog  calm.Catalog
	// Finder is nil when no model is configured for the video finder.
	Finder VideoFinder

	AmbientAudioURL string
	Warnings        func() []string

	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Middleware wraps the whole mux when set.
	Middleware func(http.Handler) http.Handler
}

func Handler(staticFS fs.FS, hub *Hub, opts Options) (http.Handler, error) {
	if opts.Controls == nil || opts.State == nil || opts.Catalog == nil {
		return nil, errors.New("server: controls, state, and catalog are required")
	}

	mux := http.NewServeMux()

	registerWSRoute(mux, hub, opts.State)
	registerAPIRoutes(mux, opts)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	fileServer := http.FileServer(http.FS(staticFS))
	mux.HandleFunc("/", serveSPA(fileServer))

	if opts.Middleware != nil {
		return opts.Middleware(mux), nil
	}
	return mux, nil
}

// Serve runs the HTTP server until ctx is cancelled.
func Serve(ctx context.Context, addr string, staticFS fs.FS, hub *Hub, opts Options) error {
	h, err := Handler(staticFS, hub, opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("web UI at http://%s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func serveSPA(fileServer http.Handler) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
			http.NotFound(w, r)
			return
		}

		cleanPath := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if cleanPath == "." || cleanPath == "" {
			r.URL.Path = "/"
		} else if !strings.Contains(cleanPath, ".") {
			r.URL.Path = "/index.html"
		} else {
			r.URL.Path = "/" + cleanPath
		}

		fileServer.ServeHTTP(w, r)
	}
}
