package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sjawhar/aura-calm/internal/calm"
	"github.com/sjawhar/aura-calm/internal/session"
)

// Controls starts and stops monitoring.
type Controls interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type StateSource interface {
	Snapshot() session.Snapshot
}

type VideoFinder interface {
	Find(ctx context.Context, prompt string) (calm.Match, error)
}

type findVideoRequest struct {
	Prompt string `json:"prompt"`
}

func registerAPIRoutes(mux *http.ServeMux, opts Options) {
	mux.HandleFunc("POST /api/start", func(w http.ResponseWriter, r *http.Request) {
		if err := opts.Controls.Start(r.Context()); err != nil {
			writeJSONError(w, startStatus(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/stop", func(w http.ResponseWriter, r *http.Request) {
		if err := opts.Controls.Stop(r.Context()); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, session.ErrNotListening) {
				status = http.StatusConflict
			}
			writeJSONError(w, status, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, opts.State.Snapshot())
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		var warnings []string
		if opts.Warnings != nil {
			warnings = opts.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   opts.State.Snapshot().Status,
			"warnings": warnings,
		})
	})

	mux.HandleFunc("GET /api/calm/tips", func(w http.ResponseWriter, r *http.Request) {
		tips, err := opts.Catalog.Tips(r.Context())
		if err != nil {
			slog.Warn("server: load tips", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "could not load tips")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"tips":              tips,
			"ambient_audio_url": opts.AmbientAudioURL,
		})
	})

	mux.HandleFunc("GET /api/calm/videos", func(w http.ResponseWriter, r *http.Request) {
		videos, err := opts.Catalog.Videos(r.Context())
		if err != nil {
			slog.Warn("server: load videos", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "could not load videos")
			return
		}
		writeJSON(w, http.StatusOK, videos)
	})

	mux.HandleFunc("POST /api/calm/video", func(w http.ResponseWriter, r *http.Request) {
		if opts.Finder == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "video finder is not configured")
			return
		}

		var req findVideoRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		match, err := opts.Finder.Find(r.Context(), req.Prompt)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, match)
		case errors.Is(err, calm.ErrEmptyPrompt):
			writeJSONError(w, http.StatusBadRequest, "Please enter a prompt to find a video.")
		case errors.Is(err, calm.ErrNoMatchingVideo):
			writeJSONError(w, http.StatusUnprocessableEntity, "Failed to find a matching video. Please try a different description.")
		default:
			slog.Warn("server: find video", "error", err)
			writeJSONError(w, http.StatusBadGateway, "Error: "+err.Error())
		}
	})
}

func startStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrAlreadyListening):
		return http.StatusConflict
	case errors.Is(err, session.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, session.ErrCapabilityUnavailable), errors.Is(err, session.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
