package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sjawhar/aura-calm/internal/calm"
	"github.com/sjawhar/aura-calm/internal/eventlog"
	"github.com/sjawhar/aura-calm/internal/session"
)

type controlsStub struct {
	mu       sync.Mutex
	startErr error
	stopErr  error
	starts   int
	stops    int
}

func (c *controlsStub) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	return c.startErr
}

func (c *controlsStub) Stop(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return c.stopErr
}

type finderStub struct {
	match  calm.Match
	err    error
	prompt string
}

func (f *finderStub) Find(_ context.Context, prompt string) (calm.Match, error) {
	f.prompt = prompt
	if f.err != nil {
		return calm.Match{}, f.err
	}
	return f.match, nil
}

func testStaticFS(t *testing.T) fs.FS {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>ok</html>"), 0o644); err != nil {
		t.Fatalf("write index.html failed: %v", err)
	}
	return os.DirFS(dir)
}

func testOptions(controls Controls) Options {
	return Options{
		Controls:        controls,
		State:           session.NewState(eventlog.New(5)),
		Catalog:         calm.NewStaticCatalog(calm.DefaultVideos, calm.DefaultTips),
		AmbientAudioURL: "/soothing-music.mp3",
	}
}

func newTestHandler(t *testing.T, opts Options) http.Handler {
	t.Helper()
	h, err := Handler(testStaticFS(t), NewHub("/soothing-music.mp3", nil), opts)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	return h
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return payload["error"]
}

func TestHandlerRequiresDependencies(t *testing.T) {
	if _, err := Handler(testStaticFS(t), NewHub("", nil), Options{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestAPIStartStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusNoContent},
		{"permission denied", fmt.Errorf("%w: user said no", session.ErrPermissionDenied), http.StatusForbidden},
		{"no capability", session.ErrCapabilityUnavailable, http.StatusServiceUnavailable},
		{"service unavailable", session.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"already listening", session.ErrAlreadyListening, http.StatusConflict},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controls := &controlsStub{startErr: tt.err}
			rr := serve(newTestHandler(t, testOptions(controls)), http.MethodPost, "/api/start", "")
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rr.Code, rr.Body.String())
			}
			if controls.starts != 1 {
				t.Fatalf("expected one Start call, got %d", controls.starts)
			}
		})
	}
}

func TestAPIStop(t *testing.T) {
	controls := &controlsStub{}
	h := newTestHandler(t, testOptions(controls))

	if rr := serve(h, http.MethodPost, "/api/stop", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	controls.stopErr = session.ErrNotListening
	if rr := serve(h, http.MethodPost, "/api/stop", ""); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 when not listening, got %d", rr.Code)
	}
}

func TestAPIStateSnapshot(t *testing.T) {
	rr := serve(newTestHandler(t, testOptions(&controlsStub{})), http.MethodGet, "/api/state", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("expected application/json content-type, got %q", got)
	}

	var snap session.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Status != session.StatusIdle {
		t.Fatalf("expected idle status, got %q", snap.Status)
	}
	if snap.StressScore != nil {
		t.Fatalf("expected no stress score, got %v", *snap.StressScore)
	}
}

func TestAPIStatusIncludesWarnings(t *testing.T) {
	opts := testOptions(&controlsStub{})
	opts.Warnings = func() []string { return []string{"Deepgram API key not configured"} }

	rr := serve(newTestHandler(t, opts), http.MethodGet, "/api/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var payload struct {
		Status   string   `json:"status"`
		Warnings []string `json:"warnings"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if payload.Status != string(session.StatusIdle) {
		t.Fatalf("expected idle, got %q", payload.Status)
	}
	if len(payload.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", payload.Warnings)
	}
}

func TestAPIStatusEmptyWarnings(t *testing.T) {
	rr := serve(newTestHandler(t, testOptions(&controlsStub{})), http.MethodGet, "/api/status", "")
	if !strings.Contains(rr.Body.String(), `"warnings":[]`) {
		t.Fatalf("expected empty warnings array, got %s", rr.Body.String())
	}
}

func TestAPICalmTips(t *testing.T) {
	rr := serve(newTestHandler(t, testOptions(&controlsStub{})), http.MethodGet, "/api/calm/tips", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var payload struct {
		Tips            []string `json:"tips"`
		AmbientAudioURL string   `json:"ambient_audio_url"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode tips: %v", err)
	}
	if len(payload.Tips) != len(calm.DefaultTips) {
		t.Fatalf("expected %d tips, got %d", len(calm.DefaultTips), len(payload.Tips))
	}
	if payload.AmbientAudioURL != "/soothing-music.mp3" {
		t.Fatalf("unexpected ambient url %q", payload.AmbientAudioURL)
	}
}

func TestAPICalmVideos(t *testing.T) {
	rr := serve(newTestHandler(t, testOptions(&controlsStub{})), http.MethodGet, "/api/calm/videos", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var videos []calm.Video
	if err := json.Unmarshal(rr.Body.Bytes(), &videos); err != nil {
		t.Fatalf("decode videos: %v", err)
	}
	if len(videos) != len(calm.DefaultVideos) {
		t.Fatalf("expected %d videos, got %d", len(calm.DefaultVideos), len(videos))
	}
}

func TestAPIFindVideo(t *testing.T) {
	finder := &finderStub{match: calm.Match{
		Video:    calm.DefaultVideos[0],
		EmbedURL: "https://www.youtube.com/embed/" + calm.DefaultVideos[0].ID + "?autoplay=1",
	}}
	opts := testOptions(&controlsStub{})
	opts.Finder = finder

	rr := serve(newTestHandler(t, opts), http.MethodPost, "/api/calm/video", `{"prompt":"a calm beach"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if finder.prompt != "a calm beach" {
		t.Fatalf("expected prompt forwarded, got %q", finder.prompt)
	}

	var match calm.Match
	if err := json.Unmarshal(rr.Body.Bytes(), &match); err != nil {
		t.Fatalf("decode match: %v", err)
	}
	if match.ID != calm.DefaultVideos[0].ID || match.EmbedURL == "" {
		t.Fatalf("unexpected match %+v", match)
	}
}

func TestAPIFindVideoErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		want    int
		message string
	}{
		{"bad body", `{`, nil, http.StatusBadRequest, "invalid request body"},
		{"empty prompt", `{"prompt":"  "}`, calm.ErrEmptyPrompt, http.StatusBadRequest, "Please enter a prompt to find a video."},
		{"no match", `{"prompt":"volcano"}`, calm.ErrNoMatchingVideo, http.StatusUnprocessableEntity, "Failed to find a matching video. Please try a different description."},
		{"provider", `{"prompt":"rain"}`, errors.New("quota exceeded"), http.StatusBadGateway, "Error: quota exceeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(&controlsStub{})
			opts.Finder = &finderStub{err: tt.err}

			rr := serve(newTestHandler(t, opts), http.MethodPost, "/api/calm/video", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
			if got := errorMessage(t, rr); got != tt.message {
				t.Fatalf("expected message %q, got %q", tt.message, got)
			}
		})
	}
}

func TestAPIFindVideoWithoutFinder(t *testing.T) {
	rr := serve(newTestHandler(t, testOptions(&controlsStub{})), http.MethodPost, "/api/calm/video", `{"prompt":"rain"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	opts := testOptions(&controlsStub{})
	opts.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("aura_calm_escalations_total 1\n"))
	})

	rr := serve(newTestHandler(t, opts), http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "aura_calm_escalations_total") {
		t.Fatalf("unexpected metrics response %d %q", rr.Code, rr.Body.String())
	}
}

func TestMiddlewareWrapsMux(t *testing.T) {
	var seen []string
	opts := testOptions(&controlsStub{})
	opts.Middleware = func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	serve(newTestHandler(t, opts), http.MethodGet, "/api/state", "")
	if len(seen) != 1 || seen[0] != "/api/state" {
		t.Fatalf("expected middleware to see /api/state, got %v", seen)
	}
}

func TestSPAFallback(t *testing.T) {
	h := newTestHandler(t, testOptions(&controlsStub{}))

	rr := serve(h, http.MethodGet, "/calm-corner", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Fatalf("expected index.html for client route, got %d %q", rr.Code, rr.Body.String())
	}

	rr = serve(h, http.MethodGet, "/api/unknown", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown api route, got %d", rr.Code)
	}
}
