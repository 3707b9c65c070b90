package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sjawhar/aura-calm/internal/analysis"
	"github.com/sjawhar/aura-calm/internal/eventlog"
)

type recognizerMock struct {
	mu        sync.Mutex
	starts    int
	stops     int
	listeners []Listener
	startErr  error
}

func (r *recognizerMock) Start(l Listener) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.starts++
	r.listeners = append(r.listeners, l)
	return nil
}

func (r *recognizerMock) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	return nil
}

func (r *recognizerMock) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

func (r *recognizerMock) listener(t *testing.T) Listener {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.listeners) == 0 {
		t.Fatal("recognizer was never started")
	}
	return r.listeners[len(r.listeners)-1]
}

type gateMock struct {
	err error
}

func (g gateMock) Request(context.Context) error { return g.err }

type analyzerMock struct {
	mu      sync.Mutex
	results map[string]analysis.Result
	err     error
	release chan struct{}

	calls     []string
	active    int
	maxActive int
}

func newAnalyzerMock() *analyzerMock {
	return &analyzerMock{results: map[string]analysis.Result{}}
}

func (a *analyzerMock) Analyze(ctx context.Context, text string) (analysis.Result, error) {
	a.mu.Lock()
	a.calls = append(a.calls, text)
	a.active++
	a.maxActive = max(a.maxActive, a.active)
	release := a.release
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.active--
		a.mu.Unlock()
	}()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return analysis.Result{}, fmt.Errorf("%w: %w", analysis.ErrAnalysisTimeout, ctx.Err())
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return analysis.Result{}, a.err
	}
	result, ok := a.results[text]
	if !ok {
		return analysis.Result{StressScore: 10, Feedback: "You sound calm."}, nil
	}
	return result, nil
}

func (a *analyzerMock) callList() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *analyzerMock) peak() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxActive
}

type insightMock struct {
	insight string
	err     error
	wait    <-chan struct{}
}

func (m insightMock) Insight(ctx context.Context, _ string, _ float64) (string, error) {
	if m.wait != nil {
		select {
		case <-m.wait:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.insight, m.err
}

type guidelinesMock struct {
	guidelines []string
	err        error
	started    chan<- struct{}
}

func (m guidelinesMock) Guidelines(context.Context, float64) ([]string, error) {
	if m.started != nil {
		close(m.started)
	}
	return m.guidelines, m.err
}

type hapticsMock struct {
	mu       sync.Mutex
	patterns [][]int
}

func (h *hapticsMock) Vibrate(pattern []int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.patterns = append(h.patterns, append([]int(nil), pattern...))
}

func (h *hapticsMock) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.patterns)
}

type audioMock struct {
	mu    sync.Mutex
	plays int
	stops int
}

func (a *audioMock) Play() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.plays++
}

func (a *audioMock) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops++
}

func (a *audioMock) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.plays, a.stops
}

type notifierMock struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *notifierMock) Notice(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *notifierMock) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.notices))
	for _, notice := range n.notices {
		out = append(out, notice.Title)
	}
	return out
}

type fixture struct {
	pipeline   *Pipeline
	recognizer *recognizerMock
	analyzer   *analyzerMock
	haptics    *hapticsMock
	audio      *audioMock
	notifier   *notifierMock
}

func newFixture(deps Deps, cfg Config) *fixture {
	f := &fixture{
		recognizer: &recognizerMock{},
		analyzer:   newAnalyzerMock(),
		haptics:    &hapticsMock{},
		audio:      &audioMock{},
		notifier:   &notifierMock{},
	}
	if deps.Recognizer == nil {
		deps.Recognizer = f.recognizer
	}
	if deps.Analyzer == nil {
		deps.Analyzer = f.analyzer
	}
	deps.Haptics = f.haptics
	deps.Audio = f.audio
	deps.Notifier = f.notifier
	if deps.Events == nil {
		deps.Events = eventlog.New(50)
	}
	f.pipeline = New(cfg, deps)
	return f
}

func messages(log *eventlog.Log) []string {
	entries := log.Entries()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Message)
	}
	return out
}

func hasMessage(log *eventlog.Log, message string) bool {
	return slices.Contains(messages(log), message)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
