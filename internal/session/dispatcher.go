package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sjawhar/aura-calm/internal/analysis"
	"github.com/sjawhar/aura-calm/internal/eventlog"
	"github.com/sjawhar/aura-calm/internal/transcribe"
)

// Dispatcher admits transcript segments into analysis one at a time. While
// a cycle is in flight, newer segments only replace the latest heard text.
type Dispatcher struct {
	state        *State
	events       *eventlog.Log
	analyzer     Analyzer
	orchestrator *Orchestrator
	notifier     Notifier
	metrics      Metrics
	timeout      time.Duration

	mu           sync.Mutex
	epoch        uint64
	inFlight     bool
	latest       transcribe.Segment
	latestSeq    uint64
	analyzedSeq  uint64
	flushPending bool

	wg sync.WaitGroup
}

func NewDispatcher(state *State, events *eventlog.Log, analyzer Analyzer, orchestrator *Orchestrator, notifier Notifier, metrics Metrics, analysisTimeout time.Duration) *Dispatcher {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Dispatcher{
		state:        state,
		events:       events,
		analyzer:     analyzer,
		orchestrator: orchestrator,
		notifier:     notifier,
		metrics:      metrics,
		timeout:      analysisTimeout,
	}
}

// Reset forgets everything heard in the previous epoch. A cycle still in
// flight for an older epoch finishes on its own and is discarded.
func (d *Dispatcher) Reset(epoch uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.epoch = epoch
	d.inFlight = false
	d.latest = transcribe.Segment{}
	d.latestSeq = 0
	d.analyzedSeq = 0
	d.flushPending = false
}

// Dispatch records seg as the latest heard text and starts an analysis
// unless one is already running. Blank segments are dropped and logged.
func (d *Dispatcher) Dispatch(seg transcribe.Segment) {
	if seg.IsBlank() {
		slog.Debug("dispatcher: dropped blank segment")
		d.events.Add("Ignored empty speech.")
		return
	}

	d.mu.Lock()
	d.latest = seg
	d.latestSeq++
	epoch := d.epoch
	d.mu.Unlock()

	d.state.setLatest(epoch, seg.Text)
	d.events.Add(fmt.Sprintf("Heard: %q", seg.Text))

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.epoch != epoch {
		return
	}
	if d.inFlight {
		slog.Debug("dispatcher: analysis in flight, kept as latest", "epoch", epoch)
		return
	}
	d.launchLocked()
}

// Flush makes sure the latest heard segment gets analyzed. When a cycle is
// in flight the flush runs after it resolves.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	var message string
	switch {
	case d.latestSeq == 0:
		message = "Nothing to analyze."
	case d.inFlight:
		d.flushPending = true
		slog.Debug("dispatcher: flush deferred until in-flight analysis resolves", "epoch", d.epoch)
	case d.analyzedSeq == d.latestSeq:
		message = "Latest speech already analyzed."
	default:
		d.launchLocked()
	}
	d.mu.Unlock()

	if message != "" {
		d.events.Add(message)
	}
}

// Wait blocks until every launched cycle has resolved.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) launchLocked() {
	d.inFlight = true
	d.analyzedSeq = d.latestSeq
	seg := d.latest
	epoch := d.epoch

	d.state.beginCycle(epoch)
	d.wg.Add(1)
	go d.run(epoch, seg)
}

func (d *Dispatcher) run(epoch uint64, seg transcribe.Segment) {
	defer d.wg.Done()

	ctx := context.Background()
	d.cycle(ctx, epoch, seg)
	d.state.endCycle(epoch)

	d.mu.Lock()
	if d.epoch != epoch {
		d.mu.Unlock()
		return
	}
	d.inFlight = false
	alreadyAnalyzed := false
	if d.flushPending {
		d.flushPending = false
		if d.analyzedSeq == d.latestSeq {
			alreadyAnalyzed = true
		} else {
			d.launchLocked()
		}
	}
	d.mu.Unlock()

	if alreadyAnalyzed {
		d.events.Add("Latest speech already analyzed.")
	}
}

func (d *Dispatcher) cycle(ctx context.Context, epoch uint64, seg transcribe.Segment) {
	callCtx, cancel := d.callContext(ctx)
	started := time.Now()
	result, err := d.analyzer.Analyze(callCtx, seg.Text)
	cancel()
	elapsed := time.Since(started)

	if d.state.Epoch() != epoch {
		d.metrics.RecordAnalysis(ctx, elapsed, OutcomeStale)
		slog.Info("dispatcher: discarded analysis from previous epoch", "epoch", epoch)
		return
	}

	if err != nil {
		outcome := OutcomeFailure
		description := "Could not analyze your speech. Please try speaking again."
		if errors.Is(err, analysis.ErrAnalysisTimeout) {
			outcome = OutcomeTimeout
			description = "The analysis took too long. Please try speaking again."
		}
		d.metrics.RecordAnalysis(ctx, elapsed, outcome)
		slog.Warn("dispatcher: analysis failed", "epoch", epoch, "error", err)
		d.notifier.Notice(Notice{Level: NoticeError, Title: "Analysis Error", Description: description})
		return
	}

	d.metrics.RecordAnalysis(ctx, elapsed, OutcomeSuccess)
	slog.Info("dispatcher: analysis complete", "epoch", epoch, "score", result.StressScore, "latency_ms", elapsed.Milliseconds())
	d.orchestrator.Apply(ctx, epoch, seg.Text, result)
}

func (d *Dispatcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}
