package session

import (
	"context"
	"time"

	"github.com/sjawhar/aura-calm/internal/analysis"
)

// Listener receives lifecycle events from a single-utterance capture run.
type Listener interface {
	OnResult(text string)
	OnEnd()
	OnError(kind ErrorKind)
}

// Recognizer is a speech capture capability that supports one utterance per
// Start. It signals OnEnd after each utterance or transient error. Stop may
// report speech it already finalized through OnResult before returning.
type Recognizer interface {
	Start(l Listener) error
	Stop() error
}

// PermissionGate grants or denies access to the capture device. A denial
// wraps ErrPermissionDenied.
type PermissionGate interface {
	Request(ctx context.Context) error
}

type Analyzer interface {
	Analyze(ctx context.Context, text string) (analysis.Result, error)
}

type InsightGenerator interface {
	Insight(ctx context.Context, text string, score float64) (string, error)
}

type GuidelineGenerator interface {
	Guidelines(ctx context.Context, score float64) ([]string, error)
}

// Haptics plays a vibration pattern, alternating on/off durations in ms.
type Haptics interface {
	Vibrate(pattern []int)
}

// AmbientAudio controls the calming track. Play always restarts from zero.
type AmbientAudio interface {
	Play()
	Stop()
}

type NoticeLevel string

const (
	NoticeError   NoticeLevel = "error"
	NoticeWarning NoticeLevel = "warning"
)

// Notice is a transient user-facing message.
type Notice struct {
	Level       NoticeLevel `json:"level"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
}

type Notifier interface {
	Notice(n Notice)
}

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
	OutcomeStale   = "stale"
)

// Metrics records pipeline measurements.
type Metrics interface {
	RecordAnalysis(ctx context.Context, duration time.Duration, outcome string)
	RecordEscalation(ctx context.Context)
	RecordEnrichment(ctx context.Context, kind, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) RecordAnalysis(context.Context, time.Duration, string) {}
func (nopMetrics) RecordEscalation(context.Context)                      {}
func (nopMetrics) RecordEnrichment(context.Context, string, string)      {}

type nopNotifier struct{}

func (nopNotifier) Notice(Notice) {}

type nopHaptics struct{}

func (nopHaptics) Vibrate([]int) {}

type nopAudio struct{}

func (nopAudio) Play() {}
func (nopAudio) Stop() {}
