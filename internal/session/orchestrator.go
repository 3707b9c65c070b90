package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sjawhar/aura-calm/internal/analysis"
	"github.com/sjawhar/aura-calm/internal/eventlog"
)

// DefaultThreshold is the stress score above which a reading escalates.
const DefaultThreshold = 70

// defaultHapticPattern is the vibration played on escalation. Orchestrators
// keep their own copy.
var defaultHapticPattern = []int{500, 200, 500}

// Orchestrator owns the Calm/Stressed machine and the escalation side
// effects.
type Orchestrator struct {
	state      *State
	events     *eventlog.Log
	insight    InsightGenerator
	guidelines GuidelineGenerator
	haptics    Haptics
	audio      AmbientAudio
	metrics    Metrics

	threshold float64
	pattern   []int
	timeout   time.Duration
}

type OrchestratorConfig struct {
	Threshold         float64
	HapticPattern     []int
	EnrichmentTimeout time.Duration
}

func NewOrchestrator(state *State, events *eventlog.Log, insight InsightGenerator, guidelines GuidelineGenerator, haptics Haptics, audio AmbientAudio, metrics Metrics, cfg OrchestratorConfig) *Orchestrator {
	if haptics == nil {
		haptics = nopHaptics{}
	}
	if audio == nil {
		audio = nopAudio{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if len(cfg.HapticPattern) == 0 {
		cfg.HapticPattern = defaultHapticPattern
	}
	return &Orchestrator{
		state:      state,
		events:     events,
		insight:    insight,
		guidelines: guidelines,
		haptics:    haptics,
		audio:      audio,
		metrics:    metrics,
		threshold:  cfg.Threshold,
		pattern:    append([]int(nil), cfg.HapticPattern...),
		timeout:    cfg.EnrichmentTimeout,
	}
}

// PhaseFor returns the phase a score maps to. The threshold is exclusive.
func (o *Orchestrator) PhaseFor(score float64) Phase {
	if score > o.threshold {
		return PhaseStressed
	}
	return PhaseCalm
}

// Apply drives one transition from a fresh analysis result of epoch. It
// blocks until both enrichment calls have resolved. Side effects that
// start something (haptics, audio playback) only fire while the session is
// still listening.
func (o *Orchestrator) Apply(ctx context.Context, epoch uint64, text string, result analysis.Result) {
	phase := o.PhaseFor(result.StressScore)
	prev, status, ok := o.state.applyResult(epoch, result.StressScore, result.Feedback, phase)
	if !ok {
		slog.Info("orchestrator: dropped result from previous epoch", "epoch", epoch)
		return
	}

	if phase == PhaseCalm {
		if prev == PhaseStressed {
			o.audio.Stop()
			slog.Info("orchestrator: de-escalated", "epoch", epoch, "score", result.StressScore)
		}
		return
	}

	o.events.Add("High stress detected. Triggering calming intervention.")
	o.metrics.RecordEscalation(ctx)
	slog.Info("orchestrator: escalated", "epoch", epoch, "score", result.StressScore, "status", status)
	if status == StatusListening {
		o.haptics.Vibrate(o.pattern)
		o.audio.Play()
	}

	o.enrich(ctx, epoch, text, result.StressScore)
}

// Reset silences anything a previous epoch left playing.
func (o *Orchestrator) Reset() {
	o.audio.Stop()
}

func (o *Orchestrator) enrich(ctx context.Context, epoch uint64, text string, score float64) {
	// Tasks never return an error so one failure cannot cancel the other.
	var g errgroup.Group

	if o.insight != nil {
		o.events.Add("Generating personalized insight...")
		g.Go(func() error {
			callCtx, cancel := o.callContext(ctx)
			defer cancel()

			insight, err := o.insight.Insight(callCtx, text, score)
			if err != nil {
				o.events.Add("Could not generate personalized insight.")
				o.metrics.RecordEnrichment(ctx, "insight", enrichmentOutcome(err))
				slog.Warn("orchestrator: insight failed", "epoch", epoch, "error", err)
				return nil
			}
			if o.state.applyInsight(epoch, insight) {
				o.events.Add("Insight received.")
			}
			o.metrics.RecordEnrichment(ctx, "insight", OutcomeSuccess)
			return nil
		})
	}

	if o.guidelines != nil {
		g.Go(func() error {
			callCtx, cancel := o.callContext(ctx)
			defer cancel()

			guidelines, err := o.guidelines.Guidelines(callCtx, score)
			if err != nil {
				o.metrics.RecordEnrichment(ctx, "guidelines", enrichmentOutcome(err))
				slog.Warn("orchestrator: guidelines failed", "epoch", epoch, "error", err)
				return nil
			}
			o.state.applyGuidelines(epoch, guidelines)
			o.metrics.RecordEnrichment(ctx, "guidelines", OutcomeSuccess)
			return nil
		})
	}

	_ = g.Wait()
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}

func enrichmentOutcome(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	return OutcomeFailure
}
