package session

import (
	"time"

	"github.com/sjawhar/aura-calm/internal/eventlog"
)

// Config tunes the monitoring pipeline.
type Config struct {
	Threshold         float64
	HapticPattern     []int
	AnalysisTimeout   time.Duration
	EnrichmentTimeout time.Duration
}

// Deps are the collaborators the pipeline drives. Events is shared with
// the analysis clients so their progress lines land in the same log.
type Deps struct {
	Events     *eventlog.Log
	Gate       PermissionGate
	Recognizer Recognizer
	Analyzer   Analyzer
	Insight    InsightGenerator
	Guidelines GuidelineGenerator
	Haptics    Haptics
	Audio      AmbientAudio
	Notifier   Notifier
	Metrics    Metrics
}

// Pipeline wires the controller, dispatcher, and orchestrator around one
// shared state.
type Pipeline struct {
	State        *State
	Events       *eventlog.Log
	Controller   *Controller
	Dispatcher   *Dispatcher
	Orchestrator *Orchestrator
}

func New(cfg Config, deps Deps) *Pipeline {
	events := deps.Events
	if events == nil {
		events = eventlog.New(eventlog.DefaultCapacity)
	}

	state := NewState(events)
	orchestrator := NewOrchestrator(state, events, deps.Insight, deps.Guidelines, deps.Haptics, deps.Audio, deps.Metrics, OrchestratorConfig{
		Threshold:         cfg.Threshold,
		HapticPattern:     cfg.HapticPattern,
		EnrichmentTimeout: cfg.EnrichmentTimeout,
	})
	dispatcher := NewDispatcher(state, events, deps.Analyzer, orchestrator, deps.Notifier, deps.Metrics, cfg.AnalysisTimeout)
	controller := NewController(state, events, deps.Gate, deps.Recognizer, dispatcher, orchestrator, deps.Notifier)

	return &Pipeline{
		State:        state,
		Events:       events,
		Controller:   controller,
		Dispatcher:   dispatcher,
		Orchestrator: orchestrator,
	}
}
