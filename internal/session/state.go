package session

import (
	"sync"
	"time"

	"github.com/sjawhar/aura-calm/internal/eventlog"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusListening Status = "listening"
	StatusStopping  Status = "stopping"
	StatusStopped   Status = "stopped"
)

type Phase string

const (
	PhaseCalm     Phase = "calm"
	PhaseStressed Phase = "stressed"
)

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	Revision    uint64           `json:"revision"`
	Status      Status           `json:"status"`
	StartedAt   *time.Time       `json:"started_at"`
	Epoch       uint64           `json:"epoch"`
	Processing  bool             `json:"processing"`
	StressScore *float64         `json:"stress_score"`
	Feedback    string           `json:"feedback"`
	Phase       Phase            `json:"phase"`
	Insight     string           `json:"insight"`
	Guidelines  []string         `json:"guidelines"`
	LatestText  string           `json:"latest_text"`
	Events      []eventlog.Entry `json:"events"`
}

type values struct {
	revision   uint64
	status     Status
	startedAt  time.Time
	epoch      uint64
	processing bool
	score      *float64
	feedback   string
	phase      Phase
	insight    string
	guidelines []string
	latestText string
}

// State is the single owner of session fields. Components mutate it only
// through the transition methods below; everything else reads snapshots.
type State struct {
	events *eventlog.Log

	mu sync.Mutex
	v  values

	obsMu     sync.Mutex
	observers []func(Snapshot)

	// pubMu orders deliveries: observers see snapshots in revision order.
	pubMu sync.Mutex
}

// NewState creates an idle, calm state that embeds events in its snapshots.
// Every change to events bumps the revision and is published to observers.
func NewState(events *eventlog.Log) *State {
	if events == nil {
		events = eventlog.New(eventlog.DefaultCapacity)
	}
	s := &State{
		events: events,
		v:      values{status: StatusIdle, phase: PhaseCalm},
	}
	events.OnChange(s.eventsChanged)
	return s
}

// Subscribe registers fn to receive a snapshot after every change.
func (s *State) Subscribe(fn func(Snapshot)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	v := s.v
	s.mu.Unlock()

	snap := Snapshot{
		Revision:   v.revision,
		Status:     v.status,
		Epoch:      v.epoch,
		Processing: v.processing,
		Feedback:   v.feedback,
		Phase:      v.phase,
		Insight:    v.insight,
		Guidelines: append([]string{}, v.guidelines...),
		LatestText: v.latestText,
		Events:     s.events.Entries(),
	}
	if !v.startedAt.IsZero() {
		started := v.startedAt
		snap.StartedAt = &started
	}
	if v.score != nil {
		score := *v.score
		snap.StressScore = &score
	}
	return snap
}

func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.status
}

func (s *State) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.epoch
}

// update applies fn under the lock and publishes when fn reports a change.
func (s *State) update(fn func(v *values) bool) bool {
	s.mu.Lock()
	changed := fn(&s.v)
	if changed {
		s.v.revision++
	}
	s.mu.Unlock()

	if changed {
		s.publish()
	}
	return changed
}

func (s *State) eventsChanged() {
	s.mu.Lock()
	s.v.revision++
	s.mu.Unlock()
	s.publish()
}

// publish takes the snapshot and delivers it under pubMu, so a snapshot
// taken later is never delivered before one taken earlier.
func (s *State) publish() {
	s.obsMu.Lock()
	observers := append([]func(Snapshot){}, s.observers...)
	s.obsMu.Unlock()
	if len(observers) == 0 {
		return
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	snap := s.Snapshot()
	for _, fn := range observers {
		fn(snap)
	}
}

// begin starts a new epoch: status Listening with every downstream field
// back at its initial value. The event log is cleared by the caller.
func (s *State) begin(now time.Time) uint64 {
	var epoch uint64
	s.update(func(v *values) bool {
		v.epoch++
		epoch = v.epoch
		v.status = StatusListening
		v.startedAt = now
		v.processing = false
		v.score = nil
		v.feedback = ""
		v.phase = PhaseCalm
		v.insight = ""
		v.guidelines = nil
		v.latestText = ""
		return true
	})
	return epoch
}

func (s *State) setStatus(status Status) {
	s.update(func(v *values) bool {
		if v.status == status {
			return false
		}
		v.status = status
		return true
	})
}

// endIfCurrent moves a listening session of the given epoch to Idle.
func (s *State) endIfCurrent(epoch uint64) bool {
	return s.update(func(v *values) bool {
		if v.epoch != epoch || v.status != StatusListening {
			return false
		}
		v.status = StatusIdle
		return true
	})
}

// listening reports whether epoch is current and still listening.
func (s *State) listening(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.epoch == epoch && s.v.status == StatusListening
}

func (s *State) setLatest(epoch uint64, text string) {
	s.update(func(v *values) bool {
		if v.epoch != epoch {
			return false
		}
		v.latestText = text
		return true
	})
}

// beginCycle marks an analysis in flight and drops guidelines from the
// previous score.
func (s *State) beginCycle(epoch uint64) {
	s.update(func(v *values) bool {
		if v.epoch != epoch {
			return false
		}
		v.processing = true
		v.guidelines = nil
		return true
	})
}

func (s *State) endCycle(epoch uint64) {
	s.update(func(v *values) bool {
		if v.epoch != epoch || !v.processing {
			return false
		}
		v.processing = false
		return true
	})
}

// applyResult records a fresh analysis result and the phase it implies. It
// returns the previous phase, the status at the time of the update, and
// false when the result belongs to an older epoch.
func (s *State) applyResult(epoch uint64, score float64, feedback string, phase Phase) (Phase, Status, bool) {
	var prev Phase
	var status Status
	ok := s.update(func(v *values) bool {
		if v.epoch != epoch {
			return false
		}
		prev = v.phase
		status = v.status
		v.score = &score
		v.feedback = feedback
		v.insight = ""
		v.phase = phase
		if phase == PhaseCalm {
			v.guidelines = nil
		}
		return true
	})
	return prev, status, ok
}

// applyInsight replaces the analysis feedback with the insight.
func (s *State) applyInsight(epoch uint64, insight string) bool {
	return s.update(func(v *values) bool {
		if v.epoch != epoch {
			return false
		}
		v.insight = insight
		v.feedback = insight
		return true
	})
}

func (s *State) applyGuidelines(epoch uint64, guidelines []string) bool {
	return s.update(func(v *values) bool {
		if v.epoch != epoch {
			return false
		}
		v.guidelines = append([]string(nil), guidelines...)
		return true
	})
}
