package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sjawhar/aura-calm/internal/eventlog"
	"github.com/sjawhar/aura-calm/internal/transcribe"
)

// Controller owns the capture lifecycle. It turns a recognizer that only
// handles one utterance per Start into continuous monitoring by restarting
// it after every end while the session is listening.
type Controller struct {
	state        *State
	events       *eventlog.Log
	gate         PermissionGate
	recognizer   Recognizer
	dispatcher   *Dispatcher
	orchestrator *Orchestrator
	notifier     Notifier
	now          func() time.Time

	mu       sync.Mutex
	restarts sync.WaitGroup
}

func NewController(state *State, events *eventlog.Log, gate PermissionGate, recognizer Recognizer, dispatcher *Dispatcher, orchestrator *Orchestrator, notifier Notifier) *Controller {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Controller{
		state:        state,
		events:       events,
		gate:         gate,
		recognizer:   recognizer,
		dispatcher:   dispatcher,
		orchestrator: orchestrator,
		notifier:     notifier,
		now:          time.Now,
	}
}

// Start requests the device, resets every downstream field, and begins
// capture. A denial leaves the session Idle.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state.Status() {
	case StatusListening, StatusStopping:
		return ErrAlreadyListening
	}

	if c.recognizer == nil {
		c.fail(ErrCapabilityUnavailable, captureNotice(ErrCapabilityUnavailable))
		return ErrCapabilityUnavailable
	}

	if c.gate != nil {
		if err := c.gate.Request(ctx); err != nil {
			n := captureNotice(err)
			if !errors.Is(err, ErrCapabilityUnavailable) {
				if !errors.Is(err, ErrPermissionDenied) {
					err = fmt.Errorf("%w: %w", ErrPermissionDenied, err)
				}
				n = Notice{Level: NoticeError, Title: "Microphone Access Required", Description: "Please grant microphone permission to start monitoring."}
			}
			c.fail(err, n)
			return err
		}
	}

	c.orchestrator.Reset()
	c.events.Clear()
	epoch := c.state.begin(c.now().UTC())
	c.dispatcher.Reset(epoch)
	c.events.Add("Monitoring started. Please speak.")
	slog.Info("session: monitoring started", "epoch", epoch)

	if err := c.recognizer.Start(c.listener(epoch)); err != nil {
		err = startError(err)
		c.state.endIfCurrent(epoch)
		c.fail(err, captureNotice(err))
		return err
	}
	return nil
}

// Stop halts capture and flushes the latest heard segment to the dispatcher.
// In-flight analysis is not cancelled.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Status() != StatusListening {
		return ErrNotListening
	}

	c.state.setStatus(StatusStopping)
	if err := c.recognizer.Stop(); err != nil {
		slog.Warn("session: stop recognizer", "error", err)
	}
	c.state.setStatus(StatusStopped)
	c.events.Add("Monitoring stopped.")
	slog.Info("session: monitoring stopped", "epoch", c.state.Epoch())

	c.dispatcher.Flush()
	return nil
}

// Wait blocks until pending restarts and analysis cycles have resolved.
func (c *Controller) Wait() {
	c.restarts.Wait()
	c.dispatcher.Wait()
}

func (c *Controller) listener(epoch uint64) Listener {
	return &captureListener{c: c, epoch: epoch}
}

func (c *Controller) restart(epoch uint64) {
	defer c.restarts.Done()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.listening(epoch) {
		return
	}
	if err := c.recognizer.Start(c.listener(epoch)); err != nil {
		err = startError(err)
		slog.Warn("session: restart capture failed", "epoch", epoch, "error", err)
		if c.state.endIfCurrent(epoch) {
			c.fail(err, captureNotice(err))
		}
	}
}

// terminate releases the recognizer after a fatal capture error already
// moved the session to Idle.
func (c *Controller) terminate(epoch uint64, err error) {
	defer c.restarts.Done()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Epoch() != epoch {
		return
	}
	if stopErr := c.recognizer.Stop(); stopErr != nil {
		slog.Warn("session: stop recognizer", "error", stopErr)
	}
	c.fail(err, captureNotice(err))
}

// fail surfaces a fatal capture error to the user and leaves the session
// Idle unless a listening session is still running.
func (c *Controller) fail(err error, n Notice) {
	slog.Warn("session: capture failed", "error", err)
	c.notifier.Notice(n)
	if c.state.Status() != StatusListening {
		c.state.setStatus(StatusIdle)
	}
}

func captureNotice(err error) Notice {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return Notice{Level: NoticeError, Title: "Microphone Access Denied", Description: "Please allow microphone access to use this feature."}
	case errors.Is(err, ErrServiceUnavailable):
		return Notice{Level: NoticeError, Title: "Speech Capture Unavailable", Description: "The speech service refused the session. Please try again later."}
	default:
		return Notice{Level: NoticeError, Title: "Speech Capture Unavailable", Description: "Speech capture is not available in this environment."}
	}
}

func startError(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrServiceUnavailable), errors.Is(err, ErrCapabilityUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrCapabilityUnavailable, err)
	}
}

// captureListener binds recognizer callbacks to the epoch that started
// them, so late callbacks from an earlier run are ignored.
type captureListener struct {
	c     *Controller
	epoch uint64
}

func (l *captureListener) OnResult(text string) {
	if l.c.state.Epoch() != l.epoch {
		return
	}
	l.c.dispatcher.Dispatch(transcribe.NewSegment(text, l.c.now()))
}

func (l *captureListener) OnError(kind ErrorKind) {
	if l.c.state.Epoch() != l.epoch {
		return
	}
	if kind != ErrorNoSpeech {
		l.c.events.Add(fmt.Sprintf("Speech recognition error: %s", kind))
	}
	if !kind.Fatal() {
		slog.Debug("session: transient capture error", "kind", kind, "epoch", l.epoch)
		return
	}
	if !l.c.state.endIfCurrent(l.epoch) {
		return
	}
	l.c.restarts.Add(1)
	go l.c.terminate(l.epoch, fmt.Errorf("%w: %s", kind.Err(), kind))
}

// OnEnd restarts capture off the recognizer's goroutine; Stop may be
// holding the controller lock while the recognizer reports its end.
func (l *captureListener) OnEnd() {
	if !l.c.state.listening(l.epoch) {
		return
	}
	l.c.restarts.Add(1)
	go l.c.restart(l.epoch)
}
