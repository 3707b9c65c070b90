// Package capture adapts a continuous Deepgram live transcription stream
// into a single-utterance speech capability: each Start opens the audio
// valve for one utterance, and the run ends with OnEnd after the utterance,
// an error, or a stretch of silence.
package capture

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"

	"github.com/sjawhar/aura-calm/internal/session"
	"github.com/sjawhar/aura-calm/internal/transcribe"
)

var _ api.LiveMessageCallback = (*Deepgram)(nil)

// Valve controls whether microphone audio reaches the live connection.
type Valve interface {
	Open()
	Close()
}

// Deepgram is a session.Recognizer driven by Deepgram websocket callbacks.
type Deepgram struct {
	valve    Valve
	detector *Detector

	mu        sync.Mutex
	buffer    *UtteranceBuffer
	listener  session.Listener
	connected bool
}

func NewDeepgram(valve Valve, noSpeechTimeout time.Duration) *Deepgram {
	d := &Deepgram{
		valve:    valve,
		detector: NewDetector(noSpeechTimeout),
		buffer:   NewUtteranceBuffer(),
	}
	d.detector.OnSilence(d.silence)
	return d
}

// SetConnected records whether the live connection is usable. The Open and
// Close callbacks keep it current after the first connect.
func (d *Deepgram) SetConnected(ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = ok
}

// Start begins one capture run reporting to l.
func (d *Deepgram) Start(l session.Listener) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return fmt.Errorf("%w: deepgram connection closed", session.ErrServiceUnavailable)
	}
	d.listener = l
	d.buffer.Reset()
	d.valve.Open()
	d.detector.Arm()
	return nil
}

// Stop ends the current run. Finalized words still waiting for speech_final
// are reported as a result; the run's end is not.
func (d *Deepgram) Stop() error {
	d.mu.Lock()
	text := d.buffer.Flush()
	l := d.releaseLocked()
	d.mu.Unlock()

	if l != nil && text != "" {
		l.OnResult(text)
	}
	return nil
}

func (d *Deepgram) Open(*api.OpenResponse) error {
	slog.Info("capture: connected to deepgram")
	d.SetConnected(true)
	return nil
}

func (d *Deepgram) Message(mr *api.MessageResponse) error {
	if !mr.IsFinal || len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]

	words := make([]transcribe.Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, transcribe.Word{
			PunctuatedWord: w.PunctuatedWord,
			Start:          w.Start,
			End:            w.End,
		})
	}

	d.mu.Lock()
	if d.listener == nil {
		d.mu.Unlock()
		return nil
	}
	d.buffer.Add(alt.Transcript, words)
	if !d.buffer.Empty() {
		d.detector.OnSpeech()
	}
	if !mr.SpeechFinal {
		d.mu.Unlock()
		return nil
	}
	text := d.buffer.Flush()
	l := d.releaseLocked()
	d.mu.Unlock()

	deliver(l, text)
	return nil
}

func (d *Deepgram) Metadata(*api.MetadataResponse) error { return nil }

func (d *Deepgram) SpeechStarted(*api.SpeechStartedResponse) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener != nil {
		d.detector.OnSpeech()
	}
	return nil
}

// UtteranceEnd completes the run when finalized words never reached a
// speech_final message.
func (d *Deepgram) UtteranceEnd(*api.UtteranceEndResponse) error {
	d.mu.Lock()
	if d.listener == nil || d.buffer.Empty() {
		d.mu.Unlock()
		return nil
	}
	text := d.buffer.Flush()
	l := d.releaseLocked()
	d.mu.Unlock()

	deliver(l, text)
	return nil
}

func (d *Deepgram) Close(*api.CloseResponse) error {
	slog.Info("capture: disconnected from deepgram")

	d.mu.Lock()
	d.connected = false
	l := d.releaseLocked()
	d.mu.Unlock()

	fail(l, session.ErrorNetwork)
	return nil
}

func (d *Deepgram) Error(er *api.ErrorResponse) error {
	slog.Warn("capture: deepgram error", "code", er.ErrCode, "description", er.Description)

	d.mu.Lock()
	l := d.releaseLocked()
	d.mu.Unlock()

	fail(l, ErrorKind(er.ErrCode))
	return nil
}

func (d *Deepgram) UnhandledEvent(raw []byte) error {
	slog.Debug("capture: unhandled deepgram event", "bytes", len(raw))
	return nil
}

func (d *Deepgram) silence() {
	d.mu.Lock()
	l := d.releaseLocked()
	d.mu.Unlock()

	fail(l, session.ErrorNoSpeech)
}

// releaseLocked ends the current run and returns its listener, or nil when
// no run is active.
func (d *Deepgram) releaseLocked() session.Listener {
	l := d.listener
	if l == nil {
		return nil
	}
	d.listener = nil
	d.buffer.Reset()
	d.valve.Close()
	d.detector.Disarm()
	return l
}

func deliver(l session.Listener, text string) {
	if l == nil {
		return
	}
	if text != "" {
		l.OnResult(text)
	}
	l.OnEnd()
}

func fail(l session.Listener, kind session.ErrorKind) {
	if l == nil {
		return
	}
	l.OnError(kind)
	l.OnEnd()
}

// ErrorKind maps a Deepgram error code onto the capture error kinds.
func ErrorKind(code string) session.ErrorKind {
	upper := strings.ToUpper(code)
	switch {
	case strings.Contains(upper, "AUTH"), strings.Contains(upper, "PERMISSION"),
		strings.Contains(upper, "FORBIDDEN"), upper == "401", upper == "403":
		return session.ErrorServiceNotAllowed
	case strings.Contains(upper, "NET"), strings.Contains(upper, "TIMEOUT"),
		strings.Contains(upper, "CONNECT"), strings.Contains(upper, "WEBSOCKET"):
		return session.ErrorNetwork
	default:
		return session.ErrorOther
	}
}
