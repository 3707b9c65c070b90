// Package audio captures microphone PCM through PortAudio and gates it into
// the live transcription connection.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/sjawhar/aura-calm/internal/session"
)

// Init loads PortAudio. Pair every successful call with Terminate.
func Init() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %w", session.ErrCapabilityUnavailable, err)
	}
	return nil
}

func Terminate() {
	_ = portaudio.Terminate()
}

// Mic wraps a mono PortAudio input stream.
type Mic struct {
	stream *portaudio.Stream
	buf    []int16

	mu      sync.Mutex
	started bool
}

// NewMic opens the default input device with the given sample rate and
// buffer size in frames.
func NewMic(sampleRate, framesPerBuffer int) (*Mic, error) {
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrCapabilityUnavailable, err)
	}
	return &Mic{stream: stream, buf: buf}, nil
}

// Request is the device permission gate: access is granted once the input
// stream is running. The OS refusing the stream counts as a denial.
func (m *Mic) Request(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	if err := m.stream.Start(); err != nil {
		return fmt.Errorf("%w: %w", session.ErrPermissionDenied, err)
	}
	m.started = true
	return nil
}

// Started reports whether the stream is running.
func (m *Mic) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *Mic) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	m.started = false
	return m.stream.Stop()
}

func (m *Mic) Close() error {
	_ = m.Stop()
	return m.stream.Close()
}

// Stream reads from the mic and writes PCM16-LE to w until an error.
func (m *Mic) Stream(w io.Writer) error {
	var out bytes.Buffer
	out.Grow(len(m.buf) * 2)
	for {
		if err := m.stream.Read(); err != nil {
			return err
		}
		out.Reset()
		if err := binary.Write(&out, binary.LittleEndian, m.buf); err != nil {
			return err
		}
		if _, err := w.Write(out.Bytes()); err != nil {
			return err
		}
	}
}
