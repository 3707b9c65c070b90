package audio

import (
	"io"
	"sync"
)

// Gate forwards audio to dst only while open. Closed writes are accepted
// and dropped so the capture loop keeps draining the device.
type Gate struct {
	dst io.Writer

	mu      sync.RWMutex
	open    bool
	dropped int64
}

// NewGate returns a closed gate. dst may be nil until SetDestination.
func NewGate(dst io.Writer) *Gate {
	return &Gate{dst: dst}
}

// SetDestination swaps the writer that receives open-gate audio.
func (g *Gate) SetDestination(dst io.Writer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dst = dst
}

func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = true
}

func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = false
}

func (g *Gate) IsOpen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.open
}

// Dropped returns the number of bytes discarded while closed.
func (g *Gate) Dropped() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.dropped
}

func (g *Gate) Write(p []byte) (int, error) {
	g.mu.RLock()
	open, dst := g.open, g.dst
	g.mu.RUnlock()

	if !open || dst == nil {
		g.mu.Lock()
		g.dropped += int64(len(p))
		g.mu.Unlock()
		return len(p), nil
	}
	return dst.Write(p)
}
