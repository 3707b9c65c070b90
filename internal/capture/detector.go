package capture

import (
	"sync"
	"time"
)

// DefaultNoSpeechTimeout bounds how long a capture run waits for speech.
const DefaultNoSpeechTimeout = 8 * time.Second

// Detector fires a callback when an armed capture run hears nothing for the
// configured timeout.
type Detector struct {
	timeout time.Duration

	mu        sync.Mutex
	timer     *time.Timer
	armed     uint64
	onSilence func()
}

func NewDetector(timeout time.Duration) *Detector {
	if timeout <= 0 {
		timeout = DefaultNoSpeechTimeout
	}
	return &Detector{timeout: timeout}
}

func (d *Detector) OnSilence(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSilence = callback
}

// Arm starts the silence timer, replacing any running one.
func (d *Detector) Arm() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.armed++
	generation := d.armed
	d.timer = time.AfterFunc(d.timeout, func() {
		d.mu.Lock()
		if d.armed != generation {
			d.mu.Unlock()
			return
		}
		callback := d.onSilence
		d.timer = nil
		d.mu.Unlock()

		if callback != nil {
			callback()
		}
	})
}

// OnSpeech disarms the timer for the current run.
func (d *Detector) OnSpeech() {
	d.Disarm()
}

func (d *Detector) Disarm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *Detector) stopLocked() {
	d.armed++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
