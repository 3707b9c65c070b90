// Package eventlog keeps the short, human-readable status trail shown to the
// user while monitoring runs.
package eventlog

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultCapacity is the number of entries kept when none is configured.
const DefaultCapacity = 5

// Entry is one status line.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// String renders the entry the way the UI shows it.
func (e Entry) String() string {
	return fmt.Sprintf("%s: %s", e.Timestamp.Format("15:04:05"), e.Message)
}

// Log is a fixed-capacity, newest-first sequence of entries. Appending to a
// full log silently evicts the oldest entry.
type Log struct {
	capacity int
	now      func() time.Time

	mu       sync.Mutex
	entries  []Entry
	onChange func()
}

// New creates an empty log. A non-positive capacity falls back to
// DefaultCapacity.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity, now: time.Now}
}

// OnChange registers a callback fired after every Add and Clear. The callback
// runs outside the log's lock.
func (l *Log) OnChange(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

// Add records a message stamped with the current time.
func (l *Log) Add(message string) {
	entry := Entry{Timestamp: l.now(), Message: message}
	slog.Debug("event log", "message", message)

	l.mu.Lock()
	next := make([]Entry, 0, l.capacity)
	next = append(next, entry)
	for _, e := range l.entries {
		if len(next) == l.capacity {
			break
		}
		next = append(next, e)
	}
	l.entries = next
	callback := l.onChange
	l.mu.Unlock()

	if callback != nil {
		callback()
	}
}

// Entries returns a copy of the log, newest first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Clear drops every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	callback := l.onChange
	l.mu.Unlock()

	if callback != nil {
		callback()
	}
}
