package server

import (
	"time"

	"github.com/sjawhar/aura-calm/internal/session"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

// StateEvent carries a full snapshot; clients replace their view wholesale.
type StateEvent struct {
	Event
	State session.Snapshot `json:"state"`
}

type NoticeEvent struct {
	Event
	session.Notice
}

// HapticEvent asks the client to vibrate; Pattern alternates on/off in ms.
type HapticEvent struct {
	Event
	Pattern []int `json:"pattern"`
}

const (
	AudioPlay = "play"
	AudioStop = "stop"
)

type AmbientAudioEvent struct {
	Event
	Action string `json:"action"`
	URL    string `json:"url,omitempty"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
