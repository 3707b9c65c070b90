package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sjawhar/aura-calm/internal/session"
)

// Observer receives hub activity for metrics. Optional.
type Observer interface {
	ClientConnected(ctx context.Context, delta int64)
	RecordNotice(ctx context.Context, title string)
}

// Hub fans events out to websocket clients. It is the browser-side
// implementation of the session's notifier, haptics, and ambient audio.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}

	ambientURL string
	observer   Observer
}

var (
	_ session.Notifier     = (*Hub)(nil)
	_ session.Haptics      = (*Hub)(nil)
	_ session.AmbientAudio = (*Hub)(nil)
)

func NewHub(ambientURL string, observer Observer) *Hub {
	return &Hub{
		clients:    make(map[chan []byte]struct{}),
		ambientURL: ambientURL,
		observer:   observer,
	}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	if h.observer != nil {
		h.observer.ClientConnected(context.Background(), 1)
	}
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
	if h.observer != nil {
		h.observer.ClientConnected(context.Background(), -1)
	}
}

// Broadcast drops the message for clients whose buffer is full.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastState(snap session.Snapshot) {
	h.broadcastEvent(StateEvent{
		Event: newEvent("state", time.Now().UTC()),
		State: snap,
	})
}

func (h *Hub) Notice(n session.Notice) {
	if h.observer != nil {
		h.observer.RecordNotice(context.Background(), n.Title)
	}
	h.broadcastEvent(NoticeEvent{
		Event:  newEvent("notice", time.Now().UTC()),
		Notice: n,
	})
}

func (h *Hub) Vibrate(pattern []int) {
	h.broadcastEvent(HapticEvent{
		Event:   newEvent("haptic", time.Now().UTC()),
		Pattern: append([]int(nil), pattern...),
	})
}

func (h *Hub) Play() {
	h.broadcastEvent(AmbientAudioEvent{
		Event:  newEvent("ambient_audio", time.Now().UTC()),
		Action: AudioPlay,
		URL:    h.ambientURL,
	})
}

func (h *Hub) Stop() {
	h.broadcastEvent(AmbientAudioEvent{
		Event:  newEvent("ambient_audio", time.Now().UTC()),
		Action: AudioStop,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("server: marshal event", "error", err)
		return
	}
	h.Broadcast(payload)
}
