package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func registerWSRoute(mux *http.ServeMux, hub *Hub, state StateSource) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("server: ws upgrade", "error", err)
			return
		}
		defer func() { _ = conn.Close() }()

		// Subscribe before the initial snapshot so no update slips between.
		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		initial := []any{
			ConnectionEvent{Event: newEvent("connection", time.Now().UTC()), Connected: true},
		}
		if state != nil {
			initial = append(initial, StateEvent{Event: newEvent("state", time.Now().UTC()), State: state.Snapshot()})
		}
		for _, event := range initial {
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}

		for msg := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	})
}
