package websocket

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"gameservices/core"
	"gameservices/realtime"
)

const writeWait = 5 * time.Second

// Handler upgrades to WebSocket and streams signals from the hub. The optional "types" query
// parameter (comma separated) restricts the stream to those signals.
func Handler(hub *realtime.Hub, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	upgrader := gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		types, ok := parseTypes(r.URL.Query().Get("types"))
		if !ok {
			http.Error(w, "unknown signal type", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()
		id, ch := hub.Subscribe(256, types...)
		defer hub.Unsubscribe(id)
		logger.Debug("signal stream opened", "remote", r.RemoteAddr, "types", len(types))

		// the client never sends; reading only notices the close
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev)); err != nil {
					return
				}
			}
		}
	})
}

func parseTypes(raw string) ([]core.EventType, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, true
	}
	var out []core.EventType
	for _, part := range strings.Split(raw, ",") {
		t := core.EventType(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if !core.KnownEventType(t) {
			return nil, false
		}
		out = append(out, t)
	}
	return out, true
}
