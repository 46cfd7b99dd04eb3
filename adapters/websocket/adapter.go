package websocket

import (
	"log/slog"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"questboard/core"
	"questboard/realtime"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Authenticator resolves the user a stream belongs to.
type Authenticator func(*http.Request) (core.UserID, error)

// Options configure Handler.
type Options struct {
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(*http.Request) bool
	Logger      *slog.Logger
	Buffer      int
}

// Handler upgrades to WebSocket and streams the caller's events from the
// hub. Requests that fail auth get 401 before the upgrade.
func Handler(hub *realtime.Hub, auth Authenticator, opts Options) http.Handler {
	check := opts.CheckOrigin
	if check == nil {
		check = func(r *http.Request) bool { return true }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 256
	}
	upgrader := gorillaws.Upgrader{CheckOrigin: check}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := auth(r)
		if err != nil {
			http.Error(w, `{"code":"unauthorized","message":"missing or invalid token"}`, http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		id, ch := hub.Subscribe(user, buffer)
		defer hub.Unsubscribe(id)
		logger.Debug("ws connected", "user", user)

		// reader: handles pongs and notices the client going away
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			conn.SetReadLimit(512)
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(pongWait))
			})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(gorillaws.TextMessage, realtime.MarshalJSON(ev)); err != nil {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(gorillaws.PingMessage, nil); err != nil {
					return
				}
			case <-closed:
				logger.Debug("ws disconnected", "user", user)
				return
			}
		}
	})
}
