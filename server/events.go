package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(s.cfg.CORSOrigins, origin)
		},
	}
}

// originAllowed matches origin against patterns holding at most one "*",
// the form the CORS allow-list uses.
func originAllowed(patterns []string, origin string) bool {
	for _, p := range patterns {
		if p == "*" || p == origin {
			return true
		}
		if pre, suf, ok := strings.Cut(p, "*"); ok &&
			len(origin) >= len(pre)+len(suf) &&
			strings.HasPrefix(origin, pre) && strings.HasSuffix(origin, suf) {
			return true
		}
	}
	return false
}

// handleEvents streams editor notifications (mode, chart_selected,
// toolbar, sections, ...) as JSON text frames until the client leaves.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	logger := requestLog(r.Context())
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("server: websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	notes, unsubscribe := s.ed.Subscribe()
	defer unsubscribe()

	// The read side only watches for the close frame.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("server: websocket read", "error", err)
				}
				return
			}
		}
	}()

	hello := map[string]any{"type": "hello", "data": map[string]any{"mode": s.ed.Mode()}}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(hello); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case n, ok := <-notes:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(n); err != nil {
				logger.Debug("server: websocket write", "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
