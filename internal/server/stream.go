package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/charleshuang3/cf-ping/internal/status"
)

const streamWriteTimeout = 5 * time.Second

var statusUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := statusUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("status stream upgrade failed", "error", err)
		return
	}
	s.serveStatusConnection(conn)
}

// serveStatusConnection pushes a report immediately and then on every tick
// until the peer goes away or the server shuts down.
func (s *Server) serveStatusConnection(conn *websocket.Conn) {
	defer conn.Close()

	if err := writeStatusPayload(conn, s.streamReport()); err != nil {
		return
	}

	ticker := time.NewTicker(s.opts.StatusPush)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ticker.C:
			if err := writeStatusPayload(conn, s.streamReport()); err != nil {
				return
			}
		case <-done:
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(streamWriteTimeout))
			return
		}
	}
}

func (s *Server) streamReport() status.Report {
	ctx, cancel := context.WithTimeout(context.Background(), streamWriteTimeout)
	defer cancel()
	return s.buildReport(ctx)
}

func writeStatusPayload(conn *websocket.Conn, payload status.Report) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(payload)
}
