package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/KevTale/hakai/internal/hmr"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// wsPeer delivers live reload messages over one socket.
type wsPeer struct {
	conn *websocket.Conn
}

func (p *wsPeer) Send(ctx context.Context, msg hmr.Message) error {
	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return wsjson.Write(ctx, p.conn, msg)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "origin", r.Header.Get("Origin"))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()

	session := s.coordinator.Connect(&wsPeer{conn: conn})
	defer func() {
		session.Close()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	go s.pingLoop(ctx, conn)
	s.readLoop(ctx, conn, session)
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, session *hmr.Session) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if ctx.Err() == nil && status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway &&
				!errors.Is(err, context.Canceled) {
				s.logger.Debug(ctx, "WebSocket read ended", "client", session.ID(), "error", err.Error())
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		if err := session.HandleMessage(data); err != nil {
			s.logger.Debug(ctx, "Invalid client message", "client", session.ID(), "error", err.Error())
		}
	}
}

func (s *Server) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// originPatterns turns configured origins, with or without scheme, into
// the host patterns the websocket handshake matches. No origins means
// same host only.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if strings.Contains(origin, "://") {
			if u, err := url.Parse(origin); err == nil && u.Host != "" {
				origin = u.Host
			}
		}
		patterns = append(patterns, origin)
	}
	return patterns
}
