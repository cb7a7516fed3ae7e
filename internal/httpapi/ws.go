package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/inboxd/inboxd/internal/domain"
)

// clientSendBuffer is the outbound buffer per WebSocket client. The
// broadcaster already queues per watcher; this buffer only decouples the
// callback from the socket write.
const clientSendBuffer = 256

// SubscribeWS handles GET /ws/conversations/:peer. It replays the existing
// log (backfill) and then streams every new message, with no gap between the
// two: the relay registers the watcher under the same lock that serializes
// appends.
func (s *Server) SubscribeWS(c echo.Context) error {
	profile, ok := currentProfile(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	}
	peer := c.Param("peer")

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		OriginPatterns: s.wsOrigins,
	})
	if err != nil {
		slog.Error("Failed to upgrade WebSocket connection", "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	send := make(chan []byte, clientSendBuffer)
	callback := func(m *domain.Message) error {
		payload, err := json.Marshal(m)
		if err != nil {
			return err
		}
		select {
		case send <- payload:
			return nil
		default:
			return fmt.Errorf("client %s send buffer full", profile.UserID)
		}
	}

	sub, backfill, err := s.relay.Subscribe(ctx, profile.UserID, peer, callback)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "subscribe failed")
		return mapError(err)
	}
	defer s.relay.Unsubscribe(sub)

	// The read pump only detects the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for _, m := range backfill {
		payload, err := json.Marshal(m)
		if err != nil {
			slog.Error("Failed to encode backfill message", "message", m.ID, "error", err)
			continue
		}
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return nil
		case payload := <-send:
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return nil
			}
		}
	}
}
