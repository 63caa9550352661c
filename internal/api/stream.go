package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/daimoniac/securevision/internal/dashboard"
	"github.com/daimoniac/securevision/internal/observability"
	"github.com/gorilla/websocket"
)

const streamWriteTimeout = 10 * time.Second

// StreamMessage is one frame sent on /api/v1/stream
type StreamMessage struct {
	Type string          `json:"type"` // always "view"
	View *dashboard.View `json:"view"`
}

// handleStream upgrades to a websocket and pushes the view on connect and
// after every applied metrics snapshot
// @Summary Stream dashboard view
// @Description Websocket; each text frame is a StreamMessage
// @Tags Dashboard
// @Success 101 {object} StreamMessage
// @Router /stream [get]
func (s *APIServer) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		s.logger.Debug("websocket upgrade failed",
			"error", err.Error())
		return
	}
	defer conn.Close()

	updates, cancel := s.dashboard.Subscribe()
	defer cancel()

	clients := observability.GetMetrics().StreamClients
	clients.Inc()
	defer clients.Dec()

	// The client never sends anything meaningful; reading detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.sendView(conn); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-s.closing:
			s.closeStream(conn, "server shutting down")
			return
		case _, ok := <-updates:
			if !ok {
				s.closeStream(conn, "dashboard closed")
				return
			}
			if err := s.sendView(conn); err != nil {
				return
			}
		}
	}
}

func (s *APIServer) sendView(conn *websocket.Conn) error {
	view := s.dashboard.View()
	data, err := json.Marshal(StreamMessage{Type: "view", View: &view})
	if err != nil {
		s.logger.Error("error encoding stream message",
			"error", err.Error())
		return err
	}

	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Debug("stream client write failed",
			"error", err.Error())
		return err
	}
	return nil
}

// closeStream sends a going-away close frame; the deferred conn.Close drops
// the connection
func (s *APIServer) closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		s.logger.Debug("failed to send stream close frame",
			"error", err.Error())
	}
}
