package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/genvault-go/internal/hub"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleWebSocket upgrades the connection and streams hub events for one
// room. The room is chosen with ?room=; it defaults to the broadcast channel
// carrying all job events. No history is replayed: the stream carries only
// events published while the connection is live.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("room")
	if channel == "" {
		channel = hub.BroadcastChannel
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe(channel)
	defer s.hub.Unsubscribe(sub)

	s.logger.Info("websocket connected", "channel", channel, "remote", r.RemoteAddr)

	// Reader: pings get a pong back, everything else is ignored. Closing the
	// done channel unblocks the writer when the peer goes away.
	done := make(chan struct{})
	pongs := make(chan struct{}, 4)
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var in struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &in); err != nil {
				continue
			}
			if in.Type == hub.EventPing {
				select {
				case pongs <- struct{}{}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			if err := s.writeEvent(conn, event); err != nil {
				return
			}
		case <-pongs:
			if err := s.writeEvent(conn, hub.Event{Type: hub.EventPong, Timestamp: time.Now().UTC()}); err != nil {
				return
			}
		case <-done:
			s.logger.Debug("websocket disconnected", "channel", channel)
			return
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, event hub.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}
