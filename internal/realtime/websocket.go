// internal/realtime/websocket.go
package realtime

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebSocketConn wraps websocket.Conn (biar hub.go tidak perlu import websocket)
type WebSocketConn struct {
	Conn *websocket.Conn
}

func NewWebSocketConn(c *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{Conn: c}
}

// Serve registers the connection on the hub and pumps messages until the client leaves.
// Incoming frames are only read to notice disconnects.
func Serve(hub *Hub, c *websocket.Conn, userID uuid.UUID, log *zap.Logger) {
	client := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   NewWebSocketConn(c),
		Send:   make(chan []byte, 256),
	}

	hub.RegisterClient(client)
	defer hub.UnregisterClient(client)

	go func() {
		for msg := range client.Send {
			if err := client.Conn.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug("websocket write", zap.String("client_id", client.ID), zap.Error(err))
				return
			}
		}
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			log.Debug("websocket closed", zap.String("client_id", client.ID), zap.Error(err))
			return
		}
	}
}
