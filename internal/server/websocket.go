package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades to WebSocket and streams completions to the
// client as they are observed.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	completions := s.hub.Subscribe()

	// Read pump — detect client disconnect.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	// Write pump — send completions as JSON.
	for comp := range completions {
		msg := struct {
			PID    int32  `json:"pid"`
			Source string `json:"source"`
			SeenAt string `json:"seen_at"`
		}{
			PID:    comp.PID,
			Source: comp.Source,
			SeenAt: comp.SeenAt.Format(time.RFC3339Nano),
		}

		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("websocket write failed: %v", err)
			return
		}
	}
}
