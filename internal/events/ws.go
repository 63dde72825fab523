package events

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades the request and keeps the subscriber registered until it
// disconnects. Incoming messages are ignored.
func Handler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		// welcome goes out before Add so it never interleaves with a broadcast
		_ = ws.WriteJSON(gin.H{"type": TypeWelcome, "transport": "websocket"})
		hub.Add(ws)
		hub.Logger.Info().Str("remote", c.ClientIP()).Msg("subscriber connected")

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.Remove(ws)
		hub.Logger.Info().Str("remote", c.ClientIP()).Msg("subscriber disconnected")
	}
}
