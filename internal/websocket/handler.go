package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the connection and blocks until both pumps are done with it. The
// connection is pooled by fiber and must not be used after this returns.
func ServeWs(hub *Hub, c *websocket.Conn, userID string) {
	client := newClient(hub, c, userID)
	select {
	case client.Hub.register <- client:
	case <-hub.stop:
		c.Close()
		return
	}

	go client.writePump()
	client.readPump()

	// The hub may already be stopped and never close Send.
	client.closeSend()
	<-client.done
}
