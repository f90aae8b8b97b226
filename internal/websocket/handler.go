package websocket

import (
	"shyra-hub-be/internal/pkg/logger"
	"shyra-hub-be/pkg/auth"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs runs one authenticated connection until it closes. It returns only
// after the writer has stopped, since the upgrader recycles conn as soon as
// the handler returns.
func ServeWs(d *Dispatcher, conn *websocket.Conn, identity auth.Identity, log logger.ILogger) {
	client := NewClient(uuid.NewString(), identity, conn)
	d.OnConnect(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		client.writePump(log)
	}()

	client.readPump(d.HandleMessage, log) // blocks in the handler goroutine

	// Closing the send buffer stops the writer if it is still running.
	d.OnDisconnect(client)
	<-done
}
