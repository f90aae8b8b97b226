package websocket

import (
	"sync"
	"time"

	"shyra-hub-be/internal/pkg/logger"
	"shyra-hub-be/pkg/auth"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBufferSize = 256
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	// Id is the connection handle sessions are keyed by.
	Id string

	// Identity decoded from the handshake credential.
	Identity auth.Identity

	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(id string, identity auth.Identity, conn *websocket.Conn) *Client {
	return &Client{
		Id:       id,
		Identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
	}
}

// enqueue never blocks; it reports false when the client is gone or its
// buffer is full.
func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump hands every inbound frame to handle until the connection fails.
func (c *Client) readPump(handle func(*Client, []byte), log logger.ILogger) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn("Client", "Unexpected close", map[string]interface{}{"client_id": c.Id, "error": err.Error()})
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		handle(c, message)
	}
}

// writePump writes one JSON frame per websocket message and keeps the peer
// alive with pings.
func (c *Client) writePump(log logger.ILogger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug("Client", "Write failed", map[string]interface{}{"client_id": c.Id, "error": err.Error()})
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
