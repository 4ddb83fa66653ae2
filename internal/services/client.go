package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/oculab/gazetrack/internal/config"
	"github.com/oculab/gazetrack/internal/models"
)

// Client represents a single WebSocket connection with its own send goroutine.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
	identity string

	// Lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
	closeMu sync.Mutex
}

// NewClient creates a new client instance for an authenticated identity.
func NewClient(conn *websocket.Conn, hub *Hub, identity string) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		conn:     conn,
		send:     make(chan []byte, config.ClientSendBufferSize),
		hub:      hub,
		identity: identity,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Identity returns the authenticated principal behind this connection.
func (c *Client) Identity() string {
	return c.identity
}

// Start begins the client's read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection has fully shut down.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// writePump handles outgoing messages to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Channel closed, connection is closing
				_ = c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}

			writeCtx, cancel := context.WithTimeout(c.ctx, config.WriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()

			if err != nil {
				log.Printf("Write error (identity=%s): %v", c.identity, err)
				c.hub.metrics.IncrementBroadcastErrors()
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			pingCtx, cancel := context.WithTimeout(c.ctx, config.WriteTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()

			if err != nil {
				log.Printf("Ping error (identity=%s): %v", c.identity, err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// readPump handles incoming messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.Leave(c)
		c.Close()
	}()

	for {
		readCtx, cancel := context.WithTimeout(c.ctx, config.PongTimeout)
		_, message, err := c.conn.Read(readCtx)
		cancel()

		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				log.Printf("Read error (identity=%s): %v", c.identity, err)
				c.hub.metrics.IncrementConnectionErrors()
			}
			return
		}

		if !c.hub.limiter.Allow(c.conn) {
			log.Printf("Rate limit exceeded (identity=%s)", c.identity)
			c.hub.metrics.IncrementRateLimitViolations()

			c.hub.ToClient(c, &models.WSMessage{
				Type: models.MsgTypeError,
				Payload: map[string]string{
					"message": "Rate limit exceeded. Please slow down.",
				},
			})
			continue
		}

		c.hub.metrics.IncrementMessagesReceived()

		c.hub.Dispatch(&ClientMessage{
			Client:  c,
			Message: message,
		})
	}
}

// Send queues a message for sending to the client. Never blocks: a full
// buffer means the client is too slow to keep up and gets disconnected, so
// one unresponsive participant cannot stall the rest of the session.
func (c *Client) Send(message []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		log.Printf("Send buffer full, closing slow client (identity=%s)", c.identity)
		c.hub.metrics.IncrementBroadcastErrors()
		go c.Close()
		return false
	}
}

// Close cleanly shuts down the client connection.
func (c *Client) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.cancel()
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
	if c.hub != nil {
		c.hub.limiter.Remove(c.conn)
	}
}

// ClientMessage represents a message received from a client.
type ClientMessage struct {
	Client  *Client
	Message []byte
}
