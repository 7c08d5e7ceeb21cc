package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// sendBufferSize bounds the per-connection outbound queue. A full queue
	// drops events for that connection only.
	sendBufferSize = 32

	resolveTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one websocket connection. identity is empty until a verified
// setup binds it; only the hub loop touches it after registration.
type client struct {
	id       string
	identity string
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
}

// ServeWS upgrades the request and runs the connection until it closes.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	cl := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		hub:  h,
	}
	select {
	case h.register <- cl:
	case <-h.done:
		conn.Close()
		return
	}
	go cl.writePump()
	cl.readPump()
}

// readPump parses inbound frames and hands them to the hub. Setup frames
// resolve their token here, on the connection's own goroutine, so the hub
// loop never waits on auth I/O.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.hub.rejectFrame(c, "malformed frame")
			continue
		}

		if env.Event == EventSetup {
			c.handleSetup(env.Data)
			continue
		}

		select {
		case c.hub.inbound <- inboundFrame{c: c, env: env}:
		case <-c.hub.done:
			return
		}
	}
}

// handleSetup verifies the claimed identity against the supplied token and
// asks the hub to bind the connection. A failed verification produces an
// error event and leaves the connection unbound.
func (c *client) handleSetup(data json.RawMessage) {
	var p SetupPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.hub.rejectFrame(c, "malformed setup payload")
		return
	}
	if p.ID == "" || p.Token == "" {
		c.hub.rejectFrame(c, "setup requires id and token")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	ident, err := c.hub.resolver.ResolveIdentity(ctx, p.Token)
	if err != nil {
		c.hub.rejectFrame(c, "setup rejected: invalid token")
		return
	}
	if ident.ID != p.ID {
		c.hub.rejectFrame(c, "setup rejected: identity mismatch")
		return
	}

	select {
	case c.hub.bind <- bindRequest{c: c, identity: ident.ID}:
	case <-c.hub.done:
	}
}

// writePump drains the send queue onto the socket. It exits when the hub
// closes the queue and takes the connection down with it.
func (c *client) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
	c.conn.Close()
}
