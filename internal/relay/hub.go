package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"admitchat/internal/models"
)

// TokenResolver turns a bearer token into an identity. The auth service
// implements it; relay tests substitute their own.
type TokenResolver interface {
	ResolveIdentity(ctx context.Context, token string) (models.Identity, error)
}

type inboundFrame struct {
	c   *client
	env Envelope
}

type bindRequest struct {
	c        *client
	identity string
}

type rejection struct {
	c      *client
	reason string
}

// Hub fans live events out to rooms keyed by identity id (plus any ad-hoc
// rooms joined by name). One goroutine owns all room state; connections talk
// to it exclusively over channels, so the maps need no lock. Room membership
// lives in memory only: a reconnecting client re-issues setup.
type Hub struct {
	resolver TokenResolver
	log      *slog.Logger

	register   chan *client
	unregister chan *client
	bind       chan bindRequest
	inbound    chan inboundFrame
	rejects    chan rejection
	done       chan struct{}

	clients map[*client]bool
	rooms   map[string]map[*client]bool
}

// NewHub builds a hub that verifies setup tokens through resolver.
func NewHub(resolver TokenResolver, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		resolver:   resolver,
		log:        logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		bind:       make(chan bindRequest),
		inbound:    make(chan inboundFrame),
		rejects:    make(chan rejection, 16),
		done:       make(chan struct{}),
		clients:    make(map[*client]bool),
		rooms:      make(map[string]map[*client]bool),
	}
}

// Run drives the event loop until ctx is canceled. A failing frame only ever
// affects its own connection; the loop itself must not stop for one.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.removeClient(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.log.Debug("relay connection opened", "conn", c.id)
		case c := <-h.unregister:
			h.removeClient(c)
		case req := <-h.bind:
			h.handleBind(req.c, req.identity)
		case f := <-h.inbound:
			h.handleFrame(f.c, f.env)
		case r := <-h.rejects:
			h.sendError(r.c, r.reason)
		}
	}
}

// rejectFrame queues an error event for the connection. Callable from any
// goroutine; the loop performs the actual send.
func (h *Hub) rejectFrame(c *client, reason string) {
	select {
	case h.rejects <- rejection{c: c, reason: reason}:
	case <-h.done:
	}
}

func (h *Hub) removeClient(c *client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	for name, members := range h.rooms {
		if members[c] {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, name)
			}
		}
	}
	close(c.send)
	h.log.Debug("relay connection closed", "conn", c.id, "identity", c.identity)
}

// handleBind attaches a verified identity to the connection and joins its
// identity room. Binding the same identity again is an idempotent set-join;
// binding a different one leaves the previous identity room first.
func (h *Hub) handleBind(c *client, identity string) {
	if !h.clients[c] {
		return
	}
	if c.identity != "" && c.identity != identity {
		h.leaveRoom(c, c.identity)
	}
	c.identity = identity
	h.joinRoom(c, identity)
	h.sendEvent(c, EventConnected, ConnectedPayload{ID: identity})
}

func (h *Hub) handleFrame(c *client, env Envelope) {
	if !h.clients[c] {
		return
	}
	if c.identity == "" {
		h.sendError(c, "setup required")
		return
	}

	switch env.Event {
	case EventJoinChat:
		var p RoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.Room == "" {
			h.sendError(c, "join chat requires a room")
			return
		}
		h.joinRoom(c, p.Room)
	case EventTyping, EventStopTyping:
		var p RoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.Room == "" {
			h.sendError(c, "typing requires a room")
			return
		}
		h.forwardToRoom(p.Room, c, env.Event, RoomPayload{Room: p.Room, From: c.identity})
	case EventNewMessage:
		h.handleNewMessage(c, env.Data)
	default:
		h.sendError(c, "unknown event")
	}
}

// handleNewMessage relays an already-persisted message to the receiver's
// room. The sender's own echo comes from the synchronous send response,
// never from the relay, so the sender sees its message exactly once.
func (h *Hub) handleNewMessage(c *client, data json.RawMessage) {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(c, "malformed message payload")
		return
	}
	if msg.Sender != c.identity {
		h.sendError(c, "sender does not match bound identity")
		return
	}
	if msg.Receiver == "" {
		h.sendError(c, "message receiver required")
		return
	}

	members := h.rooms[msg.Receiver]
	if len(members) == 0 {
		// Nobody live in the receiver's room: drop silently. The durable
		// store delivers the message on the receiver's next fetch.
		return
	}
	out, err := marshalEnvelope(EventMessageReceived, msg)
	if err != nil {
		h.log.Error("encode relay event", "event", EventMessageReceived, "error", err)
		return
	}
	for member := range members {
		if member.identity == msg.Sender {
			continue
		}
		h.push(member, out)
	}
}

// forwardToRoom sends the event to every member of the room except the
// originating connection.
func (h *Hub) forwardToRoom(room string, from *client, event string, payload any) {
	members := h.rooms[room]
	if len(members) == 0 {
		return
	}
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Error("encode relay event", "event", event, "error", err)
		return
	}
	for member := range members {
		if member == from {
			continue
		}
		h.push(member, data)
	}
}

func (h *Hub) joinRoom(c *client, room string) {
	members := h.rooms[room]
	if members == nil {
		members = make(map[*client]bool)
		h.rooms[room] = members
	}
	members[c] = true
}

func (h *Hub) leaveRoom(c *client, room string) {
	members := h.rooms[room]
	if members == nil {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) sendEvent(c *client, event string, payload any) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		h.log.Error("encode relay event", "event", event, "error", err)
		return
	}
	h.push(c, data)
}

func (h *Hub) sendError(c *client, reason string) {
	if !h.clients[c] {
		return
	}
	h.sendEvent(c, EventError, ErrorPayload{Message: reason})
}

// push enqueues without blocking. A connection that cannot keep up loses
// this event; everyone else is unaffected.
func (h *Hub) push(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warn("relay send buffer full, dropping event", "conn", c.id, "identity", c.identity)
	}
}
