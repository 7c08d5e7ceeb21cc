package relay

import (
	"encoding/json"
	"fmt"
)

// Wire event names. The spaces are part of the protocol.
const (
	EventSetup      = "setup"
	EventJoinChat   = "join chat"
	EventTyping     = "typing"
	EventStopTyping = "stop typing"
	EventNewMessage = "new message"

	EventConnected       = "connected"
	EventMessageReceived = "message received"
	EventError           = "error"
)

// Envelope is the framing for every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SetupPayload binds a connection to an authenticated identity. The claimed
// id must match whatever the token resolves to.
type SetupPayload struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// RoomPayload names the room a frame applies to. From is filled in by the
// server on outbound typing notifications.
type RoomPayload struct {
	Room string `json:"room"`
	From string `json:"from,omitempty"`
}

// ConnectedPayload acknowledges a successful setup.
type ConnectedPayload struct {
	ID string `json:"id"`
}

// ErrorPayload explains a rejected frame.
type ErrorPayload struct {
	Message string `json:"message"`
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	env := Envelope{Event: event, Data: data}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	return out, nil
}
