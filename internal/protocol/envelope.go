// Package protocol defines the board sync wire format: the event envelope,
// the typed inbound commands produced by Parse, and the outbound payloads.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client to server events.
const (
	EventBoardJoin    = "board:join"
	EventBoardLeave   = "board:leave"
	EventCursorMove   = "cursor:move"
	EventObjectCreate = "object:create"
	EventObjectMove   = "object:move"
	EventObjectUpdate = "object:update"
	EventObjectDelete = "object:delete"
)

// Server to client events.
const (
	EventBoardLoad     = "board:load"
	EventPresenceJoin  = "presence:join"
	EventPresenceList  = "presence:list"
	EventPresenceLeave = "presence:leave"
	EventCursorUpdate  = "cursor:update"
	EventObjectCreated = "object:created"
	EventObjectUpdated = "object:updated"
	EventObjectDeleted = "object:deleted"
	EventError         = "error"
)

// RoomPrefix namespaces board rooms, so room names double as relay channels.
const RoomPrefix = "board:"

// RoomName returns the room for a board id.
func RoomName(boardID string) string {
	return RoomPrefix + boardID
}

// Envelope is one websocket text frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals payload and wraps it in an envelope for event.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol.Encode: %s: %w", event, err)
	}
	b, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("protocol.Encode: %s: %w", event, err)
	}
	return b, nil
}

// Decode parses a frame into its envelope. The payload is left raw.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol.Decode: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("protocol.Decode: missing event name")
	}
	return env, nil
}
