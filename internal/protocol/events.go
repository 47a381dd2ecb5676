// Package protocol defines the named events exchanged between the chat
// client and the session authority. Every frame on the wire is a JSON
// envelope carrying an event name and a payload; payloads are plain values
// (a bare string or bool for client intents, structured objects for
// authority broadcasts), so the envelope keeps them in a separate "data"
// field rather than inlining a type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Event name constants
// ---------------------------------------------------------------------------

// Authority -> client event names.
const (
	EventPreviousMessages = "previousMessages"
	EventNewMessage       = "newMessage"
	EventUserJoined       = "userJoined"
	EventUserLeft         = "userLeft"
	EventUserList         = "userList"
	EventUserTyping       = "userTyping"
)

// Client -> authority event names.
const (
	EventJoin        = "join"
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"
)

// SystemUser is the author of synthetic join/leave notifications. Clients
// never send messages under this name; they only receive them.
const SystemUser = "system"

// ---------------------------------------------------------------------------
// Payload types
// ---------------------------------------------------------------------------

// ChatMessage is a single chat message. Timestamp is epoch milliseconds
// assigned by the authority; clients never stamp or correct it.
type ChatMessage struct {
	User      string `json:"user"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// IsSystem reports whether the message is a synthetic notification.
func (m ChatMessage) IsSystem() bool {
	return m.User == SystemUser
}

// SystemMessage builds a synthetic notification with the given text and
// timestamp.
func SystemMessage(text string, ts int64) ChatMessage {
	return ChatMessage{User: SystemUser, Text: text, Timestamp: ts}
}

// TypingUpdate reports a change in one user's typing state.
type TypingUpdate struct {
	User     string `json:"user"`
	IsTyping bool   `json:"isTyping"`
}

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

// Envelope is the wire frame: an event name plus the raw payload, decoded
// lazily by the receiver.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEvent encodes an event and its payload into wire bytes.
func NewEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %q payload: %w", event, err)
	}
	out, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %q envelope: %w", event, err)
	}
	return out, nil
}

// ParseServerEvent parses wire bytes from the authority into the event name
// and its typed payload. An error is returned for unknown event names or
// payloads that do not match the event's contract.
func ParseServerEvent(data []byte) (string, any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: parse envelope: %w", err)
	}

	var (
		payload any
		err     error
	)
	switch env.Event {
	case EventPreviousMessages:
		var msgs []ChatMessage
		err = json.Unmarshal(env.Data, &msgs)
		payload = msgs
	case EventNewMessage, EventUserJoined, EventUserLeft:
		var msg ChatMessage
		err = json.Unmarshal(env.Data, &msg)
		payload = msg
	case EventUserList:
		var users []string
		err = json.Unmarshal(env.Data, &users)
		payload = users
	case EventUserTyping:
		var update TypingUpdate
		err = json.Unmarshal(env.Data, &update)
		payload = update
	default:
		return env.Event, nil, fmt.Errorf("protocol: unknown server event: %q", env.Event)
	}

	if err != nil {
		return env.Event, nil, fmt.Errorf("protocol: decode %q payload: %w", env.Event, err)
	}
	return env.Event, payload, nil
}

// ParseClientEvent parses wire bytes from a client into the event name and
// its typed payload: a username for join, message text for sendMessage, and
// a typing flag for typing.
func ParseClientEvent(data []byte) (string, any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: parse envelope: %w", err)
	}

	var (
		payload any
		err     error
	)
	switch env.Event {
	case EventJoin, EventSendMessage:
		var s string
		err = json.Unmarshal(env.Data, &s)
		payload = s
	case EventTyping:
		var b bool
		err = json.Unmarshal(env.Data, &b)
		payload = b
	default:
		return env.Event, nil, fmt.Errorf("protocol: unknown client event: %q", env.Event)
	}

	if err != nil {
		return env.Event, nil, fmt.Errorf("protocol: decode %q payload: %w", env.Event, err)
	}
	return env.Event, payload, nil
}
