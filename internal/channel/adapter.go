package channel

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/parley/chat-client/internal/logx"
	"github.com/parley/chat-client/internal/protocol"
)

// Handlers is the fixed, typed dispatch table for inbound events: one field
// per event the authority sends. Nil fields silently drop their event.
type Handlers struct {
	PreviousMessages func(msgs []protocol.ChatMessage)
	NewMessage       func(msg protocol.ChatMessage)
	UserJoined       func(msg protocol.ChatMessage)
	UserLeft         func(msg protocol.ChatMessage)
	UserList         func(users []string)
	UserTyping       func(update protocol.TypingUpdate)
}

// inboundEvents is the complete set of handler registrations; attach and
// detach always walk it in full so handlers are never partially bound.
var inboundEvents = []string{
	protocol.EventPreviousMessages,
	protocol.EventNewMessage,
	protocol.EventUserJoined,
	protocol.EventUserLeft,
	protocol.EventUserList,
	protocol.EventUserTyping,
}

// Adapter owns the channel lifecycle for one client session: it dials,
// binds the handler set, and tears both down together. Exactly one channel
// is live at a time; opening while connected closes the previous channel
// first.
type Adapter struct {
	dial     Dialer
	handlers Handlers

	mu sync.Mutex
	ch Channel
}

// NewAdapter creates an adapter that dials with the given Dialer and
// dispatches inbound events to the given handlers.
func NewAdapter(dial Dialer, handlers Handlers) *Adapter {
	return &Adapter{dial: dial, handlers: handlers}
}

// Open establishes a channel to the endpoint and attaches the full handler
// set. Any previously open channel is closed first.
func (a *Adapter) Open(ctx context.Context, endpoint string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ch != nil {
		if err := a.closeLocked(); err != nil {
			log := logx.Component("channel")
			log.Warn().Err(err).Msg("closing previous channel")
		}
	}

	ch, err := a.dial(ctx, endpoint)
	if err != nil {
		return err
	}
	a.attach(ch)
	a.ch = ch
	return nil
}

// Close detaches all handlers and disconnects the channel. Handlers are
// removed before the disconnect so a frame racing the teardown cannot reach
// a handler afterwards.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closeLocked()
}

func (a *Adapter) closeLocked() error {
	if a.ch == nil {
		return nil
	}
	for _, event := range inboundEvents {
		a.ch.Off(event)
	}
	err := a.ch.Disconnect()
	a.ch = nil
	return err
}

// Connected reports whether a channel is live.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ch != nil
}

// Emit sends an outbound event, or returns ErrNotConnected when no channel
// is live.
func (a *Adapter) Emit(event string, payload any) error {
	a.mu.Lock()
	ch := a.ch
	a.mu.Unlock()

	if ch == nil {
		return ErrNotConnected
	}
	return ch.Emit(event, payload)
}

// attach registers a decoding shim for every inbound event. Payloads that
// fail to decode are logged and dropped; the authority is assumed to send
// well-formed payloads, so this is a transport-boundary guard only.
func (a *Adapter) attach(ch Channel) {
	log := logx.Component("channel")
	decodeErr := func(event string, err error) {
		log.Warn().Err(err).Str("event", event).Msg("dropping undecodable payload")
	}

	ch.On(protocol.EventPreviousMessages, func(data json.RawMessage) {
		var msgs []protocol.ChatMessage
		if err := json.Unmarshal(data, &msgs); err != nil {
			decodeErr(protocol.EventPreviousMessages, err)
			return
		}
		if a.handlers.PreviousMessages != nil {
			a.handlers.PreviousMessages(msgs)
		}
	})
	ch.On(protocol.EventNewMessage, func(data json.RawMessage) {
		var msg protocol.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			decodeErr(protocol.EventNewMessage, err)
			return
		}
		if a.handlers.NewMessage != nil {
			a.handlers.NewMessage(msg)
		}
	})
	ch.On(protocol.EventUserJoined, func(data json.RawMessage) {
		var msg protocol.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			decodeErr(protocol.EventUserJoined, err)
			return
		}
		if a.handlers.UserJoined != nil {
			a.handlers.UserJoined(msg)
		}
	})
	ch.On(protocol.EventUserLeft, func(data json.RawMessage) {
		var msg protocol.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			decodeErr(protocol.EventUserLeft, err)
			return
		}
		if a.handlers.UserLeft != nil {
			a.handlers.UserLeft(msg)
		}
	})
	ch.On(protocol.EventUserList, func(data json.RawMessage) {
		var users []string
		if err := json.Unmarshal(data, &users); err != nil {
			decodeErr(protocol.EventUserList, err)
			return
		}
		if a.handlers.UserList != nil {
			a.handlers.UserList(users)
		}
	})
	ch.On(protocol.EventUserTyping, func(data json.RawMessage) {
		var update protocol.TypingUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			decodeErr(protocol.EventUserTyping, err)
			return
		}
		if a.handlers.UserTyping != nil {
			a.handlers.UserTyping(update)
		}
	})
}
