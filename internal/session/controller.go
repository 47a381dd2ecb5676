// Package session orchestrates the client session: it gates user intents on
// join state and channel availability, translates them into outbound
// events, and feeds local input activity to the typing debouncer. All
// guard failures are silent no-ops; the presentation layer is expected to
// make invalid actions unreachable, not to recover from them.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/parley/chat-client/internal/logx"
	"github.com/parley/chat-client/internal/protocol"
	"github.com/parley/chat-client/internal/typing"
)

// Emitter is the outbound half of the channel as the controller sees it.
// *channel.Adapter satisfies it.
type Emitter interface {
	Emit(event string, payload any) error
	Connected() bool
}

// Controller is the session state machine: Unjoined until the first
// successful Join, then Joined for the rest of the session. It owns the
// compose draft and the typing debouncer.
type Controller struct {
	mu        sync.Mutex
	emitter   Emitter
	debouncer *typing.Debouncer
	username  string
	joined    bool
	draft     string
}

// NewController creates an Unjoined controller. quiet configures the typing
// debouncer's quiet period; zero selects the default.
func NewController(emitter Emitter, quiet time.Duration) *Controller {
	c := &Controller{emitter: emitter}
	c.debouncer = typing.NewDebouncer(quiet, func(isTyping bool) {
		if err := emitter.Emit(protocol.EventTyping, isTyping); err != nil {
			log := logx.Component("session")
			log.Debug().Err(err).Msg("typing signal dropped")
		}
	})
	return c
}

// Join emits the join event and transitions to Joined. A blank username, an
// already-joined session, or a missing channel leaves the state untouched.
func (c *Controller) Join(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.joined || strings.TrimSpace(username) == "" || !c.emitter.Connected() {
		return
	}

	if err := c.emitter.Emit(protocol.EventJoin, username); err != nil {
		log := logx.Component("session")
		log.Debug().Err(err).Msg("join dropped")
		return
	}
	c.username = username
	c.joined = true
}

// Send emits the message text, clears the compose draft, and retracts the
// typing signal. No-op while Unjoined, disconnected, or for blank text; the
// draft survives a rejected send.
func (c *Controller) Send(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.joined || strings.TrimSpace(text) == "" || !c.emitter.Connected() {
		return
	}

	if err := c.emitter.Emit(protocol.EventSendMessage, text); err != nil {
		log := logx.Component("session")
		log.Debug().Err(err).Msg("message dropped")
		return
	}
	c.draft = ""
	c.debouncer.MessageSent()
}

// TypingSignal records one local input change. Typing signals are
// suppressed until the session has joined.
func (c *Controller) TypingSignal() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.joined || !c.emitter.Connected() {
		return
	}
	c.debouncer.InputActivity()
}

// SetDraft updates the compose draft.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	c.mu.Unlock()
}

// Draft returns the current compose draft.
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Username returns the session identity, empty while Unjoined.
func (c *Controller) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// Joined reports whether the session has joined.
func (c *Controller) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

// Close stops the typing debouncer without emitting further events. The
// caller closes the channel adapter afterwards, so no late timer or stale
// handler can mutate state behind a torn-down session.
func (c *Controller) Close() {
	c.debouncer.Stop()
}
