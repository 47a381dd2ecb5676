package authority

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/parley/chat-client/internal/logx"
	"github.com/parley/chat-client/internal/protocol"
)

// Sender delivers one event to a single connected client. Implementations
// must tolerate being called from the hub's lock and must not call back
// into the hub.
type Sender interface {
	Send(event string, payload any)
}

// member is one connection as the hub sees it. A connection exists from
// upgrade to disconnect; it counts toward presence only once joined.
type member struct {
	sender   Sender
	username string
	joined   bool
}

// Hub holds the authority's session state and implements the event
// semantics the client depends on: full history replay on join, wholesale
// presence snapshots, and incremental typing relays that exclude the
// sender. It is transport-independent; the WebSocket server feeds it.
type Hub struct {
	mu      sync.Mutex
	history History
	members map[string]*member
	order   []string // joined connection IDs, in join order
}

// NewHub creates a hub over the given history store.
func NewHub(history History) *Hub {
	return &Hub{
		history: history,
		members: make(map[string]*member),
	}
}

// Connect registers a new connection. The connection receives no events
// until it joins.
func (h *Hub) Connect(id string, sender Sender) {
	h.mu.Lock()
	h.members[id] = &member{sender: sender}
	h.mu.Unlock()
}

// Disconnect removes a connection. If it had joined, the remaining members
// are told via a userLeft notification and a fresh presence snapshot.
func (h *Hub) Disconnect(ctx context.Context, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.members[id]
	if !ok {
		return
	}
	delete(h.members, id)
	if !m.joined {
		return
	}

	for i, oid := range h.order {
		if oid == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}

	notice := protocol.SystemMessage(fmt.Sprintf("%s left the chat", m.username), nowMillis())
	h.appendHistory(ctx, notice)
	h.broadcast(protocol.EventUserLeft, notice, "")
	h.broadcast(protocol.EventUserList, h.userListLocked(), "")
}

// HandleJoin processes a join intent: the joiner gets the full history
// replay (which already includes their own join notice), everyone else gets
// the userJoined notification, and all joined members get the new presence
// snapshot. Blank usernames and repeat joins are ignored.
func (h *Hub) HandleJoin(ctx context.Context, id, username string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.members[id]
	if !ok || m.joined || strings.TrimSpace(username) == "" {
		return
	}

	m.username = username
	m.joined = true
	h.order = append(h.order, id)

	notice := protocol.SystemMessage(fmt.Sprintf("%s joined the chat", username), nowMillis())
	h.appendHistory(ctx, notice)

	replay, err := h.history.Recent(ctx)
	if err != nil {
		log := logx.Component("authority")
		log.Error().Err(err).Msg("history replay failed")
		replay = []protocol.ChatMessage{notice}
	}
	m.sender.Send(protocol.EventPreviousMessages, replay)

	h.broadcast(protocol.EventUserJoined, notice, id)
	h.broadcast(protocol.EventUserList, h.userListLocked(), "")
}

// HandleMessage stamps the message with the authority's timestamp, appends
// it to history, and broadcasts it to every joined member, sender included;
// clients render their own messages from the echo. Intents from connections
// that never joined are ignored.
func (h *Hub) HandleMessage(ctx context.Context, id, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.members[id]
	if !ok || !m.joined {
		return
	}

	msg := protocol.ChatMessage{User: m.username, Text: text, Timestamp: nowMillis()}
	h.appendHistory(ctx, msg)
	h.broadcast(protocol.EventNewMessage, msg, "")
}

// HandleTyping relays a typing flag to every joined member except the
// sender.
func (h *Hub) HandleTyping(_ context.Context, id string, isTyping bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.members[id]
	if !ok || !m.joined {
		return
	}

	h.broadcast(protocol.EventUserTyping, protocol.TypingUpdate{User: m.username, IsTyping: isTyping}, id)
}

// broadcast sends an event to all joined members, skipping exclude if
// non-empty. Callers hold h.mu.
func (h *Hub) broadcast(event string, payload any, exclude string) {
	for _, id := range h.order {
		if id == exclude {
			continue
		}
		h.members[id].sender.Send(event, payload)
	}
}

// userListLocked builds the presence snapshot in join order. Callers hold
// h.mu.
func (h *Hub) userListLocked() []string {
	users := make([]string, 0, len(h.order))
	for _, id := range h.order {
		users = append(users, h.members[id].username)
	}
	return users
}

// appendHistory records a message, logging failures; replay is best-effort
// and must not block the live broadcast path.
func (h *Hub) appendHistory(ctx context.Context, msg protocol.ChatMessage) {
	if err := h.history.Append(ctx, msg); err != nil {
		log := logx.Component("authority")
		log.Error().Err(err).Msg("history append failed")
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
