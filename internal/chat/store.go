// Package chat holds the client's authoritative local view of chat state:
// the ordered message log, the online-user snapshot, and the set of peers
// currently typing. The store is mutated only in response to inbound channel
// events; the presentation layer reads snapshots and is notified of changes
// through an optional callback.
package chat

import (
	"sort"
	"sync"

	"github.com/parley/chat-client/internal/metrics"
	"github.com/parley/chat-client/internal/protocol"
)

// Store is the local chat state. It is goroutine-safe; inbound channel
// events and presentation reads may arrive from different goroutines.
type Store struct {
	mu       sync.RWMutex
	messages []protocol.ChatMessage
	online   []string
	typing   map[string]struct{}
	onChange func()
}

// NewStore creates an empty store. onChange, if non-nil, is invoked after
// every mutation (outside read locks, inside the mutation's critical
// section ordering) so the presentation layer can re-render. It must not
// call back into the store's mutation methods.
func NewStore(onChange func()) *Store {
	return &Store{
		typing:   make(map[string]struct{}),
		onChange: onChange,
	}
}

// ReplaceHistory replaces the message log wholesale with the replayed
// history, preserving the given order. Called once per session, on receipt
// of the history-replay event.
func (s *Store) ReplaceHistory(msgs []protocol.ChatMessage) {
	s.mu.Lock()
	s.messages = append([]protocol.ChatMessage(nil), msgs...)
	s.mu.Unlock()
	s.notify()
}

// Append adds a message to the end of the log. Arrival order is preserved
// as-is: out-of-order timestamps are tolerated, never corrected.
func (s *Store) Append(msg protocol.ChatMessage) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.notify()
}

// SetOnline replaces the online-user snapshot wholesale. The authority
// always sends full snapshots; there is no incremental presence logic.
func (s *Store) SetOnline(users []string) {
	s.mu.Lock()
	s.online = append([]string(nil), users...)
	metrics.OnlineUsers.Set(float64(len(s.online)))
	s.mu.Unlock()
	s.notify()
}

// SetTyping updates one user's typing flag: an idempotent add when typing,
// a no-op removal when the user was never flagged.
func (s *Store) SetTyping(user string, isTyping bool) {
	s.mu.Lock()
	if isTyping {
		s.typing[user] = struct{}{}
	} else {
		delete(s.typing, user)
	}
	metrics.TypingUsers.Set(float64(len(s.typing)))
	s.mu.Unlock()
	s.notify()
}

// Messages returns a copy of the message log in arrival order.
func (s *Store) Messages() []protocol.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]protocol.ChatMessage(nil), s.messages...)
}

// OnlineUsers returns a copy of the latest presence snapshot, in the order
// the authority sent it.
func (s *Store) OnlineUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.online...)
}

// TypingUsers returns the users currently flagged as typing, sorted for
// stable presentation.
func (s *Store) TypingUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.typing))
	for user := range s.typing {
		users = append(users, user)
	}
	sort.Strings(users)
	return users
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}
