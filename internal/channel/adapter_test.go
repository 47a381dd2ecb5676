package channel

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/parley/chat-client/internal/protocol"
)

// fakeChannel records handler registrations and emitted events.
type fakeChannel struct {
	handlers     map[string]func(json.RawMessage)
	emitted      []string
	disconnected bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: make(map[string]func(json.RawMessage))}
}

func (f *fakeChannel) Emit(event string, payload any) error {
	f.emitted = append(f.emitted, event)
	return nil
}

func (f *fakeChannel) On(event string, handler func(json.RawMessage)) {
	f.handlers[event] = handler
}

func (f *fakeChannel) Off(event string) {
	delete(f.handlers, event)
}

func (f *fakeChannel) Disconnect() error {
	f.disconnected = true
	return nil
}

// deliver simulates an inbound frame for the named event.
func (f *fakeChannel) deliver(t *testing.T, event string, payload any) {
	t.Helper()
	handler, ok := f.handlers[event]
	if !ok {
		t.Fatalf("no handler registered for %q", event)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	handler(data)
}

func dialerFor(chs ...*fakeChannel) Dialer {
	i := 0
	return func(ctx context.Context, endpoint string) (Channel, error) {
		ch := chs[i]
		i++
		return ch, nil
	}
}

func TestOpenAttachesFullHandlerSet(t *testing.T) {
	fc := newFakeChannel()
	a := NewAdapter(dialerFor(fc), Handlers{})

	if err := a.Open(context.Background(), "ws://test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fc.handlers) != len(inboundEvents) {
		t.Fatalf("expected %d handlers attached, got %d", len(inboundEvents), len(fc.handlers))
	}
	for _, event := range inboundEvents {
		if fc.handlers[event] == nil {
			t.Errorf("event %q has no handler", event)
		}
	}
}

func TestReopenClosesPreviousChannel(t *testing.T) {
	first := newFakeChannel()
	second := newFakeChannel()
	a := NewAdapter(dialerFor(first, second), Handlers{})

	if err := a.Open(context.Background(), "ws://one"); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := a.Open(context.Background(), "ws://two"); err != nil {
		t.Fatalf("second open: %v", err)
	}

	if !first.disconnected {
		t.Error("previous channel was not disconnected on reopen")
	}
	if len(first.handlers) != 0 {
		t.Errorf("previous channel still has %d handlers", len(first.handlers))
	}
	if second.disconnected {
		t.Error("new channel must stay connected")
	}
}

func TestCloseDetachesHandlersAndDisconnects(t *testing.T) {
	fc := newFakeChannel()
	a := NewAdapter(dialerFor(fc), Handlers{})

	if err := a.Open(context.Background(), "ws://test"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(fc.handlers) != 0 {
		t.Errorf("expected all handlers detached, %d remain", len(fc.handlers))
	}
	if !fc.disconnected {
		t.Error("channel was not disconnected")
	}
	if a.Connected() {
		t.Error("adapter still reports connected after close")
	}

	// Closing again is a no-op.
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestEmitWithoutChannel(t *testing.T) {
	a := NewAdapter(dialerFor(), Handlers{})

	err := a.Emit(protocol.EventJoin, "alice")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestTypedDispatch(t *testing.T) {
	var (
		gotHistory []protocol.ChatMessage
		gotMsg     protocol.ChatMessage
		gotJoined  protocol.ChatMessage
		gotLeft    protocol.ChatMessage
		gotUsers   []string
		gotTyping  protocol.TypingUpdate
	)

	fc := newFakeChannel()
	a := NewAdapter(dialerFor(fc), Handlers{
		PreviousMessages: func(msgs []protocol.ChatMessage) { gotHistory = msgs },
		NewMessage:       func(msg protocol.ChatMessage) { gotMsg = msg },
		UserJoined:       func(msg protocol.ChatMessage) { gotJoined = msg },
		UserLeft:         func(msg protocol.ChatMessage) { gotLeft = msg },
		UserList:         func(users []string) { gotUsers = users },
		UserTyping:       func(update protocol.TypingUpdate) { gotTyping = update },
	})
	if err := a.Open(context.Background(), "ws://test"); err != nil {
		t.Fatalf("open: %v", err)
	}

	fc.deliver(t, protocol.EventPreviousMessages, []protocol.ChatMessage{
		{User: "alice", Text: "m1", Timestamp: 1},
	})
	fc.deliver(t, protocol.EventNewMessage, protocol.ChatMessage{User: "bob", Text: "m2", Timestamp: 2})
	fc.deliver(t, protocol.EventUserJoined, protocol.SystemMessage("carol joined the chat", 3))
	fc.deliver(t, protocol.EventUserLeft, protocol.SystemMessage("carol left the chat", 4))
	fc.deliver(t, protocol.EventUserList, []string{"alice", "bob"})
	fc.deliver(t, protocol.EventUserTyping, protocol.TypingUpdate{User: "bob", IsTyping: true})

	if len(gotHistory) != 1 || gotHistory[0].Text != "m1" {
		t.Errorf("previousMessages: got %+v", gotHistory)
	}
	if gotMsg.User != "bob" || gotMsg.Text != "m2" {
		t.Errorf("newMessage: got %+v", gotMsg)
	}
	if !gotJoined.IsSystem() {
		t.Errorf("userJoined: got %+v", gotJoined)
	}
	if !gotLeft.IsSystem() {
		t.Errorf("userLeft: got %+v", gotLeft)
	}
	if len(gotUsers) != 2 {
		t.Errorf("userList: got %v", gotUsers)
	}
	if gotTyping.User != "bob" || !gotTyping.IsTyping {
		t.Errorf("userTyping: got %+v", gotTyping)
	}
}

func TestUndecodablePayloadIsDropped(t *testing.T) {
	called := false
	fc := newFakeChannel()
	a := NewAdapter(dialerFor(fc), Handlers{
		UserList: func(users []string) { called = true },
	})
	if err := a.Open(context.Background(), "ws://test"); err != nil {
		t.Fatalf("open: %v", err)
	}

	fc.handlers[protocol.EventUserList](json.RawMessage(`{"not":"a list"}`))

	if called {
		t.Error("handler must not run for an undecodable payload")
	}
}
