package authority

import (
	"context"
	"testing"

	"github.com/parley/chat-client/internal/protocol"
)

// fakeSender records delivered events in order.
type fakeSender struct {
	events []delivered
}

type delivered struct {
	event   string
	payload any
}

func (f *fakeSender) Send(event string, payload any) {
	f.events = append(f.events, delivered{event, payload})
}

func (f *fakeSender) byName(event string) []delivered {
	var out []delivered
	for _, d := range f.events {
		if d.event == event {
			out = append(out, d)
		}
	}
	return out
}

func (f *fakeSender) last(t *testing.T, event string) delivered {
	t.Helper()
	got := f.byName(event)
	if len(got) == 0 {
		t.Fatalf("no %q event delivered; got %v", event, f.events)
	}
	return got[len(got)-1]
}

func newTestHub() *Hub {
	return NewHub(NewMemoryHistory(0))
}

func TestJoinReplaysHistoryIncludingOwnNotice(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	alice := &fakeSender{}
	hub.Connect("a", alice)
	hub.HandleJoin(ctx, "a", "alice")

	replays := alice.byName(protocol.EventPreviousMessages)
	if len(replays) != 1 {
		t.Fatalf("expected one previousMessages, got %d", len(replays))
	}
	msgs := replays[0].payload.([]protocol.ChatMessage)
	if len(msgs) != 1 || !msgs[0].IsSystem() || msgs[0].Text != "alice joined the chat" {
		t.Fatalf("unexpected replay: %+v", msgs)
	}

	snapshot := alice.last(t, protocol.EventUserList).payload.([]string)
	if len(snapshot) != 1 || snapshot[0] != "alice" {
		t.Fatalf("unexpected presence snapshot: %v", snapshot)
	}
}

func TestJoinNotifiesPeersNotJoiner(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	alice := &fakeSender{}
	bob := &fakeSender{}
	hub.Connect("a", alice)
	hub.Connect("b", bob)
	hub.HandleJoin(ctx, "a", "alice")
	hub.HandleJoin(ctx, "b", "bob")

	// Alice sees bob's arrival as userJoined; bob sees it only inside his
	// history replay.
	joined := alice.byName(protocol.EventUserJoined)
	if len(joined) != 1 {
		t.Fatalf("expected one userJoined at alice, got %d", len(joined))
	}
	notice := joined[0].payload.(protocol.ChatMessage)
	if !notice.IsSystem() || notice.Text != "bob joined the chat" {
		t.Fatalf("unexpected notice: %+v", notice)
	}
	if got := bob.byName(protocol.EventUserJoined); len(got) != 0 {
		t.Fatalf("joiner must not receive their own userJoined, got %v", got)
	}

	// Bob's replay carries both join notices in order.
	replay := bob.last(t, protocol.EventPreviousMessages).payload.([]protocol.ChatMessage)
	if len(replay) != 2 || replay[0].Text != "alice joined the chat" || replay[1].Text != "bob joined the chat" {
		t.Fatalf("unexpected replay: %+v", replay)
	}

	// Both get the updated snapshot, in join order.
	for _, s := range []*fakeSender{alice, bob} {
		snapshot := s.last(t, protocol.EventUserList).payload.([]string)
		if len(snapshot) != 2 || snapshot[0] != "alice" || snapshot[1] != "bob" {
			t.Fatalf("unexpected snapshot: %v", snapshot)
		}
	}
}

func TestJoinGuards(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	alice := &fakeSender{}
	hub.Connect("a", alice)

	hub.HandleJoin(ctx, "a", "   ")
	if len(alice.events) != 0 {
		t.Fatalf("blank join must be ignored, got %v", alice.events)
	}

	hub.HandleJoin(ctx, "a", "alice")
	hub.HandleJoin(ctx, "a", "alice2")

	if got := alice.byName(protocol.EventPreviousMessages); len(got) != 1 {
		t.Fatalf("repeat join must be ignored, got %d replays", len(got))
	}
	snapshot := alice.last(t, protocol.EventUserList).payload.([]string)
	if len(snapshot) != 1 || snapshot[0] != "alice" {
		t.Fatalf("unexpected snapshot: %v", snapshot)
	}
}

func TestMessageEchoesToEveryoneIncludingSender(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	alice := &fakeSender{}
	bob := &fakeSender{}
	hub.Connect("a", alice)
	hub.Connect("b", bob)
	hub.HandleJoin(ctx, "a", "alice")
	hub.HandleJoin(ctx, "b", "bob")

	hub.HandleMessage(ctx, "a", "hello")

	for _, s := range []*fakeSender{alice, bob} {
		msg := s.last(t, protocol.EventNewMessage).payload.(protocol.ChatMessage)
		if msg.User != "alice" || msg.Text != "hello" {
			t.Fatalf("unexpected message: %+v", msg)
		}
		if msg.Timestamp == 0 {
			t.Error("authority must stamp the message timestamp")
		}
	}
}

func TestMessageFromUnjoinedConnectionIgnored(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	alice := &fakeSender{}
	ghost := &fakeSender{}
	hub.Connect("a", alice)
	hub.Connect("g", ghost)
	hub.HandleJoin(ctx, "a", "alice")

	hub.HandleMessage(ctx, "g", "boo")

	if got := alice.byName(protocol.EventNewMessage); len(got) != 0 {
		t.Fatalf("message from unjoined connection must be dropped, got %v", got)
	}
}

func TestTypingRelayExcludesSender(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	alice := &fakeSender{}
	bob := &fakeSender{}
	hub.Connect("a", alice)
	hub.Connect("b", bob)
	hub.HandleJoin(ctx, "a", "alice")
	hub.HandleJoin(ctx, "b", "bob")

	hub.HandleTyping(ctx, "a", true)

	update := bob.last(t, protocol.EventUserTyping).payload.(protocol.TypingUpdate)
	if update.User != "alice" || !update.IsTyping {
		t.Fatalf("unexpected relay: %+v", update)
	}
	if got := alice.byName(protocol.EventUserTyping); len(got) != 0 {
		t.Fatalf("sender must not receive their own typing relay, got %v", got)
	}
}

func TestDisconnectNotifiesRemaining(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	alice := &fakeSender{}
	bob := &fakeSender{}
	hub.Connect("a", alice)
	hub.Connect("b", bob)
	hub.HandleJoin(ctx, "a", "alice")
	hub.HandleJoin(ctx, "b", "bob")

	hub.Disconnect(ctx, "b")

	notice := alice.last(t, protocol.EventUserLeft).payload.(protocol.ChatMessage)
	if !notice.IsSystem() || notice.Text != "bob left the chat" {
		t.Fatalf("unexpected notice: %+v", notice)
	}
	snapshot := alice.last(t, protocol.EventUserList).payload.([]string)
	if len(snapshot) != 1 || snapshot[0] != "alice" {
		t.Fatalf("unexpected snapshot: %v", snapshot)
	}
}

func TestDisconnectBeforeJoinIsSilent(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	alice := &fakeSender{}
	hub.Connect("a", alice)
	hub.Connect("g", &fakeSender{})
	hub.HandleJoin(ctx, "a", "alice")

	hub.Disconnect(ctx, "g")

	if got := alice.byName(protocol.EventUserLeft); len(got) != 0 {
		t.Fatalf("unjoined disconnect must be silent, got %v", got)
	}
}
