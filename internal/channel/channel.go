// Package channel provides the bidirectional event channel between the
// client and the session authority: an abstract Channel interface with
// named-event emit/subscribe, a WebSocket implementation, and an Adapter
// that owns the channel lifecycle and dispatches inbound events to a fixed
// set of typed handlers.
package channel

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotConnected is returned by Emit when no channel is live. Intent calls
// are no-ops until a connection exists; nothing is queued or retried.
var ErrNotConnected = errors.New("channel: not connected")

// Channel is the abstract bidirectional event transport. Handlers receive
// the raw JSON payload of the named event; registering a second handler for
// the same event replaces the first.
type Channel interface {
	Emit(event string, payload any) error
	On(event string, handler func(payload json.RawMessage))
	Off(event string)
	Disconnect() error
}

// Dialer establishes a channel to the given endpoint.
type Dialer func(ctx context.Context, endpoint string) (Channel, error)
