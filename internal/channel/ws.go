package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/parley/chat-client/internal/logx"
	"github.com/parley/chat-client/internal/metrics"
	"github.com/parley/chat-client/internal/protocol"
)

// WSChannel is the WebSocket implementation of Channel, built on gobwas/ws.
// A background goroutine reads frames and dispatches them to registered
// handlers; writes are serialized by a mutex so concurrent emits do not
// interleave frame bytes.
type WSChannel struct {
	conn       net.Conn
	writeMu    sync.Mutex
	handlersMu sync.RWMutex
	handlers   map[string]func(json.RawMessage)
	done       chan struct{}
	closeOnce  sync.Once
}

// Dial connects to the authority's WebSocket endpoint and starts the read
// loop. It satisfies the Dialer signature.
func Dial(ctx context.Context, endpoint string) (Channel, error) {
	conn, _, _, err := ws.Dial(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("channel: dial %s: %w", endpoint, err)
	}

	c := &WSChannel{
		conn:     conn,
		handlers: make(map[string]func(json.RawMessage)),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Emit sends the named event with its payload. Nothing is queued or
// retried; a failed write surfaces as the returned error and the frame is
// gone.
func (c *WSChannel) Emit(event string, payload any) error {
	data, err := protocol.NewEvent(event, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	err = wsutil.WriteClientMessage(c.conn, ws.OpText, data)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("channel: emit %q: %w", event, err)
	}

	metrics.EventsSent.WithLabelValues(event).Inc()
	return nil
}

// On registers a handler for the named event, replacing any previous one.
func (c *WSChannel) On(event string, handler func(json.RawMessage)) {
	c.handlersMu.Lock()
	c.handlers[event] = handler
	c.handlersMu.Unlock()
}

// Off removes the handler for the named event.
func (c *WSChannel) Off(event string) {
	c.handlersMu.Lock()
	delete(c.handlers, event)
	c.handlersMu.Unlock()
}

// Disconnect closes the connection and stops the read loop. Safe to call
// multiple times.
func (c *WSChannel) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// readLoop reads frames until the connection closes, dispatching each
// envelope's payload to the handler registered for its event name. Frames
// for events with no handler are dropped.
func (c *WSChannel) readLoop() {
	log := logx.Component("channel")
	for {
		select {
		case <-c.done:
			return
		default:
		}

		data, err := wsutil.ReadServerText(c.conn)
		if err != nil {
			select {
			case <-c.done:
				// Intentional disconnect.
			default:
				log.Debug().Err(err).Msg("read loop ended")
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		metrics.EventsReceived.WithLabelValues(env.Event).Inc()

		c.handlersMu.RLock()
		handler := c.handlers[env.Event]
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(env.Data)
		}
	}
}
