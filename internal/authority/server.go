package authority

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley/chat-client/internal/logx"
	"github.com/parley/chat-client/internal/metrics"
	"github.com/parley/chat-client/internal/protocol"
)

// Config holds tunable parameters for the authority server.
type Config struct {
	ListenAddr   string // address to listen on, e.g. ":8080"
	HistoryLimit int    // messages retained for join-time replay
	RedisAddr    string // optional Redis address for durable replay history
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   ":8080",
		HistoryLimit: DefaultHistoryLimit,
	}
}

// Server exposes the hub over WebSocket. Each connection gets a UUID, a
// write-serialized sender, and a dedicated read goroutine; this reference
// implementation deliberately trades the scale of an epoll event loop for a
// goroutine per connection.
type Server struct {
	config     Config
	hub        *Hub
	httpServer *http.Server
	log        zerolog.Logger
}

// NewServer creates a Server over the given history store.
func NewServer(config Config, history History) *Server {
	return &Server{
		config: config,
		hub:    NewHub(history),
		log:    logx.Component("authority"),
	}
}

// Start begins accepting connections. It blocks until Shutdown is called or
// the listener fails.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info().Str("addr", s.config.ListenAddr).Msg("authority listening")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// handleUpgrade upgrades the HTTP request to a WebSocket connection and
// hands it to the hub.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade failed")
		return
	}

	id := uuid.New().String()
	metrics.Connections.Inc()
	s.hub.Connect(id, &wsSender{conn: conn, log: s.log})
	s.log.Debug().Str("conn", id).Msg("connected")

	go s.readLoop(id, conn)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readLoop reads client frames until the connection closes, routing each
// intent to the hub. Malformed frames are dropped; the connection stays up.
func (s *Server) readLoop(id string, conn net.Conn) {
	ctx := context.Background()
	defer func() {
		s.hub.Disconnect(ctx, id)
		_ = conn.Close()
		metrics.Connections.Dec()
		s.log.Debug().Str("conn", id).Msg("disconnected")
	}()

	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}

		event, payload, err := protocol.ParseClientEvent(data)
		if err != nil {
			s.log.Warn().Err(err).Str("conn", id).Msg("dropping malformed frame")
			continue
		}

		switch event {
		case protocol.EventJoin:
			s.hub.HandleJoin(ctx, id, payload.(string))
		case protocol.EventSendMessage:
			s.hub.HandleMessage(ctx, id, payload.(string))
		case protocol.EventTyping:
			s.hub.HandleTyping(ctx, id, payload.(bool))
		}
	}
}

// wsSender writes events to one WebSocket connection, serialized by a
// mutex so hub broadcasts from different goroutines do not interleave
// frames.
type wsSender struct {
	conn    net.Conn
	writeMu sync.Mutex
	log     zerolog.Logger
}

func (w *wsSender) Send(event string, payload any) {
	data, err := protocol.NewEvent(event, payload)
	if err != nil {
		w.log.Error().Err(err).Str("event", event).Msg("encode failed")
		return
	}

	w.writeMu.Lock()
	err = wsutil.WriteServerMessage(w.conn, ws.OpText, data)
	w.writeMu.Unlock()
	if err != nil {
		w.log.Debug().Err(err).Str("event", event).Msg("send failed")
	}
}
