// Package authority is the reference session authority: it assigns
// canonical message ordering, replays history to joining clients,
// broadcasts presence snapshots, and relays typing signals. The client
// under this repository treats it as an external collaborator; it exists so
// the client can be run and exercised end to end.
package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parley/chat-client/internal/protocol"
)

// DefaultHistoryLimit is the number of recent messages retained for replay.
const DefaultHistoryLimit = 100

// History stores the messages replayed to joining clients.
type History interface {
	// Append records a message, evicting the oldest beyond the limit.
	Append(ctx context.Context, msg protocol.ChatMessage) error
	// Recent returns the retained messages in chronological order.
	Recent(ctx context.Context) ([]protocol.ChatMessage, error)
}

// MemoryHistory keeps the last N messages in a ring buffer. It is the
// default backend; state is lost on restart.
type MemoryHistory struct {
	mu    sync.RWMutex
	items []protocol.ChatMessage
	pos   int
	count int
}

// NewMemoryHistory creates an empty in-memory history retaining up to limit
// messages. limit <= 0 selects DefaultHistoryLimit.
func NewMemoryHistory(limit int) *MemoryHistory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemoryHistory{items: make([]protocol.ChatMessage, limit)}
}

// Append implements History. If the buffer is full, the oldest message is
// overwritten.
func (h *MemoryHistory) Append(_ context.Context, msg protocol.ChatMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items[h.pos] = msg
	h.pos = (h.pos + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
	return nil
}

// Recent implements History, oldest first.
func (h *MemoryHistory) Recent(_ context.Context) ([]protocol.ChatMessage, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]protocol.ChatMessage, h.count)
	start := (h.pos - h.count + len(h.items)) % len(h.items)
	for i := 0; i < h.count; i++ {
		result[i] = h.items[(start+i)%len(h.items)]
	}
	return result, nil
}

// RedisHistory keeps the replay buffer in a Redis list so history survives
// authority restarts. Messages are stored as JSON values under a single
// key, trimmed to the limit on every append.
type RedisHistory struct {
	rdb   *redis.Client
	key   string
	limit int64
}

// NewRedisHistory connects to Redis at addr and returns a history retaining
// up to limit messages under the given key.
func NewRedisHistory(addr, key string, limit int) (*RedisHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("authority: redis ping: %w", err)
	}

	return &RedisHistory{rdb: rdb, key: key, limit: int64(limit)}, nil
}

// Append implements History.
func (h *RedisHistory) Append(ctx context.Context, msg protocol.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("authority: marshal history entry: %w", err)
	}

	pipe := h.rdb.Pipeline()
	pipe.RPush(ctx, h.key, data)
	pipe.LTrim(ctx, h.key, -h.limit, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("authority: append history: %w", err)
	}
	return nil
}

// Recent implements History.
func (h *RedisHistory) Recent(ctx context.Context) ([]protocol.ChatMessage, error) {
	values, err := h.rdb.LRange(ctx, h.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("authority: read history: %w", err)
	}

	msgs := make([]protocol.ChatMessage, 0, len(values))
	for _, v := range values {
		var msg protocol.ChatMessage
		if err := json.Unmarshal([]byte(v), &msg); err != nil {
			return nil, fmt.Errorf("authority: decode history entry: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Close releases the Redis connection.
func (h *RedisHistory) Close() error {
	return h.rdb.Close()
}
