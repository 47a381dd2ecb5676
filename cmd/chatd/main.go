// Command chatd runs the reference session authority: the WebSocket server
// that assigns message ordering, replays history to joining clients, and
// broadcasts presence and typing events.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/parley/chat-client/internal/authority"
	"github.com/parley/chat-client/internal/logx"
)

func main() {
	config := authority.DefaultConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.HistoryLimit = n
		}
	}
	config.RedisAddr = os.Getenv("REDIS_ADDR")

	logx.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT") != "json")
	log := logx.Component("chatd")

	var history authority.History
	if config.RedisAddr != "" {
		redisHistory, err := authority.NewRedisHistory(config.RedisAddr, "chat:history", config.HistoryLimit)
		if err != nil {
			log.Fatal().Err(err).Str("addr", config.RedisAddr).Msg("redis history unavailable")
		}
		defer redisHistory.Close()
		history = redisHistory
		log.Info().Str("addr", config.RedisAddr).Msg("using redis history")
	} else {
		history = authority.NewMemoryHistory(config.HistoryLimit)
	}

	server := authority.NewServer(config, history)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("stopped")
}
