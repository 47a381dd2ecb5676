// Command chatclient is a line-oriented terminal chat client. It keeps a
// local view of messages, presence, and typing activity synchronized
// against the session authority and prints events as they arrive; the
// printing here is presentation only, with no behavior of its own.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parley/chat-client/internal/channel"
	"github.com/parley/chat-client/internal/chat"
	"github.com/parley/chat-client/internal/logx"
	"github.com/parley/chat-client/internal/protocol"
	"github.com/parley/chat-client/internal/session"
)

func main() {
	endpoint := os.Getenv("CHAT_URL")
	if endpoint == "" {
		endpoint = "ws://localhost:8080/ws"
	}
	username := os.Getenv("CHAT_USER")

	logx.Init(os.Getenv("LOG_LEVEL"), true)
	log := logx.Component("chatclient")

	store := chat.NewStore(nil)

	adapter := channel.NewAdapter(channel.Dial, channel.Handlers{
		PreviousMessages: func(msgs []protocol.ChatMessage) {
			store.ReplaceHistory(msgs)
			for _, msg := range msgs {
				printMessage(msg)
			}
		},
		NewMessage: func(msg protocol.ChatMessage) {
			store.Append(msg)
			printMessage(msg)
		},
		UserJoined: func(msg protocol.ChatMessage) {
			store.Append(msg)
			printMessage(msg)
		},
		UserLeft: func(msg protocol.ChatMessage) {
			store.Append(msg)
			printMessage(msg)
		},
		UserList: func(users []string) {
			store.SetOnline(users)
			fmt.Printf("* online: %v\n", users)
		},
		UserTyping: func(update protocol.TypingUpdate) {
			store.SetTyping(update.User, update.IsTyping)
			if summary := chat.TypingSummary(store.TypingUsers()); summary != "" {
				fmt.Println("* " + summary)
			}
		},
	})

	ctrl := session.NewController(adapter, 0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := adapter.Open(dialCtx, endpoint)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Str("url", endpoint).Msg("connect failed")
	}
	defer func() {
		ctrl.Close()
		if err := adapter.Close(); err != nil {
			log.Debug().Err(err).Msg("close")
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)

	if username == "" {
		fmt.Print("username: ")
		if !scanner.Scan() {
			return
		}
		username = scanner.Text()
	}
	ctrl.Join(username)
	if !ctrl.Joined() {
		log.Fatal().Str("user", username).Msg("join rejected")
	}
	fmt.Printf("joined %s as %s; type messages and press Enter\n", endpoint, username)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			// A line-buffered terminal only sees whole lines, so the
			// typing signal is raised as the line is submitted and
			// retracted by the send itself.
			ctrl.SetDraft(line)
			ctrl.TypingSignal()
			ctrl.Send(line)
		}
	}
}

func printMessage(msg protocol.ChatMessage) {
	ts := time.UnixMilli(msg.Timestamp).Format("15:04:05")
	if msg.IsSystem() {
		fmt.Printf("[%s] * %s\n", ts, msg.Text)
		return
	}
	fmt.Printf("[%s] %s: %s\n", ts, msg.User, msg.Text)
}
