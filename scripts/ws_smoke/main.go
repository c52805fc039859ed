package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/pairchat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:5000/ws", "live channel address")
	user := flag.String("user", "", "user id to connect as")
	token := flag.String("token", "", "bearer token (required unless the server turns off ws.require_token)")
	wait := flag.Duration("wait", 5*time.Second, "how long to print events for")
	flag.Parse()

	if *user == "" {
		return fmt.Errorf("-user is required")
	}

	u, err := url.Parse(*addr)
	if err != nil {
		return fmt.Errorf("parse addr: %w", err)
	}
	q := u.Query()
	q.Set("userId", *user)
	if *token != "" {
		q.Set("token", *token)
	}
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(context.Background(), *wait)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	sawPresence := false
	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("read: %w", err)
		}
		switch env.Event {
		case proto.EventOnlineUsers:
			var online []string
			if err := json.Unmarshal(env.Data, &online); err != nil {
				return fmt.Errorf("decode presence: %w", err)
			}
			sawPresence = true
			log.Printf("online: %v", online)
		case proto.EventNewMessage:
			var m proto.Message
			if err := json.Unmarshal(env.Data, &m); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			log.Printf("message %s from %s: %q", m.ID, m.SenderID, m.Text)
		default:
			log.Printf("unhandled event %q", env.Event)
		}
	}

	if !sawPresence {
		return fmt.Errorf("no presence event received")
	}
	return nil
}
