package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/proto"
)

const (
	minReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay = 10 * time.Second
)

// Feed delivers pushed envelopes and connection notifications. *LiveChannel
// implements it; cancel funcs returned by both methods are idempotent.
type Feed interface {
	Subscribe(fn func(proto.Envelope)) (cancel func())
	OnConnect(fn func()) (cancel func())
}

// LiveChannel keeps a WebSocket to the server open, redialing with backoff,
// and fans incoming envelopes out to subscribers.
type LiveChannel struct {
	url string
	log *zerolog.Logger

	mu          sync.Mutex
	nextID      int
	subscribers map[int]func(proto.Envelope)
	onConnect   map[int]func()
}

// NewLiveChannel prepares a channel for userID against the server at baseURL.
// token may be empty when the server does not require one.
func NewLiveChannel(baseURL, userID, token string, logger *zerolog.Logger) (*LiveChannel, error) {
	u, err := liveChannelURL(baseURL, userID, token)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LiveChannel{
		url:         u,
		log:         logger,
		subscribers: make(map[int]func(proto.Envelope)),
		onConnect:   make(map[int]func()),
	}, nil
}

func liveChannelURL(baseURL, userID, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := url.Values{}
	q.Set("userId", userID)
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe registers fn for every envelope received.
func (c *LiveChannel) Subscribe(fn func(proto.Envelope)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// OnConnect registers fn to run after every successful dial, before frames are read.
func (c *LiveChannel) OnConnect(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.onConnect[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.onConnect, id)
		c.mu.Unlock()
	}
}

// Run dials and reads until ctx is cancelled, reconnecting after failures.
func (c *LiveChannel) Run(ctx context.Context) error {
	delay := minReconnectDelay
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = minReconnectDelay
		}
		c.log.Warn().Err(err).Dur("retry_in", delay).Msg("live channel disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

// session runs one connection. connected reports whether the dial succeeded.
func (c *LiveChannel) session(ctx context.Context) (bool, error) {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	c.log.Info().Msg("live channel connected")
	for _, fn := range c.connectHandlers() {
		fn()
	}

	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return true, err
		}
		for _, fn := range c.envelopeHandlers() {
			fn(env)
		}
	}
}

// Handlers are copied so they run without c.mu held and may (un)subscribe.
func (c *LiveChannel) envelopeHandlers() []func(proto.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]func(proto.Envelope), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		out = append(out, fn)
	}
	return out
}

func (c *LiveChannel) connectHandlers() []func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]func(), 0, len(c.onConnect))
	for _, fn := range c.onConnect {
		out = append(out, fn)
	}
	return out
}
