package core

import (
	"context"

	"github.com/rs/zerolog"
)

// Hub owns the connection registry. Every registry mutation and lookup runs on
// the goroutine started by Run, so the registry needs no locking. After each
// register/unregister the hub broadcasts the online set to every channel.
//
// Only one channel per user is tracked: registering a second channel for the
// same user replaces the first without notifying or closing it. The evicted
// channel stops receiving events, and its later unregister is a no-op.
type Hub struct {
	registry *Registry

	register   chan *Channel
	unregister chan string
	push       chan pushCommand
	snapshot   chan chan []string
	done       chan struct{}

	log *zerolog.Logger
}

// NewHub creates a new hub. Call Run to start processing.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		registry:   NewRegistry(),
		register:   make(chan *Channel),
		unregister: make(chan string),
		push:       make(chan pushCommand),
		snapshot:   make(chan chan []string),
		done:       make(chan struct{}),
		log:        logger,
	}
}

// Run processes hub commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ch := <-h.register:
			h.handleRegister(ch)
		case channelID := <-h.unregister:
			h.handleUnregister(channelID)
		case cmd := <-h.push:
			cmd.result <- h.handlePush(cmd)
		case reply := <-h.snapshot:
			reply <- h.registry.Snapshot()
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Register adds ch as the live channel of ch.UserID. It is a no-op once the hub stopped.
func (h *Hub) Register(ch *Channel) {
	select {
	case h.register <- ch:
	case <-h.done:
	}
}

// Unregister removes ch if it is still the registered channel of its user.
func (h *Hub) Unregister(ch *Channel) {
	select {
	case h.unregister <- ch.ID:
	case <-h.done:
	}
}

// Push delivers ev to the live channel of userID, if any. It never blocks on
// the receiver: a full outbox drops the event.
func (h *Hub) Push(ctx context.Context, userID string, ev *Event) PushResult {
	cmd := pushCommand{userID: userID, event: ev, result: make(chan PushResult, 1)}
	select {
	case h.push <- cmd:
	case <-h.done:
		return PushAborted
	case <-ctx.Done():
		return PushAborted
	}
	return <-cmd.result
}

// Online returns the sorted IDs of users that currently hold a live channel.
func (h *Hub) Online(ctx context.Context) []string {
	reply := make(chan []string, 1)
	select {
	case h.snapshot <- reply:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return nil
	}
	return <-reply
}

func (h *Hub) handleRegister(ch *Channel) {
	if prev := h.registry.Register(ch.UserID, ch); prev != nil && prev.ID != ch.ID {
		h.log.Info().
			Str("user_id", ch.UserID).
			Str("channel_id", ch.ID).
			Str("evicted_channel_id", prev.ID).
			Msg("channel replaced previous channel of user")
	} else {
		h.log.Debug().Str("user_id", ch.UserID).Str("channel_id", ch.ID).Msg("channel registered")
	}
	h.broadcastPresence()
}

func (h *Hub) handleUnregister(channelID string) {
	if userID, ok := h.registry.Unregister(channelID); ok {
		h.log.Debug().Str("user_id", userID).Str("channel_id", channelID).Msg("channel unregistered")
	} else {
		h.log.Debug().Str("channel_id", channelID).Msg("unregister of unknown channel ignored")
	}
	h.broadcastPresence()
}

func (h *Hub) handlePush(cmd pushCommand) PushResult {
	ch, ok := h.registry.Lookup(cmd.userID)
	if !ok {
		return PushOffline
	}
	if !ch.Send(cmd.event) {
		return PushDropped
	}
	return PushDelivered
}

// broadcastPresence sends the online set to every registered channel.
func (h *Hub) broadcastPresence() {
	ev := &Event{Kind: EventOnlineUsers, OnlineUsers: h.registry.Snapshot()}
	for _, ch := range h.registry.Channels() {
		if !ch.Send(ev) {
			h.log.Debug().Str("user_id", ch.UserID).Str("channel_id", ch.ID).Msg("presence dropped for slow channel")
		}
	}
}
