package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/config"
	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
	"github.com/vovakirdan/pairchat-server/internal/utils"
)

var errInboundFlood = errors.New("too many inbound frames")

// WSHandler upgrades HTTP connections into live channels registered on the hub.
// The channel is push-only: frames sent by the client are read and discarded.
type WSHandler struct {
	hub         *core.Hub
	authService *auth.Service
	cfg         config.WSConfig
	origins     []string
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. frontendURL restricts
// cross-origin handshakes to that host; empty allows any origin.
func NewWSHandler(hub *core.Hub, authService *auth.Service, cfg config.WSConfig, frontendURL string, logger *zerolog.Logger) *WSHandler {
	var origins []string
	if u, err := url.Parse(frontendURL); err == nil && u.Host != "" {
		origins = []string{u.Host}
	}
	return &WSHandler{
		hub:         hub,
		authService: authService,
		cfg:         cfg,
		origins:     origins,
		log:         logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	userID, status, msg := h.authenticate(r)
	if status != 0 {
		h.log.Debug().Int("status", status).Str("reason", msg).Msg("ws handshake rejected")
		writeJSONError(w, status, msg)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.origins,
		InsecureSkipVerify: len(h.origins) == 0,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	ch := core.NewChannel(utils.NewID(), userID, h.cfg.OutboxSize)
	h.hub.Register(ch)
	defer h.hub.Unregister(ch)

	logger := h.log.With().Str("user_id", userID).Str("channel_id", ch.ID).Logger()
	logger.Info().Msg("live channel opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, ch)
	}()

	err = <-errCh
	cancel()
	<-errCh

	closeStatus, reason := closeStatusFor(err)
	if closeStatus != websocket.StatusNormalClosure {
		logger.Warn().Err(err).Msg("live channel closed with error")
	} else {
		logger.Info().Msg("live channel closed")
	}
	_ = conn.Close(closeStatus, reason)
}

// authenticate resolves the user a handshake claims to be. A token is
// checked whenever one is presented and is mandatory when RequireToken is set.
func (h *WSHandler) authenticate(r *stdhttp.Request) (string, int, string) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		return "", stdhttp.StatusBadRequest, "userId is required"
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = bearerToken(r.Header.Get("Authorization"))
	}
	if token == "" {
		if h.cfg.RequireToken {
			return "", stdhttp.StatusUnauthorized, "token is required"
		}
		return userID, 0, ""
	}

	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		return "", stdhttp.StatusUnauthorized, "invalid token"
	}
	if claims.UserID != userID {
		return "", stdhttp.StatusUnauthorized, "token does not match userId"
	}
	return userID, 0, ""
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn) error {
	limiter := newRateLimiter(h.cfg.InboundLimit, time.Minute)
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return err
		}
		if !limiter.allow() {
			return errInboundFlood
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, ch *core.Channel) error {
	for {
		select {
		case ev, ok := <-ch.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(ev)); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func closeStatusFor(err error) (websocket.StatusCode, string) {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	case errors.Is(err, errInboundFlood):
		return websocket.StatusPolicyViolation, err.Error()
	}
	switch s := websocket.CloseStatus(err); s {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return websocket.StatusNormalClosure, "closing"
	case -1:
		return websocket.StatusInternalError, "internal error"
	default:
		return s, "closing"
	}
}

func writeJSONError(w stdhttp.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(proto.StatusResponse{Success: false, Message: msg})
}
