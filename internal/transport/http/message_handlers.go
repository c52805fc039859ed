package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
)

// MessageHandlers exposes the delivery pipeline over REST.
type MessageHandlers struct {
	delivery *core.Delivery
	log      *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(delivery *core.Delivery, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		delivery: delivery,
		log:      logger,
	}
}

// ListPeers returns every other user and the unseen count per sender.
// GET /api/messages/users
func (h *MessageHandlers) ListPeers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, "not authorized")
		return
	}

	users, unseen, err := h.delivery.Peers(c.Request.Context(), userID)
	if err != nil {
		writeCoreError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, proto.UsersResponse{
		Success:        true,
		Users:          toProtoUsers(users),
		UnseenMessages: unseen,
	})
}

// History returns the conversation with the peer in insertion order and
// marks the peer's messages as seen.
// GET /api/messages/:id
func (h *MessageHandlers) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, "not authorized")
		return
	}

	messages, err := h.delivery.History(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeCoreError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, proto.MessagesResponse{Success: true, Messages: toProtoMessages(messages)})
}

// Send persists a message to the peer and pushes it if the peer is online.
// POST /api/messages/send/:id
func (h *MessageHandlers) Send(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, "not authorized")
		return
	}

	var req proto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send request")
		abortWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	payload := core.Payload{Text: req.Text, Image: req.Image}
	if payload.Empty() {
		abortWithError(c, http.StatusBadRequest, "message must contain text or image")
		return
	}

	msg, err := h.delivery.Send(c.Request.Context(), userID, c.Param("id"), payload)
	if err != nil {
		writeCoreError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, proto.SendMessageResponse{Success: true, NewMessage: toProtoMessage(*msg)})
}

// MarkSeen flips the seen flag of a message addressed to the caller.
// PUT /api/messages/mark/:id
func (h *MessageHandlers) MarkSeen(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, "not authorized")
		return
	}

	if err := h.delivery.MarkSeenBy(c.Request.Context(), userID, c.Param("id")); err != nil {
		writeCoreError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, proto.StatusResponse{Success: true})
}
