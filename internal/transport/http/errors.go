package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
)

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, proto.StatusResponse{Success: false, Message: msg})
}

// writeCoreError maps domain errors onto HTTP statuses.
func writeCoreError(c *gin.Context, logger *zerolog.Logger, err error) {
	var ce *core.CoreError
	if errors.As(err, &ce) && errors.Is(err, core.ErrValidation) {
		status := http.StatusBadRequest
		if ce.Code == core.ErrCodeUnknownPeer {
			status = http.StatusNotFound
		}
		abortWithError(c, status, ce.Message)
		return
	}

	logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	abortWithError(c, http.StatusInternalServerError, "internal server error")
}

// currentUserID returns the authenticated user set by AuthMiddleware.
func currentUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextKeyUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
