package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/proto"
	"github.com/vovakirdan/pairchat-server/internal/store"
)

// AuthHandlers serves signup, login and session checks.
type AuthHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAuthHandlers creates a new auth handlers instance.
func NewAuthHandlers(authService *auth.Service, logger *zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		log:         logger,
	}
}

// Signup handles user registration.
// POST /api/auth/signup
func (h *AuthHandlers) Signup(c *gin.Context) {
	var req proto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid signup request")
		abortWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := h.authService.Signup(c.Request.Context(), auth.SignupInput{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Bio:      req.Bio,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			abortWithError(c, http.StatusConflict, "user already exists")
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
			abortWithError(c, http.StatusBadRequest, err.Error())
		default:
			h.log.Error().Err(err).Str("username", req.Username).Msg("failed to register user")
			abortWithError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	c.JSON(http.StatusCreated, authResponse(token, user))
}

// Login handles user login.
// POST /api/auth/login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req proto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		abortWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			abortWithError(c, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to login user")
		abortWithError(c, http.StatusInternalServerError, "internal server error")
		return
	}

	h.log.Info().Str("user_id", user.ID).Msg("user logged in")
	c.JSON(http.StatusOK, authResponse(token, user))
}

// Check returns the user behind the bearer token.
// GET /api/auth/check
func (h *AuthHandlers) Check(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, "not authorized")
		return
	}

	user, err := h.authService.Me(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			abortWithError(c, http.StatusUnauthorized, "user not found")
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to load user")
		abortWithError(c, http.StatusInternalServerError, "internal server error")
		return
	}

	c.JSON(http.StatusOK, authResponse("", user))
}

func authResponse(token string, user *store.User) proto.AuthResponse {
	u := toProtoUser(user)
	return proto.AuthResponse{Success: true, Token: token, UserData: &u}
}
