package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-server/internal/auth"
	"github.com/vovakirdan/pairchat-server/internal/config"
	"github.com/vovakirdan/pairchat-server/internal/core"
)

// NewServer builds the HTTP server: REST API, live channel and health routes.
func NewServer(hub *core.Hub, delivery *core.Delivery, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.FrontendURL))
	router.Use(BodyLimitMiddleware(cfg.MaxMessageBytes))

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/api/status", func(c *gin.Context) {
		c.String(http.StatusOK, "Server is Live")
	})

	wsHandler := NewWSHandler(hub, authService, cfg.WS, cfg.FrontendURL, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	authHandlers := NewAuthHandlers(authService, logger)
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/signup", authHandlers.Signup)
		authGroup.POST("/login", authHandlers.Login)
		authGroup.GET("/check", AuthMiddleware(authService, logger), authHandlers.Check)
	}

	messageHandlers := NewMessageHandlers(delivery, logger)
	messages := router.Group("/api/messages")
	messages.Use(AuthMiddleware(authService, logger))
	{
		messages.GET("/users", messageHandlers.ListPeers)
		messages.GET("/:id", messageHandlers.History)
		messages.POST("/send/:id", messageHandlers.Send)
		messages.PUT("/mark/:id", messageHandlers.MarkSeen)
	}

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
