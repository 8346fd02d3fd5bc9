package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/AnupamNeon/Chat-app/internal/config"
	"github.com/AnupamNeon/Chat-app/internal/handler"
	"github.com/AnupamNeon/Chat-app/internal/middleware"
	"github.com/AnupamNeon/Chat-app/internal/service"
)

// Setup wires the route table.
func Setup(
	cfg *config.Config,
	logger *slog.Logger,
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	messageHandler *handler.MessageHandler,
	userHandler *handler.UserHandler,
	realtimeHandler *handler.RealtimeHandler,
	uploadsDir string,
) *gin.Engine {
	gin.SetMode(cfg.App.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowCredentials,
	))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if uploadsDir != "" {
		r.Static("/uploads", uploadsDir)
	}

	r.GET("/ws", realtimeHandler.Serve)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
		}

		authed := api.Group("")
		authed.Use(middleware.Auth(authService))
		{
			authed.POST("/auth/logout", authHandler.Logout)
			authed.GET("/auth/check", authHandler.Check)
			authed.PUT("/auth/update-profile", authHandler.UpdateProfile)

			messages := authed.Group("/messages")
			{
				messages.GET("/search", messageHandler.Search)
				// :id is the peer for listing, sending and read-all,
				// the message for single receipts
				messages.GET("/:id", messageHandler.List)
				messages.POST("/send/:id", messageHandler.Send)
				messages.PATCH("/:id/read", messageHandler.MarkRead)
				messages.PATCH("/:id/read-all", messageHandler.MarkAllRead)
			}

			users := authed.Group("/users")
			{
				users.GET("/sidebar", userHandler.Sidebar)
				users.PATCH("/status", userHandler.UpdateStatus)
				users.GET("/:id", userHandler.Get)
			}
		}
	}

	return r
}
