package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tomodachi/config"
	"tomodachi/internal/handler"
	"tomodachi/internal/middleware"
	"tomodachi/internal/redis"
	"tomodachi/internal/services"
	"tomodachi/internal/transport/httpdto"
	"tomodachi/internal/websocket"
	"tomodachi/pkg/database"
	"tomodachi/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

// Handlers bundles every HTTP handler the route table mounts.
type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Chat    *handler.ChatHandler
	Message *handler.MessageHandler
	Upload  *handler.UploadHandler
	WS      *websocket.Handler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, authService *services.AuthService, limiter *redis.RateLimiter, db *sql.DB) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(db); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	requireAuth := middleware.AuthMiddleware(authService)

	auth := s.engine.Group("/v1/auth")
	auth.Use(middleware.AuthRateLimitMiddleware(limiter))
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
		auth.POST("/refresh", handlers.Auth.Refresh)
		auth.POST("/logout", requireAuth, handlers.Auth.Logout)
		auth.POST("/logout-all", requireAuth, handlers.Auth.LogoutAll)
	}

	users := s.engine.Group("/v1/users", requireAuth)
	{
		users.GET("/me", handlers.User.Me)
		users.PATCH("/me", handlers.User.Update)
		users.DELETE("/me", handlers.User.Delete)
		users.GET("/search", handlers.User.Search)
		users.GET("/:id", handlers.User.Get)

		users.POST("/me/avatar/presign", handlers.Upload.Presign)
		users.POST("/me/avatar/complete", handlers.Upload.Complete)
		users.DELETE("/me/avatar", handlers.Upload.Remove)
	}

	chats := s.engine.Group("/v1/chats", requireAuth)
	{
		chats.POST("", handlers.Chat.Create)
		chats.GET("", handlers.Chat.List)
		chats.GET("/:id", handlers.Chat.Get)
		chats.DELETE("/:id", handlers.Chat.Delete)

		chats.GET("/:id/messages", handlers.Message.List)
		chats.POST("/:id/messages", middleware.MessageRateLimitMiddleware(limiter), handlers.Message.Send)
		chats.POST("/:id/messages/:messageId/read", handlers.Message.MarkRead)
	}

	s.engine.GET("/v1/ws", handlers.WS.Connect)
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
