package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/set-night/chatgate/internal/service"
)

type Server struct {
	access      *service.AccessService
	sessions    *service.SessionService
	turns       *service.TurnService
	allowOrigin string
	logger      *slog.Logger
	started     time.Time
}

type Deps struct {
	Access      *service.AccessService
	Sessions    *service.SessionService
	Turns       *service.TurnService
	AllowOrigin string
	Logger      *slog.Logger
}

func New(deps Deps) *Server {
	return &Server{
		access:      deps.Access,
		sessions:    deps.Sessions,
		turns:       deps.Turns,
		allowOrigin: deps.AllowOrigin,
		logger:      deps.Logger,
		started:     time.Now(),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), s.cors())

	r.GET("/health", s.health)

	api := r.Group("/api/sessions")
	api.POST("", s.createSession)
	api.GET("/:id/messages", s.listMessages)
	api.POST("/:id/files", s.uploadFiles)
	api.POST("/:id/turns", s.createTurn)
	api.DELETE("/:id", s.resetSession)

	return r
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"tokens": s.access.Len(),
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request processed",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.allowOrigin != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", s.allowOrigin)
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+headerAccessToken+", "+headerOpenAIKey)
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
