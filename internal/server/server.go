// Package server exposes chat sessions and the MCP server registry over a
// gin HTTP API and streams render commands to browsers over a WebSocket.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/isaacphi/mcpchat/internal/chat"
	"github.com/isaacphi/mcpchat/internal/config"
	"github.com/isaacphi/mcpchat/internal/domain"
	"github.com/isaacphi/mcpchat/internal/mcp"
	"github.com/isaacphi/mcpchat/internal/repository"
)

const sessionCookie = "mcpchat_session"

// ToolManager is the part of the MCP manager the API drives
type ToolManager interface {
	Connect(ctx context.Context, server domain.MCPServer) error
	Disconnect(name string) error
	Connected(name string) bool
	Status(name string) mcp.Status
	Summary() mcp.Summary
	Tools() []domain.Tool
	ToolStates() []mcp.ToolState
	SetToolEnabled(fullName string, enabled bool) error
	CallTool(ctx context.Context, fullName string, args map[string]interface{}) (mcp.ToolResult, error)
}

type Deps struct {
	Config       config.Server
	HistoryLimit int
	Servers      repository.ServerRepository
	History      repository.ToolCallRepository
	Tools        ToolManager
	Sessions     *chat.Registry
	Logger       *slog.Logger
}

type Server struct {
	cfg          config.Server
	historyLimit int
	servers      repository.ServerRepository
	history      repository.ToolCallRepository
	tools        ToolManager
	sessions     *chat.Registry
	logger       *slog.Logger
	engine       *gin.Engine
}

func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.HistoryLimit <= 0 {
		deps.HistoryLimit = 50
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		cfg:          deps.Config,
		historyLimit: deps.HistoryLimit,
		servers:      deps.Servers,
		history:      deps.History,
		tools:        deps.Tools,
		sessions:     deps.Sessions,
		logger:       logger,
		engine:       engine,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/ws", s.handleWebSocket)

	api := s.engine.Group("/api/mcp")
	{
		api.GET("/servers", s.listServers)
		api.POST("/servers", s.addServer)
		api.PUT("/servers/:id", s.updateServer)
		api.DELETE("/servers/:id", s.removeServer)
		api.POST("/servers/:id/connect", s.connectServer)
		api.POST("/servers/:id/disconnect", s.disconnectServer)
		api.GET("/servers/:id/status", s.serverStatus)
		api.GET("/available-servers", s.availableServers)
		api.GET("/server-configs", s.serverConfigs)
		api.GET("/tools", s.listTools)
		api.POST("/tools/execute", s.executeTool)
		api.GET("/tool-settings", s.toolSettings)
		api.GET("/tool-settings/enabled", s.enabledTools)
		api.POST("/tool-settings/toggle", s.toggleTool)
		api.POST("/tool-settings/bulk-update", s.bulkUpdateTools)
		api.GET("/history", s.toolHistory)

		api.POST("/chat", s.chat)
		api.POST("/chat/clear", s.clearChat)
		api.GET("/chat/stats", s.chatStats)
		api.GET("/model", s.getModel)
		api.POST("/model", s.setModel)
		api.GET("/system-prompt", s.getSystemPrompt)
		api.POST("/system-prompt", s.setSystemPrompt)
		api.GET("/test", s.test)
	}
}

// Handler exposes the routes, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully. Running
// turns are cancelled first so their WebSocket streams can end cleanly.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.sessions.CancelAll()
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// sessionID reads the session cookie, or mints a new ID when the client has
// none. isNew tells the caller to hand the cookie out.
func sessionID(c *gin.Context) (id string, isNew bool) {
	if id := c.Query("session_id"); id != "" {
		return id, false
	}
	if id, err := c.Cookie(sessionCookie); err == nil && id != "" {
		return id, false
	}
	return uuid.NewString(), true
}

func sessionCookieFor(id string) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) session(c *gin.Context) *chat.Session {
	id, isNew := sessionID(c)
	if isNew {
		http.SetCookie(c.Writer, sessionCookieFor(id))
	}
	return s.sessions.GetOrCreate(id)
}

func statusFor(err error) int {
	switch {
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case domain.IsNotFoundError(err):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrTurnInProgress):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(code, gin.H{"success": false, "error": err.Error()})
}
