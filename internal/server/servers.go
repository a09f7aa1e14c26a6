package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/isaacphi/mcpchat/internal/domain"
	"github.com/isaacphi/mcpchat/internal/mcp"
)

type serverRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	Command     []string          `json:"command" binding:"required"`
	Args        []string          `json:"args"`
	EnvVars     map[string]string `json:"env_vars"`
	Category    string            `json:"category"`
	AutoConnect bool              `json:"auto_connect"`
	Enabled     *bool             `json:"enabled"`
}

func (r serverRequest) apply(s *domain.MCPServer) {
	s.Name = r.Name
	s.Description = r.Description
	s.Command = r.Command
	s.Args = r.Args
	s.Env = r.EnvVars
	if r.Category != "" {
		s.Category = r.Category
	}
	s.AutoConnect = r.AutoConnect
	if r.Enabled != nil {
		s.Enabled = *r.Enabled
	}
}

type serverView struct {
	domain.MCPServer
	Status     string `json:"status"`
	ToolsCount int    `json:"tools_count"`
}

func (s *Server) view(server domain.MCPServer) serverView {
	st := s.tools.Status(server.Name)
	v := serverView{MCPServer: server, Status: "disconnected", ToolsCount: st.ToolCount}
	if st.Connected {
		v.Status = "connected"
	}
	return v
}

func (s *Server) listServers(c *gin.Context) {
	servers, err := s.servers.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]serverView, 0, len(servers))
	for _, server := range servers {
		views = append(views, s.view(server))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "servers": views})
}

// availableServers lists enabled configurations without touching connections
func (s *Server) availableServers(c *gin.Context) {
	servers, err := s.servers.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	enabled := make([]domain.MCPServer, 0, len(servers))
	for _, server := range servers {
		if server.Enabled {
			enabled = append(enabled, server)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "servers": enabled})
}

func (s *Server) addServer(c *gin.Context) {
	var req serverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	server := domain.MCPServer{Enabled: true}
	req.apply(&server)
	if err := s.servers.Create(c.Request.Context(), &server); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"server_id": server.ID,
		"message":   fmt.Sprintf("Server '%s' added successfully", server.Name),
	})
}

func (s *Server) updateServer(c *gin.Context) {
	var req serverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	server, err := s.servers.FindByPartialID(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	oldName := server.Name
	req.apply(server)
	if err := s.servers.Update(ctx, server); err != nil {
		s.fail(c, err)
		return
	}

	// A running process keeps its old command line; drop it so the next
	// connect picks up the new configuration.
	if s.tools.Connected(oldName) {
		if err := s.tools.Disconnect(oldName); err != nil {
			s.logger.Warn("failed to disconnect updated server", "server", oldName, "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Server '%s' updated successfully", server.Name),
	})
}

func (s *Server) removeServer(c *gin.Context) {
	ctx := c.Request.Context()
	server, err := s.servers.FindByPartialID(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.tools.Connected(server.Name) {
		if err := s.tools.Disconnect(server.Name); err != nil {
			s.logger.Warn("failed to disconnect removed server", "server", server.Name, "error", err)
		}
	}
	if err := s.servers.Delete(ctx, server.ID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Server removed successfully"})
}

func (s *Server) connectServer(c *gin.Context) {
	ctx := c.Request.Context()
	server, err := s.servers.FindByPartialID(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if !server.Enabled {
		s.fail(c, domain.ValidationError{Field: "enabled", Message: "server is disabled"})
		return
	}
	if err := s.tools.Connect(ctx, *server); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Server connected successfully",
		"status":  s.tools.Status(server.Name),
	})
}

func (s *Server) disconnectServer(c *gin.Context) {
	server, err := s.servers.FindByPartialID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.tools.Disconnect(server.Name); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Server disconnected successfully"})
}

func (s *Server) serverStatus(c *gin.Context) {
	server, err := s.servers.FindByPartialID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": s.tools.Status(server.Name)})
}

func (s *Server) listTools(c *gin.Context) {
	tools := s.tools.Tools()
	if tools == nil {
		tools = []domain.Tool{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tools": tools})
}

func (s *Server) toolHistory(c *gin.Context) {
	limit := s.historyLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.fail(c, domain.ValidationError{Field: "limit", Message: "must be a positive integer"})
			return
		}
		limit = n
	}

	calls, total, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	if calls == nil {
		calls = []domain.ToolCall{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": calls, "total_calls": total})
}

func (s *Server) test(c *gin.Context) {
	servers, err := s.servers.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	var summary mcp.Summary = s.tools.Summary()
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"mcp_servers":       len(servers),
		"connected_servers": summary.ConnectedServers,
		"available_tools":   summary.TotalTools,
	})
}
