package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/isaacphi/mcpchat/internal/domain"
	"github.com/isaacphi/mcpchat/internal/mcp"
)

const defaultExecuteTimeout = 60 * time.Second

// serverConfigs returns every stored configuration keyed by server name
func (s *Server) serverConfigs(c *gin.Context) {
	servers, err := s.servers.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	configs := make(map[string]domain.MCPServer, len(servers))
	for _, server := range servers {
		configs[server.Name] = server
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "configs": configs})
}

type executeRequest struct {
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments"`
	// Timeout in seconds
	Timeout float64 `json:"timeout"`
}

// executeTool calls one tool directly, outside any chat turn
func (s *Server) executeTool(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.ToolName == "" {
		s.fail(c, domain.ValidationError{Field: "tool_name", Message: "is required"})
		return
	}
	if req.Timeout < 0 {
		s.fail(c, domain.ValidationError{Field: "timeout", Message: "must not be negative"})
		return
	}
	timeout := defaultExecuteTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout * float64(time.Second))
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	result, err := s.tools.CallTool(ctx, req.ToolName, req.Arguments)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusRequestTimeout, gin.H{
				"success": false,
				"error":   fmt.Sprintf("Tool execution timed out after %s", timeout),
			})
			return
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

func (s *Server) toolSettings(c *gin.Context) {
	states := s.tools.ToolStates()
	if states == nil {
		states = []mcp.ToolState{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tools": states})
}

func (s *Server) enabledTools(c *gin.Context) {
	enabled := []mcp.ToolState{}
	for _, st := range s.tools.ToolStates() {
		if st.Enabled {
			enabled = append(enabled, st)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "enabled_tools": enabled, "count": len(enabled)})
}

// toggleRequest names a tool either by full name or by server and tool
type toggleRequest struct {
	Tool    string `json:"tool"`
	Server  string `json:"server"`
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled"`
}

func (r toggleRequest) fullName() string {
	if r.Tool != "" {
		return r.Tool
	}
	if r.Server == "" || r.Name == "" {
		return ""
	}
	return domain.FullToolName(r.Server, r.Name)
}

func (s *Server) toggleTool(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	name := req.fullName()
	if name == "" {
		s.fail(c, domain.ValidationError{Field: "tool", Message: "tool or server and name are required"})
		return
	}
	if req.Enabled == nil {
		s.fail(c, domain.ValidationError{Field: "enabled", Message: "is required"})
		return
	}
	if err := s.tools.SetToolEnabled(name, *req.Enabled); err != nil {
		s.fail(c, err)
		return
	}

	state := "disabled"
	if *req.Enabled {
		state = "enabled"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Tool %s %s", name, state),
	})
}

type bulkUpdateRequest struct {
	Updates map[string]bool `json:"updates"`
}

type bulkResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// bulkUpdateTools applies every update it can and reports each outcome
func (s *Server) bulkUpdateTools(c *gin.Context) {
	var req bulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if len(req.Updates) == 0 {
		s.fail(c, domain.ValidationError{Field: "updates", Message: "no updates provided"})
		return
	}

	results := make(map[string]bulkResult, len(req.Updates))
	updated := 0
	for name, enabled := range req.Updates {
		if err := s.tools.SetToolEnabled(name, enabled); err != nil {
			results[name] = bulkResult{Error: err.Error()}
			continue
		}
		results[name] = bulkResult{Success: true}
		updated++
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": results,
		"message": fmt.Sprintf("Updated %d tools", updated),
	})
}
