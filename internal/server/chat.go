package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isaacphi/mcpchat/internal/chat"
)

type chatRequest struct {
	Message  string `json:"message" binding:"required"`
	UseTools *bool  `json:"use_tools"`
}

func (r chatRequest) turn() chat.TurnRequest {
	useTools := true
	if r.UseTools != nil {
		useTools = *r.UseTools
	}
	return chat.TurnRequest{Content: r.Message, UseTools: useTools}
}

// chat runs a turn to completion and returns every render command at once.
// Clients wanting incremental output use the WebSocket instead.
func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	session := s.session(c)
	result, err := session.Run(c.Request.Context(), req.turn(), nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    result.Error == "",
		"session_id": session.ID(),
		"result":     result,
	})
}

func (s *Server) clearChat(c *gin.Context) {
	s.session(c).Clear()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Chat history cleared"})
}

func (s *Server) chatStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": s.session(c).Stats()})
}

func (s *Server) getModel(c *gin.Context) {
	session := s.session(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "model": session.Model(), "models": session.Models()})
}

func (s *Server) setModel(c *gin.Context) {
	var req struct {
		Model string `json:"model" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	session := s.session(c)
	if err := session.SetModel(req.Model); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "model": session.Model()})
}

func (s *Server) getSystemPrompt(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "system_prompt": s.session(c).SystemPrompt()})
}

func (s *Server) setSystemPrompt(c *gin.Context) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if err := s.session(c).SetSystemPrompt(req.Prompt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "System prompt cannot be empty"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "System prompt updated"})
}
