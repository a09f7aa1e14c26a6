package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

const DefaultCategory = "General"

// MCPServer is a registered MCP tool server launched over stdio
type MCPServer struct {
	ID          uuid.UUID         `gorm:"type:text;primaryKey" json:"id"`
	Name        string            `gorm:"uniqueIndex;not null" json:"name"`
	Description string            `json:"description"`
	Command     []string          `gorm:"serializer:json" json:"command"`
	Args        []string          `gorm:"serializer:json" json:"args"`
	Env         map[string]string `gorm:"serializer:json" json:"env_vars"`
	Category    string            `json:"category"`
	AutoConnect bool              `json:"auto_connect"`
	Enabled     bool              `json:"enabled"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (s *MCPServer) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Category == "" {
		s.Category = DefaultCategory
	}
	return nil
}

// ToolCall records one MCP tool invocation
type ToolCall struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ServerName string    `gorm:"index" json:"server_name"`
	ToolName   string    `json:"tool_name"`
	Arguments  string    `json:"arguments"`
	Result     string    `json:"result"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `gorm:"index" json:"timestamp"`
}

// Message is one entry of an in-memory conversation
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
