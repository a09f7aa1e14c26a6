package domain

import (
	"fmt"
	"strings"
)

// ToolNameSeparator joins a server name and a tool name into the name the model sees
const ToolNameSeparator = "__"

// Tool is an MCP tool exposed to the model under FullName
type Tool struct {
	Name        string     `json:"name"`
	FullName    string     `json:"full_name"`
	ServerName  string     `json:"server"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

type Parameters struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description"`
	Enum        []string            `json:"enum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
	Default     interface{}         `json:"default,omitempty"`
}

func FullToolName(server, tool string) string {
	return server + ToolNameSeparator + tool
}

// SplitToolName splits "server__tool" into its parts
func SplitToolName(full string) (server, tool string, err error) {
	parts := strings.SplitN(full, ToolNameSeparator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid tool name format, expected 'server%stool', got '%s'", ToolNameSeparator, full)
	}
	return parts[0], parts[1], nil
}

// ValidateServer checks a server record before it is stored
func ValidateServer(s *MCPServer) error {
	if strings.TrimSpace(s.Name) == "" {
		return ValidationError{Field: "name", Message: "is required"}
	}
	if strings.Contains(s.Name, ToolNameSeparator) {
		return ValidationError{Field: "name", Message: "cannot contain '" + ToolNameSeparator + "'"}
	}
	if len(s.Command) == 0 || strings.TrimSpace(s.Command[0]) == "" {
		return ValidationError{Field: "command", Message: "is required"}
	}
	return nil
}
