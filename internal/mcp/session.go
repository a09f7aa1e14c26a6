package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	mcp_golang "github.com/metoro-io/mcp-golang"
	"github.com/metoro-io/mcp-golang/transport/stdio"
	"github.com/pkg/errors"

	"github.com/isaacphi/mcpchat/internal/domain"
)

// RemoteTool is a tool as advertised by a server, before qualification
type RemoteTool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// ToolResult is the flattened outcome of a tool call
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// Session is one live connection to an MCP server
type Session interface {
	ListTools(ctx context.Context) ([]RemoteTool, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error)
	Close() error
}

// Dialer opens a Session for a server record
type Dialer func(ctx context.Context, server domain.MCPServer) (Session, error)

type stdioSession struct {
	client *mcp_golang.Client
	cmd    *exec.Cmd
}

// DialStdio launches the server process and completes the MCP handshake over
// its stdin/stdout.
func DialStdio(ctx context.Context, server domain.MCPServer) (Session, error) {
	if len(server.Command) == 0 {
		return nil, errors.New("server has no command")
	}
	argv := append(append([]string{}, server.Command[1:]...), server.Args...)
	cmd := exec.Command(server.Command[0], argv...)

	cmd.Env = os.Environ()
	for k, v := range server.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", strings.Join(server.Command, " "))
	}

	transport := stdio.NewStdioServerTransportWithIO(stdout, stdin)
	client := mcp_golang.NewClient(transport)
	if _, err := client.Initialize(ctx); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, errors.Wrap(err, "failed to initialize client")
	}

	return &stdioSession{client: client, cmd: cmd}, nil
}

func (s *stdioSession) ListTools(ctx context.Context) ([]RemoteTool, error) {
	var tools []RemoteTool
	var cursor *string
	for {
		response, err := s.client.ListTools(ctx, cursor)
		if err != nil {
			return nil, err
		}
		for _, t := range response.Tools {
			tool := RemoteTool{Name: t.Name}
			if t.Description != nil {
				tool.Description = *t.Description
			}
			tool.InputSchema = schemaMap(t.InputSchema)
			tools = append(tools, tool)
		}
		if response.NextCursor == nil || *response.NextCursor == "" {
			return tools, nil
		}
		cursor = response.NextCursor
	}
}

func (s *stdioSession) CallTool(ctx context.Context, name string, args map[string]interface{}) (ToolResult, error) {
	response, err := s.client.CallTool(ctx, name, args)
	if err != nil {
		return ToolResult{}, err
	}
	if response == nil {
		return ToolResult{}, nil
	}

	parts := make([]string, 0, len(response.Content))
	for _, c := range response.Content {
		if c == nil {
			continue
		}
		if c.TextContent != nil {
			parts = append(parts, c.TextContent.Text)
			continue
		}
		raw, err := json.Marshal(c)
		if err != nil {
			return ToolResult{}, errors.Wrap(err, "failed to encode tool content")
		}
		parts = append(parts, string(raw))
	}
	return ToolResult{Content: strings.Join(parts, "\n")}, nil
}

func (s *stdioSession) Close() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	if err := s.cmd.Process.Kill(); err != nil {
		return errors.Wrap(err, "failed to kill server")
	}
	_ = s.cmd.Wait()
	return nil
}

// schemaMap normalises whatever the transport decoded the input schema into
func schemaMap(schema interface{}) map[string]interface{} {
	switch s := schema.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		return s
	default:
		raw, err := json.Marshal(s)
		if err != nil {
			return nil
		}
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil
		}
		return m
	}
}
