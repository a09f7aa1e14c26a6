package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/isaacphi/mcpchat/internal/agent"
	"github.com/isaacphi/mcpchat/internal/chat"
	"github.com/isaacphi/mcpchat/internal/config"
	"github.com/isaacphi/mcpchat/internal/domain"
	"github.com/isaacphi/mcpchat/internal/events"
	"github.com/isaacphi/mcpchat/internal/mcp"
	"github.com/isaacphi/mcpchat/internal/repository"
	"github.com/isaacphi/mcpchat/internal/repository/sqlite"
)

type stubSession struct{}

func (stubSession) ListTools(ctx context.Context) ([]mcp.RemoteTool, error) {
	return []mcp.RemoteTool{{Name: "read_file", Description: "Read a file"}}, nil
}

// CallTool answers "ok", or holds the call open until ctx ends when asked
// to wait
func (stubSession) CallTool(ctx context.Context, name string, args map[string]interface{}) (mcp.ToolResult, error) {
	if wait, _ := args["wait"].(bool); wait {
		<-ctx.Done()
		return mcp.ToolResult{}, ctx.Err()
	}
	return mcp.ToolResult{Content: "ok"}, nil
}

func (stubSession) Close() error { return nil }

// scriptStreamer answers every turn with a reasoning span and a reply
type scriptStreamer struct{}

func (scriptStreamer) SendMessageStream(ctx context.Context, opts agent.SendMessageOptions) agent.AgentStream {
	ch := make(chan events.Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(ch)
		for _, ev := range []events.Event{
			&events.TextDeltaEvent{Text: "<thinking>hmm</thinking>"},
			&events.TextDeltaEvent{Text: "echo: " + opts.Content},
			&events.MessageCompleteEvent{},
		} {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return agent.AgentStream{Events: ch, Done: done}
}

type fixture struct {
	srv     *Server
	servers repository.ServerRepository
	history repository.ToolCallRepository
	manager *mcp.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Initialize(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close(db) })

	servers := sqlite.NewServerRepository(db)
	history := sqlite.NewToolCallRepository(db)
	manager := mcp.NewManager(mcp.Options{
		Config: config.MCP{
			ConnectionTimeout:  time.Second,
			ToolTimeout:        time.Second,
			SessionInitTimeout: time.Second,
			ListToolsTimeout:   time.Second,
			MaxConcurrentTools: 1,
		},
		Dialer: func(ctx context.Context, server domain.MCPServer) (mcp.Session, error) {
			if server.Name == "broken" {
				return nil, errors.New("exec: not found")
			}
			return stubSession{}, nil
		},
		History: history,
	})
	t.Cleanup(manager.Shutdown)

	registry := chat.NewRegistry(func(id string) *chat.Session {
		return chat.NewSession(chat.Options{
			ID: id,
			Chat: config.Chat{
				HistoryContext: 10,
				HistoryMax:     50,
				HistoryKeep:    40,
				TurnTimeout:    5 * time.Second,
			},
			Presets: map[string]config.ModelPreset{
				"nova-lite": {Provider: "bedrock", Name: "amazon.nova-lite-v1:0"},
				"llama":     {Provider: "ollama", Name: "llama3.1"},
			},
			Model:        "nova-lite",
			SystemPrompt: "be helpful",
			Agents: func(ctx context.Context, preset config.ModelPreset) (chat.Streamer, error) {
				return scriptStreamer{}, nil
			},
		})
	})

	srv := New(Deps{
		Config:       config.Server{Addr: "127.0.0.1:0"},
		HistoryLimit: 50,
		Servers:      servers,
		History:      history,
		Tools:        manager,
		Sessions:     registry,
	})
	return &fixture{srv: srv, servers: servers, history: history, manager: manager}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, gjson.Result) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec.Code, gjson.ParseBytes(rec.Body.Bytes())
}

func TestServerLifecycle(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/api/mcp/servers", map[string]any{
		"name":        "fs",
		"description": "Filesystem",
		"command":     []string{"npx", "-y", "server-filesystem"},
		"args":        []string{"/tmp"},
		"env_vars":    map[string]string{"DEBUG": "1"},
	})
	require.Equal(t, http.StatusOK, code, body.Raw)
	id := body.Get("server_id").String()
	require.NotEmpty(t, id)

	code, body = f.do(t, http.MethodGet, "/api/mcp/servers", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Get("servers").Array(), 1)
	assert.Equal(t, "disconnected", body.Get("servers.0.status").String())
	assert.Equal(t, "General", body.Get("servers.0.category").String())

	code, body = f.do(t, http.MethodPost, "/api/mcp/servers/"+id+"/connect", nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.True(t, body.Get("status.connected").Bool())

	code, body = f.do(t, http.MethodGet, "/api/mcp/tools", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "fs__read_file", body.Get("tools.0.full_name").String())

	code, body = f.do(t, http.MethodGet, "/api/mcp/test", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body.Get("mcp_servers").Int())
	assert.EqualValues(t, 1, body.Get("connected_servers").Int())
	assert.EqualValues(t, 1, body.Get("available_tools").Int())

	_, err := f.manager.CallTool(context.Background(), "fs__read_file", map[string]interface{}{"path": "/tmp/a"})
	require.NoError(t, err)
	code, body = f.do(t, http.MethodGet, "/api/mcp/history", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body.Get("total_calls").Int())
	assert.Equal(t, "read_file", body.Get("history.0.tool_name").String())

	code, _ = f.do(t, http.MethodPost, "/api/mcp/servers/"+id+"/disconnect", nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, f.manager.Connected("fs"))

	code, _ = f.do(t, http.MethodPut, "/api/mcp/servers/"+id, map[string]any{
		"name":    "fs",
		"command": []string{"uvx", "mcp-server-fs"},
		"enabled": false,
	})
	require.Equal(t, http.StatusOK, code)

	code, body = f.do(t, http.MethodGet, "/api/mcp/available-servers", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body.Get("servers").Array(), "disabled servers are not offered")

	code, _ = f.do(t, http.MethodPost, "/api/mcp/servers/"+id+"/connect", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodDelete, "/api/mcp/servers/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = f.do(t, http.MethodGet, "/api/mcp/servers/"+id+"/status", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServerErrors(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/api/mcp/servers", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, code, "command is required")

	code, _ = f.do(t, http.MethodPost, "/api/mcp/servers", map[string]any{"name": "a__b", "command": []string{"x"}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPut, "/api/mcp/servers/deadbeef", map[string]any{"name": "x", "command": []string{"x"}})
	assert.Equal(t, http.StatusNotFound, code)

	code, body := f.do(t, http.MethodPost, "/api/mcp/servers", map[string]any{"name": "broken", "command": []string{"nope"}})
	require.Equal(t, http.StatusOK, code)
	code, body = f.do(t, http.MethodPost, "/api/mcp/servers/"+body.Get("server_id").String()+"/connect", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, body.Get("success").Bool())

	code, _ = f.do(t, http.MethodGet, "/api/mcp/history?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func (f *fixture) connect(t *testing.T, name string) {
	t.Helper()
	code, body := f.do(t, http.MethodPost, "/api/mcp/servers", map[string]any{"name": name, "command": []string{"x"}})
	require.Equal(t, http.StatusOK, code, body.Raw)
	code, body = f.do(t, http.MethodPost, "/api/mcp/servers/"+body.Get("server_id").String()+"/connect", nil)
	require.Equal(t, http.StatusOK, code, body.Raw)
}

func TestServerConfigs(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/api/mcp/server-configs", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body.Get("configs").Map())

	f.connect(t, "fs")
	code, body = f.do(t, http.MethodGet, "/api/mcp/server-configs", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Get("success").Bool())
	assert.Equal(t, "fs", body.Get("configs.fs.name").String())
	assert.Equal(t, "x", body.Get("configs.fs.command.0").String())
}

func TestExecuteTool(t *testing.T) {
	f := newFixture(t)
	f.connect(t, "fs")

	code, body := f.do(t, http.MethodPost, "/api/mcp/tools/execute", map[string]any{
		"tool_name": "fs__read_file",
		"arguments": map[string]any{"path": "/tmp/a"},
	})
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.True(t, body.Get("success").Bool())
	assert.Equal(t, "ok", body.Get("result.content").String())

	start := time.Now()
	code, body = f.do(t, http.MethodPost, "/api/mcp/tools/execute", map[string]any{
		"tool_name": "fs__read_file",
		"arguments": map[string]any{"wait": true},
		"timeout":   0.05,
	})
	assert.Equal(t, http.StatusRequestTimeout, code, body.Raw)
	assert.False(t, body.Get("success").Bool())
	assert.Contains(t, body.Get("error").String(), "timed out after")
	assert.Less(t, time.Since(start), time.Second, "request deadline wins over the tool timeout")

	code, _ = f.do(t, http.MethodPost, "/api/mcp/tools/execute", map[string]any{"arguments": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, code, "tool_name is required")

	code, _ = f.do(t, http.MethodPost, "/api/mcp/tools/execute", map[string]any{"tool_name": "noseparator"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/api/mcp/tools/execute", map[string]any{"tool_name": "git__log"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = f.do(t, http.MethodPost, "/api/mcp/tools/execute", map[string]any{"tool_name": "fs__read_file", "timeout": -1})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestToolSettings(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/api/mcp/tool-settings", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body.Get("tools").Array())

	f.connect(t, "fs")
	f.connect(t, "git")

	code, body = f.do(t, http.MethodGet, "/api/mcp/tool-settings/enabled", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body.Get("count").Int())

	code, body = f.do(t, http.MethodPost, "/api/mcp/tool-settings/toggle", map[string]any{
		"server":  "git",
		"name":    "read_file",
		"enabled": false,
	})
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.Equal(t, "Tool git__read_file disabled", body.Get("message").String())

	code, body = f.do(t, http.MethodGet, "/api/mcp/tools", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Get("tools").Array(), 1, "disabled tools are not offered")
	assert.Equal(t, "fs__read_file", body.Get("tools.0.full_name").String())

	code, body = f.do(t, http.MethodGet, "/api/mcp/tool-settings", nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Get("tools").Array(), 2)
	assert.Equal(t, "git__read_file", body.Get("tools.1.full_name").String())
	assert.False(t, body.Get("tools.1.enabled").Bool())

	code, _ = f.do(t, http.MethodPost, "/api/mcp/tools/execute", map[string]any{"tool_name": "git__read_file"})
	assert.Equal(t, http.StatusBadRequest, code, "disabled tools cannot be executed")

	code, _ = f.do(t, http.MethodPost, "/api/mcp/tool-settings/toggle", map[string]any{"server": "git", "enabled": true})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, http.MethodPost, "/api/mcp/tool-settings/toggle", map[string]any{"tool": "git__read_file"})
	assert.Equal(t, http.StatusBadRequest, code, "enabled is required")
	code, _ = f.do(t, http.MethodPost, "/api/mcp/tool-settings/toggle", map[string]any{"tool": "git__push", "enabled": true})
	assert.Equal(t, http.StatusNotFound, code)

	code, body = f.do(t, http.MethodPost, "/api/mcp/tool-settings/bulk-update", map[string]any{
		"updates": map[string]bool{
			"git__read_file": true,
			"fs__read_file":  false,
			"git__push":      false,
		},
	})
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.Equal(t, "Updated 2 tools", body.Get("message").String())
	assert.True(t, body.Get("results.git__read_file.success").Bool())
	assert.False(t, body.Get("results.git__push.success").Bool())
	assert.NotEmpty(t, body.Get("results.git__push.error").String())

	code, body = f.do(t, http.MethodGet, "/api/mcp/tool-settings/enabled", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body.Get("count").Int())
	assert.Equal(t, "git__read_file", body.Get("enabled_tools.0.full_name").String())

	code, _ = f.do(t, http.MethodPost, "/api/mcp/tool-settings/bulk-update", map[string]any{"updates": map[string]bool{}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestChatEndpoints(t *testing.T) {
	f := newFixture(t)
	sid := "?session_id=abc"

	code, body := f.do(t, http.MethodPost, "/api/mcp/chat"+sid, map[string]any{"message": "hello"})
	require.Equal(t, http.StatusOK, code, body.Raw)
	assert.True(t, body.Get("success").Bool())
	assert.Equal(t, "abc", body.Get("session_id").String())
	assert.Equal(t, "completed", body.Get("result.state").String())
	assert.Equal(t, "echo: hello", body.Get("result.response").String())
	assert.Equal(t, "turn_started", body.Get("result.commands.0.type").String())

	code, body = f.do(t, http.MethodGet, "/api/mcp/chat/stats"+sid, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body.Get("stats.total_messages").Int())

	code, _ = f.do(t, http.MethodPost, "/api/mcp/chat"+sid, map[string]any{"message": ""})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = f.do(t, http.MethodPost, "/api/mcp/model"+sid, map[string]any{"model": "Llama"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "llama", body.Get("model").String())
	code, _ = f.do(t, http.MethodPost, "/api/mcp/model"+sid, map[string]any{"model": "gpt-9"})
	assert.Equal(t, http.StatusBadRequest, code)
	_, body = f.do(t, http.MethodGet, "/api/mcp/model"+sid, nil)
	assert.Equal(t, "llama", body.Get("model").String())

	code, body = f.do(t, http.MethodPost, "/api/mcp/system-prompt"+sid, map[string]any{"prompt": " "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "System prompt cannot be empty", body.Get("error").String())
	code, _ = f.do(t, http.MethodPost, "/api/mcp/system-prompt"+sid, map[string]any{"prompt": "be terse"})
	require.Equal(t, http.StatusOK, code)
	_, body = f.do(t, http.MethodGet, "/api/mcp/system-prompt"+sid, nil)
	assert.Equal(t, "be terse", body.Get("system_prompt").String())

	code, _ = f.do(t, http.MethodPost, "/api/mcp/chat/clear"+sid, nil)
	require.Equal(t, http.StatusOK, code)
	_, body = f.do(t, http.MethodGet, "/api/mcp/chat/stats"+sid, nil)
	assert.EqualValues(t, 0, body.Get("stats.total_messages").Int())
}

func TestSessionCookieIssued(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/mcp/model", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookie, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(domain.ValidationError{Field: "x", Message: "y"}))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("wrapped: %w", domain.NotFoundError{Kind: "server", Key: "x"})))
	assert.Equal(t, http.StatusConflict, statusFor(chat.ErrTurnInProgress))
	assert.Equal(t, http.StatusRequestTimeout, statusFor(context.DeadlineExceeded))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestWebSocketChat(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session_id=ws1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() gjson.Result {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		return gjson.ParseBytes(data)
	}

	hello := read()
	assert.Equal(t, "session", hello.Get("type").String())
	assert.Equal(t, "ws1", hello.Get("session_id").String())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","message":"hi","use_tools":false}`)))

	var commands []string
	for {
		msg := read()
		if msg.Get("type").String() == "turn_done" {
			assert.Equal(t, "completed", msg.Get("state").String())
			assert.Equal(t, "echo: hi", msg.Get("response").String())
			break
		}
		require.Equal(t, "render", msg.Get("type").String(), msg.Raw)
		commands = append(commands, msg.Get("command.type").String())
	}
	require.NotEmpty(t, commands)
	assert.Equal(t, "turn_started", commands[0])
	assert.Equal(t, "turn_completed", commands[len(commands)-1])
	assert.Contains(t, commands, "block_completed")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","message":"  "}`)))
	msg := read()
	assert.Equal(t, "error", msg.Get("type").String())
	done := read()
	assert.Equal(t, "turn_done", done.Get("type").String(), "a rejected turn still re-enables input")
	assert.Equal(t, "errored", done.Get("state").String())
	assert.Equal(t, msg.Get("error").String(), done.Get("error").String())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	assert.Equal(t, "error", read().Get("type").String())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connect_server","server_id":"missing"}`)))
	msg = read()
	assert.Equal(t, "server_error", msg.Get("type").String())
	assert.Equal(t, "missing", msg.Get("server").String())
}
