// Package mcp manages connections to MCP tool servers and routes tool calls
// addressed as server__tool to them.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/isaacphi/mcpchat/internal/config"
	"github.com/isaacphi/mcpchat/internal/domain"
	"github.com/isaacphi/mcpchat/internal/obs"
	"github.com/isaacphi/mcpchat/internal/repository"
)

type Options struct {
	Config  config.MCP
	Dialer  Dialer
	History repository.ToolCallRepository
	Metrics *obs.Metrics
	Logger  *slog.Logger
}

type connection struct {
	server      domain.MCPServer
	session     Session
	tools       []domain.Tool
	connectedAt time.Time
}

// Status describes one server connection
type Status struct {
	Name        string    `json:"name"`
	Connected   bool      `json:"connected"`
	ToolCount   int       `json:"tool_count"`
	Tools       []string  `json:"tools"`
	ConnectedAt time.Time `json:"connected_at,omitempty"`
}

// ToolState is a tool together with whether it is offered to the model
type ToolState struct {
	domain.Tool
	Enabled bool `json:"enabled"`
}

type Summary struct {
	ConnectedServers int      `json:"connected_servers"`
	TotalTools       int      `json:"total_tools"`
	Servers          []string `json:"servers"`
}

// Manager owns every live server connection
type Manager struct {
	cfg     config.MCP
	dial    Dialer
	history repository.ToolCallRepository
	metrics *obs.Metrics
	logger  *slog.Logger

	mu       sync.RWMutex
	conns    map[string]*connection
	disabled map[string]bool
	sem      chan struct{}
}

func NewManager(opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = DialStdio
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	limit := opts.Config.MaxConcurrentTools
	if limit <= 0 {
		limit = 1
	}
	return &Manager{
		cfg:      opts.Config,
		dial:     opts.Dialer,
		history:  opts.History,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		conns:    make(map[string]*connection),
		disabled: make(map[string]bool),
		sem:      make(chan struct{}, limit),
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Connect starts the server and loads its tools. Connecting a server that is
// already connected is a no-op.
func (m *Manager) Connect(ctx context.Context, server domain.MCPServer) error {
	if err := domain.ValidateServer(&server); err != nil {
		return err
	}

	m.mu.RLock()
	_, exists := m.conns[server.Name]
	m.mu.RUnlock()
	if exists {
		return nil
	}

	conn, err := m.open(ctx, server)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if _, exists := m.conns[server.Name]; exists {
		m.mu.Unlock()
		_ = conn.session.Close()
		return nil
	}
	m.conns[server.Name] = conn
	m.mu.Unlock()

	m.logger.Info("mcp server connected", "server", server.Name, "tools", len(conn.tools))
	return nil
}

func (m *Manager) open(ctx context.Context, server domain.MCPServer) (*connection, error) {
	dialCtx, cancel := withTimeout(ctx, m.cfg.SessionInitTimeout)
	defer cancel()

	session, err := m.dial(dialCtx, server)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to server %s", server.Name)
	}

	listCtx, cancelList := withTimeout(ctx, m.cfg.ListToolsTimeout)
	defer cancelList()

	remote, err := session.ListTools(listCtx)
	if err != nil {
		_ = session.Close()
		return nil, errors.Wrapf(err, "failed to list tools for server %s", server.Name)
	}

	tools := make([]domain.Tool, 0, len(remote))
	for _, t := range remote {
		tools = append(tools, domain.Tool{
			Name:        t.Name,
			FullName:    domain.FullToolName(server.Name, t.Name),
			ServerName:  server.Name,
			Description: t.Description,
			Parameters:  parseSchema(t.InputSchema),
		})
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })

	return &connection{
		server:      server,
		session:     session,
		tools:       tools,
		connectedAt: time.Now(),
	}, nil
}

// ConnectAll connects servers in parallel. Every server is attempted; the
// first failure is returned.
func (m *Manager) ConnectAll(ctx context.Context, servers []domain.MCPServer) error {
	var g errgroup.Group
	for _, server := range servers {
		server := server
		g.Go(func() error {
			if err := m.Connect(ctx, server); err != nil {
				m.logger.Error("mcp server failed to connect", "server", server.Name, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (m *Manager) Disconnect(name string) error {
	m.mu.Lock()
	conn, ok := m.conns[name]
	delete(m.conns, name)
	m.mu.Unlock()

	if !ok {
		return domain.NotFoundError{Kind: "connection", Key: name}
	}
	m.logger.Info("mcp server disconnected", "server", name)
	return errors.Wrapf(conn.session.Close(), "failed to stop server %s", name)
}

func (m *Manager) Connected(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.conns[name]
	return ok
}

func (m *Manager) Status(name string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.conns[name]
	if !ok {
		return Status{Name: name, Tools: []string{}}
	}
	names := make([]string, 0, len(conn.tools))
	for _, t := range conn.tools {
		names = append(names, t.Name)
	}
	return Status{
		Name:        name,
		Connected:   true,
		ToolCount:   len(conn.tools),
		Tools:       names,
		ConnectedAt: conn.connectedAt,
	}
}

func (m *Manager) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{Servers: make([]string, 0, len(m.conns))}
	for name, conn := range m.conns {
		s.Servers = append(s.Servers, name)
		s.TotalTools += len(conn.tools)
	}
	sort.Strings(s.Servers)
	s.ConnectedServers = len(s.Servers)
	return s
}

// Tools returns the enabled tools of every connected server, ordered by
// full name. This is the set offered to the model.
func (m *Manager) Tools() []domain.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tools []domain.Tool
	for _, conn := range m.conns {
		for _, t := range conn.tools {
			if !m.disabled[t.FullName] {
				tools = append(tools, t)
			}
		}
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].FullName < tools[j].FullName })
	return tools
}

// ToolStates returns every tool of every connected server with its enabled
// flag, ordered by full name
func (m *Manager) ToolStates() []ToolState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var states []ToolState
	for _, conn := range m.conns {
		for _, t := range conn.tools {
			states = append(states, ToolState{Tool: t, Enabled: !m.disabled[t.FullName]})
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i].FullName < states[j].FullName })
	return states
}

// SetToolEnabled offers or withholds a tool of a connected server. The
// setting outlives reconnects of the server.
func (m *Manager) SetToolEnabled(fullName string, enabled bool) error {
	serverName, _, err := domain.SplitToolName(fullName)
	if err != nil {
		return domain.ValidationError{Field: "tool", Message: err.Error()}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[serverName]
	if !ok || !hasTool(conn.tools, fullName) {
		return domain.NotFoundError{Kind: "tool", Key: fullName}
	}
	if enabled {
		delete(m.disabled, fullName)
	} else {
		m.disabled[fullName] = true
	}
	m.logger.Info("mcp tool toggled", "tool", fullName, "enabled", enabled)
	return nil
}

func hasTool(tools []domain.Tool, fullName string) bool {
	for _, t := range tools {
		if t.FullName == fullName {
			return true
		}
	}
	return false
}

// CallTool calls a tool by its fully qualified name (serverName__toolName).
// A tool that reports an error is returned as a result with IsError set; the
// error return is reserved for calls that could not be made.
func (m *Manager) CallTool(ctx context.Context, fullName string, args map[string]interface{}) (ToolResult, error) {
	serverName, toolName, err := domain.SplitToolName(fullName)
	if err != nil {
		return ToolResult{}, domain.ValidationError{Field: "tool", Message: err.Error()}
	}

	m.mu.RLock()
	conn, ok := m.conns[serverName]
	disabled := m.disabled[fullName]
	m.mu.RUnlock()
	if !ok {
		return ToolResult{}, domain.NotFoundError{Kind: "server", Key: serverName}
	}
	if disabled {
		return ToolResult{}, domain.ValidationError{Field: "tool", Message: fmt.Sprintf("tool %s is disabled", fullName)}
	}

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		return ToolResult{}, ctx.Err()
	}

	args = FilterArguments(args)
	start := time.Now()
	result, err := m.call(ctx, conn, toolName, args)
	if err != nil && m.cfg.AutoReconnect && ctx.Err() == nil {
		m.logger.Warn("mcp tool call failed, reconnecting", "server", serverName, "tool", toolName, "error", err)
		if conn, rerr := m.reconnect(ctx, conn.server); rerr == nil {
			result, err = m.call(ctx, conn, toolName, args)
		}
	}
	elapsed := time.Since(start)

	m.record(ctx, serverName, toolName, args, result, err, elapsed)
	if err != nil {
		return ToolResult{}, errors.Wrapf(err, "tool %s failed", fullName)
	}
	return result, nil
}

func (m *Manager) call(ctx context.Context, conn *connection, tool string, args map[string]interface{}) (ToolResult, error) {
	callCtx, cancel := withTimeout(ctx, m.cfg.ToolTimeout)
	defer cancel()
	return conn.session.CallTool(callCtx, tool, args)
}

func (m *Manager) reconnect(ctx context.Context, server domain.MCPServer) (*connection, error) {
	m.mu.Lock()
	if old, ok := m.conns[server.Name]; ok {
		_ = old.session.Close()
		delete(m.conns, server.Name)
	}
	m.mu.Unlock()

	conn, err := m.open(ctx, server)
	if err != nil {
		m.logger.Error("mcp reconnect failed", "server", server.Name, "error", err)
		return nil, err
	}
	m.mu.Lock()
	m.conns[server.Name] = conn
	m.mu.Unlock()
	return conn, nil
}

func (m *Manager) record(ctx context.Context, server, tool string, args map[string]interface{}, result ToolResult, callErr error, elapsed time.Duration) {
	failed := callErr != nil || result.IsError
	m.metrics.ToolCall(ctx, server, tool, failed)

	if m.cfg.LogToolCalls {
		m.logger.Info("mcp tool call", "server", server, "tool", tool, "duration", elapsed, "error", failed)
	}
	if m.history == nil {
		return
	}

	rawArgs, _ := json.Marshal(args)
	call := &domain.ToolCall{
		ServerName: server,
		ToolName:   tool,
		Arguments:  string(rawArgs),
		Result:     result.Content,
		DurationMs: elapsed.Milliseconds(),
	}
	if callErr != nil {
		call.Error = callErr.Error()
	}
	// History must survive a cancelled turn.
	if err := m.history.Record(context.WithoutCancel(ctx), call); err != nil {
		m.logger.Error("failed to record tool call", "server", server, "tool", tool, "error", err)
	}
}

// Shutdown stops all servers in parallel
func (m *Manager) Shutdown() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*connection)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for name, conn := range conns {
		wg.Add(1)
		go func(name string, conn *connection) {
			defer wg.Done()
			if err := conn.session.Close(); err != nil {
				m.logger.Warn("failed to stop mcp server", "server", name, "error", err)
			}
		}(name, conn)
	}
	wg.Wait()
}
