// Package shared wires the storage, MCP and chat layers together for the
// commands that need them.
package shared

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/isaacphi/mcpchat/internal/agent"
	"github.com/isaacphi/mcpchat/internal/appState"
	"github.com/isaacphi/mcpchat/internal/chat"
	"github.com/isaacphi/mcpchat/internal/config"
	"github.com/isaacphi/mcpchat/internal/domain"
	"github.com/isaacphi/mcpchat/internal/llm"
	"github.com/isaacphi/mcpchat/internal/mcp"
	"github.com/isaacphi/mcpchat/internal/repository"
	"github.com/isaacphi/mcpchat/internal/repository/sqlite"
)

// Services holds everything a command needs to run chat turns
type Services struct {
	App      *appState.App
	DB       *gorm.DB
	Servers  repository.ServerRepository
	History  repository.ToolCallRepository
	Tools    *mcp.Manager
	Sessions *chat.Registry
}

// InitializeServices opens the database and builds the MCP manager and the
// session registry. Servers are not connected yet.
func InitializeServices(app *appState.App) (*Services, error) {
	cfg := app.Config

	db, err := sqlite.Initialize(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	history := sqlite.NewToolCallRepository(db)
	tools := mcp.NewManager(mcp.Options{
		Config:  cfg.MCP,
		History: history,
		Metrics: app.Metrics,
		Logger:  app.Logger,
	})

	agents := chat.NewAgentFactory(llm.NewFactory(cfg.Keys), tools, agent.Options{
		MaxToolRounds: cfg.Chat.MaxToolRounds,
		Logger:        app.Logger,
	})

	s := &Services{
		App:     app,
		DB:      db,
		Servers: sqlite.NewServerRepository(db),
		History: history,
		Tools:   tools,
	}
	s.Sessions = chat.NewRegistry(func(id string) *chat.Session {
		return chat.NewSession(chat.Options{
			ID:           id,
			Chat:         cfg.Chat,
			Presets:      cfg.ModelPresets,
			Model:        cfg.ActiveModel,
			SystemPrompt: cfg.SystemPrompt,
			Agents:       agents,
			Metrics:      app.Metrics,
			Logger:       app.Logger,
		})
	})
	return s, nil
}

// SeedServers stores the servers declared in configuration that the
// registry does not know yet
func (s *Services) SeedServers(ctx context.Context) error {
	seed := ConfiguredServers(s.App.Config.MCPServers)
	added, err := s.Servers.Seed(ctx, seed)
	if err != nil {
		return fmt.Errorf("failed to seed servers: %w", err)
	}
	if added > 0 {
		s.App.Logger.Info("seeded MCP servers from configuration", "count", added)
	}
	return nil
}

// ConnectAutoServers connects every enabled server marked auto_connect
func (s *Services) ConnectAutoServers(ctx context.Context) error {
	return s.connect(ctx, func(server domain.MCPServer) bool { return server.AutoConnect })
}

// ConnectEnabled connects every enabled server, used by one-shot commands
func (s *Services) ConnectEnabled(ctx context.Context) error {
	return s.connect(ctx, func(domain.MCPServer) bool { return true })
}

// connect dials the enabled servers matching keep. Individual failures are
// logged and do not stop the others.
func (s *Services) connect(ctx context.Context, keep func(domain.MCPServer) bool) error {
	servers, err := s.Servers.List(ctx)
	if err != nil {
		return err
	}
	var selected []domain.MCPServer
	for _, server := range servers {
		if server.Enabled && keep(server) {
			selected = append(selected, server)
		}
	}
	if len(selected) == 0 {
		return nil
	}
	if err := s.Tools.ConnectAll(ctx, selected); err != nil {
		s.App.Logger.Warn("some MCP servers failed to connect", "error", err)
	}
	return nil
}

// Close disconnects every server and closes the database
func (s *Services) Close() error {
	s.Sessions.CancelAll()
	s.Tools.Shutdown()
	return sqlite.Close(s.DB)
}

// ConfiguredServers converts the mcpServers configuration section into
// records, sorted by name
func ConfiguredServers(servers map[string]config.MCPServer) []domain.MCPServer {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]domain.MCPServer, 0, len(names))
	for _, name := range names {
		c := servers[name]
		out = append(out, domain.MCPServer{
			Name:        name,
			Description: c.Description,
			Command:     c.Command,
			Args:        c.Args,
			Env:         c.Env,
			Category:    c.Category,
			AutoConnect: c.AutoConnect,
			Enabled:     !c.Disabled,
		})
	}
	return out
}
