package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/isaacphi/mcpchat/internal/domain"
)

type ServerRepository interface {
	Create(ctx context.Context, server *domain.MCPServer) error
	Update(ctx context.Context, server *domain.MCPServer) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.MCPServer, error)
	GetByName(ctx context.Context, name string) (*domain.MCPServer, error)
	// FindByPartialID resolves a unique ID prefix or an exact name
	FindByPartialID(ctx context.Context, partial string) (*domain.MCPServer, error)
	List(ctx context.Context) ([]domain.MCPServer, error)
	// Seed inserts servers whose names are not registered yet
	Seed(ctx context.Context, servers []domain.MCPServer) (int, error)
}

type ToolCallRepository interface {
	Record(ctx context.Context, call *domain.ToolCall) error
	// Recent returns up to limit calls, newest first, and the total count
	Recent(ctx context.Context, limit int) ([]domain.ToolCall, int64, error)
}
