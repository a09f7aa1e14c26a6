package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/isaacphi/mcpchat/internal/domain"
	"github.com/isaacphi/mcpchat/internal/repository"
)

type serverRepo struct {
	db *gorm.DB
}

func NewServerRepository(db *gorm.DB) repository.ServerRepository {
	return &serverRepo{db: db}
}

func (r *serverRepo) Create(ctx context.Context, server *domain.MCPServer) error {
	if err := domain.ValidateServer(server); err != nil {
		return err
	}
	if _, err := r.GetByName(ctx, server.Name); err == nil {
		return domain.ValidationError{Field: "name", Message: fmt.Sprintf("server %q already exists", server.Name)}
	}
	return r.db.WithContext(ctx).Create(server).Error
}

func (r *serverRepo) Update(ctx context.Context, server *domain.MCPServer) error {
	if err := domain.ValidateServer(server); err != nil {
		return err
	}
	if _, err := r.GetByID(ctx, server.ID); err != nil {
		return err
	}
	if other, err := r.GetByName(ctx, server.Name); err == nil && other.ID != server.ID {
		return domain.ValidationError{Field: "name", Message: fmt.Sprintf("server %q already exists", server.Name)}
	}
	return r.db.WithContext(ctx).Save(server).Error
}

func (r *serverRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&domain.MCPServer{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Kind: "server", Key: id.String()}
	}
	return nil
}

func (r *serverRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MCPServer, error) {
	var server domain.MCPServer
	if err := r.db.WithContext(ctx).First(&server, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundError{Kind: "server", Key: id.String()}
		}
		return nil, err
	}
	return &server, nil
}

func (r *serverRepo) GetByName(ctx context.Context, name string) (*domain.MCPServer, error) {
	var server domain.MCPServer
	if err := r.db.WithContext(ctx).First(&server, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NotFoundError{Kind: "server", Key: name}
		}
		return nil, err
	}
	return &server, nil
}

func (r *serverRepo) FindByPartialID(ctx context.Context, partial string) (*domain.MCPServer, error) {
	partial = strings.TrimSpace(partial)
	if partial == "" {
		return nil, domain.ValidationError{Field: "server_id", Message: "is required"}
	}
	if server, err := r.GetByName(ctx, partial); err == nil {
		return server, nil
	}

	var servers []domain.MCPServer
	if err := r.db.WithContext(ctx).
		Where("id LIKE ?", strings.ToLower(partial)+"%").
		Limit(2).
		Find(&servers).Error; err != nil {
		return nil, err
	}
	switch len(servers) {
	case 0:
		return nil, domain.NotFoundError{Kind: "server", Key: partial}
	case 1:
		return &servers[0], nil
	default:
		return nil, domain.ValidationError{Field: "server_id", Message: fmt.Sprintf("ambiguous server id %q", partial)}
	}
}

func (r *serverRepo) List(ctx context.Context) ([]domain.MCPServer, error) {
	var servers []domain.MCPServer
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&servers).Error; err != nil {
		return nil, err
	}
	return servers, nil
}

func (r *serverRepo) Seed(ctx context.Context, servers []domain.MCPServer) (int, error) {
	created := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range servers {
			s := servers[i]
			if err := domain.ValidateServer(&s); err != nil {
				return fmt.Errorf("seed server %q: %w", s.Name, err)
			}
			var count int64
			if err := tx.Model(&domain.MCPServer{}).Where("name = ?", s.Name).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if err := tx.Create(&s).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	return created, err
}
