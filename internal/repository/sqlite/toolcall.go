package sqlite

import (
	"context"

	"gorm.io/gorm"

	"github.com/isaacphi/mcpchat/internal/domain"
	"github.com/isaacphi/mcpchat/internal/repository"
)

type toolCallRepo struct {
	db *gorm.DB
}

func NewToolCallRepository(db *gorm.DB) repository.ToolCallRepository {
	return &toolCallRepo{db: db}
}

func (r *toolCallRepo) Record(ctx context.Context, call *domain.ToolCall) error {
	return r.db.WithContext(ctx).Create(call).Error
}

func (r *toolCallRepo) Recent(ctx context.Context, limit int) ([]domain.ToolCall, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.ToolCall{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var calls []domain.ToolCall
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&calls).Error; err != nil {
		return nil, 0, err
	}
	return calls, total, nil
}
