package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"elfbaby/internal/model"
)

// ThreadRepository 商品文案仓储接口
type ThreadRepository interface {
	Create(ctx context.Context, thread *model.ProductThread) error
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.ProductThread, error)
	CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
}

type threadRepo struct {
	db *gorm.DB
}

// NewThreadRepository 创建文案仓储
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepo{db: db}
}

func (r *threadRepo) Create(ctx context.Context, thread *model.ProductThread) error {
	return r.db.WithContext(ctx).Create(thread).Error
}

func (r *threadRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.ProductThread, error) {
	var threads []model.ProductThread
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&threads).Error
	return threads, err
}

func (r *threadRepo) CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ProductThread{}).Where("product_id = ?", productID).Count(&count).Error
	return count, err
}
