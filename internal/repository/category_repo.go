package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"elfbaby/internal/model"
)

// CategoryRepository 分类仓储接口
type CategoryRepository interface {
	Create(ctx context.Context, category *model.Category) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Category, error)
	FindBySlug(ctx context.Context, slug string, parentID *uuid.UUID) (*model.Category, error)
	FindRootBySlug(ctx context.Context, slug string) (*model.Category, error)
	ListAll(ctx context.Context) ([]model.Category, error)
	TitlesByProduct(ctx context.Context, productID uuid.UUID) ([]string, error)
}

type categoryRepo struct {
	db *gorm.DB
}

// NewCategoryRepository 创建分类仓储
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) Create(ctx context.Context, category *model.Category) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *categoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).Preload("Parent").Where("id = ?", id).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// FindBySlug 按 slug 与父级查找，parentID 为 nil 时只匹配顶级
func (r *categoryRepo) FindBySlug(ctx context.Context, slug string, parentID *uuid.UUID) (*model.Category, error) {
	query := r.db.WithContext(ctx).Where("slug = ?", slug)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}

	var category model.Category
	if err := query.First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepo) FindRootBySlug(ctx context.Context, slug string) (*model.Category, error) {
	return r.FindBySlug(ctx, slug, nil)
}

// ListAll 按标题排序，预加载父级
func (r *categoryRepo) ListAll(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	err := r.db.WithContext(ctx).
		Preload("Parent").
		Order("title ASC").
		Find(&categories).Error
	return categories, err
}

func (r *categoryRepo) TitlesByProduct(ctx context.Context, productID uuid.UUID) ([]string, error) {
	var titles []string
	err := r.db.WithContext(ctx).
		Model(&model.Category{}).
		Joins("JOIN product_categories ON product_categories.category_id = categories.id").
		Where("product_categories.product_id = ?", productID).
		Order("categories.title ASC").
		Pluck("categories.title", &titles).Error
	return titles, err
}
