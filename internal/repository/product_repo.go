package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"elfbaby/internal/model"
)

// ==================== 接口定义 ====================

// ProductRepository 商品仓储接口
type ProductRepository interface {
	// 基础 CRUD
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	GetActiveBySlug(ctx context.Context, slug string) (*model.Product, error)
	GetByShopAndSlug(ctx context.Context, shopID uuid.UUID, slug string) (*model.Product, error)
	UpdateImages(ctx context.Context, id uuid.UUID, images []string) error

	// 列表查询
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error)
	ListAll(ctx context.Context, filter ProductFilter) ([]model.Product, error)
	ListWithoutThreads(ctx context.Context, shopID uuid.UUID) ([]model.Product, error)

	// 分类关联
	LinkCategories(ctx context.Context, productID uuid.UUID, categoryIDs []uuid.UUID) error
}

// ==================== 过滤条件 ====================

// ProductFilter 商品过滤条件
type ProductFilter struct {
	ActiveOnly bool
	ShopID     *uuid.UUID
	CategoryID *uuid.UUID
	Keyword    string
	Page       int
	PageSize   int
}

// ==================== 仓储实现 ====================

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) GetActiveBySlug(ctx context.Context, slug string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Preload("Shop").
		Where("slug = ? AND active = ?", slug, true).
		Order("created_at DESC").
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) GetByShopAndSlug(ctx context.Context, shopID uuid.UUID, slug string) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Where("shop_id = ? AND slug = ?", shopID, slug).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) UpdateImages(ctx context.Context, id uuid.UUID, images []string) error {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Update("images", model.NewImageList(images)).Error
}

func (r *productRepo) buildQuery(ctx context.Context, filter ProductFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&model.Product{})

	if filter.ActiveOnly {
		query = query.Where("products.active = ?", true)
	}
	if filter.ShopID != nil {
		query = query.Where("products.shop_id = ?", *filter.ShopID)
	}
	if filter.CategoryID != nil {
		query = query.Where("EXISTS (SELECT 1 FROM product_categories pc WHERE pc.product_id = products.id AND pc.category_id = ?)", *filter.CategoryID)
	}
	if filter.Keyword != "" {
		query = query.Where("LOWER(products.title) LIKE ?", likePattern(filter.Keyword))
	}
	return query
}

func (r *productRepo) List(ctx context.Context, filter ProductFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	query := r.buildQuery(ctx, filter)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	offset := (filter.Page - 1) * filter.PageSize
	if err := query.Order("products.created_at DESC").Limit(filter.PageSize).Offset(offset).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// ListAll 不分页，按创建时间倒序
func (r *productRepo) ListAll(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	var products []model.Product
	err := r.buildQuery(ctx, filter).Order("products.created_at DESC").Find(&products).Error
	return products, err
}

// ListWithoutThreads 店铺下还没有任何文案的商品，最新的在前
func (r *productRepo) ListWithoutThreads(ctx context.Context, shopID uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Where("NOT EXISTS (SELECT 1 FROM product_threads pt WHERE pt.product_id = products.id)").
		Order("created_at DESC").
		Find(&products).Error
	return products, err
}

// LinkCategories 建立商品分类关联，已存在的组合忽略
func (r *productRepo) LinkCategories(ctx context.Context, productID uuid.UUID, categoryIDs []uuid.UUID) error {
	if len(categoryIDs) == 0 {
		return nil
	}

	seen := make(map[uuid.UUID]bool, len(categoryIDs))
	links := make([]model.ProductCategory, 0, len(categoryIDs))
	for _, id := range categoryIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		links = append(links, model.ProductCategory{ProductID: productID, CategoryID: id})
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
}
