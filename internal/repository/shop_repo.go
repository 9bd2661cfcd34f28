package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"elfbaby/internal/model"
)

// ==================== 接口定义 ====================

// ShopRepository 商家仓储接口
type ShopRepository interface {
	Create(ctx context.Context, shop *model.Shop) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Shop, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	UpdateFieldsByDomain(ctx context.Context, domain string, fields map[string]interface{}) error

	// 查找链使用
	GetByDomain(ctx context.Context, domain string) (*model.Shop, error)
	GetActiveByDomain(ctx context.Context, domain string) (*model.Shop, error)
	FindByTitle(ctx context.Context, keyword string) (*model.Shop, error)
	FindActiveByTitle(ctx context.Context, keyword string) (*model.Shop, error)
	GetActiveByRakutenMID(ctx context.Context, mid string) (*model.Shop, error)

	// 列表查询
	List(ctx context.Context, filter ShopFilter) ([]model.Shop, int64, error)
	ListRakutenShops(ctx context.Context) ([]model.Shop, error)
}

// ==================== 过滤条件 ====================

// ShopFilter 商家过滤条件
type ShopFilter struct {
	ActiveOnly bool
	Keyword    string
	Page       int
	PageSize   int
}

// ==================== 仓储实现 ====================

type shopRepo struct {
	db *gorm.DB
}

// NewShopRepository 创建商家仓储
func NewShopRepository(db *gorm.DB) ShopRepository {
	return &shopRepo{db: db}
}

func (r *shopRepo) Create(ctx context.Context, shop *model.Shop) error {
	return r.db.WithContext(ctx).Create(shop).Error
}

func (r *shopRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Shop, error) {
	var shop model.Shop
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *shopRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Shop{}).Where("id = ?", id).Updates(fields).Error
}

func (r *shopRepo) UpdateFieldsByDomain(ctx context.Context, domain string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Shop{}).Where("domain = ?", domain).Updates(fields).Error
}

func (r *shopRepo) GetByDomain(ctx context.Context, domain string) (*model.Shop, error) {
	return r.first(ctx, r.db.Where("domain = ?", domain))
}

func (r *shopRepo) GetActiveByDomain(ctx context.Context, domain string) (*model.Shop, error) {
	return r.first(ctx, r.db.Where("domain = ? AND active = ?", domain, true))
}

// FindByTitle 标题不区分大小写的子串匹配，返回第一条
func (r *shopRepo) FindByTitle(ctx context.Context, keyword string) (*model.Shop, error) {
	return r.first(ctx, r.db.Where("LOWER(title) LIKE ?", likePattern(keyword)))
}

func (r *shopRepo) FindActiveByTitle(ctx context.Context, keyword string) (*model.Shop, error) {
	return r.first(ctx, r.db.Where("LOWER(title) LIKE ? AND active = ?", likePattern(keyword), true))
}

func (r *shopRepo) GetActiveByRakutenMID(ctx context.Context, mid string) (*model.Shop, error) {
	return r.first(ctx, r.db.Where("rakuten_mid = ? AND active = ?", mid, true))
}

func (r *shopRepo) first(ctx context.Context, query *gorm.DB) (*model.Shop, error) {
	var shop model.Shop
	if err := query.WithContext(ctx).Order("created_at ASC").First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *shopRepo) List(ctx context.Context, filter ShopFilter) ([]model.Shop, int64, error) {
	var shops []model.Shop
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Shop{})

	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if filter.Keyword != "" {
		query = query.Where("LOWER(title) LIKE ?", likePattern(filter.Keyword))
	}

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
	if err := query.Order("title ASC").Limit(filter.PageSize).Offset(offset).Find(&shops).Error; err != nil {
		return nil, 0, err
	}

	return shops, total, nil
}

// ListRakutenShops 所有绑定了 Rakuten MID 的活跃商家
func (r *shopRepo) ListRakutenShops(ctx context.Context) ([]model.Shop, error) {
	var shops []model.Shop
	err := r.db.WithContext(ctx).
		Where("active = ? AND rakuten_mid IS NOT NULL AND rakuten_mid <> ''", true).
		Order("created_at ASC").
		Find(&shops).Error
	return shops, err
}

// likePattern 构造小写的 %keyword% 模式
func likePattern(keyword string) string {
	return "%" + strings.ToLower(strings.TrimSpace(keyword)) + "%"
}
