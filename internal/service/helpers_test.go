package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"elfbaby/internal/model"
	"elfbaby/internal/repository"
	"elfbaby/pkg/database"
)

// ==================== 测试辅助 ====================

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	return db
}

func seedShop(t *testing.T, db *gorm.DB, title, domain string) *model.Shop {
	shop := &model.Shop{Title: title, Domain: domain, Markets: model.DefaultMarkets, Active: true}
	require.NoError(t, db.Create(shop).Error)
	return shop
}

func deactivateShop(t *testing.T, db *gorm.DB, shop *model.Shop) {
	require.NoError(t, db.Model(shop).Update("active", false).Error)
	shop.Active = false
}

func seedCategory(t *testing.T, db *gorm.DB, title, slug string, parentID *uuid.UUID) *model.Category {
	c := &model.Category{Title: title, Slug: slug, ParentID: parentID}
	require.NoError(t, db.Create(c).Error)
	return c
}

type productSeed struct {
	Title       string
	Slug        string
	Description string
	Filters     map[string]any
	Specs       map[string]any
	Images      []string
	CreatedAt   time.Time
	Inactive    bool
}

func seedProduct(t *testing.T, db *gorm.DB, shopID uuid.UUID, in productSeed) *model.Product {
	p := &model.Product{
		ShopID:         shopID,
		Title:          in.Title,
		Slug:           in.Slug,
		Description:    in.Description,
		Filters:        model.NewJSONObject(in.Filters),
		Specifications: model.NewJSONObject(in.Specs),
		Images:         model.NewImageList(in.Images),
		Active:         true,
	}
	if !in.CreatedAt.IsZero() {
		p.CreatedAt = in.CreatedAt
	}
	require.NoError(t, db.Create(p).Error)
	if in.Inactive {
		require.NoError(t, db.Model(p).Update("active", false).Error)
		p.Active = false
	}
	return p
}

func linkCategory(t *testing.T, db *gorm.DB, productID, categoryID uuid.UUID) {
	require.NoError(t, db.Create(&model.ProductCategory{ProductID: productID, CategoryID: categoryID}).Error)
}

func countThreads(t *testing.T, db *gorm.DB, productID uuid.UUID) int64 {
	var n int64
	require.NoError(t, db.Model(&model.ProductThread{}).Where("product_id = ?", productID).Count(&n).Error)
	return n
}

func newCatalog(db *gorm.DB) *repository.CatalogUnitOfWork {
	return repository.NewCatalogUnitOfWork(db)
}

// fakeFetcher 按 URL 返回预置页面
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls []string
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, errs: map[string]error{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("页面不存在: %s", url)
	}
	return html, nil
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}
