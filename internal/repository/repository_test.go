package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"elfbaby/internal/model"
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

func seedShop(t *testing.T, db *gorm.DB, title, domain string, active bool) *model.Shop {
	shop := &model.Shop{Title: title, Domain: domain, Markets: model.DefaultMarkets}
	require.NoError(t, db.Create(shop).Error)
	if !active {
		// default:true 的布尔字段创建时会忽略 false
		require.NoError(t, db.Model(shop).Update("active", false).Error)
		shop.Active = false
	}
	return shop
}

func seedProduct(t *testing.T, db *gorm.DB, shopID uuid.UUID, title, slug string) *model.Product {
	p := &model.Product{ShopID: shopID, Title: title, Slug: slug, Images: model.NewImageList(nil)}
	require.NoError(t, db.Create(p).Error)
	return p
}

// ==================== ShopRepository ====================

func TestShopRepo_LookupChain(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShopRepository(db)
	ctx := context.Background()

	active := seedShop(t, db, "Happy Toys Store", "happytoys.com", true)
	seedShop(t, db, "Sleepy Shop", "sleepy.com", false)

	got, err := repo.GetActiveByDomain(ctx, "happytoys.com")
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)

	_, err = repo.GetActiveByDomain(ctx, "sleepy.com")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	got, err = repo.GetByDomain(ctx, "sleepy.com")
	require.NoError(t, err)
	assert.False(t, got.Active)

	got, err = repo.FindActiveByTitle(ctx, "HAPPY toys")
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)

	_, err = repo.FindActiveByTitle(ctx, "sleepy")
	assert.Error(t, err)

	got, err = repo.FindByTitle(ctx, "sleepy")
	require.NoError(t, err)
	assert.Equal(t, "sleepy.com", got.Domain)
}

func TestShopRepo_DuplicateDomain(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShopRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Shop{Title: "A", Domain: "dup.com"}))
	err := repo.Create(ctx, &model.Shop{Title: "B", Domain: "dup.com"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestShopRepo_RakutenMID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShopRepository(db)
	ctx := context.Background()

	shop := seedShop(t, db, "Merchant", "merchant.com", true)
	seedShop(t, db, "Plain", "plain.com", true)

	require.NoError(t, repo.UpdateFieldsByDomain(ctx, "merchant.com", map[string]interface{}{"rakuten_mid": "12345"}))

	got, err := repo.GetActiveByRakutenMID(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, shop.ID, got.ID)

	shops, err := repo.ListRakutenShops(ctx)
	require.NoError(t, err)
	require.Len(t, shops, 1)
	assert.Equal(t, "12345", *shops[0].RakutenMID)
}

func TestShopRepo_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShopRepository(db)
	ctx := context.Background()

	seedShop(t, db, "Bravo", "b.com", true)
	seedShop(t, db, "Alpha", "a.com", true)
	seedShop(t, db, "Charlie", "c.com", false)

	shops, total, err := repo.List(ctx, ShopFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, shops, 2)
	assert.Equal(t, "Alpha", shops[0].Title)
	assert.Equal(t, []string{"europe", "america"}, []string(shops[0].Markets))
}

// ==================== CategoryRepository ====================

func TestCategoryRepo_Hierarchy(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	parent := &model.Category{Title: "Toys", Slug: "toys"}
	require.NoError(t, repo.Create(ctx, parent))
	child := &model.Category{Title: "Puzzles", Slug: "puzzles", ParentID: &parent.ID}
	require.NoError(t, repo.Create(ctx, child))

	root, err := repo.FindRootBySlug(ctx, "toys")
	require.NoError(t, err)
	assert.Equal(t, parent.ID, root.ID)

	_, err = repo.FindRootBySlug(ctx, "puzzles")
	assert.Error(t, err, "子分类不应匹配顶级查询")

	got, err := repo.FindBySlug(ctx, "puzzles", &parent.ID)
	require.NoError(t, err)
	assert.Equal(t, child.ID, got.ID)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Toys > Puzzles", all[0].Path())
	assert.Equal(t, "Toys", all[1].Path())
}

// ==================== ProductRepository ====================

func TestProductRepo_SlugUniquePerShop(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	shopA := seedShop(t, db, "A", "a.com", true)
	shopB := seedShop(t, db, "B", "b.com", true)

	seedProduct(t, db, shopA.ID, "Teddy", "teddy")
	err := repo.Create(ctx, &model.Product{ShopID: shopA.ID, Title: "Teddy", Slug: "teddy"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// 不同店铺允许相同 slug
	assert.NoError(t, repo.Create(ctx, &model.Product{ShopID: shopB.ID, Title: "Teddy", Slug: "teddy"}))
}

func TestProductRepo_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProductRepository(db)
	catRepo := NewCategoryRepository(db)
	ctx := context.Background()

	shop := seedShop(t, db, "Shop", "shop.com", true)
	p1 := seedProduct(t, db, shop.ID, "Wooden Train", "wooden-train")
	p2 := seedProduct(t, db, shop.ID, "Soft Bear", "soft-bear")
	p3 := seedProduct(t, db, shop.ID, "Hidden Train", "hidden-train")
	require.NoError(t, db.Model(p3).Update("active", false).Error)

	cat := &model.Category{Title: "Toys", Slug: "toys"}
	require.NoError(t, catRepo.Create(ctx, cat))
	require.NoError(t, repo.LinkCategories(ctx, p2.ID, []uuid.UUID{cat.ID, cat.ID}))
	// 重复关联不报错
	require.NoError(t, repo.LinkCategories(ctx, p2.ID, []uuid.UUID{cat.ID}))

	tests := []struct {
		name   string
		filter ProductFilter
		want   []uuid.UUID
	}{
		{"仅上架", ProductFilter{ActiveOnly: true}, []uuid.UUID{p2.ID, p1.ID}},
		{"关键字不区分大小写", ProductFilter{Keyword: "TRAIN"}, []uuid.UUID{p3.ID, p1.ID}},
		{"按分类", ProductFilter{CategoryID: &cat.ID}, []uuid.UUID{p2.ID}},
		{"按店铺", ProductFilter{ShopID: &shop.ID, ActiveOnly: true, Keyword: "bear"}, []uuid.UUID{p2.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, total, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), total)
			ids := make([]uuid.UUID, 0, len(products))
			for _, p := range products {
				ids = append(ids, p.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}

	titles, err := catRepo.TitlesByProduct(ctx, p2.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Toys"}, titles)
}

func TestProductRepo_ImagesAndThreads(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProductRepository(db)
	threads := NewThreadRepository(db)
	ctx := context.Background()

	shop := seedShop(t, db, "Shop", "shop.com", true)
	p1 := seedProduct(t, db, shop.ID, "One", "one")
	p2 := seedProduct(t, db, shop.ID, "Two", "two")

	require.NoError(t, repo.UpdateImages(ctx, p1.ID, []string{"https://cdn.x/1.jpg", "https://cdn.x/2.jpg"}))
	got, err := repo.GetByID(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.x/1.jpg", "https://cdn.x/2.jpg"}, []string(got.Images))

	require.NoError(t, threads.Create(ctx, &model.ProductThread{ProductID: p1.ID, Text: "hello", Keywords: []string{"gift"}}))
	count, err := threads.CountByProduct(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	missing, err := repo.ListWithoutThreads(ctx, shop.ID)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, p2.ID, missing[0].ID)
}

func TestCatalogUnitOfWork_Transaction(t *testing.T) {
	db := setupTestDB(t)
	uow := NewCatalogUnitOfWork(db)
	ctx := context.Background()

	shop := seedShop(t, db, "Shop", "shop.com", true)
	boom := errors.New("boom")

	t.Run("失败回滚", func(t *testing.T) {
		err := uow.Transaction(ctx, func(tx *CatalogUnitOfWork) error {
			p := &model.Product{ShopID: shop.ID, Title: "X", Slug: "x"}
			if err := tx.Products.Create(ctx, p); err != nil {
				return err
			}
			if err := tx.Threads.Create(ctx, &model.ProductThread{ProductID: p.ID, Text: "hi"}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = uow.Products.GetByShopAndSlug(ctx, shop.ID, "x")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "事务回滚后不应存在")
		var n int64
		require.NoError(t, db.Model(&model.ProductThread{}).Count(&n).Error)
		assert.Zero(t, n)
	})

	t.Run("成功提交", func(t *testing.T) {
		err := uow.Transaction(ctx, func(tx *CatalogUnitOfWork) error {
			return tx.Products.Create(ctx, &model.Product{ShopID: shop.ID, Title: "Y", Slug: "y"})
		})
		require.NoError(t, err)

		got, err := uow.Products.GetByShopAndSlug(ctx, shop.ID, "y")
		require.NoError(t, err)
		assert.Equal(t, "Y", got.Title)
	})
}
