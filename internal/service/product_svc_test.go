package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"elfbaby/internal/model"
)

const rainbowPageHTML = `<html><head><title>Wooden Rainbow Stacker | Happy Toys</title>
<meta property="og:price:amount" content="24.99">
<meta property="og:image" content="https://cdn.happytoys.com/product/rainbow-1.jpg"></head>
<body><h1>Wooden Rainbow Stacker</h1>
<p>A colourful stacking toy for baby and toddler play. One of our favourite toys.</p>
<table><tr><th>Material</th><td>Beech wood</td></tr></table></body></html>`

var longDescription = strings.Repeat("A sturdy wooden toy that little hands love to stack. ", 3)

type fakeDescriber struct {
	desc  string
	err   error
	calls int
}

func (f *fakeDescriber) GenerateDescription(ctx context.Context, title, textContent string) (string, error) {
	f.calls++
	return f.desc, f.err
}

type fakeMirror struct {
	prefix string
	err    error
}

func (f *fakeMirror) MirrorImages(ctx context.Context, images []string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = f.prefix + filepath.Base(img)
	}
	return out, nil
}

func newProductService(db *gorm.DB, fetcher PageFetcher, filtersFile string) *ProductService {
	return NewProductService(newCatalog(db), fetcher, filtersFile, nil)
}

func writeFiltersFile(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "filters.md")
	content := "# Filters\n\n- **0 to 12 months**\n- **1 - 3 years**\n- **Adults**\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOptionalFloat_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      float64
	}{
		{"数字", `12.5`, true, 12.5},
		{"字符串", `"19.99"`, true, 19.99},
		{"逗号小数", `"12,50"`, true, 12.5},
		{"带货币后缀", `"19.99 USD"`, true, 19.99},
		{"null", `null`, false, 0},
		{"无法解析", `"free"`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f OptionalFloat
			require.NoError(t, json.Unmarshal([]byte(tt.input), &f))
			assert.Equal(t, tt.wantValid, f.Valid)
			if tt.wantValid {
				assert.InDelta(t, tt.want, f.Value, 0.0001)
			}
		})
	}

	t.Run("无效值输出 null", func(t *testing.T) {
		b, err := json.Marshal(OptionalFloat{})
		require.NoError(t, err)
		assert.Equal(t, "null", string(b))
	})
}

func TestProductService_ScrapeDrafts(t *testing.T) {
	db := setupTestDB(t)
	toys := seedCategory(t, db, "Toys", "toys", nil)
	seedCategory(t, db, "Kitchen", "kitchen", nil)

	fetcher := newFakeFetcher(map[string]string{
		"https://happytoys.com/product/rainbow": rainbowPageHTML,
		"https://happytoys.com/product/empty":   "<html><body><p>nothing</p></body></html>",
	})
	fetcher.errs["https://happytoys.com/product/broken"] = errors.New("boom")

	svc := newProductService(db, fetcher, writeFiltersFile(t))
	drafts, err := svc.ScrapeDrafts(context.Background(), []string{
		"https://happytoys.com/product/broken",
		"https://happytoys.com/product/rainbow",
		"https://happytoys.com/product/empty",
	})
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	d := drafts[0]
	assert.Equal(t, "Wooden Rainbow Stacker", d.Title)
	assert.Equal(t, "wooden-rainbow-stacker", d.Slug)
	assert.True(t, d.Price.Valid)
	assert.InDelta(t, 24.99, d.Price.Value, 0.001)
	assert.Equal(t, []string{"https://cdn.happytoys.com/product/rainbow-1.jpg"}, d.Images)
	assert.Equal(t, "Beech wood", d.Specifications["Material"])
	assert.Equal(t, []string{toys.ID.String()}, d.Categories)
	assert.Equal(t, []string{"0 to 12 months", "1 - 3 years"}, d.Filters["age"])
	assert.Len(t, fetcher.calls, 3)
}

func TestProductService_DiscoverURLs(t *testing.T) {
	db := setupTestDB(t)
	home := `<a href="/products/a">A</a><a href="/products/a">A again</a><a href="/p/b">B</a><a href="/about">About</a>`
	fetcher := newFakeFetcher(map[string]string{"https://happytoys.com": home})
	svc := newProductService(db, fetcher, "")

	urls, err := svc.DiscoverURLs(context.Background(), &model.Shop{Domain: "happytoys.com"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://happytoys.com/products/a", "https://happytoys.com/p/b"}, urls)
}

func TestProductService_ExportAndLoadDrafts(t *testing.T) {
	db := setupTestDB(t)
	svc := newProductService(db, nil, "")
	dir := t.TempDir()

	t.Run("导出截断正文并清空描述", func(t *testing.T) {
		path := filepath.Join(dir, "out", "products-temp.json")
		drafts := []ProductDraft{{Title: "Bunny", Description: "keep?", TextContent: strings.Repeat("a", exportTextLimit+50)}}
		require.NoError(t, svc.ExportDrafts(path, drafts))

		loaded, err := svc.LoadDraftsJSON(path)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, "", loaded[0].Description)
		assert.Len(t, loaded[0].TextContent, exportTextLimit)
		assert.Equal(t, "bunny", loaded[0].Slug)
		assert.Equal(t, "keep?", drafts[0].Description)
	})

	t.Run("读取补全 slug 与分类去重", func(t *testing.T) {
		path := filepath.Join(dir, "in.json")
		content := `[{"title": "Soft Plush Bunny", "price": "12,50", "categories": ["toys", "toys", "nursery"]}]`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		drafts, err := svc.LoadDraftsJSON(path)
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.Equal(t, "soft-plush-bunny", drafts[0].Slug)
		assert.InDelta(t, 12.5, drafts[0].Price.Value, 0.001)
		assert.Equal(t, []string{"toys", "nursery"}, drafts[0].Categories)
	})

	t.Run("非法 JSON", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"title": 1}`), 0o644))
		_, err := svc.LoadDraftsJSON(path)
		assert.ErrorIs(t, err, ErrInvalidJSON)
	})
}

func TestProductService_GenerateDescriptions(t *testing.T) {
	db := setupTestDB(t)
	drafts := []ProductDraft{
		{Title: "Needs copy"},
		{Title: "Has copy", Description: longDescription},
	}

	err := newProductService(db, nil, "").GenerateDescriptions(context.Background(), drafts)
	assert.ErrorIs(t, err, ErrAIDisabled)

	describer := &fakeDescriber{desc: longDescription}
	svc := newProductService(db, nil, "").WithDescriber(describer)
	require.NoError(t, svc.GenerateDescriptions(context.Background(), drafts))
	assert.Equal(t, 1, describer.calls)
	assert.Equal(t, longDescription, drafts[0].Description)
}

func TestProductService_ImportDrafts(t *testing.T) {
	db := setupTestDB(t)
	shop := seedShop(t, db, "Happy Toys", "happytoys.com")
	toys := seedCategory(t, db, "Toys", "toys", nil)
	seedCategory(t, db, "Nursery", "nursery", nil)
	svc := newProductService(db, nil, "")
	ctx := context.Background()

	price := 24.99
	drafts := []ProductDraft{
		{
			Title:       "Wooden Rainbow Stacker",
			Slug:        "wooden-rainbow-stacker",
			Price:       NewOptionalFloat(&price),
			Description: longDescription,
			Images:      []string{"https://cdn.happytoys.com/a.jpg"},
			Filters:     map[string]any{"age": []string{"1 - 3 years"}},
			Categories:  []string{toys.ID.String(), "Toys", "nursery", "unknown"},
		},
		{Title: "Too Short", Description: "short"},
		{Title: "", Description: longDescription},
	}

	report, err := svc.ImportDrafts(ctx, shop.ID, drafts, ImportOptions{WithThread: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 2, report.Skipped)

	res := report.Results[0]
	require.Equal(t, ImportCreated, res.Status)
	assert.Equal(t, 2, res.Linked)
	assert.ElementsMatch(t, []string{"Toys", "Nursery"}, res.Categories)
	require.NotNil(t, res.Thread)
	assert.EqualValues(t, 1, countThreads(t, db, res.Product.ID))
	assert.ErrorIs(t, report.Results[1].Err, ErrDescriptionTooShort)

	stored, err := newCatalog(db).Products.GetByID(ctx, res.Product.ID)
	require.NoError(t, err)
	assert.Equal(t, "24.99", stored.Price.Decimal.StringFixed(2))
	assert.Equal(t, []string{"https://cdn.happytoys.com/a.jpg"}, []string(stored.Images))

	var links int64
	require.NoError(t, db.Model(&model.ProductCategory{}).Where("product_id = ?", res.Product.ID).Count(&links).Error)
	assert.EqualValues(t, 2, links)

	t.Run("重复 slug", func(t *testing.T) {
		again, err := svc.ImportDrafts(ctx, shop.ID, drafts[:1], ImportOptions{WithThread: true})
		require.NoError(t, err)
		assert.Equal(t, 1, again.Exists)
		assert.Nil(t, again.Results[0].Thread)
		require.NotNil(t, again.Results[0].Product, "应返回已有商品")
		assert.Equal(t, res.Product.ID, again.Results[0].Product.ID)

		var n int64
		require.NoError(t, db.Model(&model.ProductThread{}).Count(&n).Error)
		assert.EqualValues(t, 1, n)
	})

	t.Run("放宽描述长度", func(t *testing.T) {
		short := []ProductDraft{{Title: "Tiny Rattle", Description: "Cute rattle"}}
		got, err := svc.ImportDrafts(ctx, shop.ID, short, ImportOptions{MinDescription: 10, Source: SourceRakuten})
		require.NoError(t, err)
		assert.Equal(t, 1, got.Created)
		assert.Nil(t, got.Results[0].Thread)
	})
}

func TestProductService_FixImages(t *testing.T) {
	db := setupTestDB(t)
	shop := seedShop(t, db, "Happy Toys", "happytoys.com")
	p := seedProduct(t, db, shop.ID, productSeed{Title: "Bunny", Slug: "bunny", Images: []string{"https://old/a.jpg"}})
	ctx := context.Background()

	t.Run("没有图片", func(t *testing.T) {
		_, err := newProductService(db, nil, "").FixImages(ctx, p.ID, []string{"", ""}, false)
		assert.ErrorIs(t, err, ErrNoImages)
	})

	t.Run("商品不存在", func(t *testing.T) {
		_, err := newProductService(db, nil, "").FixImages(ctx, uuid.New(), []string{"https://new/a.jpg"}, false)
		assert.ErrorIs(t, err, ErrProductNotFound)
	})

	t.Run("未配置存储", func(t *testing.T) {
		_, err := newProductService(db, nil, "").FixImages(ctx, p.ID, []string{"https://new/a.jpg"}, true)
		assert.ErrorIs(t, err, ErrStorageDisabled)
	})

	t.Run("直接替换并去重", func(t *testing.T) {
		got, err := newProductService(db, nil, "").FixImages(ctx, p.ID, []string{"https://new/a.jpg", "https://new/b.jpg", "https://new/a.jpg"}, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://new/a.jpg", "https://new/b.jpg"}, []string(got.Images))
	})

	t.Run("镜像后替换", func(t *testing.T) {
		svc := newProductService(db, nil, "").WithMirror(&fakeMirror{prefix: "https://cdn.elfbaby.test/"})
		_, err := svc.FixImages(ctx, p.ID, []string{"https://new/c.jpg"}, true)
		require.NoError(t, err)

		stored, err := newCatalog(db).Products.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"https://cdn.elfbaby.test/c.jpg"}, []string(stored.Images))
	})

	t.Run("镜像失败", func(t *testing.T) {
		svc := newProductService(db, nil, "").WithMirror(&fakeMirror{err: errors.New("s3 down")})
		_, err := svc.FixImages(ctx, p.ID, []string{"https://new/d.jpg"}, true)
		assert.Error(t, err)
	})
}

func TestImagesJSON(t *testing.T) {
	assert.Equal(t, filepath.Join("tmp", "images.json"), ResolveImagesPath("images.json"))
	assert.Equal(t, "tmp/images.json", ResolveImagesPath("tmp/images.json"))
	assert.Equal(t, "/abs/images.json", ResolveImagesPath("/abs/images.json"))

	path := filepath.Join(t.TempDir(), "images.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id": "abc", "images": ["https://a/1.jpg"]}`), 0o644))
	f, err := LoadImagesJSON(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", f.ID)
	assert.Equal(t, []string{"https://a/1.jpg"}, f.Images)
}

func TestProductService_List(t *testing.T) {
	db := setupTestDB(t)
	shop := seedShop(t, db, "Happy Toys", "happytoys.com")
	other := seedShop(t, db, "Other", "other.com")
	toys := seedCategory(t, db, "Toys", "toys", nil)
	svc := newProductService(db, nil, "")
	ctx := context.Background()

	now := time.Now()
	train := seedProduct(t, db, shop.ID, productSeed{Title: "Wooden Train", Slug: "wooden-train", CreatedAt: now.Add(-2 * time.Hour)})
	bear := seedProduct(t, db, shop.ID, productSeed{Title: "Soft Bear", Slug: "soft-bear", CreatedAt: now.Add(-time.Hour)})
	hidden := seedProduct(t, db, shop.ID, productSeed{Title: "Hidden Train", Slug: "hidden-train", CreatedAt: now, Inactive: true})
	seedProduct(t, db, other.ID, productSeed{Title: "Other Train", Slug: "other-train"})
	linkCategory(t, db, bear.ID, toys.ID)

	ids := func(products []model.Product) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(products))
		for _, p := range products {
			out = append(out, p.ID)
		}
		return out
	}

	tests := []struct {
		name  string
		query ProductQuery
		want  []uuid.UUID
		total int64
	}{
		{"默认只含上架", ProductQuery{}, []uuid.UUID{bear.ID, train.ID}, 2},
		{"包含下架", ProductQuery{IncludeInactive: true, Keyword: "train"}, []uuid.UUID{hidden.ID, train.ID}, 2},
		{"按分类 slug", ProductQuery{Category: "toys"}, []uuid.UUID{bear.ID}, 1},
		{"分页", ProductQuery{Page: 2, PageSize: 1}, []uuid.UUID{train.ID}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := svc.List(ctx, shop.ID, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.total, total)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	_, _, err := svc.List(ctx, shop.ID, ProductQuery{Category: "nope"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
