package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"elfbaby/internal/model"
	"elfbaby/internal/repository"
	"elfbaby/pkg/rakuten"
)

type fakeRakuten struct {
	tokenErr  error
	info      *rakuten.MerchantInfo
	infoErr   error
	products  map[string][]rakuten.Product
	listCalls []rakuten.ListOptions
}

func (f *fakeRakuten) Token() (string, error) {
	return "token", f.tokenErr
}

func (f *fakeRakuten) GetMerchantInfo(ctx context.Context, mid string) (*rakuten.MerchantInfo, error) {
	return f.info, f.infoErr
}

func (f *fakeRakuten) GetAllProducts(ctx context.Context, mid string, opts rakuten.ListOptions) ([]rakuten.Product, error) {
	f.listCalls = append(f.listCalls, opts)
	products, ok := f.products[mid]
	if !ok {
		return nil, rakuten.ErrNoProducts
	}
	if opts.MaxProducts > 0 && len(products) > opts.MaxProducts {
		products = products[:opts.MaxProducts]
	}
	return products, nil
}

func newRakutenService(db *gorm.DB, api RakutenAPI) *RakutenService {
	return NewRakutenService(
		api,
		repository.NewShopRepository(db),
		repository.NewCategoryRepository(db),
		NewProductService(newCatalog(db), nil, "", nil),
		nil,
	)
}

func TestConvertProduct(t *testing.T) {
	t.Run("完整字段", func(t *testing.T) {
		d := ConvertProduct(rakuten.Product{
			ProductName:       "Organic Cotton Romper",
			ProductURL:        "https://click.linksynergy.com/link?id=1",
			ImageURL:          "https://img.example.com/romper.jpg",
			Price:             "29.95",
			MerchantProductID: "MP-1",
			SKU:               "SKU-1",
			Manufacturer:      "Little Co",
			Category:          "Baby Clothing",
			InStock:           "1",
			Description:       "Soft organic cotton romper for newborns.",
		}, []string{"c1"})

		assert.Equal(t, "organic-cotton-romper", d.Slug)
		assert.True(t, d.Price.Valid)
		assert.InDelta(t, 29.95, d.Price.Value, 0.001)
		assert.Equal(t, []string{"https://img.example.com/romper.jpg"}, d.Images)
		assert.Equal(t, "SKU-1", d.Specifications["sku"])
		assert.Equal(t, "Little Co", d.Specifications["manufacturer"])
		assert.Equal(t, true, d.Specifications["instock"])
		assert.Equal(t, "Soft organic cotton romper for newborns.", d.Description)
		assert.Equal(t, []string{"c1"}, d.Categories)
	})

	t.Run("价格带货币后缀", func(t *testing.T) {
		d := ConvertProduct(rakuten.Product{ProductName: "Teether", Price: "12.99 USD"}, nil)
		require.True(t, d.Price.Valid)
		assert.InDelta(t, 12.99, d.Price.Value, 0.001)
	})

	t.Run("缺省字段与兜底描述", func(t *testing.T) {
		d := ConvertProduct(rakuten.Product{MerchantProductID: "MP-2", InStock: "0", Price: "n/a", Description: "short"}, nil)

		assert.Equal(t, unknownProductTitle, d.Title)
		assert.Equal(t, "unknown-product", d.Slug)
		assert.False(t, d.Price.Valid)
		assert.Empty(t, d.Images)
		assert.Equal(t, "MP-2", d.Specifications["sku"])
		assert.Nil(t, d.Specifications["manufacturer"])
		assert.Nil(t, d.Specifications["category"])
		assert.Equal(t, false, d.Specifications["instock"])
		assert.Equal(t, "Unknown Product. Stock status: Out of stock.", d.Description)
	})
}

func TestRakutenDescription(t *testing.T) {
	got := RakutenDescription("Romper", "Little Co", "Baby", true)
	assert.Equal(t, "Romper. Manufactured by Little Co. Category: Baby. Stock status: Currently in stock.", got)
}

func TestParseIndexes(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  []int
	}{
		{"1,3,5", 5, []int{1, 3, 5}},
		{" 2 , x, 0, 9", 3, []int{2}},
		{"", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIndexes(tt.input, tt.n))
		})
	}
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "shop.example.com", NormalizeDomain(" https://www.Shop.example.com/path?q=1 "))
	assert.Equal(t, "example.com", NormalizeDomain("http://example.com"))
	assert.Equal(t, "", NormalizeDomain("  "))
}

func TestRakutenService_CreateShop(t *testing.T) {
	db := setupTestDB(t)
	api := &fakeRakuten{info: &rakuten.MerchantInfo{MID: "42", MerchantName: "Little Co"}}
	svc := newRakutenService(db, api)
	ctx := context.Background()

	require.NoError(t, svc.Connect())

	shop, err := svc.FindShop(ctx, "42")
	require.NoError(t, err)
	assert.Nil(t, shop)

	info, err := svc.MerchantInfo(ctx, "42")
	require.NoError(t, err)

	t.Run("缺少域名", func(t *testing.T) {
		_, err := svc.CreateShop(ctx, info, RakutenShopInput{MID: "42"})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("新建商家", func(t *testing.T) {
		created, err := svc.CreateShop(ctx, info, RakutenShopInput{MID: "42", Domain: "https://www.littleco.com"})
		require.NoError(t, err)
		assert.Equal(t, "littleco.com", created.Domain)
		assert.Equal(t, "Little Co", created.Title)
		assert.Equal(t, "Merchant from Rakuten Advertising with MID 42", created.Description)
		assert.Equal(t, defaultShopCategory, created.Category)

		found, err := svc.FindShop(ctx, "42")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("域名已存在时绑定 MID", func(t *testing.T) {
		existing := seedShop(t, db, "Baby World", "babyworld.com")
		got, err := svc.CreateShop(ctx, info, RakutenShopInput{MID: "77", Domain: "babyworld.com", Description: "desc"})
		require.NoError(t, err)
		assert.Equal(t, existing.ID, got.ID)
		require.NotNil(t, got.RakutenMID)
		assert.Equal(t, "77", *got.RakutenMID)
	})
}

func TestRakutenService_MerchantInfo_NotApproved(t *testing.T) {
	db := setupTestDB(t)
	svc := newRakutenService(db, &fakeRakuten{infoErr: rakuten.ErrNotApproved, tokenErr: errors.New("bad credentials")})

	assert.Error(t, svc.Connect())
	_, err := svc.MerchantInfo(context.Background(), "42")
	assert.ErrorIs(t, err, rakuten.ErrNotApproved)
}

func TestRakutenService_ImportProducts(t *testing.T) {
	db := setupTestDB(t)
	mid := "42"
	shop := seedShop(t, db, "Little Co", "littleco.com")
	require.NoError(t, db.Model(shop).Update("rakuten_mid", mid).Error)
	seedCategory(t, db, "Toys", "toys", nil)
	clothing := seedCategory(t, db, "Clothing", "clothing", nil)

	api := &fakeRakuten{products: map[string][]rakuten.Product{
		mid: {
			{ProductName: "Organic Romper", MerchantProductID: "1", InStock: "1", Price: "19.50"},
			{ProductName: "Knitted Hat", MerchantProductID: "2", InStock: "true", Manufacturer: "Little Co"},
		},
	}}
	svc := newRakutenService(db, api)
	ctx := context.Background()

	categories, err := svc.Categories(ctx)
	require.NoError(t, err)
	selected := SelectCategories(categories, "1, 1, 7")
	assert.Equal(t, []string{clothing.ID.String()}, selected)

	products, err := svc.FetchProducts(ctx, mid, 0)
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.NotNil(t, api.listCalls[0].InStock)
	assert.True(t, *api.listCalls[0].InStock)

	report, err := svc.ImportProducts(ctx, shop, products, selected)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	for _, res := range report.Results {
		require.NotNil(t, res.Thread)
		assert.Equal(t, []string{"Clothing"}, res.Categories)
	}

	var romper model.Product
	require.NoError(t, db.Where("slug = ?", "organic-romper").First(&romper).Error)
	assert.Equal(t, "Organic Romper. Stock status: Currently in stock.", romper.Description)
	require.True(t, romper.Price.Valid)
	assert.InDelta(t, 19.5, romper.Price.Decimal.InexactFloat64(), 0.001)
}

func TestRakutenService_Sync(t *testing.T) {
	db := setupTestDB(t)
	a := seedShop(t, db, "Little Co", "littleco.com")
	require.NoError(t, db.Model(a).Update("rakuten_mid", "42").Error)
	b := seedShop(t, db, "Gone Co", "gone.com")
	require.NoError(t, db.Model(b).Update("rakuten_mid", "99").Error)
	seedShop(t, db, "Plain", "plain.com")

	api := &fakeRakuten{products: map[string][]rakuten.Product{
		"42": {
			{ProductName: "Organic Romper", MerchantProductID: "1", InStock: "1"},
			{ProductName: "Knitted Hat", MerchantProductID: "2", InStock: "1"},
			{ProductName: "Booties", MerchantProductID: "3", InStock: "1"},
		},
	}}
	svc := newRakutenService(db, api)
	ctx := context.Background()

	byTitle := func(results []RakutenSyncResult) map[string]RakutenSyncResult {
		out := make(map[string]RakutenSyncResult, len(results))
		for _, r := range results {
			out[r.Shop.Title] = r
		}
		return out
	}

	results, err := svc.Sync(ctx, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	got := byTitle(results)
	assert.Equal(t, 2, got["Little Co"].Fetched)
	require.NotNil(t, got["Little Co"].Report)
	assert.Equal(t, 2, got["Little Co"].Report.Created)
	assert.ErrorIs(t, got["Gone Co"].Err, rakuten.ErrNoProducts)

	again, err := svc.Sync(ctx, 2)
	require.NoError(t, err)
	second := byTitle(again)["Little Co"]
	require.NotNil(t, second.Report)
	assert.Equal(t, 0, second.Report.Created)
	assert.Equal(t, 2, second.Report.Exists)

	var n int64
	require.NoError(t, db.Model(&model.Product{}).Where("shop_id = ?", a.ID).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}
