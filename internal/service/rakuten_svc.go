package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"elfbaby/internal/model"
	"elfbaby/internal/repository"
	"elfbaby/internal/scraper"
	"elfbaby/pkg/logger"
	"elfbaby/pkg/rakuten"
)

const (
	// RakutenMinDescription 联盟商品描述通常很短，入库门槛放宽
	RakutenMinDescription = 10
	unknownProductTitle   = "Unknown Product"
)

// RakutenAPI rakuten.Client 的最小接口
type RakutenAPI interface {
	Token() (string, error)
	GetMerchantInfo(ctx context.Context, mid string) (*rakuten.MerchantInfo, error)
	GetAllProducts(ctx context.Context, mid string, opts rakuten.ListOptions) ([]rakuten.Product, error)
}

// RakutenShopInput 从商家信息创建商家
type RakutenShopInput struct {
	MID         string
	Domain      string
	Description string
}

// RakutenSyncResult 定时同步单个商家的结果
type RakutenSyncResult struct {
	Shop    *model.Shop
	Fetched int
	Report  *ImportReport
	Err     error
}

// RakutenService Rakuten Advertising 商品导入
type RakutenService struct {
	api        RakutenAPI
	shops      repository.ShopRepository
	categories repository.CategoryRepository
	products   *ProductService
	log        *zap.Logger
}

func NewRakutenService(
	api RakutenAPI,
	shops repository.ShopRepository,
	categories repository.CategoryRepository,
	products *ProductService,
	log *zap.Logger,
) *RakutenService {
	return &RakutenService{
		api:        api,
		shops:      shops,
		categories: categories,
		products:   products,
		log:        logger.OrNop(log).Named("rakuten"),
	}
}

// Connect 预先获取令牌，尽早暴露凭证问题
func (s *RakutenService) Connect() error {
	if _, err := s.api.Token(); err != nil {
		return err
	}
	s.log.Info("已连接 Rakuten API")
	return nil
}

// FindShop 按 MID 查找活跃商家，不存在返回 nil
func (s *RakutenService) FindShop(ctx context.Context, mid string) (*model.Shop, error) {
	shop, err := s.shops.GetActiveByRakutenMID(ctx, mid)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("按 MID 查询商家失败: %w", err)
	}
	return shop, nil
}

// MerchantInfo 商家信息
func (s *RakutenService) MerchantInfo(ctx context.Context, mid string) (*rakuten.MerchantInfo, error) {
	info, err := s.api.GetMerchantInfo(ctx, mid)
	if err != nil {
		if errors.Is(err, rakuten.ErrNotApproved) {
			return nil, fmt.Errorf("商家 MID %s 尚未批准联盟合作，请在 Rakuten 后台确认合作状态: %w", mid, err)
		}
		return nil, fmt.Errorf("获取商家信息失败: %w", err)
	}
	return info, nil
}

// CreateShop 以商家信息创建商家；域名已存在时给原商家补上 MID
func (s *RakutenService) CreateShop(ctx context.Context, info *rakuten.MerchantInfo, in RakutenShopInput) (*model.Shop, error) {
	domain := NormalizeDomain(in.Domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: 缺少商家域名", ErrInvalidArgument)
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		desc = "Merchant from Rakuten Advertising with MID " + in.MID
	}
	category := info.MerchantCategoryPath
	if category == "" {
		category = defaultShopCategory
	}
	mid := in.MID

	shop := &model.Shop{
		Title:       info.MerchantName,
		Description: desc,
		Domain:      domain,
		Category:    category,
		Markets:     pq.StringArray(model.DefaultMarkets),
		Active:      true,
		RakutenMID:  &mid,
	}
	err := s.shops.Create(ctx, shop)
	if err == nil {
		s.log.Info("商家已创建", zap.String("id", shop.ID.String()), zap.String("title", shop.Title))
		return shop, nil
	}
	if !isDuplicate(err) {
		return nil, fmt.Errorf("创建商家失败: %w", err)
	}

	if err := s.shops.UpdateFieldsByDomain(ctx, domain, map[string]interface{}{"rakuten_mid": mid}); err != nil {
		return nil, fmt.Errorf("更新商家 MID 失败: %w", err)
	}
	existing, err := s.shops.GetByDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("查询已有商家失败: %w", err)
	}
	s.log.Info("已为已有商家绑定 MID", zap.String("title", existing.Title), zap.String("mid", mid))
	return existing, nil
}

// FetchProducts 拉取有货商品，max <= 0 表示全部
func (s *RakutenService) FetchProducts(ctx context.Context, mid string, max int) ([]rakuten.Product, error) {
	inStock := true
	products, err := s.api.GetAllProducts(ctx, mid, rakuten.ListOptions{InStock: &inStock, MaxProducts: max})
	if err != nil {
		return nil, fmt.Errorf("拉取商品失败: %w", err)
	}
	return products, nil
}

// Categories 可选分类（按标题排序，编号从 1 开始）
func (s *RakutenService) Categories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.categories.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询分类失败: %w", err)
	}
	return categories, nil
}

// ParseIndexes 解析 "1,3,5"，丢弃非数字和越界编号
func ParseIndexes(input string, n int) []int {
	var out []int
	for _, part := range strings.Split(input, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || i <= 0 || i > n {
			continue
		}
		out = append(out, i)
	}
	return out
}

// SelectCategories 按编号取分类 ID
func SelectCategories(categories []model.Category, input string) []string {
	var ids []string
	for _, i := range ParseIndexes(input, len(categories)) {
		ids = append(ids, categories[i-1].ID.String())
	}
	return dedupStrings(ids)
}

// NormalizeDomain 去掉协议、www. 和路径
func NormalizeDomain(raw string) string {
	d := strings.TrimSpace(raw)
	d = strings.TrimPrefix(strings.TrimPrefix(d, "https://"), "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.ToLower(d)
}

// ConvertProduct 转为入库草稿；描述过短时按商品字段拼接
func ConvertProduct(p rakuten.Product, categories []string) ProductDraft {
	title := strings.TrimSpace(p.ProductName)
	if title == "" {
		title = unknownProductTitle
	}
	inStock := p.InStock == "1" || p.InStock == "true"
	sku := p.SKU
	if sku == "" {
		sku = p.MerchantProductID
	}

	d := ProductDraft{
		Title:       title,
		Slug:        scraper.GenerateSlug(title),
		URL:         p.ProductURL,
		Description: p.Description,
		Specifications: map[string]any{
			"merchantproductid": p.MerchantProductID,
			"sku":               sku,
			"manufacturer":      nullableString(p.Manufacturer),
			"category":          nullableString(p.Category),
			"instock":           inStock,
		},
		Images:     []string{},
		Filters:    map[string]any{},
		Categories: categories,
	}
	if p.ImageURL != "" {
		d.Images = []string{p.ImageURL}
	}
	if v, ok := scraper.LeadingFloat(p.Price); ok {
		d.Price = OptionalFloat{Value: v, Valid: true}
	}
	if len([]rune(strings.TrimSpace(d.Description))) < RakutenMinDescription {
		d.Description = RakutenDescription(title, p.Manufacturer, p.Category, inStock)
	}
	return d
}

// RakutenDescription 兜底描述
func RakutenDescription(title, manufacturer, category string, inStock bool) string {
	var sb strings.Builder
	sb.WriteString(title + ". ")
	if manufacturer != "" {
		sb.WriteString("Manufactured by " + manufacturer + ". ")
	}
	if category != "" {
		sb.WriteString("Category: " + category + ". ")
	}
	if inStock {
		sb.WriteString("Stock status: Currently in stock.")
	} else {
		sb.WriteString("Stock status: Out of stock.")
	}
	return sb.String()
}

// ImportProducts 转换并逐个入库，每个新商品附一条模板文案
func (s *RakutenService) ImportProducts(ctx context.Context, shop *model.Shop, products []rakuten.Product, categories []string) (*ImportReport, error) {
	drafts := make([]ProductDraft, 0, len(products))
	for _, p := range products {
		drafts = append(drafts, ConvertProduct(p, categories))
	}
	return s.products.ImportDrafts(ctx, shop.ID, drafts, ImportOptions{
		MinDescription: RakutenMinDescription,
		Source:         SourceRakuten,
		WithThread:     true,
	})
}

// Sync 所有绑定 MID 的商家各拉取 max 个有货商品入库；单个商家失败不影响其它
func (s *RakutenService) Sync(ctx context.Context, max int) ([]RakutenSyncResult, error) {
	shops, err := s.shops.ListRakutenShops(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询 Rakuten 商家失败: %w", err)
	}

	results := make([]RakutenSyncResult, 0, len(shops))
	for i := range shops {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		shop := &shops[i]
		res := RakutenSyncResult{Shop: shop}

		products, err := s.FetchProducts(ctx, *shop.RakutenMID, max)
		if err != nil {
			res.Err = err
			s.log.Error("同步商家失败", zap.String("shop", shop.Title), zap.Error(err))
			results = append(results, res)
			continue
		}
		res.Fetched = len(products)

		report, err := s.ImportProducts(ctx, shop, products, nil)
		if err != nil {
			res.Err = err
			s.log.Error("同步商家失败", zap.String("shop", shop.Title), zap.Error(err))
		} else {
			res.Report = report
			s.log.Info("商家同步完成",
				zap.String("shop", shop.Title),
				zap.Int("fetched", res.Fetched),
				zap.Int("created", report.Created),
				zap.Int("exists", report.Exists),
			)
		}
		results = append(results, res)
	}
	return results, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
