package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"elfbaby/internal/api/dto"
	"elfbaby/internal/model"
	"elfbaby/internal/repository"
	"elfbaby/internal/scraper"
	"elfbaby/pkg/logger"
	"elfbaby/pkg/mdfile"
)

// ErrShopExists 域名已存在
var ErrShopExists = errors.New("商家已存在")

const (
	defaultShopCategory = "General"
	amazonDomain        = "amazon.com"
	amazonTitle         = "Amazon"
)

// ==================== 接口定义 ====================

// PageFetcher 抓取页面 HTML（utils.ScrapeClient 实现）
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ==================== 输入输出 ====================

// CreateShopInput new-shop 入参
type CreateShopInput struct {
	URL         string
	Description string
	Category    string
	Info        *scraper.ShopInfo
}

// CreateShopResult 创建结果
type CreateShopResult struct {
	Shop             *model.Shop
	AddedCategories  []string
	ShortDescription bool
}

// ==================== 服务 ====================

// ShopService 商家查找与创建
type ShopService struct {
	repo           repository.ShopRepository
	fetcher        PageFetcher
	categoriesFile string
	log            *zap.Logger
}

func NewShopService(repo repository.ShopRepository, fetcher PageFetcher, categoriesFile string, log *zap.Logger) *ShopService {
	return &ShopService{
		repo:           repo,
		fetcher:        fetcher,
		categoriesFile: categoriesFile,
		log:            logger.OrNop(log).Named("shop"),
	}
}

// Resolve 依次按活跃域名、ID、标题（不区分大小写的子串）查找
func (s *ShopService) Resolve(ctx context.Context, identifier string) (*model.Shop, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("%w: 标识为空", ErrShopNotFound)
	}

	shop, err := s.repo.GetActiveByDomain(ctx, identifier)
	if err == nil {
		return shop, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("按域名查询商家失败: %w", err)
	}

	if id, parseErr := uuid.Parse(identifier); parseErr == nil {
		shop, err = s.repo.GetByID(ctx, id)
		if err == nil && shop.Active {
			return shop, nil
		}
		if err != nil && !isNotFound(err) {
			return nil, fmt.Errorf("按 ID 查询商家失败: %w", err)
		}
	}

	shop, err = s.repo.FindActiveByTitle(ctx, identifier)
	if err == nil {
		return shop, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("按标题查询商家失败: %w", err)
	}
	return nil, fmt.Errorf("%w: %s，请检查域名、ID 或标题", ErrShopNotFound, identifier)
}

// Inspect 抓取首页并提取商家信息
func (s *ShopService) Inspect(ctx context.Context, url string) (*scraper.ShopInfo, error) {
	url = scraper.EnsureScheme(strings.TrimSpace(url))
	html, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("抓取商家首页失败: %w", err)
	}
	info, err := scraper.ExtractShopInfo(html, url)
	if err != nil {
		return nil, fmt.Errorf("解析商家首页失败: %w", err)
	}
	if info.Domain == "" {
		info.Domain = scraper.ExtractDomain(url)
	}
	return info, nil
}

// Create 写入商家，并把提取到的分类合并进 categories.md
func (s *ShopService) Create(ctx context.Context, in CreateShopInput) (*CreateShopResult, error) {
	info := in.Info
	if info == nil {
		info = &scraper.ShopInfo{}
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return nil, fmt.Errorf("缺少商家描述")
	}

	title := info.Title
	if title == "" {
		title = "Unknown Shop"
	}
	domain := info.Domain
	if domain == "" {
		domain = scraper.ExtractDomain(in.URL)
	}
	if domain == "" {
		return nil, fmt.Errorf("无法确定商家域名: %s", in.URL)
	}
	category := strings.TrimSpace(in.Category)
	if category == "" && len(info.Categories) > 0 {
		category = info.Categories[0]
	}
	if category == "" {
		category = defaultShopCategory
	}
	markets := info.Markets
	if len(markets) == 0 {
		markets = model.DefaultMarkets
	}
	shipping := info.Shipping
	if shipping == "" {
		shipping = "Shipping information not available"
	}

	result := &CreateShopResult{ShortDescription: utf8.RuneCountInString(desc) < MinDescriptionLength}
	if result.ShortDescription {
		s.log.Warn("商家描述少于推荐长度", zap.Int("length", utf8.RuneCountInString(desc)), zap.Int("recommended", MinDescriptionLength))
	}

	if len(info.Categories) > 0 && s.categoriesFile != "" {
		added, err := mdfile.MergeCategories(s.categoriesFile, info.Categories)
		if err != nil {
			// 分类文件写失败不影响入库
			s.log.Error("更新分类文件失败", zap.String("path", s.categoriesFile), zap.Error(err))
		} else {
			result.AddedCategories = added
		}
	}

	shop := &model.Shop{
		Title:       title,
		Description: desc,
		Logo:        info.Logo,
		Domain:      domain,
		Category:    category,
		Markets:     pq.StringArray(markets),
		Shipping:    model.NewShippingJSON(shipping),
		Active:      true,
	}
	if err := s.repo.Create(ctx, shop); err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("%w: %s", ErrShopExists, domain)
		}
		return nil, fmt.Errorf("写入商家失败: %w", err)
	}
	result.Shop = shop
	s.log.Info("商家已创建", zap.String("id", shop.ID.String()), zap.String("domain", shop.Domain))
	return result, nil
}

// FindOrCreateAmazon 按配置 ID、amazon.com 域名、标题查找 Amazon 商家，找不到则创建；停用的会被重新启用
func (s *ShopService) FindOrCreateAmazon(ctx context.Context, configuredID string) (*model.Shop, error) {
	shop, err := s.findAmazon(ctx, configuredID)
	if err != nil {
		return nil, err
	}

	if shop != nil {
		if !shop.Active {
			if err := s.repo.UpdateFields(ctx, shop.ID, map[string]interface{}{"active": true}); err != nil {
				return nil, fmt.Errorf("启用 Amazon 商家失败: %w", err)
			}
			shop.Active = true
			s.log.Info("已启用 Amazon 商家", zap.String("id", shop.ID.String()))
		}
		return shop, nil
	}

	shop = &model.Shop{
		Title:       amazonTitle,
		Description: "Amazon.com is the world's largest online retailer, offering millions of products across various categories including baby products, toys, electronics, and more.",
		Domain:      amazonDomain,
		Logo:        scraper.AmazonOrigin + "/favicon.ico",
		Markets:     pq.StringArray{"usa", "europe", "america"},
		Category:    defaultShopCategory,
		Shipping:    model.NewShippingJSON("Shipping varies by product and location. Check individual product pages for shipping details."),
		Active:      true,
	}
	if id, err := uuid.Parse(configuredID); err == nil {
		shop.ID = id
	}
	if err := s.repo.Create(ctx, shop); err != nil {
		return nil, fmt.Errorf("创建 Amazon 商家失败: %w", err)
	}
	s.log.Info("已创建 Amazon 商家", zap.String("id", shop.ID.String()))
	return shop, nil
}

func (s *ShopService) findAmazon(ctx context.Context, configuredID string) (*model.Shop, error) {
	lookups := []func() (*model.Shop, error){
		func() (*model.Shop, error) {
			id, err := uuid.Parse(configuredID)
			if err != nil {
				return nil, nil
			}
			return s.repo.GetByID(ctx, id)
		},
		func() (*model.Shop, error) { return s.repo.GetByDomain(ctx, amazonDomain) },
		func() (*model.Shop, error) { return s.repo.FindByTitle(ctx, amazonTitle) },
	}
	for _, lookup := range lookups {
		shop, err := lookup()
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("查询 Amazon 商家失败: %w", err)
		}
		if shop != nil {
			return shop, nil
		}
	}
	return nil, nil
}

// List 商家列表
func (s *ShopService) List(ctx context.Context, req dto.ShopListReq, activeOnly bool) (*dto.ShopListResp, error) {
	shops, total, err := s.repo.List(ctx, repository.ShopFilter{
		ActiveOnly: activeOnly,
		Keyword:    req.Keyword,
		Page:       req.Page,
		PageSize:   req.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("查询商家列表失败: %w", err)
	}

	resp := &dto.ShopListResp{Total: total, List: make([]dto.ShopResp, 0, len(shops))}
	for i := range shops {
		resp.List = append(resp.List, dto.ToShopResp(&shops[i]))
	}
	return resp, nil
}
