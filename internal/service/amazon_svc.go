package service

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"elfbaby/internal/config"
	"elfbaby/internal/model"
	"elfbaby/internal/scraper"
	"elfbaby/pkg/logger"
	"elfbaby/pkg/mdfile"
	"elfbaby/pkg/utils"
)

const (
	DefaultAmazonCycles = 3
	defaultAmazonPages  = 10
	babyToysKeyword     = "baby toys 0-12 months"
)

// AmazonOptions amazon-bestsellers 参数
type AmazonOptions struct {
	AgeGroup string
	Category string
	Keyword  string
	Limit    int
}

// AmazonCycleStatus 单轮结果
type AmazonCycleStatus string

const (
	CycleImported AmazonCycleStatus = "imported"
	CycleSkipped  AmazonCycleStatus = "skipped"
	CycleNotFound AmazonCycleStatus = "not_found"
	CycleFailed   AmazonCycleStatus = "failed"
)

// AmazonCycle 一轮搜索与导入
type AmazonCycle struct {
	Number    int
	Keyword   string
	ASIN      string
	Affiliate string
	Status    AmazonCycleStatus
	Product   *model.Product
	Entry     int
	Err       error
}

// AmazonReport 整体结果
type AmazonReport struct {
	Shop     *model.Shop
	Cycles   []AmazonCycle
	Imported int
}

// AmazonService 畅销商品循环导入
type AmazonService struct {
	shops     *ShopService
	products  *ProductService
	fetcher   PageFetcher
	checklist *mdfile.Checklist
	cfg       config.AmazonConfig
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
	log       *zap.Logger
}

func NewAmazonService(
	shops *ShopService,
	products *ProductService,
	fetcher PageFetcher,
	checklist *mdfile.Checklist,
	cfg config.AmazonConfig,
	log *zap.Logger,
) *AmazonService {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultAmazonPages
	}
	return &AmazonService{
		shops:     shops,
		products:  products,
		fetcher:   fetcher,
		checklist: checklist,
		cfg:       cfg,
		sleep:     utils.Sleep,
		now:       time.Now,
		log:       logger.OrNop(log).Named("amazon"),
	}
}

// ResolveKeyword 仅指定 0-12 月龄时使用婴儿玩具关键词
func ResolveKeyword(opts AmazonOptions) string {
	if opts.Keyword != "" || opts.Category != "" || opts.AgeGroup == "" {
		return opts.Keyword
	}
	age := strings.ToLower(opts.AgeGroup)
	if strings.Contains(age, "0") && strings.Contains(age, "12") {
		return babyToysKeyword
	}
	return ""
}

// AffiliateLink 规范商品地址，配置了 associate tag 时附加 ?tag=
func AffiliateLink(productURL, tag string) string {
	link := scraper.StripQuery(productURL)
	if asin := scraper.ExtractASIN(productURL); asin != "" {
		link = scraper.CleanAmazonURL(asin)
	}
	if tag == "" {
		return link
	}
	return link + "?tag=" + url.QueryEscape(tag)
}

// AmazonDescription 模板描述，保证达到入库最短长度
func AmazonDescription(title string, ageFilters []string, category string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(title))
	sb.WriteString(" is a popular pick from Amazon bestseller searches and a thoughtful gift idea for families.")
	if len(ageFilters) > 0 {
		sb.WriteString(" Suitable for " + strings.Join(ageFilters, ", ") + ".")
	}
	if category != "" {
		sb.WriteString(" Found in " + category + ".")
	}
	sb.WriteString(" Check the product page on Amazon for current price and delivery details before ordering.")
	return sb.String()
}

// Run 执行 opts.Limit 轮：每轮找到一个未处理商品并导入
func (s *AmazonService) Run(ctx context.Context, opts AmazonOptions) (*AmazonReport, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultAmazonCycles
	}
	keyword := ResolveKeyword(opts)
	keywords := scraper.DefaultAmazonKeywords
	if keyword != "" {
		keywords = []string{keyword}
	}

	shop, err := s.shops.FindOrCreateAmazon(ctx, s.cfg.ShopID)
	if err != nil {
		return nil, err
	}
	s.log.Info("使用 Amazon 商家", zap.String("id", shop.ID.String()), zap.String("title", shop.Title))

	report := &AmazonReport{Shop: shop}
	var excluded []string

	for cycle := 1; cycle <= opts.Limit; cycle++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		kw := keywords[(cycle-1)%len(keywords)]
		s.log.Info("开始新一轮", zap.Int("cycle", cycle), zap.Int("limit", opts.Limit), zap.String("keyword", kw))

		c := s.runCycle(ctx, shop, kw, opts, &excluded)
		c.Number = cycle
		report.Cycles = append(report.Cycles, c)
		if c.Status == CycleImported {
			report.Imported++
		}
		if c.Err != nil {
			s.log.Error("本轮失败", zap.Int("cycle", cycle), zap.Error(c.Err))
		}

		if cycle < opts.Limit {
			if err := s.sleep(ctx, s.cfg.CycleDelay); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}

func (s *AmazonService) runCycle(ctx context.Context, shop *model.Shop, keyword string, opts AmazonOptions, excluded *[]string) AmazonCycle {
	c := AmazonCycle{Keyword: keyword}

	processed, err := s.checklist.Read()
	if err != nil {
		c.Status, c.Err = CycleFailed, fmt.Errorf("读取清单失败: %w", err)
		return c
	}

	found, err := s.findProduct(ctx, keyword, opts, *excluded, processed)
	if err != nil {
		c.Status, c.Err = CycleFailed, err
		return c
	}
	if found == nil {
		c.Status = CycleNotFound
		s.log.Warn("没有找到新商品", zap.String("keyword", keyword))
		return c
	}

	c.ASIN = found.ASIN
	c.Affiliate = AffiliateLink(found.URL, s.cfg.AssociateTag)
	if found.ASIN != "" && !slices.Contains(*excluded, found.ASIN) {
		*excluded = append(*excluded, found.ASIN)
	}

	if processed.Has(c.Affiliate) || processed.Has(found.URL) || (found.ASIN != "" && processed.Has(scraper.CleanAmazonURL(found.ASIN))) {
		c.Status = CycleSkipped
		s.log.Info("清单中已存在，跳过", zap.String("url", c.Affiliate))
		return c
	}

	product, entry, err := s.importProduct(ctx, shop, found, c.Affiliate, opts)
	if err != nil {
		c.Status, c.Err = CycleFailed, err
		return c
	}
	if product == nil {
		c.Status = CycleSkipped
		return c
	}
	c.Status, c.Product, c.Entry = CycleImported, product, entry
	return c
}

// findProduct 逐页搜索，全部翻完后回退到畅销榜
func (s *AmazonService) findProduct(ctx context.Context, keyword string, opts AmazonOptions, excluded []string, processed mdfile.URLSet) (*scraper.AmazonProduct, error) {
	for page := 1; page <= s.cfg.MaxPages; page++ {
		if page > 1 {
			if err := s.sleep(ctx, s.cfg.CycleDelay); err != nil {
				return nil, err
			}
		}
		searchURL := scraper.SearchURL(keyword, opts.Category, excluded, page)
		p, err := s.firstProduct(ctx, searchURL, processed)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
		s.log.Info("本页没有新商品", zap.String("keyword", keyword), zap.Int("page", page))
	}

	bestseller := scraper.BestsellerURL(opts.AgeGroup, opts.Category, keyword)
	s.log.Info("搜索页已翻完，尝试畅销榜", zap.String("url", bestseller))
	return s.firstProduct(ctx, bestseller, processed)
}

func (s *AmazonService) firstProduct(ctx context.Context, pageURL string, processed mdfile.URLSet) (*scraper.AmazonProduct, error) {
	html, err := s.fetcher.Fetch(ctx, s.rebase(pageURL))
	if err != nil {
		return nil, fmt.Errorf("抓取 Amazon 页面失败: %w", err)
	}
	products, err := scraper.ExtractAmazonProducts(html, 1, processed.Has)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

// importProduct 抓取商品页并以模板描述、模板文案入库，成功后追加清单
func (s *AmazonService) importProduct(ctx context.Context, shop *model.Shop, found *scraper.AmazonProduct, affiliate string, opts AmazonOptions) (*model.Product, int, error) {
	html, err := s.fetcher.Fetch(ctx, s.rebase(found.URL))
	if err != nil {
		return nil, 0, fmt.Errorf("抓取商品页失败: %w", err)
	}
	draft, err := s.products.DraftFromHTML(ctx, html, found.URL)
	if err != nil {
		return nil, 0, err
	}
	if draft == nil {
		title := found.Title
		if title == "" {
			title = scraper.DefaultAmazonTitle
		}
		draft = &ProductDraft{Title: title, Slug: scraper.GenerateSlug(title)}
	}
	if draft.Title == "" || draft.Title == scraper.DefaultAmazonTitle {
		if found.Title != "" && found.Title != scraper.DefaultAmazonTitle {
			draft.Title = found.Title
			draft.Slug = scraper.GenerateSlug(found.Title)
		}
	}
	draft.URL = affiliate
	if draft.Specifications == nil {
		draft.Specifications = map[string]any{}
	}
	draft.Specifications["asin"] = found.ASIN

	ages := draftAges(draft)
	draft.Description = AmazonDescription(draft.Title, ages, opts.Category)

	report, err := s.products.ImportDrafts(ctx, shop.ID, []ProductDraft{*draft}, ImportOptions{
		Source:     SourceAmazon,
		WithThread: true,
	})
	if err != nil {
		return nil, 0, err
	}
	res := report.Results[0]
	switch res.Status {
	case ImportCreated:
	case ImportExists:
		s.log.Warn("商品已存在", zap.String("slug", res.Slug))
		return nil, 0, nil
	default:
		return nil, 0, fmt.Errorf("导入失败: %w", res.Err)
	}

	category := opts.Category
	if len(res.Categories) > 0 {
		category = strings.Join(res.Categories, ", ")
	}
	entry, err := s.checklist.Append(mdfile.ChecklistEntry{
		Title:      res.Product.Title,
		URL:        affiliate,
		ProductID:  res.Product.ID.String(),
		Date:       s.now(),
		AgeFilters: ages,
		Category:   category,
	})
	if err != nil {
		return res.Product, 0, fmt.Errorf("商品已入库但写入清单失败: %w", err)
	}
	s.log.Info("商品已导入", zap.String("title", res.Product.Title), zap.Int("entry", entry))
	return res.Product, entry, nil
}

// rebase 测试或代理时替换 Amazon 域名
func (s *AmazonService) rebase(u string) string {
	base := strings.TrimRight(s.cfg.BaseURL, "/")
	if base == "" || base == scraper.AmazonOrigin {
		return u
	}
	return strings.Replace(u, scraper.AmazonOrigin, base, 1)
}

func draftAges(d *ProductDraft) []string {
	raw, ok := d.Filters["age"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, a := range v {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
