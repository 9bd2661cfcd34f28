package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"elfbaby/internal/metrics"
	"elfbaby/internal/model"
	"elfbaby/internal/repository"
	"elfbaby/internal/scraper"
	"elfbaby/pkg/logger"
	"elfbaby/pkg/mdfile"
)

const (
	// MinDescriptionLength 入库要求的最短描述
	MinDescriptionLength = 100
	// DefaultDiscoverLimit 首页发现商品链接的默认数量
	DefaultDiscoverLimit = 10

	exportTextLimit = 2000
	imagesTmpDir    = "tmp"
)

// 导入来源，用于指标标签
const (
	SourceScrape  = "scrape"
	SourceJSON    = "json"
	SourceAmazon  = "amazon"
	SourceRakuten = "rakuten"
)

// ==================== 接口定义 ====================

// DescriptionGenerator AI 描述生成
type DescriptionGenerator interface {
	GenerateDescription(ctx context.Context, title, textContent string) (string, error)
}

// ImageMirror 图片镜像
type ImageMirror interface {
	MirrorImages(ctx context.Context, images []string) ([]string, error)
}

// ==================== 草稿结构 ====================

// OptionalFloat JSON 中的价格：数字、数字字符串或 null
type OptionalFloat struct {
	Value float64
	Valid bool
}

func NewOptionalFloat(p *float64) OptionalFloat {
	if p == nil {
		return OptionalFloat{}
	}
	return OptionalFloat{Value: *p, Valid: true}
}

func (f *OptionalFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = OptionalFloat{}
		return nil
	}
	s = strings.Trim(s, `"`)
	v, ok := scraper.LeadingFloat(strings.ReplaceAll(s, ",", "."))
	if !ok {
		// 无法解析的价格按未知处理
		*f = OptionalFloat{}
		return nil
	}
	*f = OptionalFloat{Value: v, Valid: true}
	return nil
}

func (f OptionalFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// ProductDraft 待入库商品，也是 products-temp.json 的条目格式
type ProductDraft struct {
	Title          string         `json:"title"`
	URL            string         `json:"url"`
	Slug           string         `json:"slug"`
	Price          OptionalFloat  `json:"price"`
	Description    string         `json:"description"`
	Specifications map[string]any `json:"specifications"`
	Images         []string       `json:"images"`
	Filters        map[string]any `json:"filters"`
	// Categories 分类 ID；从 JSON 读取时也接受分类标题或 slug
	Categories  []string `json:"categories"`
	TextContent string   `json:"textContent,omitempty"`
}

// ImportStatus 单个草稿的导入结果
type ImportStatus string

const (
	ImportCreated ImportStatus = "created"
	ImportExists  ImportStatus = "exists"
	ImportSkipped ImportStatus = "skipped"
	ImportFailed  ImportStatus = "failed"
)

// ImportOptions 导入参数
type ImportOptions struct {
	MinDescription int
	Source         string
	// WithThread 为每个新商品生成一条模板文案
	WithThread bool
}

// ImportResult 单个草稿结果
type ImportResult struct {
	Title   string
	Slug    string
	Status  ImportStatus
	Product *model.Product
	Thread  *model.ProductThread
	Linked  int
	// Categories 关联的分类标题
	Categories []string
	Err        error
}

// ImportReport 批量导入汇总
type ImportReport struct {
	Results []ImportResult
	Created int
	Exists  int
	Skipped int
	Failed  int
}

func (r *ImportReport) add(res ImportResult) {
	r.Results = append(r.Results, res)
	switch res.Status {
	case ImportCreated:
		r.Created++
	case ImportExists:
		r.Exists++
	case ImportSkipped:
		r.Skipped++
	case ImportFailed:
		r.Failed++
	}
}

// ImagesFile fix-product-images 的 JSON 输入
type ImagesFile struct {
	ID     string   `json:"id"`
	Images []string `json:"images"`
}

// ==================== 服务 ====================

// ProductService 商品抓取、草稿与入库
type ProductService struct {
	uow         *repository.CatalogUnitOfWork
	fetcher     PageFetcher
	describer   DescriptionGenerator
	mirror      ImageMirror
	filtersFile string
	log         *zap.Logger
}

func NewProductService(uow *repository.CatalogUnitOfWork, fetcher PageFetcher, filtersFile string, log *zap.Logger) *ProductService {
	return &ProductService{
		uow:         uow,
		fetcher:     fetcher,
		filtersFile: filtersFile,
		log:         logger.OrNop(log).Named("importer"),
	}
}

// WithDescriber 启用 AI 描述
func (s *ProductService) WithDescriber(d DescriptionGenerator) *ProductService {
	s.describer = d
	return s
}

// WithMirror 启用图片镜像
func (s *ProductService) WithMirror(m ImageMirror) *ProductService {
	s.mirror = m
	return s
}

// ==================== 抓取 ====================

// DiscoverURLs 在商家首页查找商品链接
func (s *ProductService) DiscoverURLs(ctx context.Context, shop *model.Shop, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultDiscoverLimit
	}
	home := scraper.EnsureScheme(shop.Domain)
	html, err := s.fetcher.Fetch(ctx, home)
	if err != nil {
		return nil, fmt.Errorf("抓取商家首页失败: %w", err)
	}
	return scraper.FindProductLinks(html, home, limit)
}

// draftContext 抓取时共享的分类与年龄筛选
type draftContext struct {
	categories []model.Category
	ageFilters []string
}

func (s *ProductService) loadDraftContext(ctx context.Context) (*draftContext, error) {
	categories, err := s.uow.Categories.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询分类失败: %w", err)
	}
	filters, err := mdfile.ReadFilters(s.filtersFile)
	if err != nil {
		s.log.Warn("读取 filters 文件失败", zap.String("path", s.filtersFile), zap.Error(err))
	}
	return &draftContext{categories: categories, ageFilters: filters}, nil
}

// ScrapeDrafts 逐个抓取商品页；单个失败记录日志后继续
func (s *ProductService) ScrapeDrafts(ctx context.Context, urls []string) ([]ProductDraft, error) {
	dc, err := s.loadDraftContext(ctx)
	if err != nil {
		return nil, err
	}

	var drafts []ProductDraft
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return drafts, err
		}
		s.log.Info("处理商品", zap.Int("index", i+1), zap.Int("total", len(urls)), zap.String("url", u))

		draft, err := s.scrapeDraft(ctx, u, dc)
		if err != nil {
			s.log.Error("处理商品失败", zap.String("url", u), zap.Error(err))
			continue
		}
		if draft == nil {
			s.log.Warn("未提取到标题，跳过", zap.String("url", u))
			continue
		}
		drafts = append(drafts, *draft)
		s.log.Info("提取完成",
			zap.String("title", draft.Title),
			zap.Bool("price", draft.Price.Valid),
			zap.Int("images", len(draft.Images)),
			zap.Int("categories", len(draft.Categories)),
		)
	}
	return drafts, nil
}

// ScrapeDraft 抓取单个商品页，标题为空时返回 nil
func (s *ProductService) ScrapeDraft(ctx context.Context, url string) (*ProductDraft, error) {
	dc, err := s.loadDraftContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.scrapeDraft(ctx, url, dc)
}

// DraftFromHTML 使用已抓取的页面构造草稿（Amazon 使用独立的抓取客户端）
func (s *ProductService) DraftFromHTML(ctx context.Context, html, url string) (*ProductDraft, error) {
	dc, err := s.loadDraftContext(ctx)
	if err != nil {
		return nil, err
	}
	return buildDraft(html, url, dc)
}

func (s *ProductService) scrapeDraft(ctx context.Context, url string, dc *draftContext) (*ProductDraft, error) {
	html, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return buildDraft(html, url, dc)
}

func buildDraft(html, url string, dc *draftContext) (*ProductDraft, error) {
	info, err := scraper.ExtractProductInfo(html, url)
	if err != nil {
		return nil, err
	}
	if info.Title == "" {
		return nil, nil
	}

	ids := scraper.MatchCategories(info.Title, info.TextContent, dc.categories)
	categories := make([]string, len(ids))
	for i, id := range ids {
		categories[i] = id.String()
	}

	filters := map[string]any{}
	if ages := scraper.DetermineAgeFilters(info.Title, info.TextContent, dc.ageFilters); len(ages) > 0 {
		filters["age"] = ages
	}

	specs := make(map[string]any, len(info.Specifications))
	for k, v := range info.Specifications {
		specs[k] = v
	}

	images := info.Images
	if images == nil {
		images = []string{}
	}

	return &ProductDraft{
		Title:          info.Title,
		URL:            url,
		Slug:           scraper.GenerateSlug(info.Title),
		Price:          NewOptionalFloat(info.Price),
		Specifications: specs,
		Images:         images,
		Filters:        filters,
		Categories:     categories,
		TextContent:    info.TextContent,
	}, nil
}

// ==================== JSON 草稿 ====================

// ExportDrafts 写出待补描述的草稿，正文截到 2000 字符
func (s *ProductService) ExportDrafts(path string, drafts []ProductDraft) error {
	out := make([]ProductDraft, len(drafts))
	for i, d := range drafts {
		d.TextContent = scraper.Truncate(d.TextContent, exportTextLimit)
		d.Description = ""
		out[i] = d
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化草稿失败: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	s.log.Info("草稿已保存", zap.String("path", path), zap.Int("products", len(out)))
	return nil
}

// LoadDraftsJSON 读取草稿：补全 slug，分类去重
func (s *ProductService) LoadDraftsJSON(path string) ([]ProductDraft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 JSON 文件失败: %w", err)
	}
	var drafts []ProductDraft
	if err := json.Unmarshal(data, &drafts); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidJSON, path, err)
	}

	for i := range drafts {
		d := &drafts[i]
		if d.Slug == "" {
			d.Slug = scraper.GenerateSlug(d.Title)
		}
		unique := dedupStrings(d.Categories)
		if removed := len(d.Categories) - len(unique); removed > 0 {
			s.log.Warn("移除重复分类", zap.String("title", d.Title), zap.Int("removed", removed))
		}
		d.Categories = unique
	}
	return drafts, nil
}

// GenerateDescriptions 为缺少描述的草稿调用 AI；失败的保留空描述
func (s *ProductService) GenerateDescriptions(ctx context.Context, drafts []ProductDraft) error {
	if s.describer == nil {
		return ErrAIDisabled
	}
	for i := range drafts {
		d := &drafts[i]
		if utf8.RuneCountInString(strings.TrimSpace(d.Description)) >= MinDescriptionLength {
			continue
		}
		desc, err := s.describer.GenerateDescription(ctx, d.Title, d.TextContent)
		if err != nil {
			s.log.Error("AI 描述生成失败", zap.String("title", d.Title), zap.Error(err))
			continue
		}
		d.Description = desc
	}
	return nil
}

// ==================== 入库 ====================

// ImportDrafts 逐个入库；每个商品及其分类、文案在同一事务内
func (s *ProductService) ImportDrafts(ctx context.Context, shopID uuid.UUID, drafts []ProductDraft, opts ImportOptions) (*ImportReport, error) {
	if opts.MinDescription <= 0 {
		opts.MinDescription = MinDescriptionLength
	}
	if opts.Source == "" {
		opts.Source = SourceJSON
	}

	categories, err := s.uow.Categories.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询分类失败: %w", err)
	}
	resolver := newCategoryResolver(categories)

	report := &ImportReport{}
	for i := range drafts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := s.importOne(ctx, shopID, &drafts[i], opts, resolver)
		report.add(res)

		switch res.Status {
		case ImportCreated:
			metrics.ProductsImported.WithLabelValues(opts.Source).Inc()
			if res.Thread != nil {
				metrics.ThreadsCreated.Inc()
			}
			s.log.Info("商品已创建", zap.String("title", res.Title), zap.String("id", res.Product.ID.String()), zap.Int("categories", res.Linked))
		case ImportExists:
			fields := []zap.Field{zap.String("title", res.Title), zap.String("slug", res.Slug)}
			if res.Product != nil {
				fields = append(fields, zap.String("id", res.Product.ID.String()))
			}
			s.log.Warn("商品已存在", fields...)
		case ImportSkipped:
			s.log.Warn("跳过商品", zap.String("title", res.Title), zap.Error(res.Err))
		case ImportFailed:
			s.log.Error("商品入库失败", zap.String("title", res.Title), zap.Error(res.Err))
		}
	}
	return report, nil
}

func (s *ProductService) importOne(ctx context.Context, shopID uuid.UUID, d *ProductDraft, opts ImportOptions, resolver *categoryResolver) ImportResult {
	res := ImportResult{Title: d.Title, Slug: d.Slug}
	if res.Slug == "" {
		res.Slug = scraper.GenerateSlug(d.Title)
	}

	desc := strings.TrimSpace(d.Description)
	if n := utf8.RuneCountInString(desc); n < opts.MinDescription {
		res.Status = ImportSkipped
		res.Err = fmt.Errorf("%w: %d < %d", ErrDescriptionTooShort, n, opts.MinDescription)
		return res
	}
	if strings.TrimSpace(d.Title) == "" || res.Slug == "" {
		res.Status = ImportSkipped
		res.Err = fmt.Errorf("缺少标题")
		return res
	}

	categoryIDs, titles, unknown := resolver.resolve(d.Categories)
	if len(unknown) > 0 {
		s.log.Warn("忽略未知分类", zap.String("title", d.Title), zap.Strings("categories", unknown))
	}

	product := &model.Product{
		ShopID:         shopID,
		Title:          d.Title,
		Slug:           res.Slug,
		URL:            d.URL,
		Description:    d.Description,
		Specifications: model.NewJSONObject(d.Specifications),
		Filters:        model.NewJSONObject(d.Filters),
		Images:         model.NewImageList(d.Images),
		Active:         true,
	}
	if d.Price.Valid {
		product.Price = decimal.NewNullDecimal(decimal.NewFromFloat(d.Price.Value).Round(2))
	}

	err := s.uow.Transaction(ctx, func(tx *repository.CatalogUnitOfWork) error {
		if err := tx.Products.Create(ctx, product); err != nil {
			return err
		}
		if err := tx.Products.LinkCategories(ctx, product.ID, categoryIDs); err != nil {
			return fmt.Errorf("关联分类失败: %w", err)
		}
		if opts.WithThread {
			thread := BuildTemplateThread(product, titles)
			if err := tx.Threads.Create(ctx, thread); err != nil {
				return fmt.Errorf("写入文案失败: %w", err)
			}
			res.Thread = thread
		}
		return nil
	})
	switch {
	case err == nil:
		res.Status = ImportCreated
		res.Product = product
		res.Linked = len(categoryIDs)
		res.Categories = titles
	case isDuplicate(err):
		res.Status = ImportExists
		res.Thread = nil
		if existing, lookupErr := s.uow.Products.GetByShopAndSlug(ctx, shopID, res.Slug); lookupErr == nil {
			res.Product = existing
		}
	default:
		res.Status = ImportFailed
		res.Thread = nil
		res.Err = err
	}
	return res
}

// ==================== 商品列表 ====================

// ProductQuery list-products 参数
type ProductQuery struct {
	Keyword string
	// Category 分类 ID、标题或 slug
	Category        string
	IncludeInactive bool
	Page            int
	PageSize        int
}

// List 分页列出商家的商品，最新的在前
func (s *ProductService) List(ctx context.Context, shopID uuid.UUID, q ProductQuery) ([]model.Product, int64, error) {
	filter := repository.ProductFilter{
		ActiveOnly: !q.IncludeInactive,
		ShopID:     &shopID,
		Keyword:    strings.TrimSpace(q.Keyword),
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
	if q.Category != "" {
		categories, err := s.uow.Categories.ListAll(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("查询分类失败: %w", err)
		}
		ids, _, _ := newCategoryResolver(categories).resolve([]string{q.Category})
		if len(ids) == 0 {
			return nil, 0, fmt.Errorf("%w: 未知分类 %s", ErrInvalidArgument, q.Category)
		}
		filter.CategoryID = &ids[0]
	}

	products, total, err := s.uow.Products.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("查询商品列表失败: %w", err)
	}
	return products, total, nil
}

// ==================== 图片修复 ====================

// ResolveImagesPath 相对路径默认放在 tmp/ 下
func ResolveImagesPath(path string) string {
	if filepath.IsAbs(path) || strings.HasPrefix(path, imagesTmpDir+"/") {
		return path
	}
	return filepath.Join(imagesTmpDir, path)
}

// LoadImagesJSON 读取 {"id": "...", "images": [...]}
func LoadImagesJSON(path string) (*ImagesFile, error) {
	data, err := os.ReadFile(ResolveImagesPath(path))
	if err != nil {
		return nil, fmt.Errorf("读取图片 JSON 失败: %w", err)
	}
	var f ImagesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return &f, nil
}

// FixImages 替换商品图片；mirror 为 true 时先上传到对象存储
func (s *ProductService) FixImages(ctx context.Context, productID uuid.UUID, images []string, mirror bool) (*model.Product, error) {
	images = dedupStrings(images)
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	product, err := s.uow.Products.GetByID(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return nil, fmt.Errorf("查询商品失败: %w", err)
	}

	if mirror {
		if s.mirror == nil {
			return nil, ErrStorageDisabled
		}
		images, err = s.mirror.MirrorImages(ctx, images)
		if err != nil {
			return nil, fmt.Errorf("镜像图片失败: %w", err)
		}
	}

	if err := s.uow.Products.UpdateImages(ctx, product.ID, images); err != nil {
		return nil, fmt.Errorf("更新图片失败: %w", err)
	}
	product.Images = model.NewImageList(images)
	s.log.Info("商品图片已更新", zap.String("id", product.ID.String()), zap.Int("images", len(images)))
	return product, nil
}

// ==================== 工具函数 ====================

// categoryResolver 将 ID、标题或 slug 解析为分类
type categoryResolver struct {
	byID  map[uuid.UUID]*model.Category
	byKey map[string]*model.Category
}

func newCategoryResolver(categories []model.Category) *categoryResolver {
	r := &categoryResolver{
		byID:  make(map[uuid.UUID]*model.Category, len(categories)),
		byKey: make(map[string]*model.Category, len(categories)*2),
	}
	for i := range categories {
		c := &categories[i]
		r.byID[c.ID] = c
		for _, k := range []string{strings.ToLower(c.Title), c.Slug} {
			if _, ok := r.byKey[k]; !ok && k != "" {
				r.byKey[k] = c
			}
		}
	}
	return r
}

// resolve 返回去重后的 ID、对应标题以及无法识别的输入
func (r *categoryResolver) resolve(refs []string) ([]uuid.UUID, []string, []string) {
	var ids []uuid.UUID
	var titles, unknown []string
	seen := map[uuid.UUID]bool{}
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		var c *model.Category
		if id, err := uuid.Parse(ref); err == nil {
			c = r.byID[id]
		} else {
			c = r.byKey[strings.ToLower(ref)]
		}
		if c == nil {
			unknown = append(unknown, ref)
			continue
		}
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		ids = append(ids, c.ID)
		titles = append(titles, c.Title)
	}
	return ids, titles, unknown
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
