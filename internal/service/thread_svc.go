package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"elfbaby/internal/metrics"
	"elfbaby/internal/model"
	"elfbaby/internal/repository"
	"elfbaby/internal/scraper"
	"elfbaby/pkg/logger"
)

const (
	maxThreadLength     = 500
	threadPreviewLength = 300
	threadHashtags      = "#KidsToys #GiftsForKids"
	maxKeywords         = 5
)

var (
	reNonWord  = regexp.MustCompile(`[^\w\s]`)
	reHTMLTags = regexp.MustCompile(`<[^>]*>`)
)

// ==================== 接口定义 ====================

// ThreadGenerator AI 文案生成
type ThreadGenerator interface {
	GenerateThreads(ctx context.Context, title, description string, categories []string, n int) ([]string, error)
}

// ==================== 输入结构 ====================

// Keywords 兼容 "a, b" 字符串与 ["a","b"] 数组
type Keywords []string

func (k *Keywords) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*k = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("keywords 需为字符串或字符串数组: %w", err)
	}
	*k = splitKeywords(s)
	return nil
}

// ThreadInput JSON 中的一条文案
type ThreadInput struct {
	Text     string   `json:"text"`
	Keywords Keywords `json:"keywords,omitempty"`
}

// ThreadPreview 未指定来源时输出给操作者的提示
type ThreadPreview struct {
	Product    *model.Product
	Categories []string
	Keywords   []string
	Example    string
}

// GenerateMissingResult 批量补文案结果
type GenerateMissingResult struct {
	Total   int
	Created int
	Failed  int
}

// ==================== 服务 ====================

// ThreadService 商品社交文案
type ThreadService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	threads    repository.ThreadRepository
	ai         ThreadGenerator
	log        *zap.Logger
}

func NewThreadService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	threads repository.ThreadRepository,
	ai ThreadGenerator,
	log *zap.Logger,
) *ThreadService {
	return &ThreadService{
		products:   products,
		categories: categories,
		threads:    threads,
		ai:         ai,
		log:        logger.OrNop(log).Named("threads"),
	}
}

// loadProduct 商品及其分类标题
func (s *ThreadService) loadProduct(ctx context.Context, productID uuid.UUID) (*model.Product, []string, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return nil, nil, fmt.Errorf("查询商品失败: %w", err)
	}
	titles, err := s.categories.TitlesByProduct(ctx, productID)
	if err != nil {
		return nil, nil, fmt.Errorf("查询商品分类失败: %w", err)
	}
	return product, titles, nil
}

// Preview 商品信息、建议关键词与 JSON 示例
func (s *ThreadService) Preview(ctx context.Context, productID uuid.UUID) (*ThreadPreview, error) {
	product, categories, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	keywords := GenerateKeywords(product.Title, categories)

	example, _ := json.MarshalIndent(map[string]any{
		"threads": []ThreadInput{
			{Text: "Your first unique thread text here", Keywords: keywords},
			{Text: "Your second unique thread text here", Keywords: keywords},
			{Text: "Your third unique thread text here (optional)", Keywords: keywords},
		},
	}, "", "  ")

	return &ThreadPreview{
		Product:    product,
		Categories: categories,
		Keywords:   keywords,
		Example:    string(example),
	}, nil
}

// AddThreads 写入文案，空文本跳过，缺省关键词使用自动生成的
func (s *ThreadService) AddThreads(ctx context.Context, productID uuid.UUID, inputs []ThreadInput) ([]model.ProductThread, error) {
	product, categories, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	defaults := GenerateKeywords(product.Title, categories)

	var created []model.ProductThread
	for i, in := range inputs {
		text := strings.TrimSpace(in.Text)
		if text == "" {
			s.log.Warn("跳过空文案", zap.Int("index", i+1))
			continue
		}
		keywords := []string(in.Keywords)
		if len(keywords) == 0 {
			keywords = defaults
		}

		thread := model.ProductThread{ProductID: product.ID, Text: text, Keywords: pq.StringArray(keywords)}
		if err := s.threads.Create(ctx, &thread); err != nil {
			return created, fmt.Errorf("写入第 %d 条文案失败: %w", i+1, err)
		}
		metrics.ThreadsCreated.Inc()
		created = append(created, thread)
	}
	return created, nil
}

// AddTemplateThread 按模板生成一条文案
func (s *ThreadService) AddTemplateThread(ctx context.Context, productID uuid.UUID) (*model.ProductThread, error) {
	product, categories, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	thread := BuildTemplateThread(product, categories)
	if err := s.threads.Create(ctx, thread); err != nil {
		return nil, fmt.Errorf("写入文案失败: %w", err)
	}
	metrics.ThreadsCreated.Inc()
	return thread, nil
}

// AddAIThreads 调用 AI 生成 n 条文案
func (s *ThreadService) AddAIThreads(ctx context.Context, productID uuid.UUID, n int) ([]model.ProductThread, error) {
	if s.ai == nil {
		return nil, ErrAIDisabled
	}
	product, categories, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	texts, err := s.ai.GenerateThreads(ctx, product.Title, product.Description, categories, n)
	if err != nil {
		return nil, err
	}

	inputs := make([]ThreadInput, len(texts))
	for i, t := range texts {
		inputs[i] = ThreadInput{Text: t}
	}
	return s.AddThreads(ctx, productID, inputs)
}

// GenerateMissing 为店铺中没有文案的商品各生成一条模板文案
// 单个商品失败只记录日志
func (s *ThreadService) GenerateMissing(ctx context.Context, shopID uuid.UUID) (*GenerateMissingResult, error) {
	products, err := s.products.ListWithoutThreads(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("查询缺少文案的商品失败: %w", err)
	}

	result := &GenerateMissingResult{Total: len(products)}
	s.log.Info("开始补全文案", zap.String("shop_id", shopID.String()), zap.Int("products", len(products)))

	for i := range products {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		p := &products[i]

		categories, err := s.categories.TitlesByProduct(ctx, p.ID)
		if err != nil {
			result.Failed++
			s.log.Error("查询分类失败", zap.String("product_id", p.ID.String()), zap.Error(err))
			continue
		}
		thread := BuildTemplateThread(p, categories)
		if err := s.threads.Create(ctx, thread); err != nil {
			result.Failed++
			s.log.Error("写入文案失败", zap.String("product_id", p.ID.String()), zap.Error(err))
			continue
		}
		metrics.ThreadsCreated.Inc()
		result.Created++
		s.log.Info("文案已生成",
			zap.Int("index", i+1),
			zap.String("title", p.Title),
			zap.Strings("keywords", thread.Keywords),
		)
	}
	return result, nil
}

// ==================== 模板 ====================

// GenerateKeywords 标题中前 3 个长度大于 3 的词 + 前 2 个分类，去重后最多 5 个
func GenerateKeywords(title string, categories []string) []string {
	words := strings.Fields(reNonWord.ReplaceAllString(strings.ToLower(title), " "))

	var candidates []string
	for _, w := range words {
		if len(candidates) == 3 {
			break
		}
		if utf8.RuneCountInString(w) > 3 {
			candidates = append(candidates, w)
		}
	}
	for i, c := range categories {
		if i == 2 {
			break
		}
		candidates = append(candidates, strings.ToLower(c))
	}

	seen := map[string]bool{}
	keywords := make([]string, 0, maxKeywords)
	for _, k := range candidates {
		if seen[k] {
			continue
		}
		seen[k] = true
		keywords = append(keywords, k)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// GenerateThreadText 标题 + 描述前 300 字符 + 分类语句 + 固定话题标签
func GenerateThreadText(title, description string, categories []string) string {
	clean := strings.TrimSpace(scraper.DecodeEntities(reHTMLTags.ReplaceAllString(description, "")))

	var sb strings.Builder
	sb.WriteString(title + " 🎁\n\n")
	if preview := scraper.Truncate(clean, threadPreviewLength); preview != "" {
		sb.WriteString(preview + "...\n\n")
	}
	if len(categories) > 0 {
		sb.WriteString("Perfect " + strings.ToLower(categories[0]) + " gift for kids! ✨\n\n")
	}
	sb.WriteString(threadHashtags)

	return truncateThread(sb.String())
}

// BuildTemplateThread 构造模板文案（未写库）
func BuildTemplateThread(p *model.Product, categories []string) *model.ProductThread {
	return &model.ProductThread{
		ProductID: p.ID,
		Text:      GenerateThreadText(p.Title, p.Description, categories),
		Keywords:  pq.StringArray(GenerateKeywords(p.Title, categories)),
	}
}

// ParseThreadsJSON 支持数组或 {"threads": [...]}
func ParseThreadsJSON(data []byte) ([]ThreadInput, error) {
	var list []ThreadInput
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Threads []ThreadInput `json:"threads"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if wrapped.Threads == nil {
		return nil, fmt.Errorf("%w: 需要文案数组或包含 threads 字段的对象", ErrInvalidJSON)
	}
	return wrapped.Threads, nil
}

// truncateThread 超过 500 字符时截到 497 并补 ...
func truncateThread(text string) string {
	if utf8.RuneCountInString(text) <= maxThreadLength {
		return text
	}
	return scraper.Truncate(text, maxThreadLength-3) + "..."
}

func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
