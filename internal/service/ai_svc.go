package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"elfbaby/internal/config"
	"elfbaby/internal/model"
	"elfbaby/internal/repository"
	"elfbaby/internal/scraper"
	"elfbaby/pkg/logger"
)

// ErrAIDisabled 未配置 Gemini API Key
var ErrAIDisabled = errors.New("Gemini API Key 未配置 (ai.api_key / GEMINI_API_KEY)")

const (
	defaultTextModel  = "gemini-1.5-flash"
	aiPromptTextLimit = 4000
)

// ==================== 接口定义 ====================

// Generation 一次生成的文本与用量
type Generation struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// TextGenerator 根据提示词返回 JSON 文本
type TextGenerator interface {
	GenerateJSON(ctx context.Context, prompt string) (*Generation, error)
}

// ==================== Gemini 实现 ====================

type geminiGenerator struct {
	apiKey string
	model  string
}

// GenerateJSON 每次调用新建客户端，要求返回 application/json
func (g *geminiGenerator) GenerateJSON(ctx context.Context, prompt string) (*Generation, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, fmt.Errorf("Gemini 初始化失败: %w", err)
	}
	defer client.Close()

	m := client.GenerativeModel(g.model)
	m.ResponseMIMEType = "application/json"

	gen := &Generation{Model: g.model}
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return gen, fmt.Errorf("Gemini 生成失败: %w", err)
	}
	if resp.UsageMetadata != nil {
		gen.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		gen.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return gen, fmt.Errorf("无生成结果")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	gen.Text = sb.String()
	return gen, nil
}

// ==================== 服务 ====================

// AIService 商品描述与文案生成
type AIService struct {
	gen   TextGenerator
	calls repository.AICallLogRepository
	now   func() time.Time
	log   *zap.Logger
}

// NewAIService 未配置 API Key 时返回 ErrAIDisabled
func NewAIService(cfg config.AIConfig, log *zap.Logger) (*AIService, error) {
	if cfg.APIKey == "" {
		return nil, ErrAIDisabled
	}
	textModel := cfg.TextModel
	if textModel == "" {
		textModel = defaultTextModel
	}
	return NewAIServiceWithGenerator(&geminiGenerator{apiKey: cfg.APIKey, model: textModel}, log), nil
}

// NewAIServiceWithGenerator 注入生成器
func NewAIServiceWithGenerator(gen TextGenerator, log *zap.Logger) *AIService {
	return &AIService{gen: gen, now: time.Now, log: logger.OrNop(log).Named("ai")}
}

// WithCallLog 记录每次调用的用量
func (s *AIService) WithCallLog(calls repository.AICallLogRepository) *AIService {
	s.calls = calls
	return s
}

// GenerateDescription 生成不少于 MinDescriptionLength 字符的商品描述
func (s *AIService) GenerateDescription(ctx context.Context, title, textContent string) (string, error) {
	prompt := fmt.Sprintf(`You write product descriptions for a gift shop for babies, kids and parents.

Product title: %s
Product page text:
%s

Requirements:
1. 2-4 sentences of engaging, factual copy in English
2. At least %d characters
3. No prices, no shipping claims, no markdown

Output Format (JSON only):
{"description": "..."}`, title, scraper.Truncate(textContent, aiPromptTextLimit), MinDescriptionLength)

	var out struct {
		Description string `json:"description"`
	}
	var desc string
	err := s.generate(ctx, model.AIPurposeDescription, title, prompt, &out, func() error {
		desc = strings.TrimSpace(out.Description)
		if n := utf8.RuneCountInString(desc); n < MinDescriptionLength {
			return fmt.Errorf("%w: AI 返回 %d 个字符", ErrDescriptionTooShort, n)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return desc, nil
}

// GenerateThreads 生成 n 条社交文案，每条不超过 500 字符
func (s *AIService) GenerateThreads(ctx context.Context, title, description string, categories []string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	prompt := fmt.Sprintf(`You write short social media posts (Threads) promoting gifts for kids.

Product: %s
Description: %s
Categories: %s

Requirements:
1. Write %d different posts
2. Each post under %d characters, friendly tone, 1-3 emojis
3. End each post with 1-3 hashtags

Output Format (JSON only):
{"threads": ["post 1", "post 2"]}`, title, scraper.Truncate(description, aiPromptTextLimit), strings.Join(categories, ", "), n, maxThreadLength)

	var out struct {
		Threads []string `json:"threads"`
	}
	if err := s.generate(ctx, model.AIPurposeThreads, title, prompt, &out, nil); err != nil {
		return nil, err
	}

	texts := make([]string, 0, n)
	for _, t := range out.Threads {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		texts = append(texts, truncateThread(t))
		if len(texts) == n {
			break
		}
	}
	s.log.Info("AI 文案生成完成", zap.String("title", title), zap.Int("requested", n), zap.Int("got", len(texts)))
	return texts, nil
}

// generate 调用模型并解析 JSON，validate 的结果一并计入调用记录
func (s *AIService) generate(ctx context.Context, purpose, subject, prompt string, v any, validate func() error) (err error) {
	start := s.now()
	var gen *Generation
	defer func() {
		s.record(ctx, purpose, subject, gen, s.now().Sub(start), err)
	}()

	gen, err = s.gen.GenerateJSON(ctx, prompt)
	if err != nil {
		return err
	}
	raw := cleanJSONFence(gen.Text)
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("解析生成结果失败: %w, raw: %s", err, scraper.Truncate(raw, 200))
	}
	if validate != nil {
		return validate()
	}
	return nil
}

// record 写入调用记录，失败只告警
func (s *AIService) record(ctx context.Context, purpose, subject string, gen *Generation, elapsed time.Duration, callErr error) {
	if s.calls == nil {
		return
	}
	entry := &model.AICallLog{
		Purpose:    purpose,
		Subject:    scraper.Truncate(subject, 255),
		DurationMs: elapsed.Milliseconds(),
		Status:     model.AICallStatusSuccess,
	}
	if gen != nil {
		entry.ModelName = gen.Model
		entry.InputTokens = gen.InputTokens
		entry.OutputTokens = gen.OutputTokens
	}
	if callErr != nil {
		entry.Status = model.AICallStatusFailed
		entry.ErrorMsg = scraper.Truncate(callErr.Error(), 1024)
	}
	if err := s.calls.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Warn("写入 AI 调用记录失败", zap.Error(err))
	}
}

// cleanJSONFence 去掉 ```json 代码块包裹
func cleanJSONFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
