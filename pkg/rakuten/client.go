package rakuten

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultBaseURL  = "https://api.linksynergy.com"
	DefaultScope    = "PRODUCTION"
	defaultPageSize = 100
	previewLimit    = 500
)

var (
	ErrMissingCredentials = errors.New("缺少 Rakuten client id 或 client secret")
	// ErrNotApproved 401 或 Invalid token：商家尚未通过联盟申请
	ErrNotApproved   = errors.New("商家未批准联盟合作或账号无权访问该商家商品")
	ErrNoToken       = errors.New("请求未携带令牌")
	ErrUnexpectedXML = errors.New("接口返回 XML 而不是 JSON")
	ErrNoProducts    = errors.New("商家没有可用商品")
)

// Config Rakuten Advertising 凭据
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Scope        string
	Timeout      time.Duration
}

// Client Rakuten Advertising API 客户端
type Client struct {
	baseURL string
	http    *resty.Client
	tokens  oauth2.TokenSource
	log     *zap.Logger
}

// NewClient 创建客户端；令牌在过期前一小时刷新
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Scope == "" {
		cfg.Scope = DefaultScope
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/token",
		Scopes:       []string{cfg.Scope},
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// 令牌源会在后续刷新时复用该 context
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})

	// 令牌剩余有效期不足 1 小时即重新获取
	return &Client{
		baseURL: base,
		http:    resty.New().SetTimeout(cfg.Timeout),
		tokens:  oauth2.ReuseTokenSourceWithExpiry(nil, cc.TokenSource(tokenCtx), time.Hour),
		log:     log.Named("rakuten"),
	}, nil
}

// Token 获取访问令牌（带缓存）
func (c *Client) Token() (string, error) {
	tok, err := c.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("获取 Rakuten 访问令牌失败 (%s/token): %w", c.baseURL, err)
	}
	return tok.AccessToken, nil
}

// SearchProducts 按商家 MID 搜索商品
func (c *Client) SearchProducts(ctx context.Context, mid string, opts SearchOptions) (*SearchResponse, error) {
	token, err := c.Token()
	if err != nil {
		return nil, err
	}

	params := map[string]string{"mid": mid}
	if opts.Keyword != "" {
		params["keyword"] = opts.Keyword
	}
	if opts.Page > 0 {
		params["page"] = strconv.Itoa(opts.Page)
	}
	if opts.PageSize > 0 {
		params["pagesize"] = strconv.Itoa(opts.PageSize)
	}
	if opts.Category != "" {
		params["category"] = opts.Category
	}
	if opts.InStock != nil {
		params["instock"] = "0"
		if *opts.InStock {
			params["instock"] = "1"
		}
	}
	c.log.Debug("搜索商品", zap.Any("params", params))
	params["token"] = token

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		Get(c.baseURL + "/productsearch/1.0")
	if err != nil {
		return nil, fmt.Errorf("搜索 Rakuten 商品失败: %w", err)
	}

	body := resp.String()
	if resp.StatusCode() == http.StatusUnauthorized {
		return nil, fmt.Errorf("MID %s: %w: %s", mid, ErrNotApproved, preview(body))
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("搜索 Rakuten 商品失败: %d - %s", resp.StatusCode(), preview(body))
	}

	if strings.Contains(resp.Header().Get("Content-Type"), "xml") || strings.HasPrefix(strings.TrimSpace(body), "<") {
		c.log.Debug("接口返回 XML", zap.String("body", body))
		switch {
		case strings.Contains(body, "Invalid token") || strings.Contains(body, "718619"):
			return nil, fmt.Errorf("MID %s: %w", mid, ErrNotApproved)
		case strings.Contains(body, "No token") || strings.Contains(body, "718614"):
			return nil, ErrNoToken
		default:
			return nil, fmt.Errorf("MID %s: %w: %s", mid, ErrUnexpectedXML, preview(body))
		}
	}

	var out SearchResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("解析 Rakuten 响应失败: %w: %s", err, preview(body))
	}
	return &out, nil
}

// GetAllProducts 逐页拉取，直到达到上限、最后一页或空页
func (c *Client) GetAllProducts(ctx context.Context, mid string, opts ListOptions) ([]Product, error) {
	var all []Product
	for page := 1; ; page++ {
		resp, err := c.SearchProducts(ctx, mid, SearchOptions{
			Keyword:  opts.Keyword,
			Category: opts.Category,
			InStock:  opts.InStock,
			Page:     page,
			PageSize: defaultPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("拉取第 %d 页失败: %w", page, err)
		}

		all = append(all, resp.Products...)
		if opts.MaxProducts > 0 && len(all) >= opts.MaxProducts {
			return all[:opts.MaxProducts], nil
		}

		totalPages := resp.TotalPages
		if totalPages == 0 {
			totalPages = 1
		}
		if page >= totalPages || len(resp.Products) == 0 {
			return all, nil
		}
	}
}

// GetMerchantInfo 通过首个商品获取商家信息
func (c *Client) GetMerchantInfo(ctx context.Context, mid string) (*MerchantInfo, error) {
	resp, err := c.SearchProducts(ctx, mid, SearchOptions{PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(resp.Products) == 0 {
		return nil, fmt.Errorf("MID %s: %w", mid, ErrNoProducts)
	}

	p := resp.Products[0]
	return &MerchantInfo{
		MID:                  p.MID,
		MerchantName:         p.MerchantName,
		MerchantCategoryPath: p.MerchantCategoryPath,
	}, nil
}

// preview 按字符截断响应正文
func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewLimit {
		return s
	}
	return string([]rune(s)[:previewLimit]) + "..."
}
