package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"elfbaby/internal/metrics"
)

// ErrRateLimited 重试用尽后仍然返回 429
var ErrRateLimited = errors.New("请求被限流 (HTTP 429)")

// Profile 请求头模板
type Profile int

const (
	ProfileDefault Profile = iota
	// ProfileAmazon 模拟浏览器导航请求
	ProfileAmazon
)

const amazonUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// StatusError 非 2xx 且非 429 的响应
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.Code, http.StatusText(e.Code), e.URL)
}

// ScrapeOptions 抓取客户端参数
type ScrapeOptions struct {
	UserAgent string
	Timeout   time.Duration
	Retries   int
	Backoff   time.Duration
	Profile   Profile
	// Interval 相邻请求的最小间隔，0 表示不限速
	Interval time.Duration
	Logger   *zap.Logger
}

// ScrapeClient 带 429 重试的页面抓取客户端
type ScrapeClient struct {
	client  *resty.Client
	retries int
	backoff time.Duration
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewScrapeClient 创建抓取客户端
func NewScrapeClient(opts ScrapeOptions) *ScrapeClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	client := resty.New().SetTimeout(opts.Timeout)

	switch opts.Profile {
	case ProfileAmazon:
		client.SetHeaders(map[string]string{
			"User-Agent":                amazonUserAgent,
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language":           "en-US,en;q=0.9",
			"Upgrade-Insecure-Requests": "1",
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "none",
			"Cache-Control":             "max-age=0",
		})
	default:
		ua := opts.UserAgent
		if ua == "" {
			ua = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
		}
		client.SetHeader("User-Agent", ua)
	}

	c := &ScrapeClient{
		client:  client,
		retries: opts.Retries,
		backoff: opts.Backoff,
		log:     log.Named("fetch"),
	}
	if opts.Interval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(opts.Interval), 1)
	}
	return c
}

// Fetch 抓取页面文本
// 仅对 429 重试，第 n 次尝试前等待 n*backoff；其它错误直接返回
func (c *ScrapeClient) Fetch(ctx context.Context, url string) (string, error) {
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			wait := time.Duration(attempt) * c.backoff
			c.log.Info("等待后重试", zap.Duration("wait", wait), zap.Int("attempt", attempt), zap.Int("retries", c.retries))
			metrics.RateLimitRetries.Inc()
			if err := sleepCtx(ctx, wait); err != nil {
				return "", err
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		resp, err := c.client.R().SetContext(ctx).Get(url)
		if err != nil {
			metrics.FetchAttempts.WithLabelValues(metrics.StatusClass(0, err)).Inc()
			return "", fmt.Errorf("请求 %s 失败: %w", url, err)
		}
		metrics.FetchAttempts.WithLabelValues(metrics.StatusClass(resp.StatusCode(), nil)).Inc()

		if resp.StatusCode() == http.StatusTooManyRequests {
			c.log.Warn("被限流 (429)", zap.String("url", url), zap.Int("attempt", attempt))
			continue
		}
		if resp.StatusCode() >= 400 {
			return "", &StatusError{URL: url, Code: resp.StatusCode()}
		}
		return resp.String(), nil
	}

	return "", fmt.Errorf("%w: %s 重试 %d 次后仍失败", ErrRateLimited, url, c.retries)
}

// Download 下载二进制内容（图片镜像使用）
func (c *ScrapeClient) Download(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("下载失败: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, "", &StatusError{URL: url, Code: resp.StatusCode()}
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}

// Sleep 可被 ctx 打断的等待
func Sleep(ctx context.Context, d time.Duration) error {
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
