package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxProductImages = 20
	maxSpecRows      = 20
)

var (
	reTitleSuffix   = regexp.MustCompile(`\s*[|\-–—]\s*[^|]+$`)
	reTitleBranding = regexp.MustCompile(`(?i)\s*-\s*(YourSurprise|Shop|Store|Gifts?)$`)

	// 价格模式按优先级排列
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<meta[^>]*property=["']og:price:amount["'][^>]*content=["']([^"']+)["']`),
		regexp.MustCompile(`(?i)<meta[^>]*property=["']product:price:amount["'][^>]*content=["']([^"']+)["']`),
		regexp.MustCompile(`(?i)"price":\s*["']?([0-9]+\.?[0-9]*)["']?`),
		regexp.MustCompile(`(?i)"price":\s*([0-9]+\.?[0-9]*)`),
		regexp.MustCompile(`(?i)<[^>]*class=["'][^"']*price[^"']*["'][^>]*>[\s\S]*?([0-9]+[.,][0-9]{2})`),
		regexp.MustCompile(`(?i)<[^>]*class=["'][^"']*product[^"']*price[^"']*["'][^>]*>[\s\S]*?([0-9]+[.,][0-9]{2})`),
		regexp.MustCompile(`(?i)(?:€|EUR|USD|\$)\s*([0-9]+[.,][0-9]{2})`),
		regexp.MustCompile(`(?i)([0-9]+[.,][0-9]{2})\s*(?:€|EUR|USD|\$)`),
		regexp.MustCompile(`(?i)data-price=["']([0-9]+\.?[0-9]*)["']`),
		regexp.MustCompile(`(?i)data-product-price=["']([0-9]+\.?[0-9]*)["']`),
	}
	rePriceFallback = regexp.MustCompile(`(?i)price[\s:]*([0-9]+[.,][0-9]{2})`)
	reLeadingNumber = regexp.MustCompile(`^[+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+)`)

	reBackgroundImage = regexp.MustCompile(`(?i)background-image:\s*url\(["']?([^"')]+)["']?\)`)
	reJSONImage       = regexp.MustCompile(`(?i)"image":\s*["']([^"']+)["']`)
	reJSONImages      = regexp.MustCompile(`(?i)"images":\s*\[([^\]]+)\]`)
	reCDNImage        = regexp.MustCompile(`(?i)https?://[^"'\s<>]+\.(jpg|jpeg|png|webp|gif)(\?[^"'\s<>]*)?`)

	reImageSkip     = regexp.MustCompile(`(?i)logo|icon|avatar|profile|banner|header|footer|social|favicon|\.svg|flag|country|payment|badge|button`)
	reImageCDN      = regexp.MustCompile(`(?i)(static|cdn|media|img|galleryimage|assets)\.`)
	reImageProduct  = regexp.MustCompile(`(?i)(product|gallery|mug|gift|item)`)
	reImageFile     = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp|gif)(\?|$)`)
	reImageThumb    = regexp.MustCompile(`(?i)_thumb|width=(58|100|150|200)`)
	reImageVideoBtn = regexp.MustCompile(`(?i)play-thumb|play-button|video.*thumb`)
)

// ProductInfo 商品页提取结果
type ProductInfo struct {
	Title          string            `json:"title"`
	URL            string            `json:"url"`
	Price          *float64          `json:"price"`
	Images         []string          `json:"images"`
	Specifications map[string]string `json:"specifications"`
	TextContent    string            `json:"textContent"`
}

// ExtractProductInfo 从商品页 HTML 提取标题、价格、图片与规格
func ExtractProductInfo(html, pageURL string) (*ProductInfo, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	info := &ProductInfo{
		URL:            pageURL,
		Title:          extractProductTitle(doc),
		Price:          ExtractPrice(html),
		Images:         ExtractImages(doc, html, pageURL),
		Specifications: extractSpecifications(doc),
		TextContent:    ExtractTextContent(html),
	}
	return info, nil
}

// CleanTitle 去掉店铺名后缀
func CleanTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.TrimSpace(reTitleSuffix.ReplaceAllString(title, ""))
	return strings.TrimSpace(reTitleBranding.ReplaceAllString(title, ""))
}

func extractProductTitle(doc *goquery.Document) string {
	raw := firstText(doc, "title")
	if raw == "" {
		raw = firstText(doc, "h1")
	}
	if raw == "" {
		raw = firstAttr(doc, `meta[property="og:title"]`, "content")
	}
	if raw == "" {
		return ""
	}
	return CleanTitle(raw)
}

// ExtractPrice 依次尝试价格模式，逗号视为小数点，只接受正数
func ExtractPrice(html string) *float64 {
	for _, re := range pricePatterns {
		if p, ok := matchPrice(re, html); ok {
			return &p
		}
	}
	if p, ok := matchPrice(rePriceFallback, html); ok {
		return &p
	}
	return nil
}

func matchPrice(re *regexp.Regexp, html string) (float64, bool) {
	m := re.FindStringSubmatch(html)
	if m == nil {
		return 0, false
	}
	return ParsePrice(m[1])
}

// ParsePrice 解析价格字符串，取开头的数字，例如 "24.95 EUR"
func ParsePrice(raw string) (float64, bool) {
	p, ok := LeadingFloat(strings.Replace(raw, ",", ".", 1))
	if !ok || p <= 0 {
		return 0, false
	}
	return p, true
}

// LeadingFloat 解析开头的数字，忽略其后的货币等内容
func LeadingFloat(raw string) (float64, bool) {
	m := reLeadingNumber.FindString(strings.TrimSpace(raw))
	if m == "" {
		return 0, false
	}
	p, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

// ==================== 图片 ====================

type imageCollector struct {
	pageURL string
	seen    map[string]bool
	urls    []string
}

func (c *imageCollector) add(raw string) {
	full, ok := normalizeImageURL(raw, c.pageURL)
	if !ok || c.seen[full] {
		return
	}
	c.seen[full] = true
	c.urls = append(c.urls, full)
}

func (c *imageCollector) addList(raw string) {
	for _, part := range strings.Split(raw, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if fields := strings.Fields(part); len(fields) > 0 {
			c.add(fields[0])
		}
	}
}

// normalizeImageURL 过滤非商品图并转为绝对地址
func normalizeImageURL(raw, pageURL string) (string, bool) {
	raw = DecodeEntities(strings.TrimSpace(raw))
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return "", false
	}
	if reImageSkip.MatchString(raw) {
		return "", false
	}

	full := ResolveURL(raw, pageURL)
	fromCDN := reImageCDN.MatchString(full)
	hasKeyword := reImageProduct.MatchString(full)
	isFile := reImageFile.MatchString(full)

	if (fromCDN && (hasKeyword || isFile)) || (hasKeyword && isFile) {
		return full, true
	}
	return "", false
}

// ExtractImages 收集商品图片，优先保留非缩略图，最多 20 张
func ExtractImages(doc *goquery.Document, html, pageURL string) []string {
	c := &imageCollector{pageURL: pageURL, seen: map[string]bool{}}

	for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-original"} {
		doc.Find("img[" + attr + "]").Each(func(_ int, s *goquery.Selection) {
			c.add(s.AttrOr(attr, ""))
		})
	}
	doc.Find("img[srcset]").Each(func(_ int, s *goquery.Selection) {
		c.addList(s.AttrOr("srcset", ""))
	})
	doc.Find(`[style*="background-image"]`).Each(func(_ int, s *goquery.Selection) {
		if m := reBackgroundImage.FindStringSubmatch(s.AttrOr("style", "")); m != nil {
			c.add(m[1])
		}
	})
	doc.Find(`meta[property="og:image"]`).Each(func(_ int, s *goquery.Selection) {
		c.add(s.AttrOr("content", ""))
	})
	for _, m := range reJSONImage.FindAllStringSubmatch(html, -1) {
		c.add(m[1])
	}
	for _, m := range reJSONImages.FindAllStringSubmatch(html, -1) {
		c.addList(m[1])
	}
	doc.Find(`div[class*="gallery"] img, div[class*="product"][class*="image"] img`).Each(func(_ int, s *goquery.Selection) {
		c.add(s.AttrOr("src", ""))
	})
	for _, m := range reCDNImage.FindAllString(html, -1) {
		c.add(m)
	}

	return FilterThumbnails(c.urls)
}

// FilterThumbnails 去掉缩略图与视频按钮；全部被过滤时保留原列表
func FilterThumbnails(urls []string) []string {
	full := make([]string, 0, len(urls))
	for _, u := range urls {
		if reImageThumb.MatchString(u) || reImageVideoBtn.MatchString(u) {
			continue
		}
		full = append(full, u)
	}
	if len(full) == 0 {
		full = urls
	}
	if len(full) > maxProductImages {
		full = full[:maxProductImages]
	}
	return full
}

// ==================== 规格 ====================

// extractSpecifications 读取规格表（th/td 或 dt/dd）
func extractSpecifications(doc *goquery.Document) map[string]string {
	specs := map[string]string{}

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		key := CollapseSpace(row.Find("th").First().Text())
		val := CollapseSpace(row.Find("td").First().Text())
		if key != "" && val != "" && len(specs) < maxSpecRows {
			specs[key] = val
		}
	})
	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		dl.Find("dt").Each(func(_ int, dt *goquery.Selection) {
			key := CollapseSpace(dt.Text())
			val := CollapseSpace(dt.NextFiltered("dd").Text())
			if key != "" && val != "" && len(specs) < maxSpecRows {
				specs[key] = val
			}
		})
	})
	return specs
}

// ==================== 商品链接 ====================

// FindProductLinks 从店铺首页找商品链接
func FindProductLinks(html, baseURL string, limit int) ([]string, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var links []string
	for _, marker := range []string{"/product", "/p/", "/item"} {
		doc.Find(`a[href*="` + marker + `"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if len(links) >= limit {
				return false
			}
			href := ResolveURL(s.AttrOr("href", ""), baseURL)
			if href != "" && !seen[href] {
				seen[href] = true
				links = append(links, href)
			}
			return true
		})
	}
	return links, nil
}
