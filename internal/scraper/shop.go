package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	ShippingLinkInfo    = "Shipping information available on website"
	ShippingFreeInfo    = "Free shipping available"
	ShippingDefaultInfo = "Shipping information: Please check website for details"

	maxShopCategories = 10
)

var reFreeShipping = regexp.MustCompile(`(?i)free shipping`)

// 市场关键词，按顺序匹配
var marketKeywords = []struct {
	keyword string
	market  string
}{
	{"europe", "europe"},
	{"europa", "europe"},
	{"america", "america"},
	{"usa", "usa"},
	{"united states", "usa"},
	{"canada", "canada"},
	{"uk", "uk"},
	{"united kingdom", "uk"},
	{"latvia", "latvia"},
	{"lithuania", "lithuania"},
	{"estonia", "estonia"},
}

// ShopInfo 商家首页提取结果
type ShopInfo struct {
	Title       string   `json:"title"`
	Domain      string   `json:"domain"`
	Logo        string   `json:"logo,omitempty"`
	Categories  []string `json:"categories"`
	Shipping    string   `json:"shipping"`
	Markets     []string `json:"markets"`
	TextContent string   `json:"text_content"`
}

// ExtractShopInfo 从首页 HTML 提取商家信息
func ExtractShopInfo(html, pageURL string) (*ShopInfo, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	info := &ShopInfo{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Domain:      ExtractDomain(pageURL),
		Categories:  extractShopCategories(doc),
		Shipping:    extractShipping(doc, html),
		Markets:     ExtractMarkets(html),
		TextContent: ExtractTextContent(html),
	}
	if logo := extractLogo(doc); logo != "" {
		info.Logo = ResolveURL(logo, pageURL)
	}
	return info, nil
}

func extractLogo(doc *goquery.Document) string {
	candidates := []struct{ selector, attr string }{
		{`img[class*="logo"]`, "src"},
		{`img[src*="logo"]`, "src"},
		{`link[rel="icon"]`, "href"},
		{`link[rel="shortcut icon"]`, "href"},
	}
	for _, c := range candidates {
		if v := firstAttr(doc, c.selector, c.attr); v != "" {
			return v
		}
	}
	return ""
}

func extractShopCategories(doc *goquery.Document) []string {
	seen := map[string]bool{}
	var out []string

	add := func(_ int, s *goquery.Selection) {
		text := CollapseSpace(s.Text())
		n := len([]rune(text))
		if n <= 2 || n >= 50 || seen[text] {
			return
		}
		seen[text] = true
		out = append(out, text)
	}

	doc.Find(`a[href*="categor"]`).Each(add)
	doc.Find(`a[class*="categor"]`).Each(add)
	doc.Find("nav a").Each(add)

	if len(out) > maxShopCategories {
		out = out[:maxShopCategories]
	}
	return out
}

func extractShipping(doc *goquery.Document, html string) string {
	var parts []string
	if doc.Find(`a[href*="shipping"]`).Length() > 0 {
		parts = append(parts, ShippingLinkInfo)
	}
	if reFreeShipping.MatchString(html) {
		parts = append(parts, ShippingFreeInfo)
	}
	if len(parts) == 0 {
		return ShippingDefaultInfo
	}
	return strings.Join(parts, ". ")
}

// ExtractMarkets 根据页面提及的地区推断市场，未命中时默认 europe + america
func ExtractMarkets(html string) []string {
	lower := strings.ToLower(html)
	seen := map[string]bool{}
	var markets []string
	for _, mk := range marketKeywords {
		if strings.Contains(lower, mk.keyword) && !seen[mk.market] {
			seen[mk.market] = true
			markets = append(markets, mk.market)
		}
	}
	if len(markets) == 0 {
		return []string{"europe", "america"}
	}
	return markets
}
