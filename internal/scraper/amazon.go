package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	AmazonOrigin         = "https://www.amazon.com"
	DefaultAmazonTitle   = "Amazon Product"
	defaultBestsellerCat = "baby-products"
)

var (
	reASIN        = regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})(?:[/?]|$)`)
	reProductHref = regexp.MustCompile(`/(?:dp|gp/product)/[A-Z0-9]{10}`)
	reDPHref      = regexp.MustCompile(`(?i)/dp/[A-Z0-9]{10}`)
)

// DefaultAmazonKeywords 未指定关键词时轮换使用
var DefaultAmazonKeywords = []string{
	"popular gifts for kids",
	"best selling toys",
	"popular baby products",
	"best gifts for children",
	"popular kids items",
	"best selling baby items",
	"popular children products",
	"best kids gifts",
	"popular baby gifts",
	"best selling children items",
	"popular household items",
	"best selling home products",
	"popular kitchen items",
	"best selling electronics",
	"popular gadgets",
	"best selling accessories",
	"popular health products",
	"best selling beauty items",
	"popular sports items",
	"best selling outdoor products",
}

// AmazonProduct 搜索结果中的商品
type AmazonProduct struct {
	ASIN  string
	Title string
	URL   string
	Rank  int
}

// ExtractASIN 从商品链接提取 ASIN
func ExtractASIN(raw string) string {
	if m := reASIN.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// CleanAmazonURL 规范为 https://www.amazon.com/dp/ASIN
func CleanAmazonURL(asin string) string {
	return AmazonOrigin + "/dp/" + asin
}

// SearchURL 构造搜索地址，已处理的 ASIN 以 -ASIN 排除
func SearchURL(keyword, category string, excluded []string, page int) string {
	query := keyword
	if len(excluded) > 0 {
		terms := make([]string, len(excluded))
		for i, asin := range excluded {
			terms[i] = "-" + asin
		}
		query += " " + strings.Join(terms, " ")
	}

	u := AmazonOrigin + "/s?k=" + strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
	if category != "" {
		u += "&i=" + category
	}
	if page > 1 {
		u += fmt.Sprintf("&page=%d", page)
	}
	return u
}

// BestsellerURL 畅销榜地址
func BestsellerURL(ageGroup, category, keyword string) string {
	if category != "" {
		return AmazonOrigin + "/gp/bestsellers/" + category + "/"
	}
	if strings.Contains(strings.ToLower(keyword), "toy") {
		return AmazonOrigin + "/gp/bestsellers/" + defaultBestsellerCat + "/"
	}
	slug, ok := ageToBestseller[strings.ToLower(strings.TrimSpace(ageGroup))]
	if !ok {
		slug = defaultBestsellerCat
	}
	return AmazonOrigin + "/gp/bestsellers/" + slug + "/"
}

var ageToBestseller = map[string]string{
	"0 to 12 months": "baby-products",
	"0-12 months":    "baby-products",
	"0-12":           "baby-products",
	"1-3 years":      "toys-and-games",
	"3-5 years":      "toys-and-games",
	"5-12 years":     "toys-and-games",
}

// ExtractAmazonProducts 提取未处理过的商品
// skip 返回 true 表示该规范地址已处理（如已在清单中）
func ExtractAmazonProducts(html string, limit int, skip func(cleanURL string) bool) ([]AmazonProduct, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}
	if skip == nil {
		skip = func(string) bool { return false }
	}

	found := map[string]bool{}
	var products []AmazonProduct

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if len(products) >= limit {
			return false
		}
		href := a.AttrOr("href", "")
		if !reProductHref.MatchString(href) {
			return true
		}
		asin := ExtractASIN(StripQuery(href))
		if asin == "" {
			return true
		}
		clean := CleanAmazonURL(asin)
		if found[clean] || skip(clean) {
			return true
		}
		found[clean] = true

		products = append(products, AmazonProduct{
			ASIN:  asin,
			Title: amazonTitle(a),
			URL:   clean,
			Rank:  len(products) + 1,
		})
		return true
	})

	// 数量不足时放宽：任何 /dp/ 链接
	if len(products) < limit {
		doc.Find(`a[href*="/dp/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if len(products) >= limit {
				return false
			}
			href := a.AttrOr("href", "")
			if !reDPHref.MatchString(href) {
				return true
			}
			asin := strings.ToUpper(reDPHref.FindString(href)[len("/dp/"):])
			clean := CleanAmazonURL(asin)
			if found[clean] || skip(clean) {
				return true
			}
			found[clean] = true
			products = append(products, AmazonProduct{
				ASIN:  asin,
				Title: DefaultAmazonTitle,
				URL:   clean,
				Rank:  len(products) + 1,
			})
			return true
		})
	}

	return products, nil
}

// amazonTitle 从链接及其所在商品卡片中推断标题
func amazonTitle(a *goquery.Selection) string {
	card := a.Closest(`[data-asin], .zg-item, .s-result-item, li`)
	if card.Length() == 0 {
		card = a.Parent().Parent()
	}

	candidates := []func() string{
		func() string { return CollapseSpace(a.Text()) },
		func() string { return labelAttr(a, card) },
		func() string {
			return textOf(card.Find(`span[class*="text"], span[class*="title"], span[class*="name"]`))
		},
		func() string { return textOf(card.Find(".p13n-sc-truncate")) },
		func() string { return textOf(card.Find("h2.a-text-normal span")) },
		func() string { return textOf(card.Find("span.a-text-normal")) },
	}
	for _, c := range candidates {
		if t := c(); validTitle(t) {
			return DecodeEntities(strings.TrimSpace(t))
		}
	}
	return DefaultAmazonTitle
}

func validTitle(t string) bool {
	n := len([]rune(strings.TrimSpace(t)))
	return n > 10 && n <= 150
}

func textOf(sel *goquery.Selection) string {
	var out string
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := CollapseSpace(s.Text()); validTitle(t) {
			out = t
			return false
		}
		return true
	})
	return out
}

func labelAttr(a, card *goquery.Selection) string {
	for _, sel := range []*goquery.Selection{a, a.Find("img"), card.Find("[alt], [aria-label], [title]")} {
		var out string
		sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, attr := range []string{"alt", "aria-label", "title"} {
				if v, ok := s.Attr(attr); ok && validTitle(v) {
					out = strings.TrimSpace(v)
					return false
				}
			}
			return true
		})
		if out != "" {
			return out
		}
	}
	return ""
}
