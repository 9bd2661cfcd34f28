package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxTextContent 页面正文最多保留的字符数
const MaxTextContent = 10000

var (
	reSlugInvalid  = regexp.MustCompile(`[^\w\s-]`)
	reWhitespace   = regexp.MustCompile(`\s+`)
	reDashes       = regexp.MustCompile(`-+`)
	reBody         = regexp.MustCompile(`(?is)<body[^>]*>(.*?)</body>`)
	reScript       = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reStyle        = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reTag          = regexp.MustCompile(`<[^>]+>`)
	entityReplacer = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// GenerateSlug 标题转 URL slug
func GenerateSlug(title string) string {
	s := strings.TrimSpace(strings.ToLower(title))
	s = reSlugInvalid.ReplaceAllString(s, "")
	s = reWhitespace.ReplaceAllString(s, "-")
	s = reDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// DecodeEntities 解码常见 HTML 实体
func DecodeEntities(s string) string {
	return entityReplacer.Replace(s)
}

// StripTags 去掉标签，标签位置替换为空格
func StripTags(s string) string {
	return reTag.ReplaceAllString(s, " ")
}

// CollapseSpace 合并空白并去掉首尾空白
func CollapseSpace(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// ExtractTextContent 提取 body 纯文本（去掉 script/style）
func ExtractTextContent(html string) string {
	m := reBody.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	body := reScript.ReplaceAllString(m[1], "")
	body = reStyle.ReplaceAllString(body, "")
	return Truncate(CollapseSpace(StripTags(body)), MaxTextContent)
}

// Truncate 按字符截断
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// EnsureScheme 没有协议时补 https://
func EnsureScheme(raw string) string {
	if strings.HasPrefix(raw, "http") {
		return raw
	}
	return "https://" + raw
}

// ResolveURL 将页面内的链接转为绝对地址
func ResolveURL(ref, pageURL string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref
	}

	base, err := url.Parse(EnsureScheme(pageURL))
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// ExtractDomain 去掉协议与 www. 的主机名
func ExtractDomain(raw string) string {
	u, err := url.Parse(EnsureScheme(strings.TrimSpace(raw)))
	if err == nil && u.Hostname() != "" {
		return strings.TrimPrefix(u.Hostname(), "www.")
	}
	s := strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	s = strings.TrimPrefix(s, "www.")
	return strings.SplitN(s, "/", 2)[0]
}

// StripQuery 去掉 ? 之后的部分
func StripQuery(raw string) string {
	return strings.SplitN(raw, "?", 2)[0]
}

func parseDocument(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// firstAttr 返回第一个非空属性
func firstAttr(doc *goquery.Document, selector, attr string) string {
	var out string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			out = strings.TrimSpace(v)
			return false
		}
		return true
	})
	return out
}

// firstText 返回第一个非空文本
func firstText(doc *goquery.Document, selector string) string {
	var out string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = t
			return false
		}
		return true
	})
	return out
}
