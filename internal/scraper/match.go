package scraper

import (
	"strings"

	"github.com/google/uuid"

	"elfbaby/internal/model"
)

// 年龄筛选关键词规则，顺序即输出顺序
var ageRules = []struct {
	filter   string
	keywords []string
}{
	{"0 to 12 months", []string{"baby", "newborn", "0-12"}},
	{"1 - 3 years", []string{"toddler", "1-3", "1 to 3"}},
	{"3 - 5 years", []string{"preschool", "3-5", "3 to 5"}},
	{"5 - 7 years", []string{"child", "kid", "5-7"}},
	{"13 - 17 years", []string{"teen", "13-17"}},
	{"Adults", []string{"adult", "18+"}},
}

func searchText(title, text string) string {
	return strings.ToLower(title + " " + text)
}

// MatchCategories 分类标题出现在商品文本中（或反向包含文本开头）即视为匹配
func MatchCategories(title, text string, categories []model.Category) []uuid.UUID {
	haystack := searchText(title, text)
	head := Truncate(haystack, 20)

	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, c := range categories {
		ct := strings.ToLower(c.Title)
		if ct == "" {
			continue
		}
		if strings.Contains(haystack, ct) || (strings.TrimSpace(head) != "" && strings.Contains(ct, head)) {
			if !seen[c.ID] {
				seen[c.ID] = true
				ids = append(ids, c.ID)
			}
		}
	}
	return ids
}

// DetermineAgeFilters 关键词推断年龄筛选，只保留 filters.md 中存在的项
func DetermineAgeFilters(title, text string, available []string) []string {
	haystack := searchText(title, text)
	allowed := make(map[string]bool, len(available))
	for _, f := range available {
		allowed[f] = true
	}

	var out []string
	for _, rule := range ageRules {
		if !allowed[rule.filter] {
			continue
		}
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				out = append(out, rule.filter)
				break
			}
		}
	}
	return out
}
