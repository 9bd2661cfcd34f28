package mdfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
)

const categoriesSection = "## Categories\n"

var (
	reCategoryLine = regexp.MustCompile(`- \*\*([^*]+)\*\*(?: > \*\*([^*]+)\*\*)?`)
	reFilterLine   = regexp.MustCompile(`- \*\*([^*]+)\*\*`)
)

// ReadCategories 读取 categories.md，二级分类以 "A > B" 返回
func ReadCategories(path string) ([]string, error) {
	content, err := readOptional(path)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, m := range reCategoryLine.FindAllStringSubmatch(content, -1) {
		if m[2] != "" {
			out = append(out, strings.TrimSpace(m[1])+" > "+strings.TrimSpace(m[2]))
		} else {
			out = append(out, strings.TrimSpace(m[1]))
		}
	}
	return out, nil
}

// MergeCategories 合并新分类（不区分大小写去重），排序后重写 Categories 小节
// 返回实际新增的分类
func MergeCategories(path string, incoming []string) ([]string, error) {
	existing, err := ReadCategories(path)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(existing))
	for _, c := range existing {
		known[strings.ToLower(c)] = true
	}

	var added []string
	for _, c := range incoming {
		c = strings.TrimSpace(c)
		if c == "" || known[strings.ToLower(c)] {
			continue
		}
		known[strings.ToLower(c)] = true
		added = append(added, c)
	}
	if len(added) == 0 {
		return nil, nil
	}

	all := append(append([]string{}, existing...), added...)
	sort.Strings(all)

	lines := make([]string, len(all))
	for i, c := range all {
		if parent, child, ok := strings.Cut(c, " > "); ok {
			lines[i] = fmt.Sprintf("- **%s** > **%s**", parent, child)
		} else {
			lines[i] = fmt.Sprintf("- **%s**", c)
		}
	}

	content, err := readOptional(path)
	if err != nil {
		return nil, err
	}
	if err := writeFile(path, replaceSection(content, strings.Join(lines, "\n"))); err != nil {
		return nil, err
	}
	return added, nil
}

// replaceSection 替换 "## Categories" 到下一个二级标题之间的内容
func replaceSection(content, body string) string {
	section := categoriesSection + "\n" + body + "\n\n"

	start := strings.Index(content, categoriesSection)
	if start < 0 {
		if content == "" {
			content = "# Categories\n\n"
		} else if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return content + section
	}

	rest := content[start+len(categoriesSection):]
	if end := strings.Index(rest, "\n## "); end >= 0 {
		return content[:start] + section + strings.TrimLeft(rest[end:], "\n")
	}
	return content[:start] + section
}

// ReadFilters 读取 filters.md 中的筛选项
func ReadFilters(path string) ([]string, error) {
	content, err := readOptional(path)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, m := range reFilterLine.FindAllStringSubmatch(content, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out, nil
}

func readOptional(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	return string(b), nil
}
