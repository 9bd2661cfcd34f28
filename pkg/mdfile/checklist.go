package mdfile

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const checklistHeader = `# Amazon Bestsellers Checklist

This file tracks all products that have been successfully added to the database from Amazon bestseller searches. When searching for new bestseller products, check this list first to avoid processing the same products again.

## Format
Each entry includes:
- Product URL (affiliate link if available, or direct Amazon URL)
- Product Title
- Product ID (from database)
- Date Added
- Age Filters (actual age range, not requested)

## Products Added

`

var (
	reBareURL    = regexp.MustCompile(`^(https?://\S+)$`)
	reEntryURL   = regexp.MustCompile(`^- \*\*URL:\*\*\s+(https?://\S+)`)
	reEntryNum   = regexp.MustCompile(`(?m)^### (\d+)\.`)
	reChecklistA = regexp.MustCompile(`/(?:dp|gp/product)/([A-Z0-9]{10})(?:[/?]|$)`)
)

// URLSet 已处理的地址集合（均已去掉查询串）
type URLSet map[string]struct{}

// Has 判断地址（忽略查询串）是否已处理
func (s URLSet) Has(raw string) bool {
	_, ok := s[stripQuery(raw)]
	return ok
}

func (s URLSet) add(raw string) {
	s[stripQuery(raw)] = struct{}{}
}

// ChecklistEntry 清单条目
type ChecklistEntry struct {
	Title      string
	URL        string
	ProductID  string
	Date       time.Time
	AgeFilters []string
	Category   string
}

// Checklist Markdown 去重清单
type Checklist struct {
	path string
	mu   sync.Mutex
}

// NewChecklist 创建清单
func NewChecklist(path string) *Checklist {
	return &Checklist{path: path}
}

// Path 清单文件路径
func (c *Checklist) Path() string {
	return c.path
}

// Read 读取已处理地址；文件不存在时返回空集合
func (c *Checklist) Read() (URLSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := URLSet{}
	f, err := os.Open(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return set, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取清单失败: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		var u string
		if m := reBareURL.FindStringSubmatch(line); m != nil {
			u = m[1]
		} else if m := reEntryURL.FindStringSubmatch(line); m != nil {
			u = m[1]
		} else {
			continue
		}

		set.add(u)
		if m := reChecklistA.FindStringSubmatch(u); m != nil {
			set.add("https://www.amazon.com/dp/" + m[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取清单失败: %w", err)
	}
	return set, nil
}

// Append 追加一条记录，返回条目编号
func (c *Checklist) Append(entry ChecklistEntry) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	content, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		content = []byte(checklistHeader)
	case err != nil:
		return 0, fmt.Errorf("读取清单失败: %w", err)
	}

	next := 1
	for _, m := range reEntryNum.FindAllStringSubmatch(string(content), -1) {
		if n, _ := strconv.Atoi(m[1]); n >= next {
			next = n + 1
		}
	}

	date := entry.Date
	if date.IsZero() {
		date = time.Now()
	}
	ages := "none"
	if len(entry.AgeFilters) > 0 {
		ages = strings.Join(entry.AgeFilters, ", ")
	}
	category := entry.Category
	if category == "" {
		category = "(none assigned)"
	}

	var b strings.Builder
	b.Write(content)
	fmt.Fprintf(&b, "### %d. %s\n", next, entry.Title)
	fmt.Fprintf(&b, "- **URL:** %s\n", entry.URL)
	fmt.Fprintf(&b, "- **Product ID:** %s\n", entry.ProductID)
	fmt.Fprintf(&b, "- **Date Added:** %s\n", date.Format("2006-01-02"))
	fmt.Fprintf(&b, "- **Age Filters:** %s\n", ages)
	fmt.Fprintf(&b, "- **Category:** %s\n\n", category)

	if err := writeFile(c.path, b.String()); err != nil {
		return 0, err
	}
	return next, nil
}

func stripQuery(raw string) string {
	return strings.SplitN(strings.TrimSpace(raw), "?", 2)[0]
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	return nil
}
