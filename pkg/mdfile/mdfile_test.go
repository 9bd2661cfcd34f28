package mdfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecklist_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checklist.md")
	c := NewChecklist(path)

	set, err := c.Read()
	require.NoError(t, err)
	assert.Empty(t, set, "文件不存在时为空")

	n, err := c.Append(ChecklistEntry{
		Title:      "Wooden Stacker",
		URL:        "https://www.amazon.com/dp/B000000001?tag=elfbaby-20",
		ProductID:  "p-1",
		Date:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		AgeFilters: []string{"0 to 12 months", "1 - 3 years"},
		Category:   "Toys",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.Append(ChecklistEntry{Title: "Plush Bunny", URL: "https://www.amazon.com/dp/B000000002", ProductID: "p-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.True(t, strings.HasPrefix(content, "# Amazon Bestsellers Checklist\n"))
	assert.Contains(t, content, "### 1. Wooden Stacker\n- **URL:** https://www.amazon.com/dp/B000000001?tag=elfbaby-20\n")
	assert.Contains(t, content, "- **Date Added:** 2026-03-01\n")
	assert.Contains(t, content, "- **Age Filters:** 0 to 12 months, 1 - 3 years\n")
	assert.Contains(t, content, "### 2. Plush Bunny\n")
	assert.Contains(t, content, "- **Age Filters:** none\n- **Category:** (none assigned)\n")

	set, err = c.Read()
	require.NoError(t, err)
	assert.True(t, set.Has("https://www.amazon.com/dp/B000000001"))
	assert.True(t, set.Has("https://www.amazon.com/dp/B000000002?ref=x"))
	assert.False(t, set.Has("https://www.amazon.com/dp/B000000003"))
}

func TestChecklist_ReadBareURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checklist.md")
	require.NoError(t, os.WriteFile(path, []byte(
		"# list\n\nhttps://www.amazon.com/Some-Toy/dp/B0ABCDEFGH/ref=x?th=1\nnot a url\n### 7. Old\n"), 0o644))

	c := NewChecklist(path)
	set, err := c.Read()
	require.NoError(t, err)
	assert.True(t, set.Has("https://www.amazon.com/Some-Toy/dp/B0ABCDEFGH/ref=x"))
	assert.True(t, set.Has("https://www.amazon.com/dp/B0ABCDEFGH"), "按 ASIN 归一")
	assert.Len(t, set, 2)

	n, err := c.Append(ChecklistEntry{Title: "New", URL: "https://www.amazon.com/dp/B000000009"})
	require.NoError(t, err)
	assert.Equal(t, 8, n, "编号接在已有最大编号之后")
}

func TestMergeCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.md")
	require.NoError(t, os.WriteFile(path, []byte(
		"# Categories\n\n## Categories\n\n- **Toys**\n- **Toys** > **Puzzles**\n\n## Notes\n\nkeep me\n"), 0o644))

	got, err := ReadCategories(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Toys", "Toys > Puzzles"}, got)

	added, err := MergeCategories(path, []string{"toys", "Clothing", " ", "Clothing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Clothing"}, added)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"# Categories\n\n## Categories\n\n- **Clothing**\n- **Toys**\n- **Toys** > **Puzzles**\n\n## Notes\n\nkeep me\n",
		string(raw))

	added, err = MergeCategories(path, []string{"CLOTHING"})
	require.NoError(t, err)
	assert.Empty(t, added)
}

func TestMergeCategories_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "categories.md")

	added, err := MergeCategories(path, []string{"Toys", "Nursery"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Toys", "Nursery"}, added)

	got, err := ReadCategories(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Nursery", "Toys"}, got)
}

func TestReadFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filters.md")
	require.NoError(t, os.WriteFile(path, []byte("# Filters\n\n- **0 to 12 months**\n- **Adults**\n"), 0o644))

	got, err := ReadFilters(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"0 to 12 months", "Adults"}, got)

	got, err = ReadFilters(filepath.Join(t.TempDir(), "missing.md"))
	require.NoError(t, err)
	assert.Empty(t, got)
}
