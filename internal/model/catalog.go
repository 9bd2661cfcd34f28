package model

// FilterOption 前台筛选项
type FilterOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

const FilterAll = "all"

// Categories 前台分类筛选
var Categories = []FilterOption{
	{ID: FilterAll, Label: "All Gifts"},
	{ID: "toys", Label: "Toys"},
	{ID: "clothing", Label: "Clothing"},
	{ID: "nursery", Label: "Nursery"},
	{ID: "mom", Label: "For Mom"},
	{ID: "dad", Label: "For Dad"},
}

// AgeGroups 前台年龄筛选
var AgeGroups = []FilterOption{
	{ID: FilterAll, Label: "All Ages"},
	{ID: "0-12m", Label: "0-12 Months"},
	{ID: "1-3y", Label: "1-3 Years"},
	{ID: "3-5y", Label: "3-5 Years"},
	{ID: "5-12y", Label: "5-12 Years"},
	{ID: "adults", Label: "Adults"},
}
