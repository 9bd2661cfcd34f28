package model

import (
	"github.com/google/uuid"
)

// Category 商品分类，最多两级
type Category struct {
	BaseModel
	Title    string     `gorm:"size:255;not null" json:"title"`
	Slug     string     `gorm:"size:255;index" json:"slug"`
	ParentID *uuid.UUID `gorm:"type:uuid;index" json:"parent_id"`
	Parent   *Category  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
}

func (Category) TableName() string {
	return "categories"
}

// Path 返回 "Parent > Child" 形式的完整路径
func (c *Category) Path() string {
	if c.Parent != nil {
		return c.Parent.Title + " > " + c.Title
	}
	return c.Title
}

// ProductCategory 商品与分类关联
type ProductCategory struct {
	ProductID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"product_id"`
	CategoryID uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"category_id"`
}

func (ProductCategory) TableName() string {
	return "product_categories"
}
