package model

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Product 联盟商品
type Product struct {
	BaseModel

	// --- 归属 ---
	ShopID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_shop_slug,priority:1" json:"shop_id"`
	Shop   *Shop     `gorm:"foreignKey:ShopID" json:"shop,omitempty"`

	// --- 基本信息 ---
	Title       string `gorm:"size:512;not null" json:"title"`
	Slug        string `gorm:"size:255;not null;uniqueIndex:idx_shop_slug,priority:2" json:"slug"`
	URL         string `gorm:"size:2048" json:"url"`
	Description string `gorm:"type:text" json:"description"`

	// --- 价格 ---
	Price         decimal.NullDecimal `gorm:"type:numeric(10,2)" json:"price"`
	PriceDiscount decimal.NullDecimal `gorm:"type:numeric(10,2)" json:"price_discount"`

	// --- 自由结构 ---
	Specifications datatypes.JSON              `gorm:"type:jsonb" json:"specifications"`
	Filters        datatypes.JSON              `gorm:"type:jsonb" json:"filters"` // {"age": [...], "category": "...", "ageGroup": "..."}
	Images         datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"images"`

	Active bool `gorm:"default:true;index" json:"active"`
}

func (Product) TableName() string {
	return "products"
}

// SpecMap 解析 specifications，失败时返回空 map
func (p *Product) SpecMap() map[string]any {
	return decodeObject(p.Specifications)
}

// FilterMap 解析 filters，失败时返回空 map
func (p *Product) FilterMap() map[string]any {
	return decodeObject(p.Filters)
}

func decodeObject(raw datatypes.JSON) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// NewJSONObject 序列化为 datatypes.JSON，nil 输出 {}
func NewJSONObject(v map[string]any) datatypes.JSON {
	if v == nil {
		return datatypes.JSON("{}")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}

// NewImageList 保证序列化为数组而不是 null
func NewImageList(images []string) datatypes.JSONSlice[string] {
	if images == nil {
		images = []string{}
	}
	return datatypes.JSONSlice[string](images)
}
