package model

import (
	"encoding/json"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// 默认市场
var DefaultMarkets = []string{"europe", "america"}

// Shop 合作商家
type Shop struct {
	BaseModel

	// 1. 基本信息
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Logo        string `gorm:"size:1024" json:"logo"`
	Domain      string `gorm:"size:255;uniqueIndex" json:"domain"`
	Category    string `gorm:"size:255" json:"category"`

	// 2. 市场与配送
	Markets  pq.StringArray `gorm:"type:text[]" json:"markets"`
	Shipping datatypes.JSON `gorm:"type:jsonb" json:"shipping"` // {"info": "..."}

	// 3. 状态
	Active bool `gorm:"default:true;index" json:"active"`

	// 4. 联盟平台
	RakutenMID *string `gorm:"size:64;index" json:"rakuten_mid,omitempty"`
}

func (Shop) TableName() string {
	return "shops"
}

// ShippingInfo 读取 shipping.info
func (s *Shop) ShippingInfo() string {
	if len(s.Shipping) == 0 {
		return ""
	}
	var v struct {
		Info string `json:"info"`
	}
	if err := json.Unmarshal(s.Shipping, &v); err != nil {
		return ""
	}
	return v.Info
}

// NewShippingJSON 构造 {"info": info}
func NewShippingJSON(info string) datatypes.JSON {
	b, _ := json.Marshal(map[string]string{"info": info})
	return datatypes.JSON(b)
}
