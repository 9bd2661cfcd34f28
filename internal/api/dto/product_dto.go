package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"elfbaby/internal/model"
)

// PlaceholderImage 商品没有图片时使用
const PlaceholderImage = "/placeholder-product.jpg"

// newWindow 创建后多久内视为新品
const newWindow = 30 * 24 * time.Hour

// ==================== 请求 DTO ====================

// ProductListReq 前台商品列表查询
type ProductListReq struct {
	Category string `form:"category"`
	Age      string `form:"age"`
	Keyword  string `form:"q"`
	ShopID   string `form:"shop_id"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// ==================== 响应 DTO ====================

// DisplayProduct 前台展示用商品
type DisplayProduct struct {
	ID             string           `json:"id"`
	Slug           string           `json:"slug"`
	Title          string           `json:"title"`
	Price          float64          `json:"price"`
	PriceDiscount  *float64         `json:"price_discount,omitempty"`
	OriginalPrice  *float64         `json:"originalPrice,omitempty"`
	Image          string           `json:"image"`
	Category       string           `json:"category"`
	AgeGroup       string           `json:"ageGroup"`
	IsNew          bool             `json:"isNew"`
	Description    string           `json:"description,omitempty"`
	URL            string           `json:"url"`
	Images         []string         `json:"images"`
	Specifications map[string]any   `json:"specifications"`
	Shop           *ShopSummaryResp `json:"shop,omitempty"`
}

// ProductListResp 商品列表响应
type ProductListResp struct {
	Total int64            `json:"total"`
	List  []DisplayProduct `json:"list"`
}

// ThreadResp 商品文案
type ThreadResp struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Keywords  []string  `json:"keywords"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadListResp 文案列表响应
type ThreadListResp struct {
	Total int64        `json:"total"`
	List  []ThreadResp `json:"list"`
}

// FilterResp 静态筛选项
type FilterResp struct {
	Categories []model.FilterOption `json:"categories"`
	AgeGroups  []model.FilterOption `json:"ageGroups"`
}

// ==================== 转换 ====================

// ToDisplayProduct 模型转前台展示结构
func ToDisplayProduct(p *model.Product, now time.Time) DisplayProduct {
	specs := p.SpecMap()
	filters := p.FilterMap()

	images := []string(p.Images)
	if images == nil {
		images = []string{}
	}
	image := PlaceholderImage
	if len(images) > 0 {
		image = images[0]
	}

	price := 0.0
	if p.Price.Valid {
		price = p.Price.Decimal.InexactFloat64()
	}
	if price == 0 {
		if v, ok := number(specs["price"]); ok {
			price = v
		}
	}

	out := DisplayProduct{
		ID:             p.ID.String(),
		Slug:           p.Slug,
		Title:          p.Title,
		Price:          price,
		PriceDiscount:  nullableFloat(p.PriceDiscount),
		Image:          image,
		Category:       stringOr(filters["category"], model.FilterAll),
		AgeGroup:       stringOr(filters["ageGroup"], model.FilterAll),
		IsNew:          p.CreatedAt.After(now.Add(-newWindow)),
		Description:    p.Description,
		URL:            p.URL,
		Images:         images,
		Specifications: specs,
	}
	if v, ok := number(specs["originalPrice"]); ok {
		out.OriginalPrice = &v
	}
	if p.Shop != nil {
		s := ToShopSummary(p.Shop)
		out.Shop = &s
	}
	return out
}

// ToThreadResp 文案转响应
func ToThreadResp(t *model.ProductThread) ThreadResp {
	keywords := []string(t.Keywords)
	if keywords == nil {
		keywords = []string{}
	}
	return ThreadResp{
		ID:        t.ID.String(),
		Text:      t.Text,
		Keywords:  keywords,
		CreatedAt: t.CreatedAt,
	}
}

func nullableFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	v := d.Decimal.InexactFloat64()
	return &v
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

// number 兼容 JSON 中的数字与数字字符串
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, n != 0
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil || d.IsZero() {
			return 0, false
		}
		return d.InexactFloat64(), true
	default:
		return 0, false
	}
}
