package dto

import (
	"time"

	"elfbaby/internal/model"
)

// ================== Shop DTO ==================

// ShopListReq 商家列表请求
type ShopListReq struct {
	Keyword  string `form:"keyword"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// ShopSummaryResp 商品详情中嵌入的商家信息
type ShopSummaryResp struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Domain string `json:"domain"`
	Logo   string `json:"logo"`
}

// ShopResp 商家响应
type ShopResp struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Logo        string    `json:"logo"`
	Domain      string    `json:"domain"`
	Category    string    `json:"category"`
	Markets     []string  `json:"markets"`
	Shipping    string    `json:"shipping"`
	CreatedAt   time.Time `json:"created_at"`
}

// ShopListResp 商家列表响应
type ShopListResp struct {
	Total int64      `json:"total"`
	List  []ShopResp `json:"list"`
}

// ================== Category DTO ==================

// CategoryResp 分类响应
type CategoryResp struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Slug     string  `json:"slug"`
	ParentID *string `json:"parent_id"`
	Path     string  `json:"path"`
}

// CategoryListResp 分类列表响应
type CategoryListResp struct {
	Total int64          `json:"total"`
	List  []CategoryResp `json:"list"`
}

// ================== 转换 ==================

func ToShopSummary(s *model.Shop) ShopSummaryResp {
	return ShopSummaryResp{
		ID:     s.ID.String(),
		Title:  s.Title,
		Domain: s.Domain,
		Logo:   s.Logo,
	}
}

func ToShopResp(s *model.Shop) ShopResp {
	markets := []string(s.Markets)
	if markets == nil {
		markets = []string{}
	}
	return ShopResp{
		ID:          s.ID.String(),
		Title:       s.Title,
		Description: s.Description,
		Logo:        s.Logo,
		Domain:      s.Domain,
		Category:    s.Category,
		Markets:     markets,
		Shipping:    s.ShippingInfo(),
		CreatedAt:   s.CreatedAt,
	}
}

func ToCategoryResp(c *model.Category) CategoryResp {
	resp := CategoryResp{
		ID:    c.ID.String(),
		Title: c.Title,
		Slug:  c.Slug,
		Path:  c.Path(),
	}
	if c.ParentID != nil {
		pid := c.ParentID.String()
		resp.ParentID = &pid
	}
	return resp
}
