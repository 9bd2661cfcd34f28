package rakuten

// Product 商品搜索返回的单个商品
type Product struct {
	MID                  string `json:"mid"`
	MerchantName         string `json:"merchantname"`
	MerchantCategoryPath string `json:"merchantcategorypath"`
	MerchantProductID    string `json:"merchantproductid"`
	ProductName          string `json:"productname"`
	ProductURL           string `json:"producturl"`
	ImageURL             string `json:"imageurl"`
	Price                string `json:"price"`
	Currency             string `json:"currency"`
	InStock              string `json:"instock"`
	Description          string `json:"description,omitempty"`
	Category             string `json:"category,omitempty"`
	Manufacturer         string `json:"manufacturer,omitempty"`
	SKU                  string `json:"sku,omitempty"`
}

// SearchResponse productsearch 接口响应
type SearchResponse struct {
	Products     []Product `json:"products"`
	TotalResults int       `json:"totalresults"`
	TotalPages   int       `json:"totalpages"`
	Page         int       `json:"page"`
}

// SearchOptions 搜索参数，零值字段不发送
type SearchOptions struct {
	Keyword  string
	Page     int
	PageSize int
	Category string
	InStock  *bool
}

// ListOptions 分页拉取参数，MaxProducts <= 0 表示不限
type ListOptions struct {
	Keyword     string
	Category    string
	InStock     *bool
	MaxProducts int
}

// MerchantInfo 商家信息（取自首个商品）
type MerchantInfo struct {
	MID                  string
	MerchantName         string
	MerchantCategoryPath string
}
