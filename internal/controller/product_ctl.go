package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"elfbaby/internal/api/dto"
	"elfbaby/internal/service"
)

type ProductController struct {
	storefront *service.StorefrontService
}

func NewProductController(storefront *service.StorefrontService) *ProductController {
	return &ProductController{storefront: storefront}
}

// ==================== 查询接口 ====================

// GetProducts 获取商品列表
// @Summary 前台商品列表
// @Description 活跃商品按创建时间倒序，支持分类、年龄、关键词、商家筛选
// @Tags Product
// @Produce json
// @Param category query string false "分类 (all/toys/clothing/nursery/mom/dad)"
// @Param age query string false "年龄段 (all/0-12m/1-3y/3-5y/5-12y/adults)"
// @Param q query string false "标题关键词"
// @Param shop_id query string false "商家ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} dto.Response{data=dto.ProductListResp}
// @Failure 400 {object} dto.Response "参数错误"
// @Router /api/products [get]
func (ctrl *ProductController) GetProducts(c *gin.Context) {
	var req dto.ProductListReq
	if err := c.ShouldBindQuery(&req); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	resp, err := ctrl.storefront.ListProducts(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, resp)
}

// GetProduct 获取商品详情
// @Summary 商品详情
// @Tags Product
// @Produce json
// @Param slug path string true "商品 slug"
// @Success 200 {object} dto.Response{data=dto.DisplayProduct}
// @Failure 404 {object} dto.Response "商品不存在"
// @Router /api/products/{slug} [get]
func (ctrl *ProductController) GetProduct(c *gin.Context) {
	product, err := ctrl.storefront.GetProduct(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, product)
}

// GetThreads 获取商品文案
// @Summary 商品社交文案
// @Tags Product
// @Produce json
// @Param slug path string true "商品 slug"
// @Success 200 {object} dto.Response{data=dto.ThreadListResp}
// @Failure 404 {object} dto.Response "商品不存在"
// @Router /api/products/{slug}/threads [get]
func (ctrl *ProductController) GetThreads(c *gin.Context) {
	resp, err := ctrl.storefront.ListThreads(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, resp)
}

// GetFilters 前台筛选项
// @Summary 分类与年龄段筛选项
// @Tags Product
// @Produce json
// @Success 200 {object} dto.Response{data=dto.FilterResp}
// @Router /api/filters [get]
func (ctrl *ProductController) GetFilters(c *gin.Context) {
	ok(c, ctrl.storefront.Filters())
}
