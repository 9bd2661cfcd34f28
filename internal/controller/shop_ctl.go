package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"elfbaby/internal/api/dto"
	"elfbaby/internal/service"
)

type ShopController struct {
	shopSvc *service.ShopService
}

func NewShopController(shopSvc *service.ShopService) *ShopController {
	return &ShopController{
		shopSvc: shopSvc,
	}
}

// GetShopList 获取商家列表
// @Summary 获取商家列表
// @Description 仅返回活跃商家，支持按名称搜索
// @Tags Shop
// @Produce json
// @Param keyword query string false "商家名称关键词"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} dto.Response{data=dto.ShopListResp} "商家列表"
// @Failure 400 {object} dto.Response "参数错误"
// @Failure 500 {object} dto.Response "服务器错误"
// @Router /api/shops [get]
func (ctrl *ShopController) GetShopList(c *gin.Context) {
	var req dto.ShopListReq
	if err := c.ShouldBindQuery(&req); err != nil {
		fail(c, http.StatusBadRequest, "参数错误: "+err.Error())
		return
	}

	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	resp, err := ctrl.shopSvc.List(c.Request.Context(), req, true)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, resp)
}
