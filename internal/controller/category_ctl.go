package controller

import (
	"github.com/gin-gonic/gin"

	"elfbaby/internal/service"
)

type CategoryController struct {
	categorySvc *service.CategoryService
}

func NewCategoryController(categorySvc *service.CategoryService) *CategoryController {
	return &CategoryController{categorySvc: categorySvc}
}

// GetCategories 分类列表
// @Summary 分类列表（含完整路径）
// @Tags Category
// @Produce json
// @Success 200 {object} dto.Response{data=dto.CategoryListResp}
// @Router /api/categories [get]
func (ctrl *CategoryController) GetCategories(c *gin.Context) {
	resp, err := ctrl.categorySvc.List(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, resp)
}
