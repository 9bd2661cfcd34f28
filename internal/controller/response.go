package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"elfbaby/internal/api/dto"
	"elfbaby/internal/service"
)

// ==================== 统一响应 ====================

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, dto.Response{Code: 0, Message: "success", Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, dto.Response{Code: status, Message: message})
}

// failErr 按业务错误映射状态码
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProductNotFound), errors.Is(err, service.ErrShopNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidArgument):
		fail(c, http.StatusBadRequest, err.Error())
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "查询失败")
	}
}
