package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"elfbaby/internal/controller"
	"elfbaby/internal/middleware"

	_ "elfbaby/docs"
)

// Controllers 前台接口依赖
type Controllers struct {
	Product  *controller.ProductController
	Shop     *controller.ShopController
	Category *controller.CategoryController
}

// Options 中间件参数
type Options struct {
	RateLimit float64
	RateBurst int
	Log       *zap.Logger
}

// New 创建 gin 引擎并注册所有路由
func New(ctls Controllers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics(), middleware.Logger(opts.Log))
	InitRoutes(r, ctls, middleware.NewClientRateLimiter(opts.RateLimit, opts.RateBurst))
	return r
}

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine, ctls Controllers, limiter *middleware.ClientRateLimiter) {
	// 1. 运维路由
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 2. Swagger 文档路由
	// 访问 http://localhost:8080/swagger/index.html 即可查看
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 3. API 路由组
	api := r.Group("/api", middleware.RateLimit(limiter))
	{
		products := api.Group("/products")
		{
			// GET /api/products?category=toys&age=1-3y&q=wood
			products.GET("", ctls.Product.GetProducts)
			products.GET("/:slug", ctls.Product.GetProduct)
			products.GET("/:slug/threads", ctls.Product.GetThreads)
		}
		api.GET("/filters", ctls.Product.GetFilters)
		api.GET("/shops", ctls.Shop.GetShopList)
		api.GET("/categories", ctls.Category.GetCategories)
	}
}
