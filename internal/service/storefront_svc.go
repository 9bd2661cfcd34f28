package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"elfbaby/internal/api/dto"
	"elfbaby/internal/model"
	"elfbaby/internal/repository"
	"elfbaby/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// StorefrontService 前台只读查询
type StorefrontService struct {
	products repository.ProductRepository
	threads  repository.ThreadRepository
	now      func() time.Time
	log      *zap.Logger
}

func NewStorefrontService(products repository.ProductRepository, threads repository.ThreadRepository, log *zap.Logger) *StorefrontService {
	return &StorefrontService{
		products: products,
		threads:  threads,
		now:      time.Now,
		log:      logger.OrNop(log).Named("storefront"),
	}
}

// ListProducts 活跃商品，最新在前；分类与年龄在映射后过滤
func (s *StorefrontService) ListProducts(ctx context.Context, req dto.ProductListReq) (*dto.ProductListResp, error) {
	filter := repository.ProductFilter{
		ActiveOnly: true,
		Keyword:    strings.TrimSpace(req.Keyword),
	}
	if req.ShopID != "" {
		id, err := uuid.Parse(req.ShopID)
		if err != nil {
			return nil, fmt.Errorf("%w: shop_id 格式不正确", ErrInvalidArgument)
		}
		filter.ShopID = &id
	}

	products, err := s.products.ListAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("查询商品列表失败: %w", err)
	}

	now := s.now()
	matched := make([]dto.DisplayProduct, 0, len(products))
	for i := range products {
		dp := dto.ToDisplayProduct(&products[i], now)
		if matchCategory(dp, req.Category) && matchAge(dp, req.Age) {
			matched = append(matched, dp)
		}
	}

	page, size := normalizePage(req.Page, req.PageSize)
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}

	return &dto.ProductListResp{Total: int64(len(matched)), List: matched[start:end]}, nil
}

// GetProduct 按 slug 查询活跃商品
func (s *StorefrontService) GetProduct(ctx context.Context, slug string) (*dto.DisplayProduct, error) {
	product, err := s.activeBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	dp := dto.ToDisplayProduct(product, s.now())
	return &dp, nil
}

// ListThreads 商品文案
func (s *StorefrontService) ListThreads(ctx context.Context, slug string) (*dto.ThreadListResp, error) {
	product, err := s.activeBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	threads, err := s.threads.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("查询文案失败: %w", err)
	}

	resp := &dto.ThreadListResp{Total: int64(len(threads)), List: make([]dto.ThreadResp, 0, len(threads))}
	for i := range threads {
		resp.List = append(resp.List, dto.ToThreadResp(&threads[i]))
	}
	return resp, nil
}

// Filters 静态筛选项
func (s *StorefrontService) Filters() dto.FilterResp {
	return dto.FilterResp{Categories: model.Categories, AgeGroups: model.AgeGroups}
}

func (s *StorefrontService) activeBySlug(ctx context.Context, slug string) (*model.Product, error) {
	product, err := s.products.GetActiveBySlug(ctx, slug)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, slug)
		}
		return nil, fmt.Errorf("查询商品失败: %w", err)
	}
	return product, nil
}

func matchCategory(p dto.DisplayProduct, category string) bool {
	return category == "" || category == model.FilterAll || p.Category == category
}

// matchAge 商品 ageGroup 为 all 时适用于任意年龄
func matchAge(p dto.DisplayProduct, age string) bool {
	return age == "" || age == model.FilterAll || p.AgeGroup == age || p.AgeGroup == model.FilterAll
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
