package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"elfbaby/internal/api/dto"
	"elfbaby/internal/model"
	"elfbaby/internal/repository"
	"elfbaby/internal/scraper"
	"elfbaby/pkg/logger"
)

// CategoryCreateResult 单个分类路径的处理结果
type CategoryCreateResult struct {
	Input         string
	Category      *model.Category
	Parent        *model.Category
	ParentCreated bool
	Skipped       bool
}

// CategoryService 分类管理
type CategoryService struct {
	repo repository.CategoryRepository
	log  *zap.Logger
}

func NewCategoryService(repo repository.CategoryRepository, log *zap.Logger) *CategoryService {
	return &CategoryService{repo: repo, log: logger.OrNop(log).Named("category")}
}

// ParseCategoryPath "Parent > Child" 拆分；超过两级时取首尾
func ParseCategoryPath(input string) (parent, title string) {
	var parts []string
	for _, p := range strings.Split(input, ">") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return parts[0], parts[len(parts)-1]
	}
}

// Create 创建分类，父级不存在时一并创建，同一父级下已存在则跳过
func (s *CategoryService) Create(ctx context.Context, input string) (*CategoryCreateResult, error) {
	parentTitle, title := ParseCategoryPath(input)
	if title == "" {
		return nil, fmt.Errorf("分类名称为空: %q", input)
	}
	result := &CategoryCreateResult{Input: input}

	var parentID *uuid.UUID
	if parentTitle != "" {
		parent, created, err := s.findOrCreate(ctx, parentTitle, nil)
		if err != nil {
			return nil, err
		}
		result.Parent = parent
		result.ParentCreated = created
		parentID = &parent.ID
	}

	category, created, err := s.findOrCreate(ctx, title, parentID)
	if err != nil {
		return nil, err
	}
	category.Parent = result.Parent
	result.Category = category
	result.Skipped = !created
	return result, nil
}

// CreateMany 逐个创建，失败的路径记录日志后继续
func (s *CategoryService) CreateMany(ctx context.Context, inputs []string) ([]CategoryCreateResult, int) {
	var results []CategoryCreateResult
	failed := 0
	for _, in := range inputs {
		r, err := s.Create(ctx, in)
		if err != nil {
			failed++
			s.log.Error("创建分类失败", zap.String("input", in), zap.Error(err))
			continue
		}
		results = append(results, *r)
	}
	return results, failed
}

func (s *CategoryService) findOrCreate(ctx context.Context, title string, parentID *uuid.UUID) (*model.Category, bool, error) {
	slug := scraper.GenerateSlug(title)

	existing, err := s.repo.FindBySlug(ctx, slug, parentID)
	if err == nil {
		return existing, false, nil
	}
	if !isNotFound(err) {
		return nil, false, fmt.Errorf("查询分类失败: %w", err)
	}

	category := &model.Category{Title: title, Slug: slug, ParentID: parentID}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, false, fmt.Errorf("创建分类 %q 失败: %w", title, err)
	}
	s.log.Info("分类已创建", zap.String("title", title), zap.String("id", category.ID.String()))
	return category, true, nil
}

// ListAll 按标题排序的全部分类
func (s *CategoryService) ListAll(ctx context.Context) ([]model.Category, error) {
	categories, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询分类失败: %w", err)
	}
	return categories, nil
}

// List 前台分类列表（完整路径）
func (s *CategoryService) List(ctx context.Context) (*dto.CategoryListResp, error) {
	categories, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	resp := &dto.CategoryListResp{Total: int64(len(categories)), List: make([]dto.CategoryResp, 0, len(categories))}
	for i := range categories {
		resp.List = append(resp.List, dto.ToCategoryResp(&categories[i]))
	}
	return resp, nil
}
