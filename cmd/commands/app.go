package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"elfbaby/internal/config"
	"elfbaby/internal/repository"
	"elfbaby/internal/service"
	"elfbaby/pkg/database"
	"elfbaby/pkg/logger"
	"elfbaby/pkg/mdfile"
	"elfbaby/pkg/rakuten"
	"elfbaby/pkg/utils"
)

// app 命令共享的依赖，数据库按需连接
type app struct {
	cfg config.Config
	log *zap.Logger
	db  *gorm.DB
}

type appKey struct{}

func newApp(path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return &app{cfg: cfg, log: log}, nil
}

func withApp(ctx context.Context, a *app) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, appKey{}, a)
}

func appFrom(ctx context.Context) *app {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(appKey{}).(*app)
	return a
}

// DB 首次调用时连接并迁移
func (a *app) DB() (*gorm.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.InitDB(a.cfg.DB, a.log, database.Models()...)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *app) Close() {
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = a.log.Sync()
}

// ==================== 组件构造 ====================

func (a *app) fetcher(profile utils.Profile) *utils.ScrapeClient {
	return utils.NewScrapeClient(utils.ScrapeOptions{
		UserAgent: a.cfg.Scrape.UserAgent,
		Timeout:   a.cfg.Scrape.Timeout,
		Retries:   a.cfg.Scrape.Retries,
		Backoff:   a.cfg.Scrape.Backoff,
		Profile:   profile,
		Interval:  a.cfg.Scrape.ProductDelay,
		Logger:    a.log,
	})
}

func (a *app) shopService(db *gorm.DB) *service.ShopService {
	return service.NewShopService(
		repository.NewShopRepository(db),
		a.fetcher(utils.ProfileDefault),
		a.cfg.Catalog.CategoriesFile,
		a.log,
	)
}

func (a *app) categoryService(db *gorm.DB) *service.CategoryService {
	return service.NewCategoryService(repository.NewCategoryRepository(db), a.log)
}

func (a *app) productService(db *gorm.DB, fetcher service.PageFetcher) *service.ProductService {
	return service.NewProductService(
		repository.NewCatalogUnitOfWork(db),
		fetcher,
		a.cfg.Catalog.FiltersFile,
		a.log,
	)
}

// threadService ai 未配置时 --ai 返回 ErrAIDisabled
func (a *app) threadService(db *gorm.DB) *service.ThreadService {
	var gen service.ThreadGenerator
	if ai, err := a.aiService(db); err == nil {
		gen = ai
	}
	return service.NewThreadService(
		repository.NewProductRepository(db),
		repository.NewCategoryRepository(db),
		repository.NewThreadRepository(db),
		gen,
		a.log,
	)
}

// aiService 调用记录写入 ai_call_logs
func (a *app) aiService(db *gorm.DB) (*service.AIService, error) {
	ai, err := service.NewAIService(a.cfg.AI, a.log)
	if err != nil {
		return nil, err
	}
	return ai.WithCallLog(repository.NewAICallLogRepository(db)), nil
}

func (a *app) storageService() (*service.StorageService, error) {
	return service.NewStorageService(a.cfg.Storage, a.fetcher(utils.ProfileDefault), a.log)
}

func (a *app) amazonService(db *gorm.DB) *service.AmazonService {
	fetcher := a.fetcher(utils.ProfileAmazon)
	return service.NewAmazonService(
		a.shopService(db),
		a.productService(db, fetcher),
		fetcher,
		mdfile.NewChecklist(a.cfg.Amazon.ChecklistPath),
		a.cfg.Amazon,
		a.log,
	)
}

func (a *app) rakutenService(db *gorm.DB) (*service.RakutenService, error) {
	client, err := rakuten.NewClient(rakuten.Config{
		ClientID:     a.cfg.Rakuten.ClientID,
		ClientSecret: a.cfg.Rakuten.ClientSecret,
		BaseURL:      a.cfg.Rakuten.BaseURL,
		Scope:        a.cfg.Rakuten.Scope,
		Timeout:      a.cfg.Rakuten.Timeout,
	}, a.log)
	if err != nil {
		if errors.Is(err, rakuten.ErrMissingCredentials) {
			return nil, fmt.Errorf("%w (rakuten.client_id / RAKUTEN_CLIENT_ID)", err)
		}
		return nil, err
	}
	return service.NewRakutenService(
		client,
		repository.NewShopRepository(db),
		repository.NewCategoryRepository(db),
		a.productService(db, nil),
		a.log,
	), nil
}

// ==================== 输出 ====================

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

// mustApp PersistentPreRunE 之后一定存在
func mustApp(ctx context.Context) *app {
	a := appFrom(ctx)
	if a == nil {
		panic("commands: app not initialised")
	}
	return a
}
