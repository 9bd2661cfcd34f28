package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"elfbaby/internal/controller"
	"elfbaby/internal/repository"
	"elfbaby/internal/router"
	"elfbaby/internal/service"
	"elfbaby/internal/task"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动前台只读接口，按配置启动定时任务",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustApp(cmd.Context())
		db, err := a.DB()
		if err != nil {
			return err
		}

		if a.cfg.App.Env == "prod" {
			gin.SetMode(gin.ReleaseMode)
		}

		storefront := service.NewStorefrontService(repository.NewProductRepository(db), repository.NewThreadRepository(db), a.log)
		r := router.New(router.Controllers{
			Product:  controller.NewProductController(storefront),
			Shop:     controller.NewShopController(a.shopService(db)),
			Category: controller.NewCategoryController(a.categoryService(db)),
		}, router.Options{
			RateLimit: a.cfg.Server.RateLimit,
			RateBurst: a.cfg.Server.RateBurst,
			Log:       a.log,
		})

		var tm *task.TaskManager
		if a.cfg.Cron.Enabled {
			tm, err = buildTaskManager(a, db)
			if err != nil {
				return err
			}
			tm.Start()
		}

		srv := &http.Server{
			Addr:    a.cfg.Server.HTTPAddr,
			Handler: r,
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("HTTP 服务启动", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			if tm != nil {
				tm.Stop()
			}
			return err
		case <-cmd.Context().Done():
			a.log.Info("收到退出信号，正在关闭")
		}

		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.log.Error("HTTP 服务关闭失败", zap.Error(err))
		}
		if tm != nil {
			tm.Stop()
		}
		a.log.Info("服务已退出")
		return nil
	},
}

// buildTaskManager 注册文案补齐与 Rakuten 同步
func buildTaskManager(a *app, db *gorm.DB) (*task.TaskManager, error) {
	tm := task.NewTaskManager(a.cfg.Cron.RunTimeout, a.log)

	backfill := task.NewThreadBackfillTask(a.threadService(db), a.cfg.Amazon.ShopID, a.cfg.Cron.ThreadBackfill, a.log)
	if err := tm.Register(backfill); err != nil {
		return nil, err
	}

	if a.cfg.Cron.RakutenSync != "" {
		rs, err := a.rakutenService(db)
		if err != nil {
			a.log.Warn("Rakuten 同步未启用", zap.Error(err))
			return tm, nil
		}
		if err := tm.Register(task.NewRakutenSyncTask(rs, a.cfg.Rakuten.SyncMax, a.cfg.Cron.RakutenSync, a.log)); err != nil {
			return nil, err
		}
	}
	return tm, nil
}
