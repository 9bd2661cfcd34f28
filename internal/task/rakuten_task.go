package task

import (
	"context"

	"go.uber.org/zap"

	"elfbaby/internal/service"
	"elfbaby/pkg/logger"
)

// RakutenSyncer 按商家同步 Rakuten 商品
type RakutenSyncer interface {
	Sync(ctx context.Context, max int) ([]service.RakutenSyncResult, error)
}

// ==================== RakutenSyncTask Rakuten 同步任务 ====================

// RakutenSyncTask 为每个绑定 MID 的商家导入新的有货商品
type RakutenSyncTask struct {
	syncer RakutenSyncer
	max    int
	spec   string
	log    *zap.Logger
}

func NewRakutenSyncTask(syncer RakutenSyncer, max int, spec string, log *zap.Logger) *RakutenSyncTask {
	if max <= 0 {
		max = 20
	}
	return &RakutenSyncTask{
		syncer: syncer,
		max:    max,
		spec:   spec,
		log:    logger.OrNop(log).Named("rakuten_sync"),
	}
}

func (t *RakutenSyncTask) Name() string { return "rakuten_sync" }

func (t *RakutenSyncTask) Spec() string { return t.spec }

// Run 单个商家失败只记日志
func (t *RakutenSyncTask) Run(ctx context.Context) error {
	results, err := t.syncer.Sync(ctx, t.max)
	if err != nil {
		return err
	}

	var created, failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		if r.Report != nil {
			created += r.Report.Created
		}
	}
	t.log.Info("Rakuten 同步完成",
		zap.Int("shops", len(results)),
		zap.Int("created", created),
		zap.Int("failed_shops", failed),
	)
	return nil
}
