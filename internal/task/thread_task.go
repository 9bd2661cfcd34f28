package task

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"elfbaby/internal/service"
	"elfbaby/pkg/logger"
)

// ThreadBackfiller 补齐缺失文案
type ThreadBackfiller interface {
	GenerateMissing(ctx context.Context, shopID uuid.UUID) (*service.GenerateMissingResult, error)
}

// ==================== ThreadBackfillTask 文案补齐任务 ====================

// ThreadBackfillTask 为指定商家没有文案的商品生成模板文案
type ThreadBackfillTask struct {
	threads ThreadBackfiller
	shopID  string
	spec    string
	log     *zap.Logger
}

func NewThreadBackfillTask(threads ThreadBackfiller, shopID, spec string, log *zap.Logger) *ThreadBackfillTask {
	return &ThreadBackfillTask{
		threads: threads,
		shopID:  shopID,
		spec:    spec,
		log:     logger.OrNop(log).Named("thread_backfill"),
	}
}

func (t *ThreadBackfillTask) Name() string { return "thread_backfill" }

func (t *ThreadBackfillTask) Spec() string { return t.spec }

// Run 执行一次补齐
func (t *ThreadBackfillTask) Run(ctx context.Context) error {
	shopID, err := uuid.Parse(t.shopID)
	if err != nil {
		return fmt.Errorf("商家 ID 格式不正确 %q: %w", t.shopID, err)
	}

	result, err := t.threads.GenerateMissing(ctx, shopID)
	if err != nil {
		return err
	}
	t.log.Info("文案补齐完成",
		zap.String("shop_id", t.shopID),
		zap.Int("total", result.Total),
		zap.Int("created", result.Created),
		zap.Int("failed", result.Failed),
	)
	return nil
}
