package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"elfbaby/pkg/logger"
)

// Job 定时任务
type Job interface {
	Name() string
	// Spec 六段式 cron 表达式，为空表示不调度
	Spec() string
	Run(ctx context.Context) error
}

// ==================== TaskManager 定时任务管理器 ====================

// TaskManager 统一调度目录维护任务
// 所有任务共用一把锁，同一时刻只有一个任务在运行
type TaskManager struct {
	cron    *cron.Cron
	jobs    map[string]Job
	timeout time.Duration
	log     *zap.Logger

	runMu sync.Mutex
}

// NewTaskManager timeout <= 0 时默认 1 小时
func NewTaskManager(timeout time.Duration, log *zap.Logger) *TaskManager {
	if timeout <= 0 {
		timeout = time.Hour
	}
	return &TaskManager{
		cron:    cron.New(cron.WithSeconds()),
		jobs:    make(map[string]Job),
		timeout: timeout,
		log:     logger.OrNop(log).Named("task"),
	}
}

// Register 注册任务，Spec 为空的任务只能手动触发
func (tm *TaskManager) Register(job Job) error {
	if _, ok := tm.jobs[job.Name()]; ok {
		return fmt.Errorf("任务 %s 已注册", job.Name())
	}

	spec := job.Spec()
	if spec == "" {
		tm.jobs[job.Name()] = job
		tm.log.Info("任务未配置调度", zap.String("task", job.Name()))
		return nil
	}
	if _, err := tm.cron.AddFunc(spec, func() { tm.execute(job) }); err != nil {
		return fmt.Errorf("任务 %s 调度表达式无效 %q: %w", job.Name(), spec, err)
	}
	tm.jobs[job.Name()] = job
	tm.log.Info("任务已注册", zap.String("task", job.Name()), zap.String("spec", spec))
	return nil
}

// ==================== 生命周期管理 ====================

// Start 启动调度
func (tm *TaskManager) Start() {
	tm.cron.Start()
	tm.log.Info("定时任务已启动", zap.Int("entries", len(tm.cron.Entries())))
}

// Stop 停止调度并等待运行中的任务结束
func (tm *TaskManager) Stop() {
	ctx := tm.cron.Stop()
	<-ctx.Done()
	tm.log.Info("定时任务已停止")
}

// ==================== 手动触发 ====================

// RunNow 立即执行指定任务，与定时执行互斥
func (tm *TaskManager) RunNow(ctx context.Context, name string) error {
	job, ok := tm.jobs[name]
	if !ok {
		return ErrTaskDisabled
	}
	return tm.run(ctx, job)
}

func (tm *TaskManager) execute(job Job) {
	if err := tm.run(context.Background(), job); err != nil {
		tm.log.Error("任务执行失败", zap.String("task", job.Name()), zap.Error(err))
	}
}

func (tm *TaskManager) run(parent context.Context, job Job) error {
	tm.runMu.Lock()
	defer tm.runMu.Unlock()

	ctx, cancel := context.WithTimeout(parent, tm.timeout)
	defer cancel()

	start := time.Now()
	tm.log.Info("任务开始", zap.String("task", job.Name()))
	err := job.Run(ctx)
	tm.log.Info("任务结束", zap.String("task", job.Name()), zap.Duration("elapsed", time.Since(start)), zap.Bool("ok", err == nil))
	return err
}

// ==================== 状态查询 ====================

// Status 任务是否处于调度中
func (tm *TaskManager) Status() map[string]bool {
	status := make(map[string]bool, len(tm.jobs))
	for name, job := range tm.jobs {
		status[name] = job.Spec() != ""
	}
	return status
}

// ==================== 错误定义 ====================

type TaskError string

func (e TaskError) Error() string { return string(e) }

const (
	ErrTaskDisabled TaskError = "task is disabled"
)
