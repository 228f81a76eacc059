// Package scheduler 负责 learner 的周期性后台任务。
package scheduler

import (
	"context"
	"time"

	"chag-go/pkg/log"

	"github.com/robfig/cron/v3"
)

// DefaultSaveCheckSchedule 每分钟检查一次是否需要保存模型。
const DefaultSaveCheckSchedule = "@every 1m"

// SaveChecker 由 learner 实现：满足保存条件时落盘。
type SaveChecker interface {
	SaveIfDue(ctx context.Context)
}

// Scheduler 管理定时任务。
type Scheduler struct {
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	schedule string
	saver    SaveChecker
}

// New 创建调度器。schedule 为空时使用 DefaultSaveCheckSchedule。
func New(saver SaveChecker, schedule string) *Scheduler {
	if schedule == "" {
		schedule = DefaultSaveCheckSchedule
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		ctx:      ctx,
		cancel:   cancel,
		schedule: schedule,
		saver:    saver,
	}
}

// Start 注册保存检查任务并启动 cron。
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		log.Debugf("[Scheduler] 执行定时保存检查")
		s.saver.SaveIfDue(s.ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Infof("[Scheduler] 定时保存检查已启动, schedule: %s", s.schedule)
	return nil
}

// Stop 停止调度并等待正在运行的任务结束。
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Info("[Scheduler] 已停止")
}

// IsRunning 判断是否已注册任务。
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
