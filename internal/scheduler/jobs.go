package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"referral-points-system/internal/service"
	"referral-points-system/pkg/logger"
)

type snapshotTaker interface {
	TakeDailySnapshot(ctx context.Context) (*service.SnapshotResult, error)
}

type leaderboardRefresher interface {
	Refresh(ctx context.Context) (*service.RefreshResult, error)
}

// Scheduler 定时执行每日快照和排行榜刷新；同一任务重叠触发时跳过
type Scheduler struct {
	cron        *cron.Cron
	snapshots   snapshotTaker
	leaderboard leaderboardRefresher

	snapshotCron string
	refreshCron  string
	timeout      time.Duration

	snapshotRunning int32
	refreshRunning  int32
}

func NewScheduler(snapshots snapshotTaker, leaderboard leaderboardRefresher, snapshotCron, refreshCron string) *Scheduler {
	return &Scheduler{
		cron:         cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		snapshots:    snapshots,
		leaderboard:  leaderboard,
		snapshotCron: snapshotCron,
		refreshCron:  refreshCron,
		timeout:      30 * time.Minute,
	}
}

// Start 注册定时任务并启动
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.snapshotCron, func() { s.runSnapshot() }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.refreshCron, func() { s.runRefresh() }); err != nil {
		return err
	}

	s.cron.Start()
	logger.WithFields(logger.Fields{
		"snapshot_cron": s.snapshotCron,
		"refresh_cron":  s.refreshCron,
	}).Info("Scheduler started")
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Scheduler stopped")
}

func (s *Scheduler) runSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, ran, err := s.TriggerSnapshot(ctx); err != nil {
		logger.WithError(err).Error("Scheduled daily snapshot failed")
	} else if !ran {
		logger.Warn("Daily snapshot still running, skipping this trigger")
	}
}

func (s *Scheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, ran, err := s.TriggerRefresh(ctx); err != nil {
		logger.WithError(err).Error("Scheduled leaderboard refresh failed")
	} else if !ran {
		logger.Warn("Leaderboard refresh still running, skipping this trigger")
	}
}

// TriggerSnapshot 手动触发每日快照；ran=false 表示已有快照任务在执行
func (s *Scheduler) TriggerSnapshot(ctx context.Context) (res *service.SnapshotResult, ran bool, err error) {
	if !atomic.CompareAndSwapInt32(&s.snapshotRunning, 0, 1) {
		return nil, false, nil
	}
	defer atomic.StoreInt32(&s.snapshotRunning, 0)

	res, err = s.snapshots.TakeDailySnapshot(ctx)
	return res, true, err
}

// TriggerRefresh 手动触发排行榜刷新；ran=false 表示已有刷新任务在执行
func (s *Scheduler) TriggerRefresh(ctx context.Context) (res *service.RefreshResult, ran bool, err error) {
	if !atomic.CompareAndSwapInt32(&s.refreshRunning, 0, 1) {
		return nil, false, nil
	}
	defer atomic.StoreInt32(&s.refreshRunning, 0)

	res, err = s.leaderboard.Refresh(ctx)
	return res, true, err
}
