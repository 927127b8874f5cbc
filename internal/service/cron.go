package service

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"payout-core/internal/service/payout"
	"payout-core/pkg/logger"
	"payout-core/pkg/utils/lock"
)

const payoutCheckLockKey = "cron:lock:payout_check"

// PayoutChecker 由 payout.Service 实现
type PayoutChecker interface {
	RunAutomatedPayoutCheck(ctx context.Context, now time.Time) payout.AutomatedCheckResult
}

type CronService struct {
	cron    *cron.Cron
	checker PayoutChecker
	locker  lock.DistributedLock
	spec    string
	lockTTL time.Duration
	now     func() time.Time
	baseCtx context.Context
}

// NewCronService locker 为 nil 时使用进程内锁 (单实例)
func NewCronService(checker PayoutChecker, locker lock.DistributedLock, spec string, lockTTL time.Duration, loc *time.Location) *CronService {
	if locker == nil {
		locker = lock.NewLocalLock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CronService{
		// 分钟级调度，按配置时区解析 spec
		cron:    cron.New(cron.WithLocation(loc)),
		checker: checker,
		locker:  locker,
		spec:    spec,
		lockTTL: lockTTL,
		now:     func() time.Time { return time.Now().In(loc) },
		baseCtx: context.Background(),
	}
}

// Start ctx 作为每次任务的上下文
func (s *CronService) Start(ctx context.Context) error {
	s.baseCtx = ctx
	if _, err := s.cron.AddFunc(s.spec, s.RunPayoutCheck); err != nil {
		return err
	}
	s.cron.Start()
	logger.Info("Cron Service started", zap.String("payout_check", s.spec))
	return nil
}

// Stop 等待正在执行的任务结束
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Cron Service stopped")
}

// RunPayoutCheck 多实例部署时只有拿到锁的实例执行
func (s *CronService) RunPayoutCheck() {
	res, err := s.CheckNow(s.baseCtx, s.now())
	if errors.Is(err, payout.ErrCheckRunning) {
		logger.Debug("RunPayoutCheck: 已有实例在运行")
		return
	}
	if err != nil {
		logger.Warn("RunPayoutCheck: 获取锁失败", zap.Error(err))
		return
	}
	fields := []zap.Field{
		zap.Bool("success", res.Success),
		zap.Int("jobs_created", res.JobsCreated),
		zap.String("job_id", res.JobID),
		zap.String("message", res.Error),
	}
	if !res.Success {
		logger.Error("automated payout check failed", fields...)
		return
	}
	logger.Info("automated payout check finished", fields...)
}

// CheckNow 与定时任务共用同一把锁，管理端和 CLI 手动触发也走这里。
// 锁被占用时返回 payout.ErrCheckRunning
func (s *CronService) CheckNow(ctx context.Context, now time.Time) (payout.AutomatedCheckResult, error) {
	locked, err := s.locker.Acquire(ctx, payoutCheckLockKey, s.lockTTL)
	if err != nil {
		return payout.AutomatedCheckResult{}, err
	}
	if !locked {
		return payout.AutomatedCheckResult{}, payout.ErrCheckRunning
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), payoutCheckLockKey); err != nil {
			logger.Warn("CheckNow: 释放锁失败", zap.Error(err))
		}
	}()
	return s.checker.RunAutomatedPayoutCheck(ctx, now), nil
}
