package payout

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"payout-core/internal/model"
	"payout-core/internal/store"
	"payout-core/pkg/logger"
)

const (
	msgNoPrimary     = "No primary platform account configured"
	msgDisabled      = "Automated payouts are disabled"
	msgNotScheduled  = "Payout not scheduled for today"
	msgNoEligible    = "No eligible creators"
	msgAlreadyRanDay = "Payout already ran today"
)

// ShouldRunPayout daily 每天；weekly 按星期 (周日为 0)；
// monthly 按日期，超过当月天数时在月末执行
func ShouldRunPayout(now time.Time, schedule model.PayoutSchedule, day int) bool {
	switch schedule {
	case model.ScheduleDaily:
		return true
	case model.ScheduleWeekly:
		return int(now.Weekday()) == day
	case model.ScheduleMonthly:
		last := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
		if day > last {
			day = last
		}
		return now.Day() == day
	default:
		return false
	}
}

// AutomatedCheckResult 配置类原因 (未开启、非打款日等) 返回 Success=true, JobsCreated=0
type AutomatedCheckResult struct {
	Success     bool       `json:"success"`
	JobsCreated int        `json:"jobs_created"`
	JobID       string     `json:"job_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	Job         *JobResult `json:"job,omitempty"`
}

func skipped(reason string) AutomatedCheckResult {
	return AutomatedCheckResult{Success: true, Error: reason}
}

// RunAutomatedPayoutCheck 定时任务入口: 检查配置 -> 建任务 -> 立即处理。
// 同一天重复调用不会再建任务。ranOn 与建任务之间不是原子的，
// 调用方需持有 cron:lock:payout_check (见 service.CronService.CheckNow)
func (s *Service) RunAutomatedPayoutCheck(ctx context.Context, now time.Time) AutomatedCheckResult {
	log := logger.Named("payout-check")

	primary, err := s.accounts.GetPrimaryAccount(ctx)
	if err != nil {
		log.Error("load primary account failed", zap.Error(err))
		return AutomatedCheckResult{Error: err.Error()}
	}
	if primary == nil {
		return skipped(msgNoPrimary)
	}
	if !primary.AutoPayoutEnabled {
		return skipped(msgDisabled)
	}

	local := now.In(s.cfg.Location)
	if !ShouldRunPayout(local, primary.PayoutSchedule, primary.PayoutDay) {
		return skipped(msgNotScheduled)
	}

	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)
	ran, err := s.ranOn(ctx, day)
	if err != nil {
		log.Error("check existing jobs failed", zap.Error(err))
		return AutomatedCheckResult{Error: err.Error()}
	}
	if ran {
		return skipped(msgAlreadyRanDay)
	}

	job, err := s.SchedulePayoutJob(ctx, day, primary.MinimumPayoutAmount)
	if errors.Is(err, ErrNoEligibleCreators) {
		return skipped(msgNoEligible)
	}
	if err != nil {
		log.Error("schedule payout job failed", zap.Error(err))
		return AutomatedCheckResult{Error: err.Error()}
	}

	res, err := s.ProcessPayoutJob(ctx, job.ID)
	if err != nil {
		log.Error("process payout job failed", zap.String("job_id", job.ID), zap.Error(err))
		return AutomatedCheckResult{JobsCreated: 1, JobID: job.ID, Error: err.Error()}
	}
	return AutomatedCheckResult{Success: true, JobsCreated: 1, JobID: job.ID, Job: res}
}

// ranOn 当天是否已有根任务 (重试子任务不算)
func (s *Service) ranOn(ctx context.Context, day time.Time) (bool, error) {
	from := day.UTC()
	to := day.AddDate(0, 0, 1).Add(-time.Nanosecond).UTC()
	jobs, _, err := s.store.ListPayoutJobs(ctx, store.PayoutJobFilter{DateFrom: &from, DateTo: &to, Limit: 200})
	if err != nil {
		return false, err
	}
	for _, j := range jobs {
		if j.ParentJobID == nil {
			return true, nil
		}
	}
	return false, nil
}
