// Package payout 自动批量打款: 资格筛选 -> 建任务 (快照) -> 逐个创作者打款 -> 汇总
package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payout-core/internal/model"
	"payout-core/internal/service/connect"
	"payout-core/internal/store"
	"payout-core/pkg/logger"
	"payout-core/pkg/monitor"
)

var (
	ErrJobNotFound        = errors.New("payout job not found")
	ErrJobNotPending      = errors.New("payout job is not pending")
	ErrNoEligibleCreators = errors.New("no eligible creators")
	ErrJobNotRetryable    = errors.New("payout job cannot be retried")
	ErrInvalidMinimum     = errors.New("minimum amount must not be negative")
	ErrCheckRunning       = errors.New("automated payout check is already running")
)

const (
	reasonNoMethod      = "No payout method configured"
	reasonNoStripe      = "Stripe Connect account not connected"
	reasonZeroBalance   = "Balance is zero"
	reasonInvalidMethod = "Invalid payout method"
)

// Transferer Stripe Connect 转账 (connect.Service 实现)
type Transferer interface {
	TransferToCreator(ctx context.Context, in connect.TransferInput) connect.TransferResult
}

// AccountProvider 平台主账户 (platform.Service 实现)
type AccountProvider interface {
	GetPrimaryAccount(ctx context.Context) (*model.PlatformAccount, error)
}

type Config struct {
	// JobDeadline 单个任务的处理时限，0 表示不限
	JobDeadline time.Duration
	// Location 判断打款日使用的时区
	Location *time.Location
}

type Service struct {
	store     store.Store
	transfers Transferer
	accounts  AccountProvider
	cfg       Config
	now       func() time.Time
}

func NewService(st store.Store, transfers Transferer, accounts AccountProvider, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{store: st, transfers: transfers, accounts: accounts, cfg: cfg, now: time.Now}
}

// EligibleCreator 资格筛选结果
type EligibleCreator struct {
	CreatorID       string              `json:"creator_id"`
	WalletID        string              `json:"wallet_id"`
	Balance         decimal.Decimal     `json:"balance"`
	Currency        string              `json:"currency"`
	PayoutMethod    *model.PayoutMethod `json:"payout_method,omitempty"`
	StripeAccountID string              `json:"stripe_account_id,omitempty"`
	IsEligible      bool                `json:"is_eligible"`
	Reason          string              `json:"reason,omitempty"`
}

// GetEligibleCreators 只读筛选，不修改任何钱包
func (s *Service) GetEligibleCreators(ctx context.Context, minimum decimal.Decimal) ([]EligibleCreator, error) {
	if minimum.IsNegative() {
		return nil, ErrInvalidMinimum
	}
	wallets, err := s.store.ListActiveWallets(ctx, minimum)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}

	out := make([]EligibleCreator, 0, len(wallets))
	for i := range wallets {
		out = append(out, screen(&wallets[i]))
	}
	return out, nil
}

func screen(w *model.CreatorWallet) EligibleCreator {
	ec := EligibleCreator{
		CreatorID:    w.CreatorID,
		WalletID:     w.ID,
		Balance:      w.Balance,
		Currency:     w.Currency,
		PayoutMethod: w.PayoutMethod,
	}
	if w.StripeAccountID != nil {
		ec.StripeAccountID = *w.StripeAccountID
	}

	switch {
	case !w.Balance.IsPositive():
		ec.Reason = reasonZeroBalance
	case w.PayoutMethod == nil:
		ec.Reason = reasonNoMethod
	case w.PayoutMethod.Type == model.PayoutMethodStripeConnect && !w.HasStripeAccount():
		ec.Reason = reasonNoStripe
	default:
		if err := w.PayoutMethod.Validate(); err != nil {
			ec.Reason = fmt.Sprintf("%s: %v", reasonInvalidMethod, err)
		} else {
			ec.IsEligible = true
		}
	}
	return ec
}

// SchedulePayoutJob 快照当前可打款的创作者；没有人符合条件时不建任务
func (s *Service) SchedulePayoutJob(ctx context.Context, scheduledDate time.Time, minimum decimal.Decimal) (*model.PayoutJob, error) {
	candidates, err := s.GetEligibleCreators(ctx, minimum)
	if err != nil {
		return nil, err
	}

	creators := make(model.JobCreators, 0, len(candidates))
	total := decimal.Zero
	for _, c := range candidates {
		if !c.IsEligible {
			continue
		}
		creators = append(creators, model.JobCreator{
			CreatorID:    c.CreatorID,
			WalletID:     c.WalletID,
			Amount:       c.Balance,
			Currency:     c.Currency,
			PayoutMethod: *c.PayoutMethod,
		})
		total = total.Add(c.Balance)
	}
	if len(creators) == 0 {
		return nil, ErrNoEligibleCreators
	}

	id := uuid.NewString()
	job := &model.PayoutJob{
		ID:            id,
		ScheduledDate: scheduledDate.UTC(),
		Status:        model.JobPending,
		MinimumAmount: minimum,
		TotalCreators: len(creators),
		TotalAmount:   total,
		Creators:      creators,
		LineageID:     id,
		Attempt:       1,
	}
	if err := s.store.CreatePayoutJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create payout job: %w", err)
	}

	logger.Info("payout job scheduled",
		zap.String("job_id", job.ID),
		zap.Int("total_creators", job.TotalCreators),
		zap.String("total_amount", job.TotalAmount.String()))
	return job, nil
}

// JobResult 任务处理结果
type JobResult struct {
	JobID             string                `json:"job_id"`
	Status            model.JobStatus       `json:"status"`
	SuccessfulPayouts int                   `json:"successful_payouts"`
	FailedPayouts     int                   `json:"failed_payouts"`
	Errors            model.JobErrors       `json:"errors"`
	Results           []CreatorPayoutResult `json:"results"`
	Job               *model.PayoutJob      `json:"job,omitempty"`
}

// ProcessPayoutJob 抢占任务 (pending -> processing) 后按快照顺序处理。
// 单个创作者失败只记录，不中断循环；全部成功才是 completed。
func (s *Service) ProcessPayoutJob(ctx context.Context, jobID string) (*JobResult, error) {
	job, claimed, err := s.store.ClaimPayoutJob(ctx, jobID, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim payout job: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: current status is %s", ErrJobNotPending, job.Status)
	}

	started := time.Now()
	runCtx := ctx
	if s.cfg.JobDeadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.JobDeadline)
		defer cancel()
	}

	log := logger.Named("payout").With(zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	log.Info("processing payout job", zap.Int("creators", len(job.Creators)))

	creators := job.Creators.Clone()
	result := &JobResult{JobID: job.ID, Errors: model.JobErrors{}, Results: make([]CreatorPayoutResult, 0, len(creators))}
	for i := range creators {
		c := &creators[i]

		var res CreatorPayoutResult
		if err := runCtx.Err(); err != nil {
			res = CreatorPayoutResult{CreatorID: c.CreatorID, Error: err.Error()}
		} else {
			res = s.dispatch(runCtx, job, *c)
		}

		c.RequestID = res.PayoutRequestID
		if res.Success {
			c.Status = res.Status
			c.Error = ""
			result.SuccessfulPayouts++
		} else {
			c.Status = string(model.PayoutRequestFailed)
			c.Error = res.Error
			result.FailedPayouts++
			result.Errors = append(result.Errors, model.JobError{CreatorID: c.CreatorID, Error: res.Error})
			log.Warn("creator payout failed", zap.String("creator_id", c.CreatorID), zap.String("error", res.Error))
		}
		result.Results = append(result.Results, res)
	}

	result.Status = model.JobCompleted
	if result.FailedPayouts > 0 {
		result.Status = model.JobFailed
	}

	// 超时或调用方取消后仍然要写回任务结果
	finalized, err := s.store.FinalizePayoutJob(context.WithoutCancel(ctx), store.FinalizeInput{
		JobID:             job.ID,
		Status:            result.Status,
		SuccessfulPayouts: result.SuccessfulPayouts,
		FailedPayouts:     result.FailedPayouts,
		Creators:          creators,
		Errors:            result.Errors,
		CompletedAt:       s.now(),
	})
	if err != nil {
		log.Error("finalize payout job failed", zap.Error(err))
		return nil, fmt.Errorf("finalize payout job: %w", err)
	}
	result.Job = finalized

	monitor.Business.PayoutJobsTotal.WithLabelValues(string(result.Status)).Inc()
	monitor.Business.PayoutJobDuration.Observe(time.Since(started).Seconds())
	log.Info("payout job finalized",
		zap.String("status", string(result.Status)),
		zap.Int("successful", result.SuccessfulPayouts),
		zap.Int("failed", result.FailedPayouts),
		zap.Duration("elapsed", time.Since(started)))
	return result, nil
}

// dispatch 单个创作者打款，panic 转为失败结果
func (s *Service) dispatch(ctx context.Context, job *model.PayoutJob, c model.JobCreator) (res CreatorPayoutResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("creator payout panic",
				zap.String("job_id", job.ID),
				zap.String("creator_id", c.CreatorID),
				zap.Any("panic", r))
			res = CreatorPayoutResult{CreatorID: c.CreatorID, Error: fmt.Sprintf("unexpected error: %v", r)}
		}
	}()

	return s.ProcessCreatorPayout(ctx, CreatorPayout{
		CreatorID: c.CreatorID,
		WalletID:  c.WalletID,
		Amount:    c.Amount,
		Currency:  c.Currency,
		Method:    c.PayoutMethod,
		JobID:     job.ID,
		LineageID: job.LineageID,
		Attempt:   job.Attempt,
	})
}

func (s *Service) GetPayoutJob(ctx context.Context, jobID string) (*model.PayoutJob, error) {
	job, err := s.store.GetPayoutJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	return job, err
}

// JobPage 分页结果
type JobPage struct {
	Jobs   []model.PayoutJob `json:"jobs"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

func (s *Service) GetPayoutJobs(ctx context.Context, filter store.PayoutJobFilter) (*JobPage, error) {
	filter.Normalize()
	jobs, total, err := s.store.ListPayoutJobs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &JobPage{Jobs: jobs, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}
