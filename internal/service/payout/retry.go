package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payout-core/internal/model"
	"payout-core/internal/store"
	"payout-core/pkg/logger"
)

// RetryFailedPayouts 只重试失败任务中失败的那部分创作者。
// 子任务继承 LineageID，Attempt + 1；同一个父任务只能重试一次。
func (s *Service) RetryFailedPayouts(ctx context.Context, jobID string) (*JobResult, error) {
	parent, err := s.GetPayoutJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if parent.Status != model.JobFailed {
		return nil, fmt.Errorf("%w: status is %s", ErrJobNotRetryable, parent.Status)
	}
	_, retries, err := s.store.ListPayoutJobs(ctx, store.PayoutJobFilter{ParentJobID: parent.ID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if retries > 0 {
		return nil, fmt.Errorf("%w: already retried", ErrJobNotRetryable)
	}

	creators, total, err := s.retryCandidates(ctx, parent)
	if err != nil {
		return nil, err
	}
	if len(creators) == 0 {
		return nil, ErrNoEligibleCreators
	}

	parentID := parent.ID
	child := &model.PayoutJob{
		ID:            uuid.NewString(),
		ScheduledDate: s.now().UTC(),
		Status:        model.JobPending,
		MinimumAmount: parent.MinimumAmount,
		TotalCreators: len(creators),
		TotalAmount:   total,
		Creators:      creators,
		ParentJobID:   &parentID,
		LineageID:     parent.LineageID,
		Attempt:       parent.Attempt + 1,
	}
	if err := s.store.CreatePayoutJob(ctx, child); err != nil {
		return nil, fmt.Errorf("create retry job: %w", err)
	}

	logger.Info("retrying failed payouts",
		zap.String("parent_job_id", parent.ID),
		zap.String("job_id", child.ID),
		zap.Int("attempt", child.Attempt),
		zap.Int("creators", len(creators)))
	return s.ProcessPayoutJob(ctx, child.ID)
}

// retryCandidates 按当前钱包状态重新校验失败条目
func (s *Service) retryCandidates(ctx context.Context, parent *model.PayoutJob) (model.JobCreators, decimal.Decimal, error) {
	out := make(model.JobCreators, 0)
	total := decimal.Zero

	for _, c := range parent.Creators {
		if c.Status != string(model.PayoutRequestFailed) {
			continue
		}
		log := logger.Named("payout").With(zap.String("parent_job_id", parent.ID), zap.String("creator_id", c.CreatorID))

		// 打款单仍在处理中 (结果未知) 的不能重试
		if c.RequestID != "" {
			req, err := s.store.GetPayoutRequest(ctx, c.RequestID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, decimal.Zero, err
			}
			if req != nil && req.Status != model.PayoutRequestFailed {
				log.Warn("skip retry, payout request not failed", zap.String("status", string(req.Status)))
				continue
			}
		}

		wallet, err := s.store.GetWallet(ctx, c.WalletID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, decimal.Zero, err
		}
		if !wallet.IsActive {
			continue
		}
		ec := screen(wallet)
		if !ec.IsEligible {
			log.Info("skip retry, creator not eligible", zap.String("reason", ec.Reason))
			continue
		}

		// 以快照金额为上限，余额减少时按当前余额打款
		amount := c.Amount
		if wallet.Balance.LessThan(amount) {
			amount = wallet.Balance
		}
		out = append(out, model.JobCreator{
			CreatorID:    c.CreatorID,
			WalletID:     c.WalletID,
			Amount:       amount,
			Currency:     wallet.Currency,
			PayoutMethod: *wallet.PayoutMethod,
		})
		total = total.Add(amount)
	}
	return out, total, nil
}
