package payout

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payout-core/internal/model"
	"payout-core/internal/service/connect"
	"payout-core/internal/store"
	"payout-core/pkg/logger"
	"payout-core/pkg/monitor"
)

// CreatorPayout 任务中单个创作者的打款参数
type CreatorPayout struct {
	CreatorID string
	WalletID  string
	Amount    decimal.Decimal
	Currency  string
	Method    model.PayoutMethod
	JobID     string
	// LineageID 根任务 ID，重试的子任务与之相同
	LineageID string
	Attempt   int
}

func (p CreatorPayout) requestKey() string {
	return fmt.Sprintf("payout:%s:%s:%d", p.LineageID, p.CreatorID, p.Attempt)
}

func (p CreatorPayout) transferKey() string {
	return fmt.Sprintf("transfer:%s:%s:%d", p.LineageID, p.CreatorID, p.Attempt)
}

// CreatorPayoutResult Success=false 时 Error 为原因；不会 panic 或返回 error
type CreatorPayoutResult struct {
	CreatorID       string `json:"creator_id"`
	Success         bool   `json:"success"`
	Status          string `json:"status,omitempty"`
	PayoutRequestID string `json:"payout_request_id,omitempty"`
	TransferID      string `json:"transfer_id,omitempty"`
	// AlreadyPaid 同一批次链路中此前已打款成功，本次跳过
	AlreadyPaid bool   `json:"already_paid,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (r CreatorPayoutResult) fail(msg string) CreatorPayoutResult {
	r.Success = false
	r.Status = string(model.PayoutRequestFailed)
	r.Error = msg
	return r
}

// ProcessCreatorPayout 按收款方式分派:
// stripe_connect 冻结 -> 转账 -> 结算 (失败则释放)；bank_transfer / paypal 冻结后等待人工处理
func (s *Service) ProcessCreatorPayout(ctx context.Context, p CreatorPayout) CreatorPayoutResult {
	res := CreatorPayoutResult{CreatorID: p.CreatorID}
	if p.Attempt < 1 {
		p.Attempt = 1
	}
	if p.LineageID == "" {
		p.LineageID = p.JobID
	}
	if !p.Amount.IsPositive() {
		return s.record(p, res.fail("payout amount must be greater than zero"))
	}

	// 同一链路已付过的创作者不再重复打款
	if p.LineageID != "" {
		paid, err := s.store.FindCompletedPayout(ctx, p.LineageID, p.CreatorID)
		if err == nil {
			res.Success = true
			res.AlreadyPaid = true
			res.Status = string(paid.Status)
			res.PayoutRequestID = paid.ID
			return s.record(p, res)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return s.record(p, res.fail(fmt.Sprintf("check previous payouts: %v", err)))
		}
	}

	switch p.Method.Type {
	case model.PayoutMethodStripeConnect:
		res = s.payViaStripe(ctx, p, res)
	case model.PayoutMethodBankTransfer, model.PayoutMethodPaypal:
		res = s.queueManual(ctx, p, res)
	default:
		res = res.fail(fmt.Sprintf("Unsupported payout method: %s", p.Method.Type))
	}
	return s.record(p, res)
}

func (s *Service) record(p CreatorPayout, res CreatorPayoutResult) CreatorPayoutResult {
	outcome := res.Status
	switch {
	case !res.Success:
		outcome = "failed"
	case res.AlreadyPaid:
		outcome = "skipped"
	}
	monitor.Business.CreatorPayoutsTotal.WithLabelValues(string(p.Method.Type), outcome).Inc()
	if res.Success && !res.AlreadyPaid && res.Status == string(model.PayoutRequestCompleted) {
		monitor.Business.CreatorPayoutAmount.WithLabelValues(p.Currency).Add(p.Amount.InexactFloat64())
	}
	return res
}

func (s *Service) reserve(ctx context.Context, p CreatorPayout, status model.PayoutRequestStatus) (*model.PayoutRequest, bool, error) {
	in := store.ReserveInput{
		WalletID:       p.WalletID,
		Amount:         p.Amount,
		Method:         p.Method,
		Status:         status,
		IdempotencyKey: p.requestKey(),
	}
	if p.JobID != "" {
		jobID := p.JobID
		in.JobID = &jobID
	}
	if p.LineageID != "" {
		lineage := p.LineageID
		in.LineageID = &lineage
	}

	req, err := s.store.ReservePayout(ctx, in)
	if errors.Is(err, store.ErrDuplicatePayout) {
		return req, true, nil
	}
	return req, false, err
}

func reserveFailure(err error) string {
	switch {
	case errors.Is(err, store.ErrInsufficientBalance):
		return "Insufficient balance"
	case errors.Is(err, store.ErrNotFound):
		return "Wallet not found"
	default:
		return fmt.Sprintf("reserve payout: %v", err)
	}
}

func (s *Service) payViaStripe(ctx context.Context, p CreatorPayout, res CreatorPayoutResult) CreatorPayoutResult {
	wallet, err := s.store.GetWallet(ctx, p.WalletID)
	if err != nil {
		return res.fail(reserveFailure(err))
	}
	if !wallet.HasStripeAccount() {
		return res.fail("Creator does not have a Stripe Connect account")
	}

	req, dup, err := s.reserve(ctx, p, model.PayoutRequestProcessing)
	if err != nil {
		return res.fail(reserveFailure(err))
	}
	res.PayoutRequestID = req.ID
	if dup {
		// 同一个 key 已有打款单: 按已有结果返回，不再发起转账
		return duplicateOutcome(req, res)
	}

	tr := s.transfers.TransferToCreator(ctx, connect.TransferInput{
		CreatorID:       p.CreatorID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		StripeAccountID: *wallet.StripeAccountID,
		Description:     "Creator payout",
		Metadata: map[string]string{
			"payout_request_id": req.ID,
			"job_id":            p.JobID,
			"lineage_id":        p.LineageID,
		},
		IdempotencyKey: p.transferKey(),
	})

	// 之后的账本写入不受任务超时影响
	ledgerCtx := context.WithoutCancel(ctx)
	if !tr.Success {
		if ctx.Err() != nil {
			// 请求可能已经到达处理方: 保持 processing，等待对账，重试时跳过
			logger.Error("transfer outcome unknown",
				zap.String("payout_request_id", req.ID),
				zap.String("creator_id", p.CreatorID),
				zap.String("error", tr.Error))
			return res.fail(fmt.Sprintf("transfer outcome unknown: %s", tr.Error))
		}
		if _, err := s.store.FailPayout(ledgerCtx, req.ID, tr.Error); err != nil {
			logger.Error("release failed payout", zap.String("payout_request_id", req.ID), zap.Error(err))
		}
		return res.fail(tr.Error)
	}

	res.TransferID = tr.TransferID
	if _, err := s.store.CompletePayout(ledgerCtx, req.ID, tr.TransferID); err != nil {
		// 资金已转出: 打款单保持 processing，需要人工对账
		logger.Error("transfer succeeded but ledger update failed",
			zap.String("payout_request_id", req.ID),
			zap.String("transfer_id", tr.TransferID),
			zap.Error(err))
		return res.fail(fmt.Sprintf("transfer %s succeeded but ledger update failed: %v", tr.TransferID, err))
	}

	res.Success = true
	res.Status = string(model.PayoutRequestCompleted)
	return res
}

func (s *Service) queueManual(ctx context.Context, p CreatorPayout, res CreatorPayoutResult) CreatorPayoutResult {
	if err := p.Method.Validate(); err != nil {
		return res.fail(fmt.Sprintf("%s: %v", reasonInvalidMethod, err))
	}
	req, dup, err := s.reserve(ctx, p, model.PayoutRequestPending)
	if err != nil {
		return res.fail(reserveFailure(err))
	}
	res.PayoutRequestID = req.ID
	if dup {
		return duplicateOutcome(req, res)
	}

	logger.Info("manual payout queued",
		zap.String("payout_request_id", req.ID),
		zap.String("creator_id", p.CreatorID),
		zap.String("method", string(p.Method.Type)))
	res.Success = true
	res.Status = string(model.PayoutRequestPending)
	return res
}

func duplicateOutcome(req *model.PayoutRequest, res CreatorPayoutResult) CreatorPayoutResult {
	switch req.Status {
	case model.PayoutRequestCompleted, model.PayoutRequestPending:
		res.Success = true
		res.Status = string(req.Status)
		if req.ExternalPayoutID != nil {
			res.TransferID = *req.ExternalPayoutID
		}
		return res
	case model.PayoutRequestFailed:
		return res.fail(req.FailureReason)
	default:
		return res.fail("payout already in progress")
	}
}
