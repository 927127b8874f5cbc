package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"payout-core/internal/event"
	"payout-core/internal/model"
	"payout-core/pkg/money"
)

var ErrInvalidAmount = errors.New("amount must be greater than zero")

func newID() string {
	return uuid.NewString()
}

// creditReference 入账流水的唯一引用，保证同一笔外部付款只入账一次
func creditReference(externalPaymentID, splitID string) string {
	if externalPaymentID != "" {
		return "sub:" + externalPaymentID
	}
	return "split:" + splitID
}

func payoutReference(requestID string) string {
	return "payout:" + requestID
}

func resolveFee(active *model.PlatformFeeConfig, fallback decimal.Decimal) decimal.Decimal {
	if active != nil {
		return active.Percentage
	}
	return fallback
}

func buildCredit(in CreditInput, wallet *model.CreatorWallet, pct decimal.Decimal, now time.Time) (model.PaymentSplit, model.WalletTransaction, error) {
	split, err := money.SplitFee(in.Gross, pct)
	if err != nil {
		return model.PaymentSplit{}, model.WalletTransaction{}, err
	}

	ps := model.PaymentSplit{
		ID:             newID(),
		WalletID:       wallet.ID,
		CreatorID:      wallet.CreatorID,
		SubscriptionID: in.SubscriptionID,
		Currency:       in.Currency,
		PaymentMethod:  in.PaymentMethod,
		GrossAmount:    split.Gross,
		FeePercentage:  split.Percentage,
		PlatformFee:    split.Fee,
		CreatorAmount:  split.Net,
		CreatedAt:      now,
	}
	if in.ExternalPaymentID != "" {
		ext := in.ExternalPaymentID
		ps.ExternalPaymentID = &ext
	}

	tx := model.WalletTransaction{
		ID:          newID(),
		WalletID:    wallet.ID,
		Type:        model.TransactionSubscriptionPayment,
		Amount:      split.Net,
		Status:      "completed",
		Reference:   creditReference(in.ExternalPaymentID, ps.ID),
		Description: fmt.Sprintf("Subscription payment %s", in.SubscriptionID),
		Metadata: model.Metadata{
			"subscription_id": in.SubscriptionID,
			"split_id":        ps.ID,
			"gross_amount":    split.Gross.StringFixed(money.Scale),
			"platform_fee":    split.Fee.StringFixed(money.Scale),
		},
		CreatedAt: now,
	}
	return ps, tx, nil
}

func buildPayoutTransaction(req *model.PayoutRequest, externalID string, now time.Time) model.WalletTransaction {
	meta := model.Metadata{
		"payout_request_id": req.ID,
		"method":            string(req.PayoutMethod.Type),
	}
	if externalID != "" {
		meta["external_payout_id"] = externalID
	}
	if req.JobID != nil {
		meta["job_id"] = *req.JobID
	}
	return model.WalletTransaction{
		ID:          newID(),
		WalletID:    req.WalletID,
		Type:        model.TransactionPayout,
		Amount:      req.Amount.Neg(),
		Status:      "completed",
		Reference:   payoutReference(req.ID),
		Description: fmt.Sprintf("Payout via %s", req.PayoutMethod.Type),
		Metadata:    meta,
		CreatedAt:   now,
	}
}

func creditedEvent(ps *model.PaymentSplit) event.WalletCreditedEvent {
	ev := event.WalletCreditedEvent{
		WalletID:       ps.WalletID,
		CreatorID:      ps.CreatorID,
		SubscriptionID: ps.SubscriptionID,
		GrossAmount:    ps.GrossAmount.StringFixed(money.Scale),
		PlatformFee:    ps.PlatformFee.StringFixed(money.Scale),
		CreatorAmount:  ps.CreatorAmount.StringFixed(money.Scale),
		Currency:       ps.Currency,
	}
	if ps.ExternalPaymentID != nil {
		ev.ExternalPaymentID = *ps.ExternalPaymentID
	}
	return ev
}

func settledEvent(req *model.PayoutRequest) (string, event.PayoutSettledEvent) {
	ev := event.PayoutSettledEvent{
		PayoutRequestID: req.ID,
		WalletID:        req.WalletID,
		CreatorID:       req.CreatorID,
		Amount:          req.Amount.StringFixed(money.Scale),
		Currency:        req.Currency,
		Method:          string(req.PayoutMethod.Type),
		Status:          string(req.Status),
		FailureReason:   req.FailureReason,
	}
	if req.JobID != nil {
		ev.JobID = *req.JobID
	}
	if req.ExternalPayoutID != nil {
		ev.ExternalPayoutID = *req.ExternalPayoutID
	}
	topic := event.TopicPayoutCompleted
	if req.Status == model.PayoutRequestFailed {
		topic = event.TopicPayoutFailed
	}
	return topic, ev
}

func finalizedEvent(job *model.PayoutJob) event.PayoutJobFinalizedEvent {
	return event.PayoutJobFinalizedEvent{
		JobID:             job.ID,
		LineageID:         job.LineageID,
		Status:            string(job.Status),
		SuccessfulPayouts: job.SuccessfulPayouts,
		FailedPayouts:     job.FailedPayouts,
		TotalAmount:       job.TotalAmount.StringFixed(money.Scale),
	}
}

// balanceDelta 平台资金汇总的增量
type balanceDelta struct {
	Available decimal.Decimal
	Pending   decimal.Decimal
	Reserved  decimal.Decimal
	Fees      decimal.Decimal
	Payouts   decimal.Decimal
}

func (d balanceDelta) apply(b *model.PlatformBalance) {
	b.Available = b.Available.Add(d.Available)
	b.Pending = b.Pending.Add(d.Pending)
	b.Reserved = b.Reserved.Add(d.Reserved)
	b.TotalFeesCollected = b.TotalFeesCollected.Add(d.Fees)
	b.TotalPayoutsMade = b.TotalPayoutsMade.Add(d.Payouts)
}

const (
	eventTopicCredited     = event.TopicWalletCredited
	eventTopicJobFinalized = event.TopicPayoutJobFinished
)
