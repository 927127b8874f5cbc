package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payout-core/internal/model"
	"payout-core/internal/store"
	"payout-core/pkg/crypto_util"
	"payout-core/pkg/logger"
	"payout-core/pkg/monitor"
)

var (
	ErrWalletNotFound        = errors.New("wallet not found")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInvalidAmount         = errors.New("amount must be greater than zero")
	ErrInvalidCurrency       = errors.New("currency must be a 3-letter ISO code")
	ErrUnknownCreator        = errors.New("creator for subscription could not be resolved")
	ErrNoPayoutMethod        = errors.New("no payout method configured")
	ErrPayoutRequestNotFound = errors.New("payout request not found")
	ErrAlreadySettled        = errors.New("payout request is already settled")
	ErrIdempotencyMismatch   = errors.New("idempotency key reused with a different request")
)

// SubscriptionResolver 订阅 -> 创作者 (订阅系统提供)
type SubscriptionResolver interface {
	CreatorForSubscription(ctx context.Context, subscriptionID string) (string, error)
}

type Service struct {
	store           store.Store
	resolver        SubscriptionResolver
	defaultCurrency string
}

// NewService resolver 可以为 nil，此时付款事件必须自带 creator_id
func NewService(st store.Store, resolver SubscriptionResolver, defaultCurrency string) *Service {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &Service{store: st, resolver: resolver, defaultCurrency: strings.ToUpper(defaultCurrency)}
}

// GetOrCreateWallet 幂等: 同一创作者始终返回同一个钱包
func (s *Service) GetOrCreateWallet(ctx context.Context, creatorID string) (*model.CreatorWallet, error) {
	if strings.TrimSpace(creatorID) == "" {
		return nil, errors.New("creator id is required")
	}
	return s.store.GetOrCreateWallet(ctx, creatorID, s.defaultCurrency)
}

func (s *Service) GetWallet(ctx context.Context, walletID string) (*model.CreatorWallet, error) {
	w, err := s.store.GetWallet(ctx, walletID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrWalletNotFound
	}
	return w, err
}

type SubscriptionPayment struct {
	SubscriptionID    string
	CreatorID         string // 为空时通过 SubscriptionResolver 查询
	GrossAmount       decimal.Decimal
	Currency          string
	PaymentMethod     string
	ExternalPaymentID string
}

type PaymentProcessingResult struct {
	Success       bool            `json:"success"`
	Duplicate     bool            `json:"duplicate,omitempty"`
	WalletID      string          `json:"wallet_id,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	SplitID       string          `json:"split_id,omitempty"`
	GrossAmount   decimal.Decimal `json:"gross_amount"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	CreatorAmount decimal.Decimal `json:"creator_amount"`
	Error         string          `json:"error,omitempty"`

	Err error `json:"-"`
}

func paymentFailed(err error) PaymentProcessingResult {
	monitor.Business.SubscriptionPaymentsTotal.WithLabelValues("failed").Inc()
	return PaymentProcessingResult{Error: err.Error(), Err: err}
}

// ProcessSubscriptionPayment 订阅付款入账 (平台费拆分 + 创作者余额) 在一个事务内完成。
// 以 ExternalPaymentID 去重，重复投递返回首次结果。
func (s *Service) ProcessSubscriptionPayment(ctx context.Context, p SubscriptionPayment) PaymentProcessingResult {
	if !p.GrossAmount.IsPositive() {
		return paymentFailed(ErrInvalidAmount)
	}
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if len(currency) != 3 {
		return paymentFailed(ErrInvalidCurrency)
	}

	creatorID := p.CreatorID
	if creatorID == "" {
		if s.resolver == nil {
			return paymentFailed(ErrUnknownCreator)
		}
		id, err := s.resolver.CreatorForSubscription(ctx, p.SubscriptionID)
		if err != nil || id == "" {
			return paymentFailed(fmt.Errorf("%w: %s", ErrUnknownCreator, p.SubscriptionID))
		}
		creatorID = id
	}

	out, err := s.store.CreditSubscriptionPayment(ctx, store.CreditInput{
		CreatorID:         creatorID,
		SubscriptionID:    p.SubscriptionID,
		ExternalPaymentID: p.ExternalPaymentID,
		Gross:             p.GrossAmount,
		Currency:          currency,
		PaymentMethod:     p.PaymentMethod,
	})
	if err != nil {
		logger.Error("credit subscription payment failed",
			zap.String("subscription_id", p.SubscriptionID),
			zap.String("creator_id", creatorID),
			zap.Error(err))
		return paymentFailed(err)
	}

	result := "credited"
	if out.Duplicate {
		result = "duplicate"
		logger.Info("duplicate subscription payment ignored",
			zap.String("external_payment_id", p.ExternalPaymentID))
	} else {
		monitor.Business.PlatformFeesCollected.WithLabelValues(currency).Add(out.Split.PlatformFee.InexactFloat64())
	}
	monitor.Business.SubscriptionPaymentsTotal.WithLabelValues(result).Inc()

	return PaymentProcessingResult{
		Success:       true,
		Duplicate:     out.Duplicate,
		WalletID:      out.Wallet.ID,
		TransactionID: out.Transaction.ID,
		SplitID:       out.Split.ID,
		GrossAmount:   out.Split.GrossAmount,
		PlatformFee:   out.Split.PlatformFee,
		CreatorAmount: out.Split.CreatorAmount,
	}
}

type PayoutRequestInput struct {
	WalletID string
	Amount   decimal.Decimal
	// Method 为空时使用钱包上配置的收款方式
	Method *model.PayoutMethod
	// IdempotencyKey 来自 Idempotency-Key 请求头，可为空
	IdempotencyKey string
}

type PayoutRequestResult struct {
	Success         bool                      `json:"success"`
	Duplicate       bool                      `json:"duplicate,omitempty"`
	PayoutRequestID string                    `json:"payout_request_id,omitempty"`
	Status          model.PayoutRequestStatus `json:"status,omitempty"`
	Error           string                    `json:"error,omitempty"`

	Err error `json:"-"`
}

func payoutFailed(err error) PayoutRequestResult {
	return PayoutRequestResult{Error: err.Error(), Err: err}
}

// RequestPayout 创作者主动申请打款: 余额 -> 冻结，生成 pending 打款单
func (s *Service) RequestPayout(ctx context.Context, in PayoutRequestInput) PayoutRequestResult {
	if !in.Amount.IsPositive() {
		return payoutFailed(ErrInvalidAmount)
	}

	wallet, err := s.GetWallet(ctx, in.WalletID)
	if err != nil {
		return payoutFailed(err)
	}
	method := in.Method
	if method == nil {
		method = wallet.PayoutMethod
	}
	if method == nil {
		return payoutFailed(ErrNoPayoutMethod)
	}
	if err := method.Validate(); err != nil {
		return payoutFailed(fmt.Errorf("%w: %v", model.ErrInvalidPayoutMethod, err))
	}

	requestKey := "manual:" + uuid.NewString()
	if in.IdempotencyKey != "" {
		replay, done := s.checkIdempotency(ctx, in, method)
		if done {
			return replay
		}
		requestKey = "manual:" + in.WalletID + ":" + in.IdempotencyKey
	}

	req, err := s.store.ReservePayout(ctx, store.ReserveInput{
		WalletID:       in.WalletID,
		Amount:         in.Amount,
		Method:         *method,
		Status:         model.PayoutRequestPending,
		IdempotencyKey: requestKey,
	})
	switch {
	case errors.Is(err, store.ErrDuplicatePayout):
		return PayoutRequestResult{Success: true, Duplicate: true, PayoutRequestID: req.ID, Status: req.Status}
	case errors.Is(err, store.ErrInsufficientBalance):
		return payoutFailed(ErrInsufficientBalance)
	case errors.Is(err, store.ErrNotFound):
		return payoutFailed(ErrWalletNotFound)
	case err != nil:
		logger.Error("reserve payout failed", zap.String("wallet_id", in.WalletID), zap.Error(err))
		return payoutFailed(err)
	}

	if in.IdempotencyKey != "" {
		if err := s.store.CompleteIdempotencyKey(ctx, idempotencyScope(in), req.ID); err != nil {
			logger.Warn("complete idempotency key failed", zap.String("key", in.IdempotencyKey), zap.Error(err))
		}
	}

	logger.Info("payout requested",
		zap.String("wallet_id", in.WalletID),
		zap.String("payout_request_id", req.ID),
		zap.String("amount", in.Amount.String()),
		zap.String("method", string(method.Type)))
	return PayoutRequestResult{Success: true, PayoutRequestID: req.ID, Status: req.Status}
}

func idempotencyScope(in PayoutRequestInput) string {
	return "wallet-payout:" + in.WalletID + ":" + in.IdempotencyKey
}

// checkIdempotency done=true 表示直接返回 replay，不再继续
func (s *Service) checkIdempotency(ctx context.Context, in PayoutRequestInput, method *model.PayoutMethod) (PayoutRequestResult, bool) {
	hash, err := crypto_util.Fingerprint(struct {
		WalletID string             `json:"wallet_id"`
		Amount   string             `json:"amount"`
		Method   model.PayoutMethod `json:"method"`
	}{in.WalletID, in.Amount.String(), *method})
	if err != nil {
		return payoutFailed(err), true
	}

	rec, created, err := s.store.ReserveIdempotencyKey(ctx, idempotencyScope(in), hash)
	switch {
	case errors.Is(err, store.ErrIdempotencyMismatch):
		return payoutFailed(ErrIdempotencyMismatch), true
	case err != nil:
		return payoutFailed(err), true
	case created:
		return PayoutRequestResult{}, false
	case rec.Status == model.IdempotencyCompleted:
		req, getErr := s.store.GetPayoutRequest(ctx, rec.ResponseRef)
		if getErr != nil {
			return payoutFailed(getErr), true
		}
		return PayoutRequestResult{Success: true, Duplicate: true, PayoutRequestID: req.ID, Status: req.Status}, true
	default:
		// 上次请求中途失败: 按打款单 key 判断是否已经冻结
		return PayoutRequestResult{}, false
	}
}

// UpdatePayoutMethod 更新收款方式；stripe_connect 同步钱包上的 connected account
func (s *Service) UpdatePayoutMethod(ctx context.Context, walletID string, method *model.PayoutMethod) (*model.CreatorWallet, error) {
	if err := method.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidPayoutMethod, err)
	}
	var stripeAccount *string
	if method.Type == model.PayoutMethodStripeConnect && method.StripeAccountID != "" {
		id := method.StripeAccountID
		stripeAccount = &id
	}
	w, err := s.store.UpdateWalletPayoutMethod(ctx, walletID, method, stripeAccount)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrWalletNotFound
	}
	return w, err
}

// CompleteManualPayout 银行 / PayPal 线下打款完成后由管理员确认
func (s *Service) CompleteManualPayout(ctx context.Context, requestID, externalRef string) (*model.PayoutRequest, error) {
	req, err := s.store.CompletePayout(ctx, requestID, externalRef)
	if err != nil {
		return nil, mapSettleError(err)
	}
	monitor.Business.CreatorPayoutsTotal.WithLabelValues(string(req.PayoutMethod.Type), "completed").Inc()
	monitor.Business.CreatorPayoutAmount.WithLabelValues(req.Currency).Add(req.Amount.InexactFloat64())
	logger.Info("manual payout completed", zap.String("payout_request_id", requestID))
	return req, nil
}

// FailManualPayout 打款失败，冻结金额退回余额
func (s *Service) FailManualPayout(ctx context.Context, requestID, reason string) (*model.PayoutRequest, error) {
	req, err := s.store.FailPayout(ctx, requestID, reason)
	if err != nil {
		return nil, mapSettleError(err)
	}
	monitor.Business.CreatorPayoutsTotal.WithLabelValues(string(req.PayoutMethod.Type), "failed").Inc()
	logger.Warn("manual payout failed", zap.String("payout_request_id", requestID), zap.String("reason", reason))
	return req, nil
}

func mapSettleError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrPayoutRequestNotFound
	case errors.Is(err, store.ErrInvalidTransition):
		return ErrAlreadySettled
	default:
		return err
	}
}

func (s *Service) ListPayoutRequests(ctx context.Context, filter store.PayoutRequestFilter) ([]model.PayoutRequest, error) {
	return s.store.ListPayoutRequests(ctx, filter)
}
