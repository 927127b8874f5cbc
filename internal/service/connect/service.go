// Package connect 平台侧 Stripe Connect 分账: 创建收款、向创作者转账、批量打款
package connect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"payout-core/internal/model"
	"payout-core/internal/processor"
	"payout-core/internal/store"
	"payout-core/pkg/logger"
	"payout-core/pkg/money"
)

var (
	ErrInvalidAmount  = errors.New("amount must be greater than zero")
	ErrMissingAccount = errors.New("destination account is required")
)

// AccountSource 平台账户和费率来源 (store.Store 实现)
type AccountSource interface {
	GetPrimaryAccount(ctx context.Context) (*model.PlatformAccount, error)
	GetActiveFeeConfig(ctx context.Context) (*model.PlatformFeeConfig, error)
}

type Config struct {
	DefaultFeePercentage decimal.Decimal
	// PlatformAccountID 未配置主账户时使用
	PlatformAccountID string
	// BatchConcurrency 批量打款并发数，<=1 为顺序执行
	BatchConcurrency int
}

type Service struct {
	gateway  processor.Gateway
	accounts AccountSource
	cfg      Config
}

func NewService(gateway processor.Gateway, accounts AccountSource, cfg Config) *Service {
	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = 1
	}
	return &Service{gateway: gateway, accounts: accounts, cfg: cfg}
}

type PaymentIntentInput struct {
	SubscriptionID string
	Amount         decimal.Decimal
	Currency       string
	CustomerID     string
	Metadata       map[string]string
}

type PlatformPaymentResult struct {
	Success         bool            `json:"success"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	ClientSecret    string          `json:"client_secret,omitempty"`
	PlatformFee     decimal.Decimal `json:"platform_fee"`
	CreatorAmount   decimal.Decimal `json:"creator_amount"`
	FeePercentage   decimal.Decimal `json:"fee_percentage"`
	Error           string          `json:"error,omitempty"`
}

// CreatePlatformPaymentIntent 全额进入平台账户，metadata 记录拆分结果供对账
func (s *Service) CreatePlatformPaymentIntent(ctx context.Context, in PaymentIntentInput) PlatformPaymentResult {
	if !in.Amount.IsPositive() {
		return PlatformPaymentResult{Error: ErrInvalidAmount.Error()}
	}
	if in.SubscriptionID == "" {
		return PlatformPaymentResult{Error: "subscription id is required"}
	}

	pct, err := s.feePercentage(ctx)
	if err != nil {
		return PlatformPaymentResult{Error: err.Error()}
	}
	split, err := money.SplitFee(in.Amount, pct)
	if err != nil {
		return PlatformPaymentResult{Error: err.Error()}
	}

	onBehalfOf, err := s.platformAccount(ctx)
	if err != nil {
		return PlatformPaymentResult{Error: err.Error()}
	}

	metadata := make(map[string]string, len(in.Metadata)+4)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	metadata["subscription_id"] = in.SubscriptionID
	metadata["platform_fee"] = split.Fee.StringFixed(money.Scale)
	metadata["creator_amount"] = split.Net.StringFixed(money.Scale)
	metadata["fee_percentage"] = pct.String()

	pi, err := s.gateway.CreatePaymentIntent(ctx, processor.PaymentIntentParams{
		Amount:     split.Gross,
		Currency:   strings.ToUpper(in.Currency),
		CustomerID: in.CustomerID,
		OnBehalfOf: onBehalfOf,
		Metadata:   metadata,
	})
	if err != nil {
		logger.Warn("create payment intent failed",
			zap.String("subscription_id", in.SubscriptionID), zap.Error(err))
		return PlatformPaymentResult{Error: err.Error()}
	}

	return PlatformPaymentResult{
		Success:         true,
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		PlatformFee:     split.Fee,
		CreatorAmount:   split.Net,
		FeePercentage:   pct,
	}
}

func (s *Service) feePercentage(ctx context.Context) (decimal.Decimal, error) {
	cfg, err := s.accounts.GetActiveFeeConfig(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return s.cfg.DefaultFeePercentage, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("load fee config: %w", err)
	}
	return cfg.Percentage, nil
}

func (s *Service) platformAccount(ctx context.Context) (string, error) {
	acct, err := s.accounts.GetPrimaryAccount(ctx)
	if err != nil {
		return "", fmt.Errorf("load primary account: %w", err)
	}
	if acct != nil && acct.ProcessorAccountID != "" {
		return acct.ProcessorAccountID, nil
	}
	return s.cfg.PlatformAccountID, nil
}

type TransferInput struct {
	CreatorID       string
	Amount          decimal.Decimal
	Currency        string
	StripeAccountID string
	Description     string
	Metadata        map[string]string
	// IdempotencyKey 必填，同一个 key 处理方只会执行一次
	IdempotencyKey string
}

type TransferResult struct {
	Success    bool   `json:"success"`
	TransferID string `json:"transfer_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TransferToCreator 平台余额 -> 创作者 connected account
func (s *Service) TransferToCreator(ctx context.Context, in TransferInput) TransferResult {
	switch {
	case !in.Amount.IsPositive():
		return TransferResult{Error: ErrInvalidAmount.Error()}
	case in.StripeAccountID == "":
		return TransferResult{Error: ErrMissingAccount.Error()}
	case in.IdempotencyKey == "":
		return TransferResult{Error: processor.ErrMissingIdempotencyKey.Error()}
	}

	metadata := make(map[string]string, len(in.Metadata)+1)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	if in.CreatorID != "" {
		metadata["creator_id"] = in.CreatorID
	}

	t, err := s.gateway.Transfer(ctx, processor.TransferParams{
		Amount:         money.Round(in.Amount),
		Currency:       strings.ToUpper(in.Currency),
		Destination:    in.StripeAccountID,
		Description:    in.Description,
		Metadata:       metadata,
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return TransferResult{Error: err.Error()}
	}
	return TransferResult{Success: true, TransferID: t.ID}
}

// BatchPayout 批量中的一个单元，IdempotencyKey 必填
type BatchPayout struct {
	CreatorID       string            `json:"creator_id"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	StripeAccountID string            `json:"stripe_account_id"`
	Description     string            `json:"description,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	IdempotencyKey  string            `json:"idempotency_key"`
}

type BatchItemResult struct {
	CreatorID  string `json:"creator_id"`
	Success    bool   `json:"success"`
	TransferID string `json:"transfer_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

type BatchError struct {
	CreatorID string `json:"creator_id"`
	Error     string `json:"error"`
}

type BatchPayoutResult struct {
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Results    []BatchItemResult `json:"results"`
	Errors     []BatchError      `json:"errors"`
}

// ProcessBatchPayouts 各单元互不影响；结果按输入顺序返回
func (s *Service) ProcessBatchPayouts(ctx context.Context, items []BatchPayout) BatchPayoutResult {
	results := make([]BatchItemResult, len(items))

	// 单项失败记在结果里，不返回 error，也就不会取消其它项
	var g errgroup.Group
	g.SetLimit(s.cfg.BatchConcurrency)
	for i := range items {
		g.Go(func() error {
			results[i] = s.processBatchItem(ctx, items[i])
			return nil
		})
	}
	_ = g.Wait()

	out := BatchPayoutResult{Results: results, Errors: []BatchError{}}
	for _, r := range results {
		if r.Success {
			out.Successful++
			continue
		}
		out.Failed++
		out.Errors = append(out.Errors, BatchError{CreatorID: r.CreatorID, Error: r.Error})
	}

	logger.Info("batch payouts processed",
		zap.Int("total", len(items)),
		zap.Int("successful", out.Successful),
		zap.Int("failed", out.Failed))
	return out
}

func (s *Service) processBatchItem(ctx context.Context, item BatchPayout) (res BatchItemResult) {
	res.CreatorID = item.CreatorID
	defer func() {
		if r := recover(); r != nil {
			logger.Error("batch payout panic", zap.String("creator_id", item.CreatorID), zap.Any("panic", r))
			res = BatchItemResult{CreatorID: item.CreatorID, Error: fmt.Sprintf("unexpected error: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res
	}

	tr := s.TransferToCreator(ctx, TransferInput{
		CreatorID:       item.CreatorID,
		Amount:          item.Amount,
		Currency:        item.Currency,
		StripeAccountID: item.StripeAccountID,
		Description:     item.Description,
		Metadata:        item.Metadata,
		IdempotencyKey:  item.IdempotencyKey,
	})
	if !tr.Success {
		logger.Warn("batch payout failed", zap.String("creator_id", item.CreatorID), zap.String("error", tr.Error))
	}
	res.Success = tr.Success
	res.TransferID = tr.TransferID
	res.Error = tr.Error
	return res
}

type PlatformBalanceResult struct {
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
	Currency  string          `json:"currency"`
}

// GetPlatformBalance 只读查询处理方上的平台余额
func (s *Service) GetPlatformBalance(ctx context.Context) (*PlatformBalanceResult, error) {
	b, err := s.gateway.GetBalance(ctx, "")
	if err != nil {
		return nil, err
	}
	return &PlatformBalanceResult{Available: b.Available, Pending: b.Pending, Currency: b.Currency}, nil
}
