// Package store 账本存储。所有余额变动都在单个事务内完成，
// 不做 "读-改-写" 的非原子更新。
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"payout-core/internal/model"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicatePayout     = errors.New("payout request already exists for idempotency key")
	ErrInvalidTransition   = errors.New("invalid payout request status transition")
	ErrWalletInactive      = errors.New("wallet is inactive")
	ErrIdempotencyMismatch = errors.New("idempotency key reused with a different request")
)

// Store 账本存储契约
type Store interface {
	WalletStore
	PayoutStore
	PlatformStore
	OutboxStore
}

type WalletStore interface {
	// GetOrCreateWallet 每个创作者最多一个钱包，并发调用返回同一个
	GetOrCreateWallet(ctx context.Context, creatorID, currency string) (*model.CreatorWallet, error)
	GetWallet(ctx context.Context, walletID string) (*model.CreatorWallet, error)
	GetWalletByCreator(ctx context.Context, creatorID string) (*model.CreatorWallet, error)
	// ListActiveWallets 余额 >= minBalance 的活跃钱包，按创建时间排序
	ListActiveWallets(ctx context.Context, minBalance decimal.Decimal) ([]model.CreatorWallet, error)
	UpdateWalletPayoutMethod(ctx context.Context, walletID string, method *model.PayoutMethod, stripeAccountID *string) (*model.CreatorWallet, error)
	DeactivateWallet(ctx context.Context, walletID string) error

	// CreditSubscriptionPayment 原子入账: 拆分平台费、写流水、加余额、更新平台汇总
	CreditSubscriptionPayment(ctx context.Context, in CreditInput) (*CreditOutcome, error)
	ListTransactions(ctx context.Context, walletID string, from, to time.Time) ([]model.WalletTransaction, error)
	// GetWalletLedger 钱包与其全部流水的一致快照 (同一个读事务)
	GetWalletLedger(ctx context.Context, walletID string) (*model.CreatorWallet, []model.WalletTransaction, error)
	ListPaymentSplits(ctx context.Context, filter SplitFilter) ([]model.PaymentSplit, error)
	// SumFees 时间区间 [from, to) 内的平台费合计及笔数
	SumFees(ctx context.Context, from, to time.Time) (decimal.Decimal, int64, error)
}

type PayoutStore interface {
	// ReservePayout 余额 -> 冻结，插入 PayoutRequest
	ReservePayout(ctx context.Context, in ReserveInput) (*model.PayoutRequest, error)
	// CompletePayout 冻结 -> 已提现，写打款流水
	CompletePayout(ctx context.Context, requestID, externalID string) (*model.PayoutRequest, error)
	// FailPayout 冻结 -> 余额
	FailPayout(ctx context.Context, requestID, reason string) (*model.PayoutRequest, error)
	GetPayoutRequest(ctx context.Context, requestID string) (*model.PayoutRequest, error)
	GetPayoutRequestByKey(ctx context.Context, idempotencyKey string) (*model.PayoutRequest, error)
	FindCompletedPayout(ctx context.Context, lineageID, creatorID string) (*model.PayoutRequest, error)
	ListPayoutRequests(ctx context.Context, filter PayoutRequestFilter) ([]model.PayoutRequest, error)

	CreatePayoutJob(ctx context.Context, job *model.PayoutJob) error
	GetPayoutJob(ctx context.Context, jobID string) (*model.PayoutJob, error)
	// ClaimPayoutJob pending -> processing；未抢到时 claimed=false 并返回当前任务
	ClaimPayoutJob(ctx context.Context, jobID string, at time.Time) (job *model.PayoutJob, claimed bool, err error)
	FinalizePayoutJob(ctx context.Context, in FinalizeInput) (*model.PayoutJob, error)
	ListPayoutJobs(ctx context.Context, filter PayoutJobFilter) ([]model.PayoutJob, int64, error)

	ReserveIdempotencyKey(ctx context.Context, key, requestHash string) (rec *model.IdempotencyKey, created bool, err error)
	CompleteIdempotencyKey(ctx context.Context, key, responseRef string) error
}

type PlatformStore interface {
	// GetPrimaryAccount 没有主账户时返回 (nil, nil)
	GetPrimaryAccount(ctx context.Context) (*model.PlatformAccount, error)
	GetPlatformAccount(ctx context.Context, id string) (*model.PlatformAccount, error)
	ListPlatformAccounts(ctx context.Context) ([]model.PlatformAccount, error)
	// SavePlatformAccount IsPrimary=true 时同一事务内清除其他主账户
	SavePlatformAccount(ctx context.Context, acct *model.PlatformAccount) error
	GetPlatformBalance(ctx context.Context, accountID string) (*model.PlatformBalance, error)

	// GetActiveFeeConfig 没有配置时返回 ErrNotFound
	GetActiveFeeConfig(ctx context.Context) (*model.PlatformFeeConfig, error)
	SetFeeConfig(ctx context.Context, percentage decimal.Decimal, effectiveFrom time.Time) (*model.PlatformFeeConfig, error)
}

type OutboxStore interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id uint64) error
}

// CreditInput 订阅付款入账参数
type CreditInput struct {
	CreatorID         string
	SubscriptionID    string
	ExternalPaymentID string // 为空时不做去重
	Gross             decimal.Decimal
	Currency          string
	PaymentMethod     string
}

// CreditOutcome 入账结果；Duplicate=true 表示重复投递，未做任何变更
type CreditOutcome struct {
	Wallet      model.CreatorWallet
	Split       model.PaymentSplit
	Transaction model.WalletTransaction
	Duplicate   bool
}

// ReserveInput 冻结打款金额
type ReserveInput struct {
	WalletID       string
	Amount         decimal.Decimal
	Method         model.PayoutMethod
	JobID          *string
	LineageID      *string
	Status         model.PayoutRequestStatus // pending (人工渠道) 或 processing (Stripe)
	IdempotencyKey string
}

// FinalizeInput 任务收尾
type FinalizeInput struct {
	JobID             string
	Status            model.JobStatus
	SuccessfulPayouts int
	FailedPayouts     int
	Creators          model.JobCreators
	Errors            model.JobErrors
	CompletedAt       time.Time
}

type SplitFilter struct {
	WalletID string
	From     time.Time
	To       time.Time
}

type PayoutRequestFilter struct {
	WalletID string
	JobID    string
	Status   model.PayoutRequestStatus
	Limit    int
	Offset   int
}

// PayoutJobFilter 任务列表筛选，零值字段不参与过滤
type PayoutJobFilter struct {
	Status      model.JobStatus
	ParentJobID string
	DateFrom    *time.Time
	DateTo      *time.Time
	Limit       int
	Offset      int
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Normalize 分页默认值，超过上限按上限取
func (f *PayoutJobFilter) Normalize() {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultPageSize
	case f.Limit > maxPageSize:
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

func (f *PayoutRequestFilter) Normalize() {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultPageSize
	case f.Limit > maxPageSize:
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// Options 两种实现共用的配置
type Options struct {
	// DefaultFeePercentage 未配置 PlatformFeeConfig 时使用
	DefaultFeePercentage decimal.Decimal
	Now                  func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}
