// Package platform 平台账户配置、资金看板与 Stripe Connect 开户
package platform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payout-core/internal/model"
	"payout-core/internal/processor"
	"payout-core/internal/store"
	"payout-core/pkg/cache"
	"payout-core/pkg/logger"
	"payout-core/pkg/money"
)

var (
	ErrAccountNotFound       = errors.New("platform account not found")
	ErrNoPrimaryAccount      = errors.New("no primary platform account configured")
	ErrInvalidSchedule       = errors.New("invalid payout schedule")
	ErrInvalidPayoutDay      = errors.New("invalid payout day for schedule")
	ErrInvalidMinimum        = errors.New("minimum payout amount must not be negative")
	ErrInvalidFeePercentage  = errors.New("fee percentage must be between 0 and 100")
	ErrAccountNameRequired   = errors.New("account name is required")
	ErrOnboardingUnavailable = errors.New("stripe connect onboarding failed")
)

type Config struct {
	DefaultCurrency      string
	DefaultFeePercentage decimal.Decimal
	ReturnURL            string
	RefreshURL           string
	// StatsCacheTTL 看板缓存时间，0 表示不缓存
	StatsCacheTTL time.Duration
}

type Service struct {
	store   store.Store
	gateway processor.Gateway
	cache   cache.Cache
	cfg     Config
	now     func() time.Time
}

// NewService c 可以为 nil
func NewService(st store.Store, gateway processor.Gateway, c cache.Cache, cfg Config) *Service {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	return &Service{store: st, gateway: gateway, cache: c, cfg: cfg, now: time.Now}
}

// GetPrimaryAccount 没有主账户返回 (nil, nil)，调用方按 "功能未开启" 处理
func (s *Service) GetPrimaryAccount(ctx context.Context) (*model.PlatformAccount, error) {
	return s.store.GetPrimaryAccount(ctx)
}

func (s *Service) GetAccount(ctx context.Context, id string) (*model.PlatformAccount, error) {
	acct, err := s.store.GetPlatformAccount(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return acct, err
}

func (s *Service) ListAccounts(ctx context.Context) ([]model.PlatformAccount, error) {
	return s.store.ListPlatformAccounts(ctx)
}

// AccountInput 创建平台账户
type AccountInput struct {
	Name                string
	ProcessorAccountID  string
	IsPrimary           bool
	AutoPayoutEnabled   bool
	PayoutSchedule      model.PayoutSchedule
	PayoutDay           int
	MinimumPayoutAmount decimal.Decimal
	Currency            string
}

// AccountPatch 更新平台账户，nil 字段不修改
type AccountPatch struct {
	Name                *string
	ProcessorAccountID  *string
	IsPrimary           *bool
	IsActive            *bool
	AutoPayoutEnabled   *bool
	PayoutSchedule      *model.PayoutSchedule
	PayoutDay           *int
	MinimumPayoutAmount *decimal.Decimal
}

// UpsertPlatformAccount 创建账户；IsPrimary=true 时原主账户在同一事务内被取消
func (s *Service) UpsertPlatformAccount(ctx context.Context, in AccountInput) (*model.PlatformAccount, error) {
	if in.PayoutSchedule == "" {
		in.PayoutSchedule = model.ScheduleMonthly
	}
	if in.PayoutDay == 0 && in.PayoutSchedule == model.ScheduleMonthly {
		in.PayoutDay = 1
	}
	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	acct := &model.PlatformAccount{
		Name:                strings.TrimSpace(in.Name),
		ProcessorAccountID:  in.ProcessorAccountID,
		IsPrimary:           in.IsPrimary,
		IsActive:            true,
		AutoPayoutEnabled:   in.AutoPayoutEnabled,
		PayoutSchedule:      in.PayoutSchedule,
		PayoutDay:           in.PayoutDay,
		MinimumPayoutAmount: in.MinimumPayoutAmount,
		Currency:            currency,
	}
	if err := ValidateAccount(acct); err != nil {
		return nil, err
	}
	if err := s.store.SavePlatformAccount(ctx, acct); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)

	logger.Info("platform account created",
		zap.String("account_id", acct.ID),
		zap.Bool("is_primary", acct.IsPrimary))
	return acct, nil
}

func (s *Service) UpdatePlatformAccount(ctx context.Context, id string, patch AccountPatch) (*model.PlatformAccount, error) {
	acct, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		acct.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.ProcessorAccountID != nil {
		acct.ProcessorAccountID = *patch.ProcessorAccountID
	}
	if patch.IsPrimary != nil {
		acct.IsPrimary = *patch.IsPrimary
	}
	if patch.IsActive != nil {
		acct.IsActive = *patch.IsActive
	}
	if patch.AutoPayoutEnabled != nil {
		acct.AutoPayoutEnabled = *patch.AutoPayoutEnabled
	}
	if patch.PayoutSchedule != nil {
		acct.PayoutSchedule = *patch.PayoutSchedule
	}
	if patch.PayoutDay != nil {
		acct.PayoutDay = *patch.PayoutDay
	}
	if patch.MinimumPayoutAmount != nil {
		acct.MinimumPayoutAmount = *patch.MinimumPayoutAmount
	}

	if err := ValidateAccount(acct); err != nil {
		return nil, err
	}
	if err := s.store.SavePlatformAccount(ctx, acct); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	return acct, nil
}

// ValidateAccount weekly: 0-6 (周日为 0)；monthly: 1-31；daily 忽略 PayoutDay
func ValidateAccount(acct *model.PlatformAccount) error {
	if acct.Name == "" {
		return ErrAccountNameRequired
	}
	if acct.MinimumPayoutAmount.IsNegative() {
		return ErrInvalidMinimum
	}
	switch acct.PayoutSchedule {
	case model.ScheduleDaily:
	case model.ScheduleWeekly:
		if acct.PayoutDay < 0 || acct.PayoutDay > 6 {
			return fmt.Errorf("%w: weekly day %d", ErrInvalidPayoutDay, acct.PayoutDay)
		}
	case model.ScheduleMonthly:
		if acct.PayoutDay < 1 || acct.PayoutDay > 31 {
			return fmt.Errorf("%w: monthly day %d", ErrInvalidPayoutDay, acct.PayoutDay)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSchedule, acct.PayoutSchedule)
	}
	return nil
}

// GetPlatformBalance 主账户的资金汇总
func (s *Service) GetPlatformBalance(ctx context.Context) (*model.PlatformBalance, error) {
	primary, err := s.store.GetPrimaryAccount(ctx)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		return nil, ErrNoPrimaryAccount
	}
	return s.store.GetPlatformBalance(ctx, primary.ID)
}

type FeeConfigView struct {
	Percentage    decimal.Decimal `json:"percentage"`
	EffectiveFrom *time.Time      `json:"effective_from,omitempty"`
	// Source "configured" 或 "default"
	Source string `json:"source"`
}

func (s *Service) GetFeeConfig(ctx context.Context) (*FeeConfigView, error) {
	cfg, err := s.store.GetActiveFeeConfig(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return &FeeConfigView{Percentage: s.cfg.DefaultFeePercentage, Source: "default"}, nil
	}
	if err != nil {
		return nil, err
	}
	from := cfg.EffectiveFrom
	return &FeeConfigView{Percentage: cfg.Percentage, EffectiveFrom: &from, Source: "configured"}, nil
}

// SetFeePercentage 新费率立即生效，旧配置置为 inactive
func (s *Service) SetFeePercentage(ctx context.Context, pct decimal.Decimal) (*model.PlatformFeeConfig, error) {
	if pct.IsNegative() || pct.GreaterThan(money.Hundred) {
		return nil, ErrInvalidFeePercentage
	}
	cfg, err := s.store.SetFeeConfig(ctx, pct, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)
	logger.Info("platform fee updated", zap.String("percentage", pct.String()))
	return cfg, nil
}

type StripeConnectSetup struct {
	AccountID     string                 `json:"account_id"`
	OnboardingURL string                 `json:"onboarding_url"`
	Account       *model.PlatformAccount `json:"account"`
}

// SetupStripeConnect 创建 Express 账户 + 开户链接，成功后作为新的主账户保存。
// 沿用原主账户的打款配置。
func (s *Service) SetupStripeConnect(ctx context.Context, email string) (*StripeConnectSetup, error) {
	connected, err := s.gateway.CreateConnectedAccount(ctx, email)
	if err != nil {
		logger.Error("create connected account failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrOnboardingUnavailable, err)
	}
	link, err := s.gateway.CreateOnboardingLink(ctx, connected.ID, s.cfg.ReturnURL, s.cfg.RefreshURL)
	if err != nil {
		logger.Error("create onboarding link failed", zap.String("account", connected.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrOnboardingUnavailable, err)
	}

	acct := &model.PlatformAccount{
		Name:                "Stripe Connect",
		ProcessorAccountID:  connected.ID,
		IsPrimary:           true,
		IsActive:            true,
		PayoutSchedule:      model.ScheduleMonthly,
		PayoutDay:           1,
		MinimumPayoutAmount: decimal.Zero,
		Currency:            s.cfg.DefaultCurrency,
	}
	prev, err := s.store.GetPrimaryAccount(ctx)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		acct.AutoPayoutEnabled = prev.AutoPayoutEnabled
		acct.PayoutSchedule = prev.PayoutSchedule
		acct.PayoutDay = prev.PayoutDay
		acct.MinimumPayoutAmount = prev.MinimumPayoutAmount
		acct.Currency = prev.Currency
	}
	if err := s.store.SavePlatformAccount(ctx, acct); err != nil {
		return nil, err
	}
	s.invalidateStats(ctx)

	logger.Info("stripe connect account created", zap.String("account", connected.ID))
	return &StripeConnectSetup{AccountID: connected.ID, OnboardingURL: link.URL, Account: acct}, nil
}

type StripeConnectInfo struct {
	Connected bool               `json:"connected"`
	AccountID string             `json:"account_id,omitempty"`
	Balance   *processor.Balance `json:"balance,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// GetStripeConnectInfo 处理方余额查询失败时仍返回账户信息
func (s *Service) GetStripeConnectInfo(ctx context.Context) (*StripeConnectInfo, error) {
	primary, err := s.store.GetPrimaryAccount(ctx)
	if err != nil {
		return nil, err
	}
	if primary == nil || primary.ProcessorAccountID == "" {
		return &StripeConnectInfo{}, nil
	}

	info := &StripeConnectInfo{Connected: true, AccountID: primary.ProcessorAccountID}
	bal, err := s.gateway.GetBalance(ctx, primary.ProcessorAccountID)
	if err != nil {
		logger.Warn("fetch connected balance failed", zap.String("account", primary.ProcessorAccountID), zap.Error(err))
		info.Error = err.Error()
		return info, nil
	}
	info.Balance = bal
	return info, nil
}
