package platform

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payout-core/internal/model"
	"payout-core/pkg/cache"
	"payout-core/pkg/logger"
)

const statsCacheKeyPrefix = "platform:dashboard:"

type DashboardStats struct {
	Balance           *model.PlatformBalance `json:"balance,omitempty"`
	ThisMonthFees     decimal.Decimal        `json:"this_month_fees"`
	LastMonthFees     decimal.Decimal        `json:"last_month_fees"`
	ThisMonthPayments int64                  `json:"this_month_payments"`
	GrowthPercentage  decimal.Decimal        `json:"growth_percentage"`
	ActiveCreators    int                    `json:"active_creators"`
	GeneratedAt       time.Time              `json:"generated_at"`
}

// GrowthPercentage 环比增长 (%)。上月为 0 时: 本月也为 0 返回 0，否则返回 100
func GrowthPercentage(thisMonth, lastMonth decimal.Decimal) decimal.Decimal {
	if lastMonth.IsZero() {
		if thisMonth.IsZero() {
			return decimal.Zero
		}
		return decimal.NewFromInt(100)
	}
	return thisMonth.Sub(lastMonth).
		Div(lastMonth).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

// monthBounds 本月与上月的起点 (UTC)
func monthBounds(now time.Time) (lastStart, thisStart, nextStart time.Time) {
	now = now.UTC()
	thisStart = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return thisStart.AddDate(0, -1, 0), thisStart, thisStart.AddDate(0, 1, 0)
}

func (s *Service) statsCacheKey() string {
	return statsCacheKeyPrefix + s.now().UTC().Format("2006-01")
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.statsCacheKey()); err != nil {
		logger.Warn("invalidate dashboard cache failed", zap.Error(err))
	}
}

// GetPlatformDashboardStats 余额 + 本月/上月平台费 + 环比
func (s *Service) GetPlatformDashboardStats(ctx context.Context) (*DashboardStats, error) {
	if s.cache == nil || s.cfg.StatsCacheTTL <= 0 {
		stats, err := s.loadDashboardStats(ctx)
		if err != nil {
			return nil, err
		}
		return &stats, nil
	}
	stats, err := cache.Remember(ctx, s.cache, s.statsCacheKey(), s.cfg.StatsCacheTTL, s.loadDashboardStats)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *Service) loadDashboardStats(ctx context.Context) (DashboardStats, error) {
	now := s.now().UTC()
	lastStart, thisStart, nextStart := monthBounds(now)

	thisFees, thisCount, err := s.store.SumFees(ctx, thisStart, nextStart)
	if err != nil {
		return DashboardStats{}, err
	}
	lastFees, _, err := s.store.SumFees(ctx, lastStart, thisStart)
	if err != nil {
		return DashboardStats{}, err
	}
	wallets, err := s.store.ListActiveWallets(ctx, decimal.Zero)
	if err != nil {
		return DashboardStats{}, err
	}

	stats := DashboardStats{
		ThisMonthFees:     thisFees,
		LastMonthFees:     lastFees,
		ThisMonthPayments: thisCount,
		GrowthPercentage:  GrowthPercentage(thisFees, lastFees),
		ActiveCreators:    len(wallets),
		GeneratedAt:       now,
	}

	primary, err := s.store.GetPrimaryAccount(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	if primary != nil {
		bal, err := s.store.GetPlatformBalance(ctx, primary.ID)
		if err != nil {
			return DashboardStats{}, err
		}
		stats.Balance = bal
	}
	return stats, nil
}
