package wallet

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"payout-core/internal/model"
	"payout-core/internal/store"
)

// 以下统计只从流水 / 拆分记录计算，不读钱包上的可变累计字段

type WalletStats struct {
	WalletID         string          `json:"wallet_id"`
	From             time.Time       `json:"from"`
	To               time.Time       `json:"to"`
	TotalEarned      decimal.Decimal `json:"total_earned"`
	TotalWithdrawn   decimal.Decimal `json:"total_withdrawn"`
	TotalAdjustments decimal.Decimal `json:"total_adjustments"`
	NetChange        decimal.Decimal `json:"net_change"`
	PaymentCount     int             `json:"payment_count"`
	PayoutCount      int             `json:"payout_count"`
	AveragePayment   decimal.Decimal `json:"average_payment"`
	TransactionCount int             `json:"transaction_count"`
}

// GetWalletStats 区间 [from, to) 内的流水统计，零值表示不限
func (s *Service) GetWalletStats(ctx context.Context, walletID string, from, to time.Time) (*WalletStats, error) {
	if _, err := s.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, walletID, from, to)
	if err != nil {
		return nil, err
	}
	return summarize(walletID, from, to, txs), nil
}

func summarize(walletID string, from, to time.Time, txs []model.WalletTransaction) *WalletStats {
	stats := &WalletStats{
		WalletID:         walletID,
		From:             from,
		To:               to,
		TotalEarned:      decimal.Zero,
		TotalWithdrawn:   decimal.Zero,
		TotalAdjustments: decimal.Zero,
		NetChange:        decimal.Zero,
		AveragePayment:   decimal.Zero,
		TransactionCount: len(txs),
	}
	for _, tx := range txs {
		stats.NetChange = stats.NetChange.Add(tx.Amount)
		switch tx.Type {
		case model.TransactionSubscriptionPayment:
			stats.TotalEarned = stats.TotalEarned.Add(tx.Amount)
			stats.PaymentCount++
		case model.TransactionPayout:
			stats.TotalWithdrawn = stats.TotalWithdrawn.Add(tx.Amount.Neg())
			stats.PayoutCount++
		default:
			stats.TotalAdjustments = stats.TotalAdjustments.Add(tx.Amount)
		}
	}
	if stats.PaymentCount > 0 {
		stats.AveragePayment = stats.TotalEarned.
			Div(decimal.NewFromInt(int64(stats.PaymentCount))).
			Round(2)
	}
	return stats
}

type WalletSummary struct {
	WalletID         string              `json:"wallet_id"`
	CreatorID        string              `json:"creator_id"`
	Currency         string              `json:"currency"`
	LedgerBalance    decimal.Decimal     `json:"ledger_balance"`
	AvailableBalance decimal.Decimal     `json:"available_balance"`
	PendingBalance   decimal.Decimal     `json:"pending_balance"`
	TotalEarned      decimal.Decimal     `json:"total_earned"`
	TotalWithdrawn   decimal.Decimal     `json:"total_withdrawn"`
	TransactionCount int                 `json:"transaction_count"`
	LastPaymentAt    *time.Time          `json:"last_payment_at,omitempty"`
	LastPayoutAt     *time.Time          `json:"last_payout_at,omitempty"`
	PayoutMethod     *model.PayoutMethod `json:"payout_method,omitempty"`
	// Reconciled 流水推导的可用余额与钱包余额一致
	Reconciled bool `json:"reconciled"`
}

// GetWalletSummary 全量流水汇总。
// 冻结金额尚未落流水，可用余额 = 流水合计 - pending_balance
func (s *Service) GetWalletSummary(ctx context.Context, walletID string) (*WalletSummary, error) {
	// 钱包与流水来自同一个快照，并发入账时 reconciled 不会误报
	w, txs, err := s.store.GetWalletLedger(ctx, walletID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	stats := summarize(walletID, time.Time{}, time.Time{}, txs)

	summary := &WalletSummary{
		WalletID:         w.ID,
		CreatorID:        w.CreatorID,
		Currency:         w.Currency,
		LedgerBalance:    stats.NetChange,
		AvailableBalance: stats.NetChange.Sub(w.PendingBalance),
		PendingBalance:   w.PendingBalance,
		TotalEarned:      stats.TotalEarned,
		TotalWithdrawn:   stats.TotalWithdrawn,
		TransactionCount: stats.TransactionCount,
		PayoutMethod:     w.PayoutMethod,
	}
	for i := range txs {
		at := txs[i].CreatedAt
		switch txs[i].Type {
		case model.TransactionSubscriptionPayment:
			if summary.LastPaymentAt == nil || at.After(*summary.LastPaymentAt) {
				summary.LastPaymentAt = &at
			}
		case model.TransactionPayout:
			if summary.LastPayoutAt == nil || at.After(*summary.LastPayoutAt) {
				summary.LastPayoutAt = &at
			}
		}
	}
	summary.Reconciled = summary.AvailableBalance.Equal(w.Balance)
	return summary, nil
}

type DailyEarnings struct {
	Date         string          `json:"date"` // YYYY-MM-DD (UTC)
	Gross        decimal.Decimal `json:"gross"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	Net          decimal.Decimal `json:"net"`
	PaymentCount int             `json:"payment_count"`
}

type EarningsBreakdown struct {
	WalletID     string          `json:"wallet_id"`
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	GrossTotal   decimal.Decimal `json:"gross_total"`
	FeeTotal     decimal.Decimal `json:"fee_total"`
	NetTotal     decimal.Decimal `json:"net_total"`
	PaymentCount int             `json:"payment_count"`
	Daily        []DailyEarnings `json:"daily"`
}

// GetEarningsBreakdown 按天汇总的 gross / fee / net，来源为拆分记录
func (s *Service) GetEarningsBreakdown(ctx context.Context, walletID string, start, end time.Time) (*EarningsBreakdown, error) {
	if _, err := s.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}
	splits, err := s.store.ListPaymentSplits(ctx, store.SplitFilter{WalletID: walletID, From: start, To: end})
	if err != nil {
		return nil, err
	}

	out := &EarningsBreakdown{
		WalletID:   walletID,
		Start:      start,
		End:        end,
		GrossTotal: decimal.Zero,
		FeeTotal:   decimal.Zero,
		NetTotal:   decimal.Zero,
		Daily:      []DailyEarnings{},
	}
	byDay := make(map[string]*DailyEarnings)
	for _, sp := range splits {
		out.GrossTotal = out.GrossTotal.Add(sp.GrossAmount)
		out.FeeTotal = out.FeeTotal.Add(sp.PlatformFee)
		out.NetTotal = out.NetTotal.Add(sp.CreatorAmount)
		out.PaymentCount++

		day := sp.CreatedAt.UTC().Format("2006-01-02")
		d, ok := byDay[day]
		if !ok {
			d = &DailyEarnings{Date: day, Gross: decimal.Zero, PlatformFee: decimal.Zero, Net: decimal.Zero}
			byDay[day] = d
		}
		d.Gross = d.Gross.Add(sp.GrossAmount)
		d.PlatformFee = d.PlatformFee.Add(sp.PlatformFee)
		d.Net = d.Net.Add(sp.CreatorAmount)
		d.PaymentCount++
	}
	for _, d := range byDay {
		out.Daily = append(out.Daily, *d)
	}
	sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })
	return out, nil
}
