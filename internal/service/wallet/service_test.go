package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payout-core/internal/model"
	"payout-core/internal/store"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore(store.Options{
		DefaultFeePercentage: decimal.NewFromInt(10),
		Now:                  func() time.Time { return fixedNow },
	})
	return NewService(st, nil, "usd"), st
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func paypal() *model.PayoutMethod {
	return &model.PayoutMethod{Type: model.PayoutMethodPaypal, PaypalEmail: "creator@example.com"}
}

func credit(t *testing.T, svc *Service, creatorID, extID, gross string) PaymentProcessingResult {
	t.Helper()
	res := svc.ProcessSubscriptionPayment(context.Background(), SubscriptionPayment{
		SubscriptionID:    "sub_" + extID,
		CreatorID:         creatorID,
		GrossAmount:       dec(gross),
		Currency:          "usd",
		PaymentMethod:     "card",
		ExternalPaymentID: extID,
	})
	require.True(t, res.Success, res.Error)
	return res
}

func TestProcessSubscriptionPayment_SplitsFee(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res := credit(t, svc, "creator-1", "pi_1", "100.00")
	assert.True(t, res.PlatformFee.Equal(dec("10")))
	assert.True(t, res.CreatorAmount.Equal(dec("90")))
	assert.True(t, res.PlatformFee.Add(res.CreatorAmount).Equal(res.GrossAmount))

	w, err := svc.GetWallet(ctx, res.WalletID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("90")))
	assert.True(t, w.TotalEarned.Equal(dec("90")))
	assert.Equal(t, "USD", w.Currency)
}

func TestProcessSubscriptionPayment_Duplicate(t *testing.T) {
	svc, _ := newTestService(t)

	first := credit(t, svc, "creator-1", "pi_dup", "20.00")
	second := credit(t, svc, "creator-1", "pi_dup", "20.00")

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.SplitID, second.SplitID)

	w, err := svc.GetWallet(context.Background(), first.WalletID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("18")), "重复投递不能重复入账")
}

func TestProcessSubscriptionPayment_Rejects(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   SubscriptionPayment
		want error
	}{
		{"zero amount", SubscriptionPayment{CreatorID: "c", GrossAmount: decimal.Zero}, ErrInvalidAmount},
		{"bad currency", SubscriptionPayment{CreatorID: "c", GrossAmount: dec("1"), Currency: "dollar"}, ErrInvalidCurrency},
		{"no creator", SubscriptionPayment{SubscriptionID: "sub", GrossAmount: dec("1")}, ErrUnknownCreator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.ProcessSubscriptionPayment(ctx, tt.in)
			assert.False(t, res.Success)
			assert.ErrorIs(t, res.Err, tt.want)
			assert.NotEmpty(t, res.Error)
		})
	}
}

type staticResolver map[string]string

func (r staticResolver) CreatorForSubscription(_ context.Context, id string) (string, error) {
	return r[id], nil
}

func TestProcessSubscriptionPayment_Resolver(t *testing.T) {
	st := store.NewMemoryStore(store.Options{DefaultFeePercentage: decimal.NewFromInt(20)})
	svc := NewService(st, staticResolver{"sub_1": "creator-9"}, "USD")

	res := svc.ProcessSubscriptionPayment(context.Background(), SubscriptionPayment{
		SubscriptionID: "sub_1",
		GrossAmount:    dec("50"),
	})
	require.True(t, res.Success, res.Error)

	w, err := st.GetWalletByCreator(context.Background(), "creator-9")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("40")))
}

func TestRequestPayout(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	walletID := credit(t, svc, "creator-1", "pi_1", "100.00").WalletID

	t.Run("insufficient balance", func(t *testing.T) {
		res := svc.RequestPayout(ctx, PayoutRequestInput{WalletID: walletID, Amount: dec("90.01"), Method: paypal()})
		assert.False(t, res.Success)
		assert.ErrorIs(t, res.Err, ErrInsufficientBalance)

		w, err := svc.GetWallet(ctx, walletID)
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(dec("90")))
		assert.True(t, w.PendingBalance.IsZero())
	})

	t.Run("no method", func(t *testing.T) {
		res := svc.RequestPayout(ctx, PayoutRequestInput{WalletID: walletID, Amount: dec("1")})
		assert.ErrorIs(t, res.Err, ErrNoPayoutMethod)
	})

	t.Run("unknown wallet", func(t *testing.T) {
		res := svc.RequestPayout(ctx, PayoutRequestInput{WalletID: "missing", Amount: dec("1"), Method: paypal()})
		assert.ErrorIs(t, res.Err, ErrWalletNotFound)
	})

	t.Run("reserves funds", func(t *testing.T) {
		res := svc.RequestPayout(ctx, PayoutRequestInput{WalletID: walletID, Amount: dec("50"), Method: paypal()})
		require.True(t, res.Success, res.Error)
		assert.Equal(t, model.PayoutRequestPending, res.Status)

		w, err := svc.GetWallet(ctx, walletID)
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(dec("40")))
		assert.True(t, w.PendingBalance.Equal(dec("50")))
	})
}

func TestRequestPayout_IdempotencyKey(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	walletID := credit(t, svc, "creator-1", "pi_1", "100.00").WalletID

	in := PayoutRequestInput{WalletID: walletID, Amount: dec("30"), Method: paypal(), IdempotencyKey: "key-1"}
	first := svc.RequestPayout(ctx, in)
	require.True(t, first.Success, first.Error)

	replay := svc.RequestPayout(ctx, in)
	require.True(t, replay.Success, replay.Error)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, first.PayoutRequestID, replay.PayoutRequestID)

	in.Amount = dec("31")
	mismatch := svc.RequestPayout(ctx, in)
	assert.False(t, mismatch.Success)
	assert.ErrorIs(t, mismatch.Err, ErrIdempotencyMismatch)

	w, err := svc.GetWallet(ctx, walletID)
	require.NoError(t, err)
	assert.True(t, w.PendingBalance.Equal(dec("30")), "只能冻结一次")
}

func TestManualPayoutSettlement(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	walletID := credit(t, svc, "creator-1", "pi_1", "100.00").WalletID

	done := svc.RequestPayout(ctx, PayoutRequestInput{WalletID: walletID, Amount: dec("50"), Method: paypal()})
	require.True(t, done.Success)
	failed := svc.RequestPayout(ctx, PayoutRequestInput{WalletID: walletID, Amount: dec("20"), Method: paypal()})
	require.True(t, failed.Success)

	req, err := svc.CompleteManualPayout(ctx, done.PayoutRequestID, "PP-123")
	require.NoError(t, err)
	assert.Equal(t, model.PayoutRequestCompleted, req.Status)

	_, err = svc.CompleteManualPayout(ctx, done.PayoutRequestID, "PP-123")
	assert.ErrorIs(t, err, ErrAlreadySettled)

	_, err = svc.FailManualPayout(ctx, failed.PayoutRequestID, "paypal account closed")
	require.NoError(t, err)

	_, err = svc.FailManualPayout(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrPayoutRequestNotFound)

	w, err := svc.GetWallet(ctx, walletID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("40")))
	assert.True(t, w.PendingBalance.IsZero())
	assert.True(t, w.TotalWithdrawn.Equal(dec("50")))

	summary, err := svc.GetWalletSummary(ctx, walletID)
	require.NoError(t, err)
	assert.True(t, summary.Reconciled)
	assert.True(t, summary.LedgerBalance.Equal(dec("40")))
	assert.True(t, summary.TotalWithdrawn.Equal(dec("50")))
	assert.NotNil(t, summary.LastPayoutAt)
}

func TestUpdatePayoutMethod(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	w, err := svc.GetOrCreateWallet(ctx, "creator-1")
	require.NoError(t, err)

	_, err = svc.UpdatePayoutMethod(ctx, w.ID, &model.PayoutMethod{Type: model.PayoutMethodBankTransfer})
	assert.ErrorIs(t, err, model.ErrInvalidPayoutMethod)

	updated, err := svc.UpdatePayoutMethod(ctx, w.ID, &model.PayoutMethod{
		Type:            model.PayoutMethodStripeConnect,
		StripeAccountID: "acct_123",
	})
	require.NoError(t, err)
	assert.True(t, updated.HasStripeAccount())
	assert.Equal(t, "acct_123", *updated.StripeAccountID)

	_, err = svc.UpdatePayoutMethod(ctx, "missing", paypal())
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestGetWalletStatsAndBreakdown(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	walletID := credit(t, svc, "creator-1", "pi_1", "100.00").WalletID
	credit(t, svc, "creator-1", "pi_2", "50.00")

	stats, err := svc.GetWalletStats(ctx, walletID, fixedNow.Add(-time.Hour), fixedNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PaymentCount)
	assert.True(t, stats.TotalEarned.Equal(dec("135")))
	assert.True(t, stats.AveragePayment.Equal(dec("67.5")))

	empty, err := svc.GetWalletStats(ctx, walletID, fixedNow.Add(time.Hour), fixedNow.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, empty.TransactionCount)

	bd, err := svc.GetEarningsBreakdown(ctx, walletID, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.True(t, bd.GrossTotal.Equal(dec("150")))
	assert.True(t, bd.FeeTotal.Equal(dec("15")))
	assert.True(t, bd.NetTotal.Equal(dec("135")))
	require.Len(t, bd.Daily, 1)
	assert.Equal(t, "2026-03-10", bd.Daily[0].Date)
	assert.Equal(t, 2, bd.Daily[0].PaymentCount)

	_, err = svc.GetWalletStats(ctx, "missing", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

// creditingStore 每次按区间查流水前插入一笔新入账，模拟并发入账
type creditingStore struct {
	*store.MemoryStore
	n int
}

func (s *creditingStore) ListTransactions(ctx context.Context, walletID string, from, to time.Time) ([]model.WalletTransaction, error) {
	s.n++
	_, _ = s.CreditSubscriptionPayment(ctx, store.CreditInput{
		CreatorID: "creator-1", SubscriptionID: "sub_race", Gross: dec("10"), Currency: "USD",
	})
	return s.MemoryStore.ListTransactions(ctx, walletID, from, to)
}

func TestGetWalletSummary_ConcurrentCredit(t *testing.T) {
	base := store.NewMemoryStore(store.Options{DefaultFeePercentage: decimal.NewFromInt(10)})
	st := &creditingStore{MemoryStore: base}
	svc := NewService(st, nil, "USD")
	ctx := context.Background()

	res := credit(t, svc, "creator-1", "pi_1", "100.00")

	summary, err := svc.GetWalletSummary(ctx, res.WalletID)
	require.NoError(t, err)
	assert.True(t, summary.Reconciled)
	assert.True(t, summary.AvailableBalance.Equal(dec("90")))
	assert.Equal(t, 0, st.n)

	_, err = svc.GetWalletSummary(ctx, "missing")
	assert.ErrorIs(t, err, ErrWalletNotFound)
}
