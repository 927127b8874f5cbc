package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payout-core/internal/event"
	"payout-core/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestStore() *MemoryStore {
	return NewMemoryStore(Options{DefaultFeePercentage: decimal.NewFromInt(10)})
}

func paypal() model.PayoutMethod {
	return model.PayoutMethod{Type: model.PayoutMethodPaypal, PaypalEmail: "c@example.com"}
}

// ledgerSum 钱包所有流水之和
func ledgerSum(t *testing.T, s *MemoryStore, walletID string) decimal.Decimal {
	t.Helper()
	txs, err := s.ListTransactions(context.Background(), walletID, time.Time{}, time.Time{})
	require.NoError(t, err)
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Amount)
	}
	return sum
}

func assertLedgerInvariant(t *testing.T, s *MemoryStore, walletID string) {
	t.Helper()
	w, err := s.GetWallet(context.Background(), walletID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Add(w.PendingBalance).Equal(ledgerSum(t, s, walletID)),
		"balance %s + pending %s != ledger", w.Balance, w.PendingBalance)
	assert.False(t, w.Balance.IsNegative())
	assert.False(t, w.PendingBalance.IsNegative())
}

func TestGetOrCreateWallet_Concurrent(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := s.GetOrCreateWallet(ctx, "creator-1", "USD")
			if assert.NoError(t, err) {
				ids[i] = w.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	wallets, err := s.ListActiveWallets(ctx, decimal.Zero)
	require.NoError(t, err)
	assert.Len(t, wallets, 1)
}

func TestCreditSubscriptionPayment(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	out, err := s.CreditSubscriptionPayment(ctx, CreditInput{
		CreatorID: "creator-1", SubscriptionID: "sub_1", ExternalPaymentID: "pi_1", Gross: d("25.00"), Currency: "USD",
	})
	require.NoError(t, err)
	assert.False(t, out.Duplicate)
	assert.True(t, out.Split.PlatformFee.Equal(d("2.50")))
	assert.True(t, out.Split.CreatorAmount.Equal(d("22.50")))
	assert.Equal(t, "sub:pi_1", out.Transaction.Reference)
	assert.True(t, out.Wallet.TotalEarned.Equal(d("22.50")))

	dup, err := s.CreditSubscriptionPayment(ctx, CreditInput{
		CreatorID: "creator-1", SubscriptionID: "sub_1", ExternalPaymentID: "pi_1", Gross: d("25.00"), Currency: "USD",
	})
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.Equal(t, out.Split.ID, dup.Split.ID)
	assert.Equal(t, out.Transaction.ID, dup.Transaction.ID)
	assert.True(t, dup.Wallet.Balance.Equal(d("22.50")))

	// 使用配置的费率
	_, err = s.SetFeeConfig(ctx, d("20"), time.Now())
	require.NoError(t, err)
	out, err = s.CreditSubscriptionPayment(ctx, CreditInput{CreatorID: "creator-1", Gross: d("10"), Currency: "USD"})
	require.NoError(t, err)
	assert.True(t, out.Split.PlatformFee.Equal(d("2")))
	assert.Equal(t, "split:"+out.Split.ID, out.Transaction.Reference)

	assertLedgerInvariant(t, s, out.Wallet.ID)

	_, err = s.CreditSubscriptionPayment(ctx, CreditInput{CreatorID: "creator-1", Gross: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreditSubscriptionPayment_InactiveWallet(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	w, err := s.GetOrCreateWallet(ctx, "creator-1", "USD")
	require.NoError(t, err)
	require.NoError(t, s.DeactivateWallet(ctx, w.ID))

	_, err = s.CreditSubscriptionPayment(ctx, CreditInput{CreatorID: "creator-1", Gross: d("5"), Currency: "USD"})
	assert.ErrorIs(t, err, ErrWalletInactive)
	assert.True(t, ledgerSum(t, s, w.ID).IsZero(), "失败时不能留下部分入账")
}

func TestReserveCompleteFail(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	out, err := s.CreditSubscriptionPayment(ctx, CreditInput{CreatorID: "creator-1", Gross: d("100"), Currency: "USD"})
	require.NoError(t, err)
	walletID := out.Wallet.ID

	_, err = s.ReservePayout(ctx, ReserveInput{WalletID: walletID, Amount: d("90.01"), Method: paypal(), IdempotencyKey: "k0"})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = s.ReservePayout(ctx, ReserveInput{WalletID: "missing", Amount: d("1"), Method: paypal(), IdempotencyKey: "k-missing"})
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := s.ReservePayout(ctx, ReserveInput{WalletID: walletID, Amount: d("50"), Method: paypal(), IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.Equal(t, model.PayoutRequestPending, first.Status)

	replay, err := s.ReservePayout(ctx, ReserveInput{WalletID: walletID, Amount: d("50"), Method: paypal(), IdempotencyKey: "k1"})
	assert.ErrorIs(t, err, ErrDuplicatePayout)
	assert.Equal(t, first.ID, replay.ID)

	second, err := s.ReservePayout(ctx, ReserveInput{
		WalletID: walletID, Amount: d("40"), Method: paypal(), Status: model.PayoutRequestProcessing, IdempotencyKey: "k2",
	})
	require.NoError(t, err)

	w, err := s.GetWallet(ctx, walletID)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.PendingBalance.Equal(d("90")))
	assertLedgerInvariant(t, s, walletID)

	done, err := s.CompletePayout(ctx, first.ID, "tr_1")
	require.NoError(t, err)
	assert.Equal(t, model.PayoutRequestCompleted, done.Status)
	assertLedgerInvariant(t, s, walletID)

	_, err = s.CompletePayout(ctx, first.ID, "tr_1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.FailPayout(ctx, first.ID, "late failure")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	failed, err := s.FailPayout(ctx, second.ID, "declined")
	require.NoError(t, err)
	assert.Equal(t, "declined", failed.FailureReason)

	w, err = s.GetWallet(ctx, walletID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(d("40")))
	assert.True(t, w.PendingBalance.IsZero())
	assert.True(t, w.TotalWithdrawn.Equal(d("50")))
	assertLedgerInvariant(t, s, walletID)
}

func TestReservePayout_ConcurrentNeverOverdraws(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	out, err := s.CreditSubscriptionPayment(ctx, CreditInput{CreatorID: "creator-1", Gross: d("100"), Currency: "USD"})
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.ReservePayout(ctx, ReserveInput{
				WalletID: out.Wallet.ID, Amount: d("20"), Method: paypal(), IdempotencyKey: fmt.Sprintf("k%d", i),
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, ok, "90 的余额最多冻结 4 次 20")
	assertLedgerInvariant(t, s, out.Wallet.ID)
}

func TestFindCompletedPayout(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	out, err := s.CreditSubscriptionPayment(ctx, CreditInput{CreatorID: "creator-1", Gross: d("100"), Currency: "USD"})
	require.NoError(t, err)

	lineage := "lineage-1"
	req, err := s.ReservePayout(ctx, ReserveInput{
		WalletID: out.Wallet.ID, Amount: d("10"), Method: paypal(), LineageID: &lineage, IdempotencyKey: "k1",
	})
	require.NoError(t, err)

	_, err = s.FindCompletedPayout(ctx, lineage, "creator-1")
	assert.ErrorIs(t, err, ErrNotFound, "未完成的不算")

	_, err = s.CompletePayout(ctx, req.ID, "")
	require.NoError(t, err)
	found, err := s.FindCompletedPayout(ctx, lineage, "creator-1")
	require.NoError(t, err)
	assert.Equal(t, req.ID, found.ID)
}

func TestClaimPayoutJob(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	job := &model.PayoutJob{Status: model.JobPending, ScheduledDate: time.Now(), Attempt: 1}
	require.NoError(t, s.CreatePayoutJob(ctx, job))
	assert.Equal(t, job.ID, job.LineageID)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.ClaimPayoutJob(ctx, job.ID, time.Now())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, claimed)

	current, ok, err := s.ClaimPayoutJob(ctx, job.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, model.JobProcessing, current.Status)

	final, err := s.FinalizePayoutJob(ctx, FinalizeInput{JobID: job.ID, Status: model.JobCompleted, CompletedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, final.Status)

	_, err = s.FinalizePayoutJob(ctx, FinalizeInput{JobID: job.ID, Status: model.JobFailed, CompletedAt: time.Now()})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, _, err = s.ClaimPayoutJob(ctx, "missing", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSavePlatformAccount_SinglePrimary(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	var last string
	for i := 0; i < 5; i++ {
		acct := &model.PlatformAccount{Name: fmt.Sprintf("acct-%d", i), IsPrimary: true, Currency: "USD"}
		require.NoError(t, s.SavePlatformAccount(ctx, acct))
		last = acct.ID
	}

	accounts, err := s.ListPlatformAccounts(ctx)
	require.NoError(t, err)
	primaries := 0
	for _, a := range accounts {
		if a.IsPrimary {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)

	primary, err := s.GetPrimaryAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, last, primary.ID)
}

func TestPlatformBalanceFollowsLedger(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	acct := &model.PlatformAccount{Name: "main", IsPrimary: true, Currency: "USD"}
	require.NoError(t, s.SavePlatformAccount(ctx, acct))

	out, err := s.CreditSubscriptionPayment(ctx, CreditInput{CreatorID: "c1", Gross: d("100"), Currency: "USD"})
	require.NoError(t, err)
	a, err := s.ReservePayout(ctx, ReserveInput{WalletID: out.Wallet.ID, Amount: d("50"), Method: paypal(), IdempotencyKey: "a"})
	require.NoError(t, err)
	b, err := s.ReservePayout(ctx, ReserveInput{WalletID: out.Wallet.ID, Amount: d("20"), Method: paypal(), IdempotencyKey: "b"})
	require.NoError(t, err)
	_, err = s.CompletePayout(ctx, a.ID, "")
	require.NoError(t, err)
	_, err = s.FailPayout(ctx, b.ID, "x")
	require.NoError(t, err)

	bal, err := s.GetPlatformBalance(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, bal.Available.Equal(d("10")))
	assert.True(t, bal.TotalFeesCollected.Equal(d("10")))
	assert.True(t, bal.Reserved.Equal(d("40")))
	assert.True(t, bal.Pending.IsZero())
	assert.True(t, bal.TotalPayoutsMade.Equal(d("50")))

	fees, count, err := s.SumFees(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.True(t, fees.Equal(d("10")))
	assert.Equal(t, int64(1), count)
}

func TestIdempotencyKeys(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	rec, created, err := s.ReserveIdempotencyKey(ctx, "key-1", "hash-a")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.IdempotencyInProgress, rec.Status)

	_, created, err = s.ReserveIdempotencyKey(ctx, "key-1", "hash-a")
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = s.ReserveIdempotencyKey(ctx, "key-1", "hash-b")
	assert.ErrorIs(t, err, ErrIdempotencyMismatch)

	require.NoError(t, s.CompleteIdempotencyKey(ctx, "key-1", "req-1"))
	rec, _, err = s.ReserveIdempotencyKey(ctx, "key-1", "hash-a")
	require.NoError(t, err)
	assert.Equal(t, model.IdempotencyCompleted, rec.Status)
	assert.Equal(t, "req-1", rec.ResponseRef)
}

func TestOutbox(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	_, err := s.CreditSubscriptionPayment(ctx, CreditInput{CreatorID: "c1", Gross: d("10"), Currency: "USD"})
	require.NoError(t, err)

	msgs, err := s.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, event.TopicWalletCredited, msgs[0].Topic)

	require.NoError(t, s.MarkOutboxSent(ctx, msgs[0].ID))
	msgs, err = s.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.ErrorIs(t, s.MarkOutboxSent(ctx, 999), ErrNotFound)
}
