package payout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payout-core/internal/model"
	"payout-core/internal/processor"
	"payout-core/internal/service/connect"
	"payout-core/internal/store"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type staticAccounts struct {
	acct *model.PlatformAccount
}

func (a *staticAccounts) GetPrimaryAccount(context.Context) (*model.PlatformAccount, error) {
	if a.acct == nil {
		return nil, nil
	}
	cp := *a.acct
	return &cp, nil
}

type env struct {
	svc      *Service
	store    *store.MemoryStore
	gateway  *processor.SandboxGateway
	accounts *staticAccounts
	seq      int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemoryStore(store.Options{DefaultFeePercentage: decimal.Zero})
	gw := processor.NewSandboxGateway()
	conn := connect.NewService(gw, st, connect.Config{})
	accounts := &staticAccounts{}
	return &env{
		svc:      NewService(st, conn, accounts, Config{}),
		store:    st,
		gateway:  gw,
		accounts: accounts,
	}
}

// fund 入账并设置收款方式，stripeAccount 为空表示未绑定
func (e *env) fund(t *testing.T, creatorID, amount string, method *model.PayoutMethod, stripeAccount string) *model.CreatorWallet {
	t.Helper()
	ctx := context.Background()
	e.seq++
	out, err := e.store.CreditSubscriptionPayment(ctx, store.CreditInput{
		CreatorID:         creatorID,
		SubscriptionID:    "sub_" + creatorID,
		ExternalPaymentID: fmt.Sprintf("pi_%d", e.seq),
		Gross:             dec(amount),
		Currency:          "USD",
	})
	require.NoError(t, err)
	if method == nil {
		return &out.Wallet
	}
	var acct *string
	if stripeAccount != "" {
		acct = &stripeAccount
	}
	w, err := e.store.UpdateWalletPayoutMethod(ctx, out.Wallet.ID, method, acct)
	require.NoError(t, err)
	return w
}

func (e *env) wallet(t *testing.T, id string) *model.CreatorWallet {
	t.Helper()
	w, err := e.store.GetWallet(context.Background(), id)
	require.NoError(t, err)
	return w
}

func stripeMethod() *model.PayoutMethod {
	return &model.PayoutMethod{Type: model.PayoutMethodStripeConnect}
}

func paypalMethod() *model.PayoutMethod {
	return &model.PayoutMethod{Type: model.PayoutMethodPaypal, PaypalEmail: "creator@example.com"}
}

func bankMethod() *model.PayoutMethod {
	return &model.PayoutMethod{Type: model.PayoutMethodBankTransfer, AccountHolder: "Ada", AccountNumberLast4: "4242"}
}

func TestShouldRunPayout(t *testing.T) {
	day := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		require.NoError(t, err)
		return d
	}
	tests := []struct {
		name     string
		now      string
		schedule model.PayoutSchedule
		day      int
		want     bool
	}{
		{"daily", "2026-03-10", model.ScheduleDaily, 0, true},
		{"weekly match", "2026-03-11", model.ScheduleWeekly, 3, true},
		{"weekly other day", "2026-03-10", model.ScheduleWeekly, 3, false},
		{"weekly sunday", "2026-03-01", model.ScheduleWeekly, 0, true},
		{"monthly match", "2026-03-15", model.ScheduleMonthly, 15, true},
		{"monthly other day", "2026-03-14", model.ScheduleMonthly, 15, false},
		{"monthly clamps to month end", "2026-04-30", model.ScheduleMonthly, 31, true},
		{"monthly before month end", "2026-04-29", model.ScheduleMonthly, 31, false},
		{"february end", "2026-02-28", model.ScheduleMonthly, 30, true},
		{"unknown schedule", "2026-03-10", "hourly", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRunPayout(day(tt.now), tt.schedule, tt.day))
		})
	}
}

func TestGetEligibleCreators(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "paypal", "100", paypalMethod(), "")
	e.fund(t, "no-method", "100", nil, "")
	e.fund(t, "no-stripe", "100", stripeMethod(), "")
	e.fund(t, "below-min", "10", paypalMethod(), "")

	first, err := e.svc.GetEligibleCreators(ctx, dec("25"))
	require.NoError(t, err)
	second, err := e.svc.GetEligibleCreators(ctx, dec("25"))
	require.NoError(t, err)
	assert.Equal(t, first, second, "筛选没有副作用")
	require.Len(t, first, 3)

	reasons := map[string]EligibleCreator{}
	for _, c := range first {
		reasons[c.CreatorID] = c
	}
	assert.True(t, reasons["paypal"].IsEligible)
	assert.Equal(t, reasonNoMethod, reasons["no-method"].Reason)
	assert.Equal(t, reasonNoStripe, reasons["no-stripe"].Reason)
	assert.False(t, reasons["no-stripe"].IsEligible)

	_, err = e.svc.GetEligibleCreators(ctx, dec("-1"))
	assert.ErrorIs(t, err, ErrInvalidMinimum)
}

func TestSchedulePayoutJob(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.SchedulePayoutJob(ctx, time.Now(), dec("25"))
	assert.ErrorIs(t, err, ErrNoEligibleCreators)

	w := e.fund(t, "creator-1", "100", paypalMethod(), "")
	e.fund(t, "creator-2", "80", nil, "")

	job, err := e.svc.SchedulePayoutJob(ctx, time.Now(), dec("25"))
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, job.Status)
	assert.Equal(t, 1, job.TotalCreators)
	assert.True(t, job.TotalAmount.Equal(dec("100")))
	assert.Equal(t, job.ID, job.LineageID)
	assert.Equal(t, 1, job.Attempt)

	// 快照建立后钱包余额变化不影响任务
	e.fund(t, "creator-1", "50", nil, "")
	assert.True(t, e.wallet(t, w.ID).Balance.Equal(dec("150")))

	stored, err := e.svc.GetPayoutJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, stored.Creators, 1)
	assert.True(t, stored.Creators[0].Amount.Equal(dec("100")))
	assert.True(t, stored.TotalAmount.Equal(dec("100")))
}

func TestProcessPayoutJob_EndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := e.fund(t, "creator-1", "100", stripeMethod(), "acct_creator1")

	eligible, err := e.svc.GetEligibleCreators(ctx, dec("25"))
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.True(t, eligible[0].IsEligible)

	job, err := e.svc.SchedulePayoutJob(ctx, time.Now(), dec("25"))
	require.NoError(t, err)
	assert.Equal(t, 1, job.TotalCreators)
	assert.True(t, job.TotalAmount.Equal(dec("100")))

	res, err := e.svc.ProcessPayoutJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, res.Status)
	assert.Equal(t, 1, res.SuccessfulPayouts)
	assert.Zero(t, res.FailedPayouts)
	require.NotNil(t, res.Job)
	assert.NotNil(t, res.Job.CompletedAt)

	after := e.wallet(t, w.ID)
	assert.True(t, after.Balance.IsZero())
	assert.True(t, after.PendingBalance.IsZero())
	assert.True(t, after.TotalWithdrawn.Equal(dec("100")))
	assert.Equal(t, 1, e.gateway.TransferCount())

	reqs, err := e.store.ListPayoutRequests(ctx, store.PayoutRequestFilter{JobID: job.ID})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, model.PayoutRequestCompleted, reqs[0].Status)
	require.NotNil(t, reqs[0].ExternalPayoutID)
	assert.Equal(t, res.Results[0].TransferID, *reqs[0].ExternalPayoutID)
}

func TestProcessPayoutJob_PreservesLateEarnings(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	w := e.fund(t, "creator-1", "100", stripeMethod(), "acct_creator1")

	job, err := e.svc.SchedulePayoutJob(ctx, time.Now(), decimal.Zero)
	require.NoError(t, err)
	e.fund(t, "creator-1", "30", nil, "")

	_, err = e.svc.ProcessPayoutJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, e.wallet(t, w.ID).Balance.Equal(dec("30")), "快照之后的收入不能被清零")
}

func batchOfThree(t *testing.T, e *env) (map[string]*model.CreatorWallet, *model.PayoutJob) {
	t.Helper()
	wallets := map[string]*model.CreatorWallet{}
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("creator-%d", i)
		wallets[id] = e.fund(t, id, "50", stripeMethod(), fmt.Sprintf("acct_%d", i))
	}
	e.gateway.FailTransfersTo("acct_2", &processor.Error{Op: "create transfer", Code: "account_invalid", Message: "destination disabled"})

	job, err := e.svc.SchedulePayoutJob(context.Background(), time.Now(), dec("25"))
	require.NoError(t, err)
	return wallets, job
}

func TestProcessPayoutJob_BatchIsolation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	wallets, job := batchOfThree(t, e)

	res, err := e.svc.ProcessPayoutJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, res.Status)
	assert.Equal(t, 2, res.SuccessfulPayouts)
	assert.Equal(t, 1, res.FailedPayouts)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "creator-2", res.Errors[0].CreatorID)
	assert.Contains(t, res.Errors[0].Error, "destination disabled")

	for _, id := range []string{"creator-1", "creator-3"} {
		reqs, err := e.store.ListPayoutRequests(ctx, store.PayoutRequestFilter{WalletID: wallets[id].ID})
		require.NoError(t, err)
		require.Len(t, reqs, 1)
		assert.Equal(t, model.PayoutRequestCompleted, reqs[0].Status, id)
		assert.True(t, e.wallet(t, wallets[id].ID).Balance.IsZero())
	}

	// 失败的创作者余额退回
	failed := e.wallet(t, wallets["creator-2"].ID)
	assert.True(t, failed.Balance.Equal(dec("50")))
	assert.True(t, failed.PendingBalance.IsZero())

	stored, err := e.svc.GetPayoutJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.SuccessfulPayouts)
	assert.Equal(t, 1, stored.FailedPayouts)
}

func TestProcessPayoutJob_ClaimGuard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t, "creator-1", "100", paypalMethod(), "")

	job, err := e.svc.SchedulePayoutJob(ctx, time.Now(), decimal.Zero)
	require.NoError(t, err)

	_, err = e.svc.ProcessPayoutJob(ctx, job.ID)
	require.NoError(t, err)

	_, err = e.svc.ProcessPayoutJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotPending)
	assert.Contains(t, err.Error(), string(model.JobCompleted))

	_, err = e.svc.ProcessPayoutJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestProcessPayoutJob_ManualRails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pp := e.fund(t, "paypal", "40", paypalMethod(), "")
	bank := e.fund(t, "bank", "60", bankMethod(), "")

	job, err := e.svc.SchedulePayoutJob(ctx, time.Now(), decimal.Zero)
	require.NoError(t, err)
	res, err := e.svc.ProcessPayoutJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, res.Status)
	assert.Zero(t, e.gateway.TransferCount(), "人工渠道不调用处理方")

	for _, w := range []*model.CreatorWallet{pp, bank} {
		after := e.wallet(t, w.ID)
		assert.True(t, after.Balance.IsZero())
		assert.True(t, after.PendingBalance.Equal(w.Balance))
	}
	for _, c := range res.Job.Creators {
		assert.Equal(t, string(model.PayoutRequestPending), c.Status)
		assert.NotEmpty(t, c.RequestID)
	}
}

func TestProcessCreatorPayout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	t.Run("unsupported method", func(t *testing.T) {
		w := e.fund(t, "crypto", "10", nil, "")
		res := e.svc.ProcessCreatorPayout(ctx, CreatorPayout{
			CreatorID: "crypto", WalletID: w.ID, Amount: dec("10"), Currency: "USD",
			Method: model.PayoutMethod{Type: "crypto"}, JobID: "job-x",
		})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "Unsupported payout method")
	})

	t.Run("stripe without account", func(t *testing.T) {
		w := e.fund(t, "no-acct", "10", stripeMethod(), "")
		res := e.svc.ProcessCreatorPayout(ctx, CreatorPayout{
			CreatorID: "no-acct", WalletID: w.ID, Amount: dec("10"), Currency: "USD",
			Method: *stripeMethod(), JobID: "job-x",
		})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "Stripe Connect")
		assert.True(t, e.wallet(t, w.ID).Balance.Equal(dec("10")))
	})

	t.Run("insufficient balance", func(t *testing.T) {
		w := e.fund(t, "short", "10", paypalMethod(), "")
		res := e.svc.ProcessCreatorPayout(ctx, CreatorPayout{
			CreatorID: "short", WalletID: w.ID, Amount: dec("11"), Currency: "USD",
			Method: *paypalMethod(), JobID: "job-x",
		})
		assert.False(t, res.Success)
		assert.Equal(t, "Insufficient balance", res.Error)
	})

	t.Run("already paid in lineage", func(t *testing.T) {
		w := e.fund(t, "paid", "20", stripeMethod(), "acct_paid")
		p := CreatorPayout{
			CreatorID: "paid", WalletID: w.ID, Amount: dec("10"), Currency: "USD",
			Method: *stripeMethod(), JobID: "job-1", LineageID: "lineage-1", Attempt: 1,
		}
		first := e.svc.ProcessCreatorPayout(ctx, p)
		require.True(t, first.Success, first.Error)

		p.JobID, p.Attempt = "job-2", 2
		second := e.svc.ProcessCreatorPayout(ctx, p)
		assert.True(t, second.Success)
		assert.True(t, second.AlreadyPaid)
		assert.Equal(t, first.PayoutRequestID, second.PayoutRequestID)
		assert.True(t, e.wallet(t, w.ID).Balance.Equal(dec("10")), "不能重复打款")
	})
}

func TestRetryFailedPayouts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	wallets, job := batchOfThree(t, e)

	_, err := e.svc.RetryFailedPayouts(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotRetryable, "pending 任务不能重试")

	_, err = e.svc.ProcessPayoutJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, 2, e.gateway.TransferCount())

	e.gateway.FailTransfersTo("acct_2", nil)
	res, err := e.svc.RetryFailedPayouts(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, res.Status)
	assert.Equal(t, 1, res.SuccessfulPayouts)

	child := res.Job
	require.NotNil(t, child.ParentJobID)
	assert.Equal(t, job.ID, *child.ParentJobID)
	assert.Equal(t, job.LineageID, child.LineageID)
	assert.Equal(t, 2, child.Attempt)
	require.Len(t, child.Creators, 1)
	assert.Equal(t, "creator-2", child.Creators[0].CreatorID)

	assert.Equal(t, 3, e.gateway.TransferCount(), "已成功的创作者不再转账")
	assert.True(t, e.gateway.Transferred().Equal(dec("150")))
	assert.True(t, e.wallet(t, wallets["creator-2"].ID).Balance.IsZero())

	_, err = e.svc.RetryFailedPayouts(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotRetryable)
	_, err = e.svc.RetryFailedPayouts(ctx, child.ID)
	assert.ErrorIs(t, err, ErrJobNotRetryable)
	_, err = e.svc.RetryFailedPayouts(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

// blockingTransferer 一直等到 ctx 结束
type blockingTransferer struct{}

func (blockingTransferer) TransferToCreator(ctx context.Context, _ connect.TransferInput) connect.TransferResult {
	<-ctx.Done()
	return connect.TransferResult{Error: ctx.Err().Error()}
}

type panickingTransferer struct{}

func (panickingTransferer) TransferToCreator(context.Context, connect.TransferInput) connect.TransferResult {
	panic("processor client exploded")
}

func TestProcessPayoutJob_Deadline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewService(e.store, blockingTransferer{}, e.accounts, Config{JobDeadline: 20 * time.Millisecond})

	e.fund(t, "creator-a", "100", stripeMethod(), "acct_a")
	e.fund(t, "creator-b", "100", stripeMethod(), "acct_b")

	job, err := svc.SchedulePayoutJob(ctx, time.Now(), decimal.Zero)
	require.NoError(t, err)
	res, err := svc.ProcessPayoutJob(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, model.JobFailed, res.Status)
	assert.Equal(t, 2, res.FailedPayouts)
	assert.Equal(t, model.JobFailed, res.Job.Status)
	for _, r := range res.Results {
		assert.Contains(t, r.Error, context.DeadlineExceeded.Error())
	}

	// 第一个创作者的转账结果未知，资金保持冻结，重试时跳过
	first := res.Job.Creators[0]
	w := e.wallet(t, first.WalletID)
	assert.True(t, w.PendingBalance.Equal(dec("100")))
}

func TestProcessPayoutJob_RecoversPanic(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	svc := NewService(e.store, panickingTransferer{}, e.accounts, Config{})
	e.fund(t, "creator-1", "100", stripeMethod(), "acct_1")

	job, err := svc.SchedulePayoutJob(ctx, time.Now(), decimal.Zero)
	require.NoError(t, err)
	res, err := svc.ProcessPayoutJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error, "unexpected error")
}

func TestRunAutomatedPayoutCheck(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	wednesday := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)

	res := e.svc.RunAutomatedPayoutCheck(ctx, wednesday)
	assert.True(t, res.Success)
	assert.Zero(t, res.JobsCreated)
	assert.Equal(t, msgNoPrimary, res.Error)

	e.accounts.acct = &model.PlatformAccount{
		ID:                  "platform-1",
		Name:                "main",
		IsPrimary:           true,
		PayoutSchedule:      model.ScheduleWeekly,
		PayoutDay:           3,
		MinimumPayoutAmount: dec("25"),
	}
	res = e.svc.RunAutomatedPayoutCheck(ctx, wednesday)
	assert.True(t, res.Success)
	assert.Equal(t, msgDisabled, res.Error)

	e.accounts.acct.AutoPayoutEnabled = true
	res = e.svc.RunAutomatedPayoutCheck(ctx, wednesday.AddDate(0, 0, 1))
	assert.True(t, res.Success)
	assert.Equal(t, msgNotScheduled, res.Error)

	res = e.svc.RunAutomatedPayoutCheck(ctx, wednesday)
	assert.True(t, res.Success)
	assert.Equal(t, msgNoEligible, res.Error)
	assert.Zero(t, res.JobsCreated)

	w := e.fund(t, "creator-1", "100", stripeMethod(), "acct_1")
	res = e.svc.RunAutomatedPayoutCheck(ctx, wednesday)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.JobsCreated)
	require.NotNil(t, res.Job)
	assert.Equal(t, model.JobCompleted, res.Job.Status)
	assert.True(t, e.wallet(t, w.ID).Balance.IsZero())

	e.fund(t, "creator-2", "100", stripeMethod(), "acct_2")
	res = e.svc.RunAutomatedPayoutCheck(ctx, wednesday.Add(time.Hour))
	assert.True(t, res.Success)
	assert.Zero(t, res.JobsCreated)
	assert.Equal(t, msgAlreadyRanDay, res.Error)
}

type failingAccounts struct{}

func (failingAccounts) GetPrimaryAccount(context.Context) (*model.PlatformAccount, error) {
	return nil, errors.New("database unavailable")
}

func TestRunAutomatedPayoutCheck_StoreFailure(t *testing.T) {
	e := newEnv(t)
	svc := NewService(e.store, nil, failingAccounts{}, Config{})

	res := svc.RunAutomatedPayoutCheck(context.Background(), time.Now())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "database unavailable")
}

func TestGetPayoutJobs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t, "creator-1", "100", paypalMethod(), "")

	job, err := e.svc.SchedulePayoutJob(ctx, time.Now(), decimal.Zero)
	require.NoError(t, err)

	page, err := e.svc.GetPayoutJobs(ctx, store.PayoutJobFilter{Status: model.JobPending})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 50, page.Limit)
	require.Len(t, page.Jobs, 1)
	assert.Equal(t, job.ID, page.Jobs[0].ID)

	page, err = e.svc.GetPayoutJobs(ctx, store.PayoutJobFilter{Status: model.JobCompleted})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}
