package connect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"payout-core/internal/model"
	"payout-core/internal/processor"
	"payout-core/internal/processor/processortest"
	"payout-core/internal/store"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newStore(t *testing.T, primaryAccount string) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore(store.Options{DefaultFeePercentage: decimal.NewFromInt(10)})
	if primaryAccount != "" {
		require.NoError(t, st.SavePlatformAccount(context.Background(), &model.PlatformAccount{
			Name: "main", ProcessorAccountID: primaryAccount, IsPrimary: true, Currency: "USD",
		}))
	}
	return st
}

func TestCreatePlatformPaymentIntent(t *testing.T) {
	gw := new(processortest.Gateway)
	st := newStore(t, "acct_platform")
	_, err := st.SetFeeConfig(context.Background(), dec("15"), time.Now())
	require.NoError(t, err)
	svc := NewService(gw, st, Config{DefaultFeePercentage: decimal.NewFromInt(10)})

	gw.On("CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(p processor.PaymentIntentParams) bool {
		return p.Amount.Equal(dec("20")) &&
			p.Currency == "USD" &&
			p.OnBehalfOf == "acct_platform" &&
			p.Metadata["subscription_id"] == "sub_1" &&
			p.Metadata["platform_fee"] == "3.00" &&
			p.Metadata["creator_amount"] == "17.00" &&
			p.Metadata["fee_percentage"] == "15" &&
			p.Metadata["plan"] == "gold"
	})).Return(&processor.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil).Once()

	res := svc.CreatePlatformPaymentIntent(context.Background(), PaymentIntentInput{
		SubscriptionID: "sub_1",
		Amount:         dec("20"),
		Currency:       "usd",
		Metadata:       map[string]string{"plan": "gold"},
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "pi_1", res.PaymentIntentID)
	assert.Equal(t, "pi_1_secret", res.ClientSecret)
	assert.True(t, res.PlatformFee.Equal(dec("3")))
	assert.True(t, res.CreatorAmount.Equal(dec("17")))
	gw.AssertExpectations(t)
}

func TestCreatePlatformPaymentIntent_Failures(t *testing.T) {
	gw := new(processortest.Gateway)
	svc := NewService(gw, newStore(t, ""), Config{DefaultFeePercentage: decimal.NewFromInt(10), PlatformAccountID: "acct_cfg"})
	ctx := context.Background()

	res := svc.CreatePlatformPaymentIntent(ctx, PaymentIntentInput{SubscriptionID: "sub_1", Amount: decimal.Zero})
	assert.False(t, res.Success)
	gw.AssertNotCalled(t, "CreatePaymentIntent", mock.Anything, mock.Anything)

	gw.On("CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(p processor.PaymentIntentParams) bool {
		return p.OnBehalfOf == "acct_cfg"
	})).Return(nil, &processor.Error{Op: "create payment intent", Code: "card_declined", Message: "declined"}).Once()

	res = svc.CreatePlatformPaymentIntent(ctx, PaymentIntentInput{SubscriptionID: "sub_1", Amount: dec("5"), Currency: "USD"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "card_declined")
	gw.AssertExpectations(t)
}

func TestTransferToCreator(t *testing.T) {
	gw := new(processortest.Gateway)
	svc := NewService(gw, newStore(t, ""), Config{})
	ctx := context.Background()

	res := svc.TransferToCreator(ctx, TransferInput{Amount: dec("10"), StripeAccountID: "acct_1"})
	assert.False(t, res.Success)
	assert.Equal(t, processor.ErrMissingIdempotencyKey.Error(), res.Error)

	res = svc.TransferToCreator(ctx, TransferInput{Amount: dec("10"), IdempotencyKey: "k"})
	assert.Equal(t, ErrMissingAccount.Error(), res.Error)

	gw.On("Transfer", mock.Anything, mock.MatchedBy(func(p processor.TransferParams) bool {
		return p.IdempotencyKey == "transfer:job:c1:1" && p.Destination == "acct_1" && p.Metadata["creator_id"] == "c1"
	})).Return(&processor.Transfer{ID: "tr_1"}, nil).Once()

	res = svc.TransferToCreator(ctx, TransferInput{
		CreatorID: "c1", Amount: dec("10"), Currency: "usd", StripeAccountID: "acct_1", IdempotencyKey: "transfer:job:c1:1",
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "tr_1", res.TransferID)
	gw.AssertExpectations(t)
}

func TestProcessBatchPayouts_Isolation(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			gw := processor.NewSandboxGateway()
			gw.FailTransfersTo("acct_2", errors.New("account closed"))
			svc := NewService(gw, newStore(t, ""), Config{BatchConcurrency: concurrency})

			items := make([]BatchPayout, 0, 5)
			for i := 1; i <= 5; i++ {
				items = append(items, BatchPayout{
					CreatorID:       fmt.Sprintf("c%d", i),
					Amount:          dec("10"),
					Currency:        "USD",
					StripeAccountID: fmt.Sprintf("acct_%d", i),
					IdempotencyKey:  fmt.Sprintf("batch:%d", i),
				})
			}
			items = append(items, BatchPayout{CreatorID: "no-key", Amount: dec("1"), StripeAccountID: "acct_9"})

			res := svc.ProcessBatchPayouts(context.Background(), items)
			assert.Equal(t, 4, res.Successful)
			assert.Equal(t, 2, res.Failed)
			require.Len(t, res.Results, len(items))
			for i, r := range res.Results {
				assert.Equal(t, items[i].CreatorID, r.CreatorID, "结果按输入顺序")
			}
			assert.False(t, res.Results[1].Success)
			assert.Contains(t, res.Results[1].Error, "account closed")
			assert.Equal(t, 4, gw.TransferCount())
		})
	}
}

// inflightGateway 记录同时在途的转账数
type inflightGateway struct {
	processor.Gateway
	mu       sync.Mutex
	cur, max int
}

func (g *inflightGateway) Transfer(ctx context.Context, p processor.TransferParams) (*processor.Transfer, error) {
	g.mu.Lock()
	g.cur++
	if g.cur > g.max {
		g.max = g.cur
	}
	g.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	defer func() {
		g.mu.Lock()
		g.cur--
		g.mu.Unlock()
	}()
	return g.Gateway.Transfer(ctx, p)
}

func TestProcessBatchPayouts_ConcurrencyLimit(t *testing.T) {
	gw := &inflightGateway{Gateway: processor.NewSandboxGateway()}
	svc := NewService(gw, newStore(t, ""), Config{BatchConcurrency: 3})

	items := make([]BatchPayout, 0, 12)
	for i := 1; i <= 12; i++ {
		items = append(items, BatchPayout{
			CreatorID: fmt.Sprintf("c%d", i), Amount: dec("1"), Currency: "USD",
			StripeAccountID: fmt.Sprintf("acct_%d", i), IdempotencyKey: fmt.Sprintf("lim:%d", i),
		})
	}
	res := svc.ProcessBatchPayouts(context.Background(), items)
	assert.Equal(t, 12, res.Successful)
	assert.LessOrEqual(t, gw.max, 3)
	assert.GreaterOrEqual(t, gw.max, 1)
}

type panicGateway struct{ processor.Gateway }

func (panicGateway) Transfer(context.Context, processor.TransferParams) (*processor.Transfer, error) {
	panic("nil pointer in client")
}

func TestProcessBatchPayouts_RecoversPanic(t *testing.T) {
	svc := NewService(panicGateway{}, newStore(t, ""), Config{BatchConcurrency: 2})
	res := svc.ProcessBatchPayouts(context.Background(), []BatchPayout{
		{CreatorID: "c1", Amount: dec("1"), StripeAccountID: "acct_1", IdempotencyKey: "k1"},
		{CreatorID: "c2", Amount: dec("1"), StripeAccountID: "acct_2", IdempotencyKey: "k2"},
	})
	assert.Equal(t, 2, res.Failed)
	assert.Contains(t, res.Errors[0].Error, "unexpected error")
}

func TestGetPlatformBalance(t *testing.T) {
	gw := new(processortest.Gateway)
	svc := NewService(gw, newStore(t, ""), Config{})

	gw.On("GetBalance", mock.Anything, "").
		Return(&processor.Balance{Available: dec("100"), Pending: dec("5"), Currency: "USD"}, nil).Once()
	bal, err := svc.GetPlatformBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, bal.Available.Equal(dec("100")))
	assert.True(t, bal.Pending.Equal(dec("5")))
}
