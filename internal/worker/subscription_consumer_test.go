package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payout-core/internal/event"
	"payout-core/internal/service/mq"
	"payout-core/internal/service/wallet"
	"payout-core/internal/store"
)

func payload(t *testing.T, ev event.SubscriptionPaidEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestHandle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(store.Options{DefaultFeePercentage: decimal.NewFromInt(10)})
	svc := wallet.NewService(st, nil, "USD")
	handle := NewSubscriptionConsumer(mq.NewMemoryBroker(), svc, "").Handle(ctx)

	ev := event.SubscriptionPaidEvent{
		SubscriptionID: "sub_1", CreatorID: "creator-1", Amount: "25.00", Currency: "usd", ExternalPaymentID: "pi_1",
	}
	require.NoError(t, handle(&mq.Message{ID: "1", Payload: payload(t, ev)}))
	// 重投幂等
	require.NoError(t, handle(&mq.Message{ID: "2", Payload: payload(t, ev)}))

	w, err := st.GetWalletByCreator(ctx, "creator-1")
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.RequireFromString("22.50")), w.Balance.String())

	t.Run("malformed payloads are acked", func(t *testing.T) {
		assert.NoError(t, handle(&mq.Message{ID: "3", Payload: []byte("{")}))
		bad := ev
		bad.Amount = "abc"
		assert.NoError(t, handle(&mq.Message{ID: "4", Payload: payload(t, bad)}))
		bad.Amount = "-1"
		assert.NoError(t, handle(&mq.Message{ID: "5", Payload: payload(t, bad)}))
	})
}

func TestHandle_InactiveWalletAcked(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(store.Options{DefaultFeePercentage: decimal.NewFromInt(10)})
	svc := wallet.NewService(st, nil, "USD")
	w, err := svc.GetOrCreateWallet(ctx, "creator-off")
	require.NoError(t, err)
	require.NoError(t, st.DeactivateWallet(ctx, w.ID))

	handle := NewSubscriptionConsumer(mq.NewMemoryBroker(), svc, "").Handle(ctx)
	ev := event.SubscriptionPaidEvent{
		SubscriptionID: "sub_off", CreatorID: "creator-off", Amount: "30", Currency: "USD", ExternalPaymentID: "pi_off",
	}
	// 停用钱包的付款确认丢弃，不会反复重投
	require.NoError(t, handle(&mq.Message{ID: "1", Payload: payload(t, ev)}))

	got, err := st.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
	assert.False(t, got.IsActive)
}

type failingProcessor struct{}

func (failingProcessor) ProcessSubscriptionPayment(context.Context, wallet.SubscriptionPayment) wallet.PaymentProcessingResult {
	return wallet.PaymentProcessingResult{Error: "database error"}
}

func TestHandle_TransientFailureNotAcked(t *testing.T) {
	handle := NewSubscriptionConsumer(mq.NewMemoryBroker(), failingProcessor{}, "").Handle(context.Background())
	err := handle(&mq.Message{Payload: payload(t, event.SubscriptionPaidEvent{SubscriptionID: "sub_1", CreatorID: "c", Amount: "1"})})
	assert.Error(t, err)
}

func TestSubscriptionConsumer_Start(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := mq.NewMemoryBroker()
	st := store.NewMemoryStore(store.Options{DefaultFeePercentage: decimal.NewFromInt(10)})
	consumer := NewSubscriptionConsumer(broker, wallet.NewService(st, nil, "USD"), "")
	require.NoError(t, consumer.Start(ctx))
	defer consumer.Stop()

	ev := event.SubscriptionPaidEvent{SubscriptionID: "sub_9", CreatorID: "creator-9", Amount: "10", Currency: "USD", ExternalPaymentID: "pi_9"}
	require.NoError(t, broker.Publish(ctx, event.TopicSubscriptionPaid, "creator-9", payload(t, ev)))

	assert.Eventually(t, func() bool {
		w, err := st.GetWalletByCreator(ctx, "creator-9")
		return err == nil && w.Balance.Equal(decimal.NewFromInt(9))
	}, 2*time.Second, 10*time.Millisecond)
}
