package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payout-core/internal/event"
	"payout-core/internal/service/mq"
	"payout-core/internal/service/wallet"
	"payout-core/internal/store"
	"payout-core/pkg/logger"
	"payout-core/pkg/monitor"
)

// PaymentProcessor 由 wallet.Service 实现
type PaymentProcessor interface {
	ProcessSubscriptionPayment(ctx context.Context, p wallet.SubscriptionPayment) wallet.PaymentProcessingResult
}

// SubscriptionConsumer 消费计费系统的订阅付款事件并入账
type SubscriptionConsumer struct {
	consumer  mq.Consumer
	processor PaymentProcessor
	topic     string

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSubscriptionConsumer(consumer mq.Consumer, processor PaymentProcessor, topic string) *SubscriptionConsumer {
	if topic == "" {
		topic = event.TopicSubscriptionPaid
	}
	return &SubscriptionConsumer{consumer: consumer, processor: processor, topic: topic}
}

// Start 非阻塞启动
func (c *SubscriptionConsumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		if err := c.consumer.Subscribe(ctx, c.topic, c.Handle(ctx)); err != nil {
			logger.Error("subscription consumer stopped", zap.String("topic", c.topic), zap.Error(err))
		}
	}()
	return nil
}

// Stop 等待正在处理的消息完成
func (c *SubscriptionConsumer) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	if err := c.consumer.Close(); err != nil {
		logger.Warn("close consumer failed", zap.Error(err))
	}
}

// Handle 返回 error 时消息不确认
// 格式错误的消息直接确认丢弃，重投也不会成功
func (c *SubscriptionConsumer) Handle(ctx context.Context) func(msg *mq.Message) error {
	return func(msg *mq.Message) error {
		var ev event.SubscriptionPaidEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			logger.Warn("drop malformed subscription event", zap.String("id", msg.ID), zap.Error(err))
			return nil
		}
		amount, err := decimal.NewFromString(ev.Amount)
		if err != nil {
			logger.Warn("drop subscription event with invalid amount",
				zap.String("id", msg.ID), zap.String("amount", ev.Amount))
			return nil
		}

		res := c.processor.ProcessSubscriptionPayment(ctx, wallet.SubscriptionPayment{
			SubscriptionID:    ev.SubscriptionID,
			CreatorID:         ev.CreatorID,
			GrossAmount:       amount,
			Currency:          ev.Currency,
			PaymentMethod:     ev.PaymentMethod,
			ExternalPaymentID: ev.ExternalPaymentID,
		})
		if res.Success {
			return nil
		}
		if errors.Is(res.Err, store.ErrWalletInactive) {
			// 钱包已停用: 重投不会成功，记录后确认，按 dropped 指标告警
			monitor.Business.SubscriptionEventsDropped.WithLabelValues("wallet_inactive").Inc()
			logger.Error("drop subscription event for inactive wallet",
				zap.String("subscription_id", ev.SubscriptionID),
				zap.String("creator_id", ev.CreatorID),
				zap.String("external_payment_id", ev.ExternalPaymentID),
				zap.String("amount", ev.Amount))
			return nil
		}
		if permanent(res.Err) {
			monitor.Business.SubscriptionEventsDropped.WithLabelValues("rejected").Inc()
			logger.Warn("drop rejected subscription event",
				zap.String("subscription_id", ev.SubscriptionID), zap.String("error", res.Error))
			return nil
		}
		return fmt.Errorf("process subscription payment %s: %s", ev.SubscriptionID, res.Error)
	}
}

// permanent 校验类错误，重投结果不变
func permanent(err error) bool {
	return errors.Is(err, wallet.ErrInvalidAmount) ||
		errors.Is(err, wallet.ErrInvalidCurrency) ||
		errors.Is(err, wallet.ErrUnknownCreator)
}
