package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"payout-core/internal/model"
	"payout-core/internal/service/mq"
	"payout-core/pkg/logger"
)

// OutboxSource 由 store.Store 实现
type OutboxSource interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkOutboxSent(ctx context.Context, id uint64) error
}

// RelayService 负责将本地消息表的消息搬运到 MQ
type RelayService struct {
	outbox    OutboxSource
	producer  mq.Producer
	interval  time.Duration
	batchSize int

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelayService(outbox OutboxSource, producer mq.Producer) *RelayService {
	return &RelayService{
		outbox:    outbox,
		producer:  producer,
		interval:  500 * time.Millisecond,
		batchSize: 50,
	}
}

// Start 非阻塞启动
func (s *RelayService) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.run(ctx)
	}()
	return nil
}

// Stop 等待当前批次发送完成
func (s *RelayService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *RelayService) run(ctx context.Context) {
	logger.Info("[Relay] 启动消息中继服务")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[Relay] 停止服务")
			return
		case <-ticker.C:
			s.RelayPending(ctx)
		}
	}
}

// RelayPending 投递一批待发送消息，返回成功条数
// 发送成功后才标记 SENT => at-least-once，消费方需幂等
func (s *RelayService) RelayPending(ctx context.Context) int {
	messages, err := s.outbox.ListPendingOutbox(ctx, s.batchSize)
	if err != nil {
		logger.Warn("[Relay] 查询消息失败", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if err := s.producer.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			logger.Warn("[Relay] 发送消息失败", zap.Uint64("id", msg.ID), zap.Error(err))
			continue
		}
		if err := s.outbox.MarkOutboxSent(ctx, msg.ID); err != nil {
			logger.Warn("[Relay] 更新状态失败", zap.Uint64("id", msg.ID), zap.Error(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		logger.Debug("[Relay] 消息已投递", zap.Int("count", sent))
	}
	return sent
}
