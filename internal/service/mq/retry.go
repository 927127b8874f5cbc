package mq

import (
	"context"
	"time"

	"go.uber.org/zap"

	"payout-core/pkg/logger"
)

// retryPolicy 处理失败后原地重试的退避
type retryPolicy struct {
	initial time.Duration
	max     time.Duration
}

var defaultRetry = retryPolicy{initial: time.Second, max: 30 * time.Second}

func (p retryPolicy) next(d time.Duration) time.Duration {
	if d <= 0 {
		return p.initial
	}
	d *= 2
	if d > p.max {
		d = p.max
	}
	return d
}

// handleUntilDone 同一条消息反复交给 handler，直到成功或 ctx 取消。
// 返回 false 表示未处理成功，调用方不能提交它的 offset
func handleUntilDone(ctx context.Context, msg *Message, handler func(msg *Message) error, p retryPolicy) bool {
	var wait time.Duration
	for attempt := 1; ; attempt++ {
		err := handler(msg)
		if err == nil {
			return true
		}
		wait = p.next(wait)
		logger.Warn("[MQ] 业务处理失败，等待重试",
			zap.String("id", msg.ID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}
