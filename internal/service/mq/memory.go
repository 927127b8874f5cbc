package mq

import (
	"context"
	"strconv"
	"sync"
)

// MemoryBroker 进程内 MQ，未配置 Redis / Kafka 时使用 (单实例 sandbox)
// 处理失败的消息会重新入队
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[string]chan *Message
	seq    uint64
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string]chan *Message)}
}

var (
	_ Producer = (*MemoryBroker)(nil)
	_ Consumer = (*MemoryBroker)(nil)
)

func (b *MemoryBroker) topic(name string) chan *Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.topics[name]
	if !ok {
		ch = make(chan *Message, 1024)
		b.topics[name] = ch
	}
	return ch
}

func (b *MemoryBroker) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	b.mu.Lock()
	b.seq++
	id := strconv.FormatUint(b.seq, 10)
	b.mu.Unlock()

	msg := &Message{ID: id, Topic: topic, Key: key, Payload: append([]byte(nil), payload...)}
	select {
	case b.topic(topic) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	ch := b.topic(topic)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			if err := handler(msg); err != nil {
				// 未确认，放回队尾
				select {
				case ch <- msg:
				default:
				}
			}
		}
	}
}

func (b *MemoryBroker) Close() error { return nil }
