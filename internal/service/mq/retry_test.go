package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fastRetry = retryPolicy{initial: time.Millisecond, max: 4 * time.Millisecond}

func TestHandleUntilDone_RetriesSameMessage(t *testing.T) {
	var seen []string
	handler := func(msg *Message) error {
		seen = append(seen, msg.ID)
		if len(seen) < 3 {
			return errors.New("db down")
		}
		return nil
	}

	ok := handleUntilDone(context.Background(), &Message{ID: "0/7"}, handler, fastRetry)
	assert.True(t, ok)
	// 失败的消息不会被跳过
	assert.Equal(t, []string{"0/7", "0/7", "0/7"}, seen)
}

func TestHandleUntilDone_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	handler := func(msg *Message) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("still failing")
	}

	ok := handleUntilDone(ctx, &Message{ID: "0/8"}, handler, fastRetry)
	assert.False(t, ok)
	assert.Equal(t, 2, calls)
}

func TestRetryPolicy_Next(t *testing.T) {
	p := retryPolicy{initial: time.Second, max: 5 * time.Second}
	assert.Equal(t, time.Second, p.next(0))
	assert.Equal(t, 2*time.Second, p.next(time.Second))
	assert.Equal(t, 4*time.Second, p.next(2*time.Second))
	assert.Equal(t, 5*time.Second, p.next(4*time.Second))
	assert.Equal(t, 5*time.Second, p.next(5*time.Second))
}
