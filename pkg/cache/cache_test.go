package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stats struct {
	Count int    `json:"count"`
	Total string `json:"total"`
}

func TestMemoryCache_CopySemantics(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	in := stats{Count: 2, Total: "10.00"}
	require.NoError(t, c.Set(ctx, "k", in, time.Minute))
	in.Count = 99

	var out stats
	require.NoError(t, c.Get(ctx, "k", &out))
	assert.Equal(t, 2, out.Count)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &out), ErrMiss)
}

func TestMultiLevelCache_BackfillsLocal(t *testing.T) {
	ctx := context.Background()
	local := NewMemoryCache(time.Minute, time.Minute)
	remote := NewMemoryCache(time.Minute, time.Minute)
	m := NewMultiLevelCache(local, remote)

	require.NoError(t, remote.Set(ctx, "k", stats{Count: 1}, time.Minute))

	var out stats
	require.NoError(t, m.Get(ctx, "k", &out))
	assert.Equal(t, 1, out.Count)

	// L2 删除后 L1 仍可命中
	require.NoError(t, remote.Delete(ctx, "k"))
	out = stats{}
	require.NoError(t, m.Get(ctx, "k", &out))
	assert.Equal(t, 1, out.Count)

	require.NoError(t, m.Delete(ctx, "k"))
	assert.ErrorIs(t, m.Get(ctx, "k", &out), ErrMiss)
}

func TestRemember(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)
	calls := 0
	load := func(context.Context) (stats, error) {
		calls++
		return stats{Count: calls}, nil
	}

	first, err := Remember(ctx, c, "k", time.Minute, load)
	require.NoError(t, err)
	second, err := Remember(ctx, c, "k", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	// nil cache 直接加载
	_, err = Remember[stats](ctx, nil, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	boom := errors.New("boom")
	_, err = Remember(ctx, c, "other", time.Minute, func(context.Context) (stats, error) { return stats{}, boom })
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, c.Get(ctx, "other", &stats{}), ErrMiss)
}
