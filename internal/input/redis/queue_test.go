package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PushPop(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	q, err := NewQueue(ctx, Config{Addr: mr.Addr(), Key: "tpot:hits", BlockTimeout: 100 * time.Millisecond})
	require.NoError(t, err)
	defer q.Close()

	require.NoError(t, q.Push(ctx, []byte(`{"a":1}`), []byte(`{"a":2}`)))
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	first, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(first))
	second, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(second))
}

func TestQueue_PopTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	q, err := NewQueue(ctx, Config{Addr: mr.Addr(), Key: "empty", BlockTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer q.Close()

	payload, err := q.Pop(ctx)
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestNewQueue_Errors(t *testing.T) {
	ctx := context.Background()
	_, err := NewQueue(ctx, Config{Addr: "127.0.0.1:6379"})
	require.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewQueue(ctx, Config{Addr: addr, Key: "k"})
	require.Error(t, err)
}
