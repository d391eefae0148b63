package queueutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTryPushDropsOnFull(t *testing.T) {
	q := NewBounded(2)
	require.True(t, q.TryPush(1))
	require.True(t, q.TryPush(2))
	require.False(t, q.TryPush(3))
	require.Equal(t, 2, q.Len())
}

func TestPopFIFOOrder(t *testing.T) {
	q := NewBounded(10)
	q.TryPush("a")
	q.TryPush("b")
	v1, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "a", v1)
	v2, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, "b", v2)
	_, ok = q.Pop()
	require.False(t, ok)
}

func TestPopWaitUnblocksOnPush(t *testing.T) {
	q := NewBounded(4)
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.TryPush(42)
	}()
	v, ok := q.PopWait(500 * time.Millisecond)
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestPopWaitTimesOutWhenEmpty(t *testing.T) {
	q := NewBounded(4)
	_, ok := q.PopWait(20 * time.Millisecond)
	require.False(t, ok)
}
