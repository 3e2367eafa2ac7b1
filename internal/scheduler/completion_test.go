package scheduler

import (
	"container/heap"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionQueue_FIFO(t *testing.T) {
	q := newCompletionQueue()
	for _, v := range []int{3, 1, 2} {
		q.Enqueue(v)
	}

	ctx := context.Background()
	for _, want := range []int{3, 1, 2} {
		got, ok := q.Dequeue(ctx)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, q.Len())
}

func TestCompletionQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := newCompletionQueue()
	done := make(chan int, 1)

	go func() {
		v, ok := q.Dequeue(context.Background())
		if ok {
			done <- v
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(7)

	select {
	case v := <-done:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not unblock")
	}
}

func TestCompletionQueue_CancelUnblocksDequeue(t *testing.T) {
	q := newCompletionQueue()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(ctx)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not observe cancellation")
	}
}

func TestCompletionQueue_CoalescedSignalsLoseNothing(t *testing.T) {
	q := newCompletionQueue()
	const n = 100
	for v := 0; v < n; v++ {
		q.Enqueue(v)
	}

	ctx := context.Background()
	for v := 0; v < n; v++ {
		got, ok := q.Dequeue(ctx)
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestReadyHeap_PopsLargestFirst(t *testing.T) {
	h := &readyHeap{}
	for _, v := range []int{4, 9, 1, 7} {
		heap.Push(h, v)
	}

	var got []int
	for h.Len() > 0 {
		got = append(got, heap.Pop(h).(int))
	}
	assert.Equal(t, []int{9, 7, 4, 1}, got)
}
