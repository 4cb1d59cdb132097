package sequencer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLoop_RunsTasksInOrder(t *testing.T) {
	l := NewEventLoop()
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	var got []int
	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		l.Post(func() {
			got = append(got, i)
			wg.Done()
		})
	}
	wg.Wait()

	l.Close()
	require.NoError(t, <-done)
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestEventLoop_AfterFuncRunsOnLoop(t *testing.T) {
	l := NewEventLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	fired := make(chan struct{})
	l.AfterFunc(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestEventLoop_PostAfterCloseDropped(t *testing.T) {
	l := NewEventLoop()
	l.Close()
	l.Close()

	ran := false
	l.Post(func() { ran = true })
	require.NoError(t, l.Run(context.Background()))
	assert.False(t, ran)
}

func TestVirtualLoop_TimersFireInOrder(t *testing.T) {
	v := NewVirtualLoop()
	var order []string
	v.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	v.AfterFunc(time.Second, func() {
		order = append(order, "a")
		v.Post(func() { order = append(order, "a-post") })
	})
	v.AfterFunc(2*time.Second, func() { order = append(order, "c") })

	v.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"a", "a-post"}, order)
	assert.Equal(t, 1500*time.Millisecond, v.Now())
	assert.Equal(t, 2, v.Pending())

	v.Advance(time.Second)
	assert.Equal(t, []string{"a", "a-post", "b", "c"}, order)
	assert.Equal(t, 0, v.Pending())
}
