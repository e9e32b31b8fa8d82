package eventloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l
}

func TestPostRunsInOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Call(context.Background(), func() {}))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestPostAfterStop(t *testing.T) {
	l := startLoop(t)
	l.Stop()
	<-l.Done()

	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Call(context.Background(), func() {}), ErrStopped)
}

func TestAfterFuncFiresOnce(t *testing.T) {
	l := startLoop(t)

	var fired atomic.Int32
	timer := l.AfterFunc(10*time.Millisecond, func() { fired.Add(1) })

	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	timer.Stop() // after firing: harmless
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.True(t, timer.Stopped())
}

func TestAfterFuncStopBeforeFire(t *testing.T) {
	l := startLoop(t)

	var fired atomic.Int32
	timer := l.AfterFunc(20*time.Millisecond, func() { fired.Add(1) })
	timer.Stop()
	timer.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestStopFromLoopSuppressesQueuedCallback(t *testing.T) {
	l := startLoop(t)

	var fired atomic.Int32
	release := make(chan struct{})
	var timer *Timer

	// Block the loop so the timer's callback is queued behind us.
	l.Post(func() {
		timer = l.AfterFunc(time.Millisecond, func() { fired.Add(1) })
		<-release
		timer.Stop()
	})
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, l.Call(context.Background(), func() {}))
	assert.Equal(t, int32(0), fired.Load())
}

func TestEveryUntilStopped(t *testing.T) {
	l := startLoop(t)

	var ticks atomic.Int32
	var ticker *Timer
	require.NoError(t, l.Call(context.Background(), func() {
		ticker = l.Every(5*time.Millisecond, func() {
			if ticks.Add(1) == 3 {
				ticker.Stop()
			}
		})
	}))

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(3), ticks.Load())
}

func TestPostOrCancelGivesUpOnFullQueue(t *testing.T) {
	l := New() // not running: nothing drains the queue
	for i := 0; i < defaultQueueSize; i++ {
		require.True(t, l.Post(func() {}))
	}

	cancel := make(chan struct{})
	close(cancel)
	assert.False(t, l.PostOrCancel(cancel, func() {}))
}
