package listener

import (
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncPoster runs posted work inline.
type syncPoster struct {
	stopped bool
}

func (p *syncPoster) PostOrCancel(_ <-chan struct{}, fn func()) bool {
	if p.stopped {
		return false
	}
	fn()
	return true
}

func freePort(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return strconv.Itoa(port)
}

func start(t *testing.T) (*Listener, *atomic.Int32, string) {
	t.Helper()
	var dispatched atomic.Int32
	l := New(&syncPoster{}, func() { dispatched.Add(1) })
	port := freePort(t)
	require.NoError(t, l.Start(port))
	t.Cleanup(func() { l.Close() })
	return l, &dispatched, port
}

func send(t *testing.T, port, payload string) {
	t.Helper()
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", port))
	require.NoError(t, err)
	_, err = conn.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func TestClickedWithNewlineDispatches(t *testing.T) {
	_, dispatched, port := start(t)

	send(t, port, "CLICKED\n")
	assert.Eventually(t, func() bool { return dispatched.Load() == 1 }, time.Second, 5*time.Millisecond)

	send(t, port, "  CLICKED\r\n")
	assert.Eventually(t, func() bool { return dispatched.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestWrongInputIgnored(t *testing.T) {
	l, dispatched, port := start(t)

	// Connections are served one after another, so once the final CLICKED
	// is counted every earlier payload has been handled.
	for _, payload := range []string{"clicked\n", "CLICKED!", "HELLO", "\n"} {
		send(t, port, payload)
	}
	send(t, port, "CLICKED")

	assert.Eventually(t, func() bool { return dispatched.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), dispatched.Load())
	assert.Equal(t, int64(1), l.Clicks())
}

func TestSingleClientAtATime(t *testing.T) {
	l, dispatched, port := start(t)

	first, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", port))
	require.NoError(t, err)
	defer first.Close()
	assert.Eventually(t, l.Connected, time.Second, 5*time.Millisecond)

	second, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", port))
	require.NoError(t, err)
	defer second.Close()
	_, err = second.Write([]byte("CLICKED\n"))
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), dispatched.Load(), "second client served while first connected")

	require.NoError(t, first.Close())
	assert.Eventually(t, func() bool { return dispatched.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStartRejectsBadPort(t *testing.T) {
	for _, port := range []string{"", "abc", "0", "99999"} {
		l := New(&syncPoster{}, func() {})
		err := l.Start(port)
		assert.ErrorIs(t, err, ErrInvalidPort, port)
		assert.Equal(t, 0, l.Port())
	}
}

func TestCloseAndRestart(t *testing.T) {
	l, dispatched, port := start(t)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	_, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", port), 100*time.Millisecond)
	assert.Error(t, err)

	next := freePort(t)
	require.NoError(t, l.Restart(next))
	assert.Equal(t, next, strconv.Itoa(l.Port()))

	send(t, next, "CLICKED\n")
	assert.Eventually(t, func() bool { return dispatched.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStoppedLoopDropsClick(t *testing.T) {
	poster := &syncPoster{stopped: true}
	var dispatched atomic.Int32
	l := New(poster, func() { dispatched.Add(1) })
	port := freePort(t)
	require.NoError(t, l.Start(port))
	defer l.Close()

	send(t, port, "CLICKED\n")
	assert.Eventually(t, func() bool { return l.Clicks() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), dispatched.Load())
}

// fullPoster behaves like a loop whose queue never drains.
type fullPoster struct {
	entered chan struct{}
	once    sync.Once
}

func (p *fullPoster) PostOrCancel(cancel <-chan struct{}, fn func()) bool {
	p.once.Do(func() { close(p.entered) })
	<-cancel
	return false
}

func TestCloseDoesNotWaitOnFullQueue(t *testing.T) {
	poster := &fullPoster{entered: make(chan struct{})}
	l := New(poster, func() {})
	port := freePort(t)
	require.NoError(t, l.Start(port))

	send(t, port, "CLICKED")
	select {
	case <-poster.entered:
	case <-time.After(time.Second):
		t.Fatal("click never reached the poster")
	}

	closed := make(chan error, 1)
	go func() { closed <- l.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind a full queue")
	}
}
