//go:build linux

package conn

import (
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/buffer"
	"github.com/moqsien/gkreactor/eloop"
	"github.com/moqsien/gkreactor/iface"
)

func startLoop(t *testing.T) *eloop.EventLoop {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	lt := eloop.NewLoopThread(
		iface.WithLogger(logger),
		iface.WithTickInterval(10*time.Millisecond),
		iface.WithWheelSize(32),
	)
	loop, err := lt.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		loop.Stop()
		<-lt.Done()
	})
	return loop
}

// pair returns the reactor side fd and the peer as a net.Conn.
func pair(t *testing.T) (int, net.Conn) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))

	f := os.NewFile(uintptr(fds[1]), "peer")
	peer, err := net.FileConn(f)
	require.NoError(t, err)
	_ = f.Close()
	t.Cleanup(func() { _ = peer.Close() })
	return fds[0], peer
}

func readN(t *testing.T, peer net.Conn, n int) []byte {
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, n)
	_, err := io.ReadFull(peer, buf)
	require.NoError(t, err)
	return buf
}

func expectEOF(t *testing.T, peer net.Conn) {
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := peer.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

// onLoop runs f on the loop and waits for it.
func onLoop(loop *eloop.EventLoop, f func()) {
	done := make(chan struct{})
	loop.QueueInLoop(func() {
		f()
		close(done)
	})
	<-done
}

type recorder struct {
	mu     sync.Mutex
	events []string
	closed chan struct{}
}

func newRecorder() *recorder { return &recorder{closed: make(chan struct{})} }

func (that *recorder) add(ev string) {
	that.mu.Lock()
	that.events = append(that.events, ev)
	that.mu.Unlock()
}

func (that *recorder) get() []string {
	that.mu.Lock()
	defer that.mu.Unlock()
	return append([]string(nil), that.events...)
}

func (that *recorder) wire(c *Connection) {
	c.SetConnectedCallback(func(*Connection) { that.add("connected") })
	c.SetClosedCallback(func(*Connection) { that.add("closed") })
	c.SetSrvClosedCallback(func(*Connection) {
		that.add("srv_closed")
		close(that.closed)
	})
}

func TestEstablishOnce(t *testing.T) {
	loop := startLoop(t)
	fd, _ := pair(t)
	rec := newRecorder()
	c := New(loop, 1, fd)
	rec.wire(c)
	assert.Equal(t, Connecting, c.State())

	c.Establish()
	c.Establish()
	onLoop(loop, func() {})

	assert.True(t, c.Connected())
	assert.Equal(t, []string{"connected"}, rec.get())
	assert.Equal(t, int32(1), loop.ConnCount())

	c.Release()
	waitClosed(t, rec.closed)
	assert.Equal(t, int32(0), loop.ConnCount())
}

func TestEchoOverConnection(t *testing.T) {
	loop := startLoop(t)
	fd, peer := pair(t)
	c := New(loop, 1, fd)
	c.SetMessageCallback(func(c *Connection, buf *buffer.Buffer) {
		c.Send(buf.ReadAll())
	})
	c.Establish()

	_, err := peer.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(readN(t, peer, 5)))

	_, err = peer.Write([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(readN(t, peer, 5)))
}

func TestSendFromOtherGoroutine(t *testing.T) {
	loop := startLoop(t)
	fd, peer := pair(t)
	c := New(loop, 1, fd)
	c.Establish()

	data := []byte("hello")
	c.Send(data)
	// Send copies, later changes must not leak out
	data[0] = 'j'
	assert.Equal(t, "hello", string(readN(t, peer, 5)))

	var writeAble bool
	onLoop(loop, func() { writeAble = c.channel.WriteAble() })
	assert.False(t, writeAble)
}

func TestLargeSendIsBuffered(t *testing.T) {
	loop := startLoop(t)
	fd, peer := pair(t)
	c := New(loop, 1, fd)
	c.Establish()

	payload := make([]byte, 4<<20)
	for i := range payload {
		payload[i] = byte(i)
	}
	c.Send(payload)
	c.Shutdown()

	require.NoError(t, peer.SetReadDeadline(time.Now().Add(5*time.Second)))
	got, err := io.ReadAll(peer)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, Disconnected, c.State())
}

func TestPeerCloseFlushesAndClosesOnce(t *testing.T) {
	loop := startLoop(t)
	fd, peer := pair(t)
	rec := newRecorder()
	c := New(loop, 1, fd)
	rec.wire(c)
	var received []byte
	c.SetMessageCallback(func(c *Connection, buf *buffer.Buffer) {
		// keep the last byte so the close path has something to flush
		if buf.ReadableSize() > 1 {
			received = append(received, buf.Read(buf.ReadableSize()-1)...)
			return
		}
		received = append(received, buf.ReadAll()...)
		rec.add("flushed")
	})
	c.Establish()

	_, err := peer.Write([]byte("bye!"))
	require.NoError(t, err)
	require.NoError(t, peer.Close())

	waitClosed(t, rec.closed)
	onLoop(loop, func() {})
	assert.Equal(t, "bye!", string(received))
	assert.Equal(t, []string{"connected", "flushed", "closed", "srv_closed"}, rec.get())
	assert.Equal(t, Disconnected, c.State())

	// further commands are no-ops
	c.Send([]byte("x"))
	c.Shutdown()
	c.Release()
	onLoop(loop, func() {})
	assert.Equal(t, []string{"connected", "flushed", "closed", "srv_closed"}, rec.get())
}

func TestInactiveRelease(t *testing.T) {
	loop := startLoop(t)
	fd, peer := pair(t)
	rec := newRecorder()
	c := New(loop, 7, fd)
	rec.wire(c)
	c.Establish()
	c.EnableInactiveRelease(3)

	waitClosed(t, rec.closed)
	expectEOF(t, peer)
	var has bool
	onLoop(loop, func() { has = loop.HasTimer(7) })
	assert.False(t, has)
}

func TestActivityPostponesInactiveRelease(t *testing.T) {
	loop := startLoop(t)
	fd, peer := pair(t)
	rec := newRecorder()
	c := New(loop, 7, fd)
	rec.wire(c)
	c.SetMessageCallback(func(c *Connection, buf *buffer.Buffer) { buf.Clear() })
	c.Establish()
	c.EnableInactiveRelease(5)

	// keep talking for longer than the idle timeout
	for i := 0; i < 10; i++ {
		_, err := peer.Write([]byte("."))
		require.NoError(t, err)
		time.Sleep(15 * time.Millisecond)
	}
	assert.Equal(t, Connected, c.State())
	waitClosed(t, rec.closed)
}

func TestCancelInactiveRelease(t *testing.T) {
	loop := startLoop(t)
	fd, _ := pair(t)
	c := New(loop, 7, fd)
	c.Establish()
	c.EnableInactiveRelease(2)
	c.CancelInactiveRelease()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, Connected, c.State())
	c.Release()
}

func TestReenableAfterCancelInactiveRelease(t *testing.T) {
	loop := startLoop(t)
	fd, peer := pair(t)
	rec := newRecorder()
	c := New(loop, 7, fd)
	rec.wire(c)
	c.Establish()
	c.EnableInactiveRelease(3)
	c.CancelInactiveRelease()
	c.EnableInactiveRelease(3)

	waitClosed(t, rec.closed)
	expectEOF(t, peer)
	assert.Equal(t, Disconnected, c.State())
}

func TestSendStaysBufferedUntilWritable(t *testing.T) {
	loop := startLoop(t)
	fd, peer := pair(t)
	c := New(loop, 1, fd)
	c.Establish()

	var (
		pending   int
		writeAble bool
	)
	onLoop(loop, func() {
		c.sendInLoop([]byte("hello"))
		pending = c.outBuffer.ReadableSize()
		writeAble = c.channel.WriteAble()
	})
	assert.Equal(t, 5, pending)
	assert.True(t, writeAble)

	assert.Equal(t, "hello", string(readN(t, peer, 5)))
	assert.Eventually(t, func() bool {
		var drained bool
		onLoop(loop, func() { drained = c.outBuffer.IsEmpty() && !c.channel.WriteAble() })
		return drained
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFailedWriteFlushesAndReleasesOnce(t *testing.T) {
	loop := startLoop(t)
	fd, peer := pair(t)
	rec := newRecorder()
	c := New(loop, 1, fd)
	rec.wire(c)
	flushed := 0
	var input string
	c.SetMessageCallback(func(c *Connection, buf *buffer.Buffer) {
		flushed++
		input += string(buf.ReadAll())
	})
	c.Establish()

	// all in one task so no poll round runs between the peer closing and the write
	onLoop(loop, func() {
		_, _ = c.inBuffer.Write([]byte("tail"))
		_, _ = c.outBuffer.Write([]byte("reply"))
		_ = peer.Close()
		c.handleWrite()
	})
	waitClosed(t, rec.closed)

	var (
		calls int
		got   string
	)
	onLoop(loop, func() { calls, got = flushed, input })
	assert.Equal(t, 1, calls)
	assert.Equal(t, "tail", got)
	assert.Equal(t, Disconnected, c.State())
	assert.Equal(t, []string{"connected", "closed", "srv_closed"}, rec.get())
}

func TestShutdownInsideMessageCallbackKeepsInput(t *testing.T) {
	loop := startLoop(t)
	fd, peer := pair(t)
	rec := newRecorder()
	c := New(loop, 1, fd)
	rec.wire(c)
	var (
		calls    int
		seen     string
		capAfter int
	)
	c.SetMessageCallback(func(c *Connection, buf *buffer.Buffer) {
		if calls++; calls > 1 {
			return
		}
		p := buf.Peek()
		c.Shutdown()
		capAfter = buf.Cap()
		seen = string(p)
	})
	c.Establish()

	_, err := peer.Write([]byte("hello"))
	require.NoError(t, err)
	waitClosed(t, rec.closed)
	expectEOF(t, peer)

	var released bool
	onLoop(loop, func() {})
	onLoop(loop, func() { released = c.inBuffer.Cap() == 0 })
	onLoop(loop, func() {
		assert.Equal(t, 2, calls)
		assert.Equal(t, "hello", seen)
		assert.Positive(t, capAfter)
	})
	assert.True(t, released)
}

func TestUpgradeSwapsCallbacks(t *testing.T) {
	loop := startLoop(t)
	fd, peer := pair(t)
	c := New(loop, 1, fd)
	c.SetMessageCallback(func(c *Connection, buf *buffer.Buffer) {
		c.Send([]byte("v1:" + buf.ReadAsString(buf.ReadableSize())))
	})
	c.Establish()

	_, err := peer.Write([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, "v1:a", string(readN(t, peer, 4)))

	c.Upgrade("upgraded", nil, func(c *Connection, buf *buffer.Buffer) {
		c.Send([]byte(c.Context().(string) + ":" + buf.ReadAsString(buf.ReadableSize())))
	}, nil, nil)
	onLoop(loop, func() {})

	_, err = peer.Write([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, "upgraded:b", string(readN(t, peer, 10)))
}

func TestSetContextAndAnyEvent(t *testing.T) {
	loop := startLoop(t)
	fd, peer := pair(t)
	c := New(loop, 1, fd)
	events := make(chan any, 8)
	c.SetAnyEventCallback(func(c *Connection) { events <- c.Context() })
	c.SetMessageCallback(func(c *Connection, buf *buffer.Buffer) { buf.Clear() })
	c.SetContext(42)
	c.Establish()

	_, err := peer.Write([]byte("x"))
	require.NoError(t, err)
	select {
	case ctx := <-events:
		assert.Equal(t, 42, ctx)
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "unknown", State(9).String())
}
