//go:build linux

/*
Connection is one accepted TCP stream bound to a single event loop. Its public
methods may be called from any goroutine; the work always runs on the loop.
*/
package conn

import (
	"net"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/moqsien/gkreactor/buffer"
	"github.com/moqsien/gkreactor/eloop"
	"github.com/moqsien/gkreactor/poll"
	"github.com/moqsien/gkreactor/socket"
)

type Connection struct {
	id              uint64
	fd              int
	state           int32
	loop            *eloop.EventLoop
	sock            *socket.Socket
	channel         *poll.Channel
	inBuffer        *buffer.Buffer
	outBuffer       *buffer.Buffer
	readSize        int
	context         any
	inactiveRelease bool
	counted         bool
	localAddr       net.Addr
	remoteAddr      net.Addr
	onConnected     ConnectedCallback
	onMessage       MessageCallback
	onClosed        ClosedCallback
	onAnyEvent      AnyEventCallback
	onSrvClosed     ClosedCallback
	logger          logrus.FieldLogger
}

// New wraps an accepted non-blocking fd. Nothing is registered with the loop until
// Establish or Send.
func New(loop *eloop.EventLoop, id uint64, fd int) *Connection {
	c := &Connection{
		id:        id,
		fd:        fd,
		state:     int32(Connecting),
		loop:      loop,
		sock:      socket.New(fd),
		inBuffer:  buffer.New(),
		outBuffer: buffer.New(),
		readSize:  loop.Options().ReadBufferSize,
		logger:    loop.Logger().WithFields(logrus.Fields{"conn_id": id, "fd": fd, "loop": loop.Index}),
	}
	c.channel = poll.NewChannel(loop, fd)
	c.channel.SetReadCallback(c.handleRead)
	c.channel.SetWriteCallback(c.handleWrite)
	c.channel.SetCloseCallback(c.handleClose)
	c.channel.SetErrorCallback(c.handleError)
	c.channel.SetEventCallback(c.handleEvent)
	return c
}

func (that *Connection) ID() uint64 { return that.id }

func (that *Connection) Fd() int { return that.fd }

func (that *Connection) Loop() *eloop.EventLoop { return that.loop }

func (that *Connection) State() State { return State(atomic.LoadInt32(&that.state)) }

func (that *Connection) setState(s State) { atomic.StoreInt32(&that.state, int32(s)) }

func (that *Connection) Connected() bool { return that.State() == Connected }

func (that *Connection) LocalAddr() net.Addr { return that.localAddr }

func (that *Connection) RemoteAddr() net.Addr { return that.remoteAddr }

// SetAddr is meant for the acceptor, before Establish.
func (that *Connection) SetAddr(local, remote net.Addr) {
	that.localAddr, that.remoteAddr = local, remote
}

// Context is only safe to read from the connection's callbacks.
func (that *Connection) Context() any { return that.context }

func (that *Connection) SetContext(ctx any) {
	that.loop.RunInLoop(func() {
		that.context = ctx
	})
}

// Callback setters are meant for the owner, before Establish. Use Upgrade afterwards.
func (that *Connection) SetConnectedCallback(cb ConnectedCallback) { that.onConnected = cb }

func (that *Connection) SetMessageCallback(cb MessageCallback) { that.onMessage = cb }

func (that *Connection) SetClosedCallback(cb ClosedCallback) { that.onClosed = cb }

func (that *Connection) SetAnyEventCallback(cb AnyEventCallback) { that.onAnyEvent = cb }

func (that *Connection) SetSrvClosedCallback(cb ClosedCallback) { that.onSrvClosed = cb }

// Establish starts reading and reports the connection as connected.
func (that *Connection) Establish() {
	that.loop.RunInLoop(that.establishInLoop)
}

// Send copies data and queues it for writing. Data sent after release is dropped.
func (that *Connection) Send(data []byte) {
	if len(data) == 0 {
		return
	}
	p := make([]byte, len(data))
	copy(p, data)
	that.loop.RunInLoop(func() {
		that.sendInLoop(p)
	})
}

// Shutdown hands the unread input to the message callback and releases once the
// pending output has been written.
func (that *Connection) Shutdown() {
	that.loop.RunInLoop(that.shutdownInLoop)
}

// Release tears the connection down after the current round of the loop.
func (that *Connection) Release() {
	that.loop.QueueInLoop(that.releaseInLoop)
}

// EnableInactiveRelease releases the connection after ticks wheel ticks without any event.
func (that *Connection) EnableInactiveRelease(ticks int) {
	that.loop.RunInLoop(func() {
		that.enableInactiveReleaseInLoop(ticks)
	})
}

func (that *Connection) CancelInactiveRelease() {
	that.loop.RunInLoop(that.cancelInactiveReleaseInLoop)
}

// Upgrade swaps the context and the application callbacks in one step, e.g. to hand
// the stream over to another protocol.
func (that *Connection) Upgrade(ctx any, connected ConnectedCallback, message MessageCallback,
	closed ClosedCallback, anyEvent AnyEventCallback) {
	that.loop.RunInLoop(func() {
		that.context = ctx
		that.onConnected = connected
		that.onMessage = message
		that.onClosed = closed
		that.onAnyEvent = anyEvent
	})
}
