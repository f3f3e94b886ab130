//go:build linux

/*
Server is a TCP server on top of the reactor: the base loop accepts, new
connections are spread over the sub loops by the configured balancer, and the
base loop keeps the id -> connection registry.

New must be called on the goroutine that later calls Start, since that goroutine
becomes the base loop.
*/
package server

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moqsien/gkreactor/balancer"
	"github.com/moqsien/gkreactor/conn"
	"github.com/moqsien/gkreactor/eloop"
	"github.com/moqsien/gkreactor/iface"
	"github.com/moqsien/gkreactor/socket"
	"github.com/moqsien/gkreactor/timewheel"
	"github.com/moqsien/gkreactor/utils/errs"
)

type Server struct {
	options         *iface.Options
	baseLoop        *eloop.EventLoop
	acceptor        *Acceptor
	pool            *eloop.LoopPool
	nextId          uint64
	conns           map[uint64]*conn.Connection // base loop only
	connCount       int64
	stopping        int32
	inactiveRelease bool
	inactiveTicks   int
	onConnected     conn.ConnectedCallback
	onMessage       conn.MessageCallback
	onClosed        conn.ClosedCallback
	onAnyEvent      conn.AnyEventCallback
	logger          logrus.FieldLogger
}

func New(address string, opts ...iface.Option) (*Server, error) {
	options := iface.ParseOptions(opts...)
	if err := checkIdleTicks(options.InactiveTimeout, options.WheelSize); err != nil {
		return nil, err
	}
	base, err := eloop.New(iface.WithOptions(*options))
	if err != nil {
		return nil, err
	}
	acceptor, err := NewAcceptor(base, address, options)
	if err != nil {
		base.Close()
		return nil, err
	}
	s := &Server{
		options:  options,
		baseLoop: base,
		acceptor: acceptor,
		pool:     eloop.NewLoopPool(base, options.NumOfLoops, balancer.New(options.LoadBalancer), iface.WithOptions(*options)),
		conns:    make(map[uint64]*conn.Connection),
		logger:   options.Logger.WithField("addr", acceptor.Addr().String()),
	}
	if options.InactiveTimeout > 0 {
		_ = s.EnableInactiveRelease(options.InactiveTimeout)
	}
	acceptor.SetAcceptCallback(s.newConn)
	return s, nil
}

func (that *Server) Addr() net.Addr { return that.acceptor.Addr() }

func (that *Server) BaseLoop() *eloop.EventLoop { return that.baseLoop }

func (that *Server) Loops() []*eloop.EventLoop { return that.pool.Loops() }

// ConnCount is the number of registered connections, safe from any goroutine.
func (that *Server) ConnCount() int { return int(atomic.LoadInt64(&that.connCount)) }

// SetThreadCount sets the number of sub loops, before Start.
func (that *Server) SetThreadCount(n int) { that.pool.SetThreadCount(n) }

// EnableInactiveRelease releases connections idle for ticks wheel ticks, before Start.
// ticks must fit in the wheel.
func (that *Server) EnableInactiveRelease(ticks int) error {
	if err := checkIdleTicks(ticks, that.options.WheelSize); err != nil {
		return err
	}
	that.inactiveRelease = true
	that.inactiveTicks = ticks
	return nil
}

func checkIdleTicks(ticks, wheelSize int) error {
	if ticks >= wheelSize {
		return fmt.Errorf("idle timeout of %d ticks on a wheel of %d: %w", ticks, wheelSize, errs.ErrTimerDelayRange)
	}
	return nil
}

func (that *Server) SetConnectedCallback(cb conn.ConnectedCallback) { that.onConnected = cb }

func (that *Server) SetMessageCallback(cb conn.MessageCallback) { that.onMessage = cb }

func (that *Server) SetClosedCallback(cb conn.ClosedCallback) { that.onClosed = cb }

func (that *Server) SetAnyEventCallback(cb conn.AnyEventCallback) { that.onAnyEvent = cb }

// RunAfter runs task on the base loop after delay ticks.
func (that *Server) RunAfter(delay int, task timewheel.TimerFunc) {
	that.baseLoop.TimerAdd(atomic.AddUint64(&that.nextId, 1), delay, task)
}

// Start brings up the sub loops, starts listening and runs the base loop until Stop.
func (that *Server) Start() {
	if err := that.pool.Start(); err != nil {
		that.logger.Panicf("start loop pool: %v", err)
	}
	that.acceptor.Listen()
	that.logger.WithField("loops", that.pool.ThreadCount()).Info("server started")
	that.baseLoop.Start()
	that.pool.Stop()
	that.logger.Info("server stopped")
}

// Stop closes the listener, releases every connection and makes Start return.
// Safe from any goroutine.
func (that *Server) Stop() {
	if !atomic.CompareAndSwapInt32(&that.stopping, 0, 1) {
		return
	}
	that.baseLoop.RunInLoop(func() {
		that.acceptor.Close()
		for id, c := range that.conns {
			c.Release()
			delete(that.conns, id)
		}
		atomic.StoreInt64(&that.connCount, 0)
		that.baseLoop.Stop()
	})
}

func (that *Server) newConn(fd int, remote net.Addr) {
	if atomic.LoadInt32(&that.stopping) == 1 {
		_ = socket.New(fd).Close()
		return
	}
	id := atomic.AddUint64(&that.nextId, 1)
	if keepAlive := int(that.options.ConnKeepAlive / time.Second); keepAlive > 0 {
		if err := socket.SetKeepAlive(fd, keepAlive); err != nil {
			that.logger.WithField("fd", fd).Warningf("keep-alive: %v", err)
		}
	}
	c := conn.New(that.pool.NextLoop(), id, fd)
	c.SetAddr(that.acceptor.Addr(), remote)
	c.SetConnectedCallback(that.onConnected)
	c.SetMessageCallback(that.onMessage)
	c.SetClosedCallback(that.onClosed)
	c.SetAnyEventCallback(that.onAnyEvent)
	c.SetSrvClosedCallback(that.removeConn)
	if that.inactiveRelease {
		c.EnableInactiveRelease(that.inactiveTicks)
	}
	that.conns[id] = c
	atomic.AddInt64(&that.connCount, 1)
	c.Establish()
}

func (that *Server) removeConn(c *conn.Connection) {
	if atomic.LoadInt32(&that.stopping) == 1 {
		return
	}
	that.baseLoop.RunInLoop(func() {
		if _, found := that.conns[c.ID()]; found {
			delete(that.conns, c.ID())
			atomic.AddInt64(&that.connCount, -1)
		}
	})
}
