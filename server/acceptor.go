//go:build linux

package server

import (
	"net"

	"github.com/sirupsen/logrus"

	"github.com/moqsien/gkreactor/eloop"
	"github.com/moqsien/gkreactor/iface"
	"github.com/moqsien/gkreactor/poll"
	"github.com/moqsien/gkreactor/socket"
	"github.com/moqsien/gkreactor/utils/errs"
)

type AcceptCallback func(fd int, remote net.Addr)

// Acceptor owns the listening socket and accepts on the base loop.
type Acceptor struct {
	loop     *eloop.EventLoop
	sock     *socket.Socket
	addr     net.Addr
	channel  *poll.Channel
	onAccept AcceptCallback
	logger   logrus.FieldLogger
}

func NewAcceptor(loop *eloop.EventLoop, address string, opts *iface.Options) (*Acceptor, error) {
	sock, addr, err := socket.Listen(address, opts.ReuseAddr, opts.ReusePort)
	if err != nil {
		return nil, err
	}
	a := &Acceptor{
		loop:   loop,
		sock:   sock,
		addr:   addr,
		logger: loop.Logger().WithFields(logrus.Fields{"addr": addr.String(), "fd": sock.Fd()}),
	}
	a.channel = poll.NewChannel(loop, sock.Fd())
	a.channel.SetReadCallback(a.handleRead)
	return a, nil
}

func (that *Acceptor) Addr() net.Addr { return that.addr }

// SetAcceptCallback must be called before Listen.
func (that *Acceptor) SetAcceptCallback(cb AcceptCallback) { that.onAccept = cb }

func (that *Acceptor) Listen() {
	that.loop.RunInLoop(that.channel.EnableRead)
}

// handleRead drains the accept queue; a connection nobody takes is closed.
func (that *Acceptor) handleRead() {
	for {
		fd, remote, err := that.sock.Accept()
		if err == errs.ErrWouldBlock {
			return
		}
		if err != nil {
			that.logger.Errorf("accept: %v", err)
			return
		}
		if that.onAccept == nil {
			_ = socket.New(fd).Close()
			continue
		}
		that.onAccept(fd, remote)
	}
}

func (that *Acceptor) Close() {
	that.loop.RunInLoop(func() {
		if that.sock.Fd() < 0 {
			return
		}
		that.channel.DisableAll()
		that.channel.Remove()
		if err := that.sock.Close(); err != nil {
			that.logger.Warningf("close listener: %v", err)
		}
	})
}
