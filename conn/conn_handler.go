//go:build linux

package conn

import (
	"github.com/panjf2000/gnet/v2/pkg/pool/byteslice"
)

func (that *Connection) handleRead() {
	if that.State() == Disconnected {
		return
	}
	buf := byteslice.Get(that.readSize)
	defer byteslice.Put(buf)

	n, err := that.sock.Recv(buf[:that.readSize])
	if err != nil {
		// peer closed or the socket failed, either way nothing more will arrive
		that.logger.Debugf("recv: %v", err)
		that.channel.DisableRead()
		that.shutdownInLoop()
		return
	}
	if n == 0 {
		return
	}
	_, _ = that.inBuffer.Write(buf[:n])
	that.flushInput()
}

func (that *Connection) handleWrite() {
	if that.State() == Disconnected {
		return
	}
	n, err := that.sock.Send(that.outBuffer.Peek())
	if err != nil {
		that.logger.Debugf("send: %v", err)
		that.flushInput()
		that.releaseInLoop()
		return
	}
	that.outBuffer.MoveReadOffset(n)
	if that.outBuffer.IsEmpty() {
		that.channel.DisableWrite()
		if that.State() == Disconnecting {
			that.releaseInLoop()
		}
	}
}

func (that *Connection) handleClose() {
	if that.State() == Disconnected {
		return
	}
	that.flushInput()
	that.releaseInLoop()
}

func (that *Connection) handleError() {
	that.handleClose()
}

func (that *Connection) handleEvent() {
	if that.State() == Disconnected {
		return
	}
	if that.inactiveRelease {
		that.loop.TimerRefresh(that.id)
	}
	if that.onAnyEvent != nil {
		that.onAnyEvent(that)
	}
}
