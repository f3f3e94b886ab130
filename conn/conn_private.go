//go:build linux

package conn

import "github.com/moqsien/gkreactor/utils/errs"

func (that *Connection) establishInLoop() {
	if that.State() != Connecting {
		that.logger.Warningf("establish called in state %s, ignored", that.State())
		return
	}
	that.setState(Connected)
	that.counted = true
	that.loop.AddConnCount(1)
	that.channel.EnableRead()
	if that.onConnected != nil {
		that.onConnected(that)
	}
}

func (that *Connection) sendInLoop(p []byte) {
	if that.State() == Disconnected {
		that.logger.Debugf("drop %d bytes: %v", len(p), errs.ErrConnClosed)
		return
	}
	_, _ = that.outBuffer.Write(p)
	if !that.channel.WriteAble() {
		that.channel.EnableWrite()
	}
}

func (that *Connection) flushInput() {
	if that.inBuffer.ReadableSize() > 0 && that.onMessage != nil {
		that.onMessage(that, that.inBuffer)
	}
}

func (that *Connection) shutdownInLoop() {
	if state := that.State(); state == Disconnecting || state == Disconnected {
		return
	}
	that.setState(Disconnecting)
	that.flushInput()
	if that.outBuffer.ReadableSize() > 0 {
		if !that.channel.WriteAble() {
			that.channel.EnableWrite()
		}
		return
	}
	that.releaseInLoop()
}

// releaseInLoop runs at most once: it unregisters, closes the socket and fires the
// closed callbacks, application first.
func (that *Connection) releaseInLoop() {
	if that.State() == Disconnected {
		return
	}
	that.setState(Disconnected)
	that.channel.DisableAll()
	that.channel.Remove()
	if err := that.sock.Close(); err != nil {
		that.logger.Warningf("close socket: %v", err)
	}
	that.cancelInactiveReleaseInLoop()
	if that.counted {
		that.loop.AddConnCount(-1)
	}
	if that.onClosed != nil {
		that.onClosed(that)
	}
	if that.onSrvClosed != nil {
		that.onSrvClosed(that)
	}
	// callbacks up the stack may still hold Peek slices of the input
	in, out := that.inBuffer, that.outBuffer
	that.loop.QueueInLoop(func() {
		in.Release()
		out.Release()
	})
}

func (that *Connection) enableInactiveReleaseInLoop(ticks int) {
	if that.State() == Disconnected {
		return
	}
	that.inactiveRelease = true
	if that.loop.TimerLive(that.id) {
		that.loop.TimerRefresh(that.id)
		return
	}
	that.loop.TimerAdd(that.id, ticks, that.releaseInLoop)
}

func (that *Connection) cancelInactiveReleaseInLoop() {
	that.inactiveRelease = false
	if that.loop.TimerLive(that.id) {
		that.loop.TimerCancel(that.id)
	}
}
