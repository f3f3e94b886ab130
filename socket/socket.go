//go:build linux

/*
Socket is a non-blocking stream socket fd. Would-block is absorbed here so callers
only see data, io.EOF, or a real failure.
*/
package socket

import (
	"io"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/utils"
)

type Socket struct {
	fd int
}

func New(fd int) *Socket {
	return &Socket{fd: fd}
}

func (that *Socket) Fd() int { return that.fd }

// Recv reads what is available. Nothing available yields (0, nil), an orderly peer
// shutdown yields (0, io.EOF).
func (that *Socket) Recv(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, _, err := unix.Recvfrom(that.fd, p, unix.MSG_DONTWAIT)
	switch {
	case n > 0:
		// data wins over a failure to decode the peer address
		return n, nil
	case err == unix.EAGAIN || err == unix.EINTR:
		return 0, nil
	case err != nil:
		return 0, utils.SysError("recvfrom", err)
	}
	return 0, io.EOF
}

// Send writes as much of p as the kernel takes without blocking.
func (that *Socket) Send(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.SendmsgN(that.fd, p, nil, nil, unix.MSG_DONTWAIT|unix.MSG_NOSIGNAL)
	if err == unix.EAGAIN || err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, utils.SysError("sendmsg", err)
	}
	return n, nil
}

func (that *Socket) Close() error {
	if that.fd < 0 {
		return nil
	}
	err := unix.Close(that.fd)
	that.fd = -1
	return utils.SysError("close", err)
}
