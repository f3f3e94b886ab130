//go:build linux

package socket

import (
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/sys"
	"github.com/moqsien/gkreactor/utils"
	"github.com/moqsien/gkreactor/utils/errs"
)

var syscallName = "setsockopt"

// SetKeepAlive probes an idle peer every secs seconds and gives up after three misses.
func SetKeepAlive(fd, secs int) error {
	if secs <= 0 {
		return errs.ErrInvalidKeepAlive
	}
	if err := unix.SetsockoptInt(fd, sys.SOL_SOCKET, sys.SO_KEEPALIVE, 1); err != nil {
		return utils.SysError(syscallName, err)
	}
	if err := unix.SetsockoptInt(fd, sys.IPPROTO_TCP, sys.TCP_KEEPINTVL, secs); err != nil {
		return utils.SysError(syscallName, err)
	}
	if err := unix.SetsockoptInt(fd, sys.IPPROTO_TCP, sys.TCP_KEEPIDLE, secs); err != nil {
		return utils.SysError(syscallName, err)
	}
	return utils.SysError(syscallName, unix.SetsockoptInt(fd, sys.IPPROTO_TCP, sys.TCP_KEEPCNT, 3))
}
