//go:build linux

package sys

import "golang.org/x/sys/unix"

const (
	TCP_KEEPINTVL = unix.TCP_KEEPINTVL
	TCP_KEEPIDLE  = unix.TCP_KEEPIDLE
	TCP_KEEPCNT   = unix.TCP_KEEPCNT
	SOL_SOCKET    = unix.SOL_SOCKET
	IPPROTO_TCP   = unix.IPPROTO_TCP
	SO_KEEPALIVE  = unix.SO_KEEPALIVE
)
