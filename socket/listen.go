//go:build linux

package socket

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/utils"
	"github.com/moqsien/gkreactor/utils/errs"
)

// Listen opens a non-blocking TCP listening socket on address.
func Listen(address string, reuseAddr, reusePort bool) (*Socket, net.Addr, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, nil, err
	}
	family, sa := toSockaddr(tcpAddr)

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, nil, utils.SysError("socket", err)
	}
	sock := New(fd)
	if err = setupListener(fd, sa, reuseAddr, reusePort); err != nil {
		_ = sock.Close()
		return nil, nil, err
	}
	local, err := unix.Getsockname(fd)
	if err != nil {
		_ = sock.Close()
		return nil, nil, utils.SysError("getsockname", err)
	}
	return sock, SockaddrToTCPAddr(local), nil
}

func setupListener(fd int, sa unix.Sockaddr, reuseAddr, reusePort bool) error {
	if reuseAddr {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return utils.SysError(syscallName, err)
		}
	}
	if reusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			return utils.SysError(syscallName, err)
		}
	}
	if err := unix.Bind(fd, sa); err != nil {
		return utils.SysError("bind", err)
	}
	return utils.SysError("listen", unix.Listen(fd, utils.MaxListenerBacklog()))
}

// Accept takes one pending connection. The new fd is non-blocking, close-on-exec
// and has Nagle disabled. An empty queue yields errs.ErrWouldBlock.
func (that *Socket) Accept() (int, net.Addr, error) {
	for {
		nfd, sa, err := unix.Accept4(that.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch err {
		case nil:
		case unix.EINTR, unix.ECONNABORTED:
			continue
		case unix.EAGAIN:
			return -1, nil, errs.ErrWouldBlock
		default:
			return -1, nil, utils.SysError("accept4", err)
		}
		if err = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			_ = unix.Close(nfd)
			return -1, nil, utils.SysError(syscallName, err)
		}
		return nfd, SockaddrToTCPAddr(sa), nil
	}
}

func toSockaddr(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil || len(addr.IP) == 0 {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	if addr.Zone != "" {
		if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
			sa.ZoneId = uint32(ifi.Index)
		}
	}
	return unix.AF_INET6, sa
}

func SockaddrToTCPAddr(sa unix.Sockaddr) net.Addr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: sa.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, sa.Addr[:])
		return &net.TCPAddr{IP: ip, Port: sa.Port}
	}
	return nil
}
