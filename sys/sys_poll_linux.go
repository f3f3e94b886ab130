//go:build linux

package sys

import (
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/utils"
)

const (
	MaxPollSize  = 1024
	MinPollSize  = 32
	InitPollSize = 128
)

func CreatePoll() (int, error) {
	pollFd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	return pollFd, utils.SysError("epoll_create1", err)
}

func epollFdHandler(pollFd, fd, ctlAction int, evs uint32) (err error) {
	var event *unix.EpollEvent
	if ctlAction != unix.EPOLL_CTL_DEL {
		event = &unix.EpollEvent{Fd: int32(fd), Events: evs}
	}
	err = unix.EpollCtl(pollFd, ctlAction, fd, event)
	var eSysName string
	switch ctlAction {
	case unix.EPOLL_CTL_ADD:
		eSysName = "epoll_ctl_add"
	case unix.EPOLL_CTL_MOD:
		eSysName = "epoll_ctl_mod"
	case unix.EPOLL_CTL_DEL:
		eSysName = "epoll_ctl_del"
	default:
	}
	return utils.SysError(eSysName, err)
}

func Register(pollFd, fd int, evs uint32) error {
	return epollFdHandler(pollFd, fd, unix.EPOLL_CTL_ADD, evs)
}

func Modify(pollFd, fd int, evs uint32) error {
	return epollFdHandler(pollFd, fd, unix.EPOLL_CTL_MOD, evs)
}

func UnRegister(pollFd, fd int) error {
	return epollFdHandler(pollFd, fd, unix.EPOLL_CTL_DEL, 0)
}

// WaitPoll blocks until at least one fd is ready. EINTR is returned untouched so
// the caller can treat it as an empty round.
func WaitPoll(pollFd int, events []unix.EpollEvent) (int, error) {
	n, err := unix.EpollWait(pollFd, events, -1)
	if err == unix.EINTR {
		return 0, err
	}
	return n, utils.SysError("epoll_wait", err)
}
