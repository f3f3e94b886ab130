//go:build linux

package sys

import (
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/utils"
)

func CreateEventFd() (int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	return fd, utils.SysError("eventfd", err)
}

// Trigger adds one to the eventfd counter. A full counter already guarantees a
// pending wakeup, so EAGAIN is not an error.
func Trigger(fd int) error {
	for {
		_, err := unix.Write(fd, one)
		switch err {
		case nil, unix.EAGAIN:
			return nil
		case unix.EINTR:
			continue
		default:
			return utils.SysError("eventfd_write", err)
		}
	}
}

// Drain resets the eventfd counter and returns its previous value.
func Drain(fd int) (uint64, error) {
	n, err := readCounter(fd)
	return n, utils.SysError("eventfd_read", err)
}
