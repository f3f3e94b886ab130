//go:build linux

package sys

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/utils"
)

// CreateTimerFd returns a non-blocking periodic timerfd firing every interval.
func CreateTimerFd(interval time.Duration) (int, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return -1, utils.SysError("timerfd_create", err)
	}
	spec := unix.NsecToTimespec(interval.Nanoseconds())
	itime := &unix.ItimerSpec{Interval: spec, Value: spec}
	if err = unix.TimerfdSettime(fd, 0, itime, nil); err != nil {
		_ = unix.Close(fd)
		return -1, utils.SysError("timerfd_settime", err)
	}
	return fd, nil
}

// ReadTimerFd returns how many intervals expired since the last read.
func ReadTimerFd(fd int) (uint64, error) {
	n, err := readCounter(fd)
	return n, utils.SysError("timerfd_read", err)
}
