package sys

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/utils"
)

// one is the 8 byte increment written to an eventfd.
var one = func() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, 1)
	return b
}()

func CloseFd(fd int) error {
	return utils.SysError("close", unix.Close(fd))
}

// readCounter reads the 8 byte counter of an eventfd or timerfd.
// EAGAIN means nothing to read and reports 0.
func readCounter(fd int) (uint64, error) {
	var buf [8]byte
	for {
		_, err := unix.Read(fd, buf[:])
		switch err {
		case nil:
			return binary.LittleEndian.Uint64(buf[:]), nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, nil
		default:
			return 0, err
		}
	}
}
